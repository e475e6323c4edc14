package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a venue operator's ledger row for one phone number.  The
// same phone has one Customer per operator; stats only ever grow.
//
// Fields:
//  ID            – primary key (uuid).
//  OwnerID       – venue operator.
//  Phone         – unique per operator.
//  Name          – last name the customer booked under.
//  TotalBookings – committed bookings, cancellations included.
//  TotalSpent    – sum of committed booking totals.
//  LoyaltyPoints – points accrued from the loyalty ledger.
type Customer struct {
	ID            string          `db:"id" json:"id"`
	OwnerID       string          `db:"owner_id" json:"owner_id"`
	Phone         string          `db:"phone" json:"phone"`
	Name          string          `db:"name" json:"name"`
	TotalBookings int             `db:"total_bookings" json:"total_bookings"`
	TotalSpent    decimal.Decimal `db:"total_spent" json:"total_spent"`
	LoyaltyPoints int             `db:"loyalty_points" json:"loyalty_points"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// LoyaltyEntry is an append-only credit in a customer's loyalty ledger.
type LoyaltyEntry struct {
	ID         string    `db:"id" json:"id"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	BookingID  string    `db:"booking_id" json:"booking_id"`
	Points     int       `db:"points" json:"points"`
	Reason     string    `db:"reason" json:"reason"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Identity is an authenticated customer as supplied by the identity
// provider.  Phone is required to hold or book a slot.
type Identity struct {
	Phone string
	Name  string
}
