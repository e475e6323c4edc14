package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookingStatus is the lifecycle state of a booking.  A booking is created
// as booked and may only move to cancelled; rows are never deleted.
type BookingStatus string

const (
	BookingBooked    BookingStatus = "booked"
	BookingCancelled BookingStatus = "cancelled"
)

// DiscountSource names the primary discount layer that fired for a booking.
type DiscountSource string

const (
	SourceNone             DiscountSource = ""
	SourceLoyaltyMilestone DiscountSource = "loyalty_milestone"
	SourceFirstBooking     DiscountSource = "first_booking"
	SourceOffer            DiscountSource = "offer"
	SourceTimeDecay        DiscountSource = "time_decay"
)

// Booking records a customer's reservation of a contiguous run of hours on
// one turf and date.  Payment is collected at the venue, so TotalAmount is
// what the customer owes on arrival.
//
// Fields:
//  ID             – primary key (uuid).
//  TurfID         – turf being reserved.
//  OwnerID        – venue operator who owns the turf.
//  CustomerID     – customer ledger row of the booking customer.
//  Date           – calendar date, YYYY-MM-DD in the venue timezone.
//  StartHour      – first reserved hour.
//  EndHour        – exclusive end hour (24 for midnight).
//  TotalAmount    – final price after all discounts.
//  DiscountAmount – primary + promo discount.
//  Source         – which primary discount layer fired, if any.
//  OfferID        – id of the offer/milestone behind Source.
//  PromoCodeID    – promo code applied on top, if any.
type Booking struct {
	ID                 string          `db:"id" json:"id"`
	TurfID             string          `db:"turf_id" json:"turf_id"`
	OwnerID            string          `db:"owner_id" json:"owner_id"`
	CustomerID         string          `db:"customer_id" json:"customer_id"`
	CustomerPhone      string          `db:"customer_phone" json:"customer_phone"`
	CustomerName       string          `db:"customer_name" json:"customer_name"`
	Date               string          `db:"slot_date" json:"date"`
	StartHour          int             `db:"start_hour" json:"start_hour"`
	EndHour            int             `db:"end_hour" json:"end_hour"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"total_amount"`
	DiscountAmount     decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	Status             BookingStatus   `db:"status" json:"status"`
	Source             DiscountSource  `db:"discount_source" json:"discount_source,omitempty"`
	OfferID            *string         `db:"offer_id" json:"offer_id,omitempty"`
	PromoCodeID        *string         `db:"promo_code_id" json:"promo_code_id,omitempty"`
	CancellationReason *string         `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CancelledBy        *string         `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// Active reports whether the booking still claims its hours.
func (b Booking) Active() bool { return b.Status == BookingBooked }

// Duration returns the number of booked hours.
func (b Booking) Duration() int { return b.EndHour - b.StartHour }

// BlockedSlot is an operator-declared unavailability window on one date.
type BlockedSlot struct {
	ID        string `db:"id" json:"id"`
	TurfID    string `db:"turf_id" json:"turf_id"`
	Date      string `db:"slot_date" json:"date"`
	StartHour int    `db:"start_hour" json:"start_hour"`
	EndHour   int    `db:"end_hour" json:"end_hour"`
	Reason    string `db:"reason" json:"reason"`
}

// Ticket is issued once per booking.  Code is what the customer reads out
// at the venue; Payload is the signed machine-readable form.
type Ticket struct {
	ID        string    `db:"id" json:"id"`
	BookingID string    `db:"booking_id" json:"booking_id"`
	Code      string    `db:"code" json:"code"`
	Payload   string    `db:"payload" json:"payload"`
	IssuedAt  time.Time `db:"issued_at" json:"issued_at"`
}
