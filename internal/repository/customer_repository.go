package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/turf-slot-booking/internal/model"
)

const customerColumns = `id, owner_id, phone, name, total_bookings, total_spent, loyalty_points, created_at, updated_at`

// UpsertCustomer resolves the operator's ledger row for phone, creating it
// on first booking, and records one more booking worth spent and points.
// A non-empty name replaces the stored one.
func (s *Store) UpsertCustomer(ctx context.Context, ownerID, phone, name string, spent decimal.Decimal, points int) (*model.Customer, error) {
    var out *model.Customer
    err := s.atomic(ctx, func(s *Store) error {
        now := nowUTC()
        var c model.Customer
        err := s.get(ctx, &c,
            s.forUpdate(`SELECT `+customerColumns+` FROM customers WHERE owner_id = ? AND phone = ?`),
            ownerID, phone)
        switch {
        case errors.Is(err, sql.ErrNoRows):
            c = model.Customer{
                ID: uuid.NewString(), OwnerID: ownerID, Phone: phone, Name: name,
                TotalBookings: 1, TotalSpent: spent, LoyaltyPoints: points,
                CreatedAt: now, UpdatedAt: now,
            }
            if _, err := s.exec(ctx,
                `INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
                c.ID, c.OwnerID, c.Phone, c.Name, c.TotalBookings, c.TotalSpent, c.LoyaltyPoints, c.CreatedAt, c.UpdatedAt,
            ); err != nil {
                return translate(err, "customer "+phone)
            }
        case err != nil:
            return err
        default:
            if name != "" {
                c.Name = name
            }
            c.TotalBookings++
            c.TotalSpent = c.TotalSpent.Add(spent)
            c.LoyaltyPoints += points
            c.UpdatedAt = now
            if _, err := s.exec(ctx,
                `UPDATE customers
                 SET name = ?, total_bookings = ?, total_spent = ?, loyalty_points = ?, updated_at = ?
                 WHERE id = ?`,
                c.Name, c.TotalBookings, c.TotalSpent, c.LoyaltyPoints, c.UpdatedAt, c.ID,
            ); err != nil {
                return err
            }
        }
        out = &c
        return nil
    })
    return out, err
}

// InsertLoyaltyEntry appends to the loyalty ledger.
func (s *Store) InsertLoyaltyEntry(ctx context.Context, e *model.LoyaltyEntry) error {
    _, err := s.exec(ctx,
        `INSERT INTO loyalty_entries (id, customer_id, booking_id, points, reason, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
        e.ID, e.CustomerID, e.BookingID, e.Points, e.Reason, e.CreatedAt.UTC())
    return translate(err, "loyalty entry "+e.ID)
}
