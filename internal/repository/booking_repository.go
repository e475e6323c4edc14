package repository

import (
    "context"
    "time"

    "github.com/iliyamo/turf-slot-booking/internal/apperror"
    "github.com/iliyamo/turf-slot-booking/internal/model"
)

// The offer behind a booking is stored in the foreign key column of its
// source table and read back as one offer_id.
const bookingColumns = `id, turf_id, owner_id, customer_id, customer_phone, customer_name,
    slot_date, start_hour, end_hour, total_amount, discount_amount, status, discount_source,
    COALESCE(milestone_offer_id, first_booking_offer_id, offer_id) AS offer_id,
    promo_code_id, cancellation_reason, cancelled_by, cancelled_at, created_at`

// offerRefs splits b.OfferID by discount source into
// (milestone_offer_id, first_booking_offer_id, offer_id).
func offerRefs(b *model.Booking) (milestone, firstBooking, offer *string, err error) {
    if b.OfferID == nil {
        return nil, nil, nil, nil
    }
    switch b.Source {
    case model.SourceLoyaltyMilestone:
        return b.OfferID, nil, nil, nil
    case model.SourceFirstBooking:
        return nil, b.OfferID, nil, nil
    case model.SourceOffer, model.SourceTimeDecay:
        return nil, nil, b.OfferID, nil
    }
    return nil, nil, nil, apperror.Validation("booking %s: offer %s without a discount source", b.ID, *b.OfferID)
}

// ListBookings returns the turf's bookings in [fromDate, toDate], cancelled
// ones included.
func (s *Store) ListBookings(ctx context.Context, turfID, fromDate, toDate string) ([]model.Booking, error) {
    var out []model.Booking
    err := s.selectAll(ctx, &out,
        `SELECT `+bookingColumns+` FROM bookings
         WHERE turf_id = ? AND slot_date BETWEEN ? AND ?
         ORDER BY slot_date, start_hour`,
        turfID, fromDate, toDate)
    return out, err
}

// InsertBooking writes b and turns its hours into booking claims.  The
// claims of holdID (the hold being converted) are released in the same
// transaction; any other live claim on those hours makes the insert fail
// with Conflict.
func (s *Store) InsertBooking(ctx context.Context, b *model.Booking, holdID string) error {
    milestoneID, firstBookingID, offerID, err := offerRefs(b)
    if err != nil {
        return err
    }
    return s.atomic(ctx, func(s *Store) error {
        if holdID != "" {
            if _, err := s.exec(ctx, `DELETE FROM slot_claims WHERE hold_id = ?`, holdID); err != nil {
                return err
            }
        }
        if err := s.clearExpiredClaims(ctx, b.TurfID, b.Date, b.StartHour, b.EndHour, b.CreatedAt); err != nil {
            return err
        }
        if _, err := s.exec(ctx,
            `INSERT INTO bookings (id, turf_id, owner_id, customer_id, customer_phone, customer_name,
                slot_date, start_hour, end_hour, total_amount, discount_amount, status, discount_source,
                milestone_offer_id, first_booking_offer_id, offer_id, promo_code_id, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
            b.ID, b.TurfID, b.OwnerID, b.CustomerID, b.CustomerPhone, b.CustomerName,
            b.Date, b.StartHour, b.EndHour, b.TotalAmount, b.DiscountAmount, b.Status, b.Source,
            milestoneID, firstBookingID, offerID, b.PromoCodeID, b.CreatedAt.UTC(),
        ); err != nil {
            return translate(err, "booking "+b.ID)
        }
        claims := make([]claim, 0, b.Duration())
        for h := b.StartHour; h < b.EndHour; h++ {
            claims = append(claims, claim{hour: h, bookingID: b.ID})
        }
        return s.insertClaims(ctx, b.TurfID, b.Date, claims)
    })
}

func (s *Store) GetBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
    var b model.Booking
    if err := s.get(ctx, &b, s.forUpdate(`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`), bookingID); err != nil {
        return nil, translate(err, "booking "+bookingID)
    }
    return &b, nil
}

// ListBookingsByPhone returns the customer's bookings across all venues,
// newest first.
func (s *Store) ListBookingsByPhone(ctx context.Context, phone string) ([]model.Booking, error) {
    var out []model.Booking
    err := s.selectAll(ctx, &out,
        `SELECT `+bookingColumns+` FROM bookings WHERE customer_phone = ? ORDER BY created_at DESC`,
        phone)
    return out, err
}

// CancelBooking flips an active booking to cancelled and frees its hours.
// The row itself is kept.
func (s *Store) CancelBooking(ctx context.Context, bookingID, reason, actor string, at time.Time) error {
    return s.atomic(ctx, func(s *Store) error {
        n, err := s.exec(ctx,
            `UPDATE bookings
             SET status = ?, cancellation_reason = ?, cancelled_by = ?, cancelled_at = ?
             WHERE id = ? AND status = ?`,
            model.BookingCancelled, reason, actor, at.UTC(), bookingID, model.BookingBooked)
        if err != nil {
            return err
        }
        if n == 0 {
            if _, err := s.GetBooking(ctx, bookingID); err != nil {
                return err
            }
            return apperror.Conflict("booking %s is already cancelled", bookingID)
        }
        _, err = s.exec(ctx, `DELETE FROM slot_claims WHERE booking_id = ?`, bookingID)
        return err
    })
}

// CountCompletedBookings counts the customer's active bookings at the
// operator's venues whose last hour has ended, judged in loc.
func (s *Store) CountCompletedBookings(ctx context.Context, ownerID, phone string, now time.Time, loc *time.Location) (int, error) {
    if loc == nil {
        loc = time.UTC
    }
    local := now.In(loc)
    today := local.Format("2006-01-02")
    var n int
    err := s.get(ctx, &n,
        `SELECT COUNT(*) FROM bookings
         WHERE owner_id = ? AND customer_phone = ? AND status = ?
           AND (slot_date < ? OR (slot_date = ? AND end_hour <= ?))`,
        ownerID, phone, model.BookingBooked, today, today, local.Hour())
    return n, err
}
