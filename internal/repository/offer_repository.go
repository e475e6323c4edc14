package repository

import (
    "context"
    "fmt"

    "github.com/jmoiron/sqlx"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/turf-slot-booking/internal/apperror"
    "github.com/iliyamo/turf-slot-booking/internal/model"
)

func (s *Store) ListMilestones(ctx context.Context, ownerID string) ([]model.LoyaltyMilestoneOffer, error) {
    var out []model.LoyaltyMilestoneOffer
    err := s.selectAll(ctx, &out,
        `SELECT id, owner_id, milestone_booking_count, reward_type, reward_value, free_hour_on_duration,
                is_active, usage_count, revenue, created_at
         FROM loyalty_milestone_offers
         WHERE owner_id = ? AND is_active = TRUE
         ORDER BY created_at, id`,
        ownerID)
    return out, err
}

func (s *Store) ListFirstBookingOffers(ctx context.Context, ownerID string) ([]model.FirstBookingOffer, error) {
    var out []model.FirstBookingOffer
    err := s.selectAll(ctx, &out,
        `SELECT id, owner_id, booking_number, discount_type, discount_value, days_of_week, hours,
                is_active, usage_count, revenue, created_at
         FROM first_booking_offers
         WHERE owner_id = ? AND is_active = TRUE
         ORDER BY created_at, id`,
        ownerID)
    return out, err
}

// ListOffers returns the operator's active offers valid on date that are
// either venue-wide or scoped to turfID, oldest first.
func (s *Store) ListOffers(ctx context.Context, ownerID, turfID, date string) ([]model.Offer, error) {
    var out []model.Offer
    err := s.selectAll(ctx, &out,
        `SELECT id, owner_id, turf_id, title, discount_type, discount_value, valid_from, valid_until,
                days_of_week, hours, time_decay, is_active, usage_count, view_count, revenue, created_at
         FROM offers
         WHERE owner_id = ? AND is_active = TRUE
           AND (turf_id IS NULL OR turf_id = ?)
           AND valid_from <= ? AND valid_until >= ?
         ORDER BY created_at, id`,
        ownerID, turfID, date, date)
    return out, err
}

// GetPromoCode matches code case-insensitively within the operator's codes.
func (s *Store) GetPromoCode(ctx context.Context, ownerID, code string) (*model.PromoCode, error) {
    var p model.PromoCode
    err := s.get(ctx, &p,
        `SELECT id, owner_id, turf_id, code, discount_type, discount_value, max_discount, min_amount,
                usage_limit, used_count, valid_from, valid_until, is_active, created_at
         FROM promo_codes
         WHERE owner_id = ? AND UPPER(code) = UPPER(?)
         LIMIT 1`,
        ownerID, code)
    if err != nil {
        return nil, translate(err, "promo code "+code)
    }
    return &p, nil
}

// offerTables maps a discount source to the table that holds its offers.
var offerTables = map[model.DiscountSource]string{
    model.SourceLoyaltyMilestone: "loyalty_milestone_offers",
    model.SourceFirstBooking:     "first_booking_offers",
    model.SourceOffer:            "offers",
    model.SourceTimeDecay:        "offers",
}

// IncrementOfferUsage credits one use and revenue to the offer behind source.
func (s *Store) IncrementOfferUsage(ctx context.Context, source model.DiscountSource, offerID string, revenue decimal.Decimal) error {
    table, ok := offerTables[source]
    if !ok {
        return apperror.Validation("unknown discount source %q", source)
    }
    n, err := s.exec(ctx,
        fmt.Sprintf(`UPDATE %s SET usage_count = usage_count + 1, revenue = revenue + ? WHERE id = ?`, table),
        revenue, offerID)
    if err != nil {
        return err
    }
    if n == 0 {
        return apperror.NotFound("%s %s not found", source, offerID)
    }
    return nil
}

// IncrementOfferViews bumps the view counter of every listed offer.
func (s *Store) IncrementOfferViews(ctx context.Context, offerIDs []string) error {
    if len(offerIDs) == 0 {
        return nil
    }
    query, args, err := sqlx.In(`UPDATE offers SET view_count = view_count + 1 WHERE id IN (?)`, offerIDs)
    if err != nil {
        return err
    }
    _, err = s.exec(ctx, query, args...)
    return err
}

func (s *Store) IncrementPromoUsage(ctx context.Context, promoID string) error {
    n, err := s.exec(ctx, `UPDATE promo_codes SET used_count = used_count + 1 WHERE id = ?`, promoID)
    if err != nil {
        return err
    }
    if n == 0 {
        return apperror.NotFound("promo code %s not found", promoID)
    }
    return nil
}
