package repository

import (
    "context"

    "github.com/iliyamo/turf-slot-booking/internal/model"
)

// GetTurf loads a turf by id.  Visibility is the caller's concern.
func (s *Store) GetTurf(ctx context.Context, turfID string) (*model.Turf, error) {
    var t model.Turf
    err := s.get(ctx, &t,
        `SELECT id, owner_id, name, is_public, open_time, close_time, base_price,
                price_1h, price_2h, price_3h, weekday_price, weekend_price, peak_hour_price, created_at
         FROM turfs WHERE id = ?`,
        turfID)
    if err != nil {
        return nil, translate(err, "turf "+turfID)
    }
    return &t, nil
}

// ListBlockedSlots returns operator blocks on the turf in [fromDate, toDate].
func (s *Store) ListBlockedSlots(ctx context.Context, turfID, fromDate, toDate string) ([]model.BlockedSlot, error) {
    var out []model.BlockedSlot
    err := s.selectAll(ctx, &out,
        `SELECT id, turf_id, slot_date, start_hour, end_hour, reason FROM blocked_slots
         WHERE turf_id = ? AND slot_date BETWEEN ? AND ?
         ORDER BY slot_date, start_hour`,
        turfID, fromDate, toDate)
    return out, err
}
