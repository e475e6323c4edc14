package repository

import (
    "context"
    "time"

    "github.com/iliyamo/turf-slot-booking/internal/apperror"
    "github.com/iliyamo/turf-slot-booking/internal/model"
)

const holdColumns = `id, turf_id, slot_date, start_hour, end_hour, session_id, expires_at, created_at`

// ListHolds returns every hold row of the turf in [fromDate, toDate],
// expired ones included.  Callers decide liveness against their own clock.
func (s *Store) ListHolds(ctx context.Context, turfID, fromDate, toDate string) ([]model.SlotHold, error) {
    var out []model.SlotHold
    err := s.selectAll(ctx, &out,
        `SELECT `+holdColumns+` FROM slot_holds
         WHERE turf_id = ? AND slot_date BETWEEN ? AND ?
         ORDER BY slot_date, start_hour`,
        turfID, fromDate, toDate)
    return out, err
}

// GetHoldBySession returns the session's hold on the turf, live or not.
func (s *Store) GetHoldBySession(ctx context.Context, turfID, sessionID string) (*model.SlotHold, error) {
    var h model.SlotHold
    err := s.get(ctx, &h,
        s.forUpdate(`SELECT `+holdColumns+` FROM slot_holds WHERE turf_id = ? AND session_id = ? LIMIT 1`),
        turfID, sessionID)
    if err != nil {
        return nil, translate(err, "hold for this session")
    }
    return &h, nil
}

// InsertHold stores h and claims its hours.  Claims left behind by expired
// holds in the same range are cleared first so they never block a new
// selection, whether or not the sweeper has run.
func (s *Store) InsertHold(ctx context.Context, h *model.SlotHold, now time.Time) error {
    return s.atomic(ctx, func(s *Store) error {
        if err := s.clearExpiredClaims(ctx, h.TurfID, h.Date, h.StartHour, h.EndHour, now); err != nil {
            return err
        }
        if _, err := s.exec(ctx,
            `INSERT INTO slot_holds (`+holdColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
            h.ID, h.TurfID, h.Date, h.StartHour, h.EndHour, h.SessionID, h.ExpiresAt.UTC(), h.CreatedAt.UTC(),
        ); err != nil {
            return translate(err, "hold "+h.ID)
        }
        return s.insertClaims(ctx, h.TurfID, h.Date, holdClaims(h.ID, h.StartHour, h.EndHour, h.ExpiresAt))
    })
}

// ExtendHold moves the end hour of a hold.  Growing claims the new hours;
// shrinking releases the claims past newEnd.  The deadline is untouched.
func (s *Store) ExtendHold(ctx context.Context, holdID string, newEnd int, now time.Time) error {
    return s.atomic(ctx, func(s *Store) error {
        var h model.SlotHold
        if err := s.get(ctx, &h, s.forUpdate(`SELECT `+holdColumns+` FROM slot_holds WHERE id = ?`), holdID); err != nil {
            return translate(err, "hold "+holdID)
        }
        switch {
        case newEnd > h.EndHour:
            if err := s.clearExpiredClaims(ctx, h.TurfID, h.Date, h.EndHour, newEnd, now); err != nil {
                return err
            }
            if err := s.insertClaims(ctx, h.TurfID, h.Date, holdClaims(h.ID, h.EndHour, newEnd, h.ExpiresAt)); err != nil {
                return err
            }
        case newEnd < h.EndHour:
            if _, err := s.exec(ctx, `DELETE FROM slot_claims WHERE hold_id = ? AND hour >= ?`, h.ID, newEnd); err != nil {
                return err
            }
        }
        _, err := s.exec(ctx, `UPDATE slot_holds SET end_hour = ? WHERE id = ?`, newEnd, h.ID)
        return err
    })
}

// DeleteHold removes a hold and frees its hours.
func (s *Store) DeleteHold(ctx context.Context, holdID string) error {
    return s.atomic(ctx, func(s *Store) error {
        if _, err := s.exec(ctx, `DELETE FROM slot_claims WHERE hold_id = ?`, holdID); err != nil {
            return err
        }
        n, err := s.exec(ctx, `DELETE FROM slot_holds WHERE id = ?`, holdID)
        if err != nil {
            return err
        }
        if n == 0 {
            return apperror.NotFound("hold %s not found", holdID)
        }
        return nil
    })
}

// DeleteExpiredHolds removes every hold whose deadline is at or before now
// and returns how many were removed.
func (s *Store) DeleteExpiredHolds(ctx context.Context, now time.Time) (int, error) {
    var n int64
    err := s.atomic(ctx, func(s *Store) error {
        if _, err := s.exec(ctx,
            `DELETE FROM slot_claims WHERE hold_id IS NOT NULL AND expires_at <= ?`, now.UTC()); err != nil {
            return err
        }
        var err error
        n, err = s.exec(ctx, `DELETE FROM slot_holds WHERE expires_at <= ?`, now.UTC())
        return err
    })
    return int(n), err
}

// clearExpiredClaims drops hold claims in [start, end) whose hold has
// already expired.
func (s *Store) clearExpiredClaims(ctx context.Context, turfID, date string, start, end int, now time.Time) error {
    _, err := s.exec(ctx,
        `DELETE FROM slot_claims
         WHERE turf_id = ? AND slot_date = ? AND hour >= ? AND hour < ?
           AND hold_id IS NOT NULL AND expires_at <= ?`,
        turfID, date, start, end, now.UTC())
    return err
}

func holdClaims(holdID string, start, end int, expiresAt time.Time) []claim {
    out := make([]claim, 0, end-start)
    for h := start; h < end; h++ {
        out = append(out, claim{hour: h, holdID: holdID, expiresAt: expiresAt.UTC()})
    }
    return out
}
