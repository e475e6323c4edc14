package model

import "time"

// SlotHold represents a temporary soft lock on a contiguous run of hours
// while a customer is finishing a booking.  Holds prevent other sessions
// from grabbing the same hours.  A hold is live strictly before its
// ExpiresAt; from that instant on every reader must treat it as absent,
// whether or not the row has been deleted yet.
//
// Fields:
//  ID        – primary key (uuid).
//  TurfID    – turf on which hours are held.
//  Date      – YYYY-MM-DD.
//  StartHour – first held hour.
//  EndHour   – exclusive end hour.
//  SessionID – browsing session that owns the hold.
//  ExpiresAt – absolute deadline, fixed at acquisition.
//  CreatedAt – acquisition instant.
type SlotHold struct {
	ID        string    `db:"id" json:"id"`
	TurfID    string    `db:"turf_id" json:"turf_id"`
	Date      string    `db:"slot_date" json:"date"`
	StartHour int       `db:"start_hour" json:"start_hour"`
	EndHour   int       `db:"end_hour" json:"end_hour"`
	SessionID string    `db:"session_id" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Live reports whether the hold is still valid at now.
func (h SlotHold) Live(now time.Time) bool { return now.Before(h.ExpiresAt) }

// Remaining returns the time left before expiry, never negative.
func (h SlotHold) Remaining(now time.Time) time.Duration {
	if d := h.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Duration returns the number of held hours.
func (h SlotHold) Duration() int { return h.EndHour - h.StartHour }

// Covers reports whether hour falls inside [StartHour, EndHour).
func (h SlotHold) Covers(hour int) bool { return hour >= h.StartHour && hour < h.EndHour }
