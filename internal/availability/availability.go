// Package availability derives the classification of every hourly cell of a
// turf from the bookings, blocked windows and holds that overlap a date
// window.  Nothing here touches the store: callers load a Snapshot and the
// functions in this package are pure, so the same snapshot always yields
// the same grid.
package availability

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/turf-slot-booking/internal/apperror"
	"github.com/iliyamo/turf-slot-booking/internal/model"
)

// DateLayout is the calendar date format used throughout the engine.
const DateLayout = "2006-01-02"

// Status classifies one hourly cell.
type Status string

const (
	Available   Status = "available"
	Booked      Status = "booked"
	Blocked     Status = "blocked"
	HeldByOther Status = "held_by_other"
	HeldBySelf  Status = "held_by_self"
	Past        Status = "past"
)

// Cell is one classified hour.
type Cell struct {
	Hour   int    `json:"hour"`
	Label  string `json:"label"`
	Status Status `json:"status"`
}

// Day is the ordered grid of one date.
type Day struct {
	Date  string `json:"date"`
	Cells []Cell `json:"cells"`
}

// Snapshot is everything the resolver needs for one turf.  Bookings,
// Blocked and Holds may span more dates than are resolved; rows for other
// dates are ignored.  Cancelled bookings and expired holds may be present
// and are skipped.
type Snapshot struct {
	Turf      *model.Turf
	Bookings  []model.Booking
	Blocked   []model.BlockedSlot
	Holds     []model.SlotHold
	SessionID string
	Now       time.Time
	Location  *time.Location
}

// Hours returns the ordered bookable hours of a turf, open..close-1.
func Hours(t model.Turf) []int {
	open, close := t.Hours()
	if close <= open {
		return nil
	}
	out := make([]int, 0, close-open)
	for h := open; h < close; h++ {
		out = append(out, h)
	}
	return out
}

// SlotStart returns the instant hour begins on date in loc.
func SlotStart(date string, hour int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, apperror.Validation("invalid date %q", date)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc), nil
}

// Classify returns the status of (date, hour) in priority order
// past → booked → blocked → held_by_other → held_by_self → available.
func Classify(s Snapshot, date string, hour int) Status {
	if start, err := SlotStart(date, hour, s.Location); err == nil && !start.After(s.Now) {
		return Past
	}
	for _, b := range s.Bookings {
		if b.Active() && b.Date == date && hour >= b.StartHour && hour < b.EndHour {
			return Booked
		}
	}
	for _, bl := range s.Blocked {
		if bl.Date == date && hour >= bl.StartHour && hour < bl.EndHour {
			return Blocked
		}
	}
	self := false
	for _, h := range s.Holds {
		if h.Date != date || !h.Covers(hour) || !h.Live(s.Now) {
			continue
		}
		if h.SessionID != s.SessionID || s.SessionID == "" {
			return HeldByOther
		}
		self = true
	}
	if self {
		return HeldBySelf
	}
	return Available
}

// Resolve classifies every bookable hour of every date.  A missing or
// unlisted turf yields an empty result.
func Resolve(s Snapshot, dates []string) []Day {
	if s.Turf == nil || !s.Turf.IsPublic {
		return []Day{}
	}
	hours := Hours(*s.Turf)
	days := make([]Day, 0, len(dates))
	for _, d := range dates {
		day := Day{Date: d, Cells: make([]Cell, 0, len(hours))}
		for _, h := range hours {
			day.Cells = append(day.Cells, Cell{Hour: h, Label: model.HourLabel(h), Status: Classify(s, d, h)})
		}
		days = append(days, day)
	}
	return days
}

// CheckRange verifies that every hour in [start, start+duration) can be
// claimed by the snapshot's session.  It is all or nothing: one failing
// hour rejects the whole range.  allowSelf accepts hours already held by
// the caller, which is how an extension re-evaluates its own hold.
func CheckRange(s Snapshot, date string, start, duration int, allowSelf bool) error {
	if s.Turf == nil || !s.Turf.IsPublic {
		return apperror.NotFound("turf not found")
	}
	if duration < 1 {
		return apperror.Validation("duration must be at least one hour")
	}
	open, close := s.Turf.Hours()
	if start < open || start+duration > close {
		return apperror.Validation("requested hours %s-%s are outside operating hours",
			model.HourLabel(start), model.HourLabel(start+duration))
	}
	var taken []string
	for h := start; h < start+duration; h++ {
		switch st := Classify(s, date, h); st {
		case Available:
		case HeldBySelf:
			if !allowSelf {
				taken = append(taken, fmt.Sprintf("%s %s", model.HourLabel(h), st))
			}
		case Past:
			return apperror.Validation("slot %s on %s has already started", model.HourLabel(h), date)
		default:
			taken = append(taken, fmt.Sprintf("%s %s", model.HourLabel(h), st))
		}
	}
	if len(taken) > 0 {
		return apperror.Conflict("slots unavailable: %s", strings.Join(taken, ", "))
	}
	return nil
}

// DateRange returns n consecutive dates starting at from.
func DateRange(from string, n int) ([]string, error) {
	d, err := time.Parse(DateLayout, from)
	if err != nil {
		return nil, apperror.Validation("invalid date %q", from)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.AddDate(0, 0, i).Format(DateLayout))
	}
	return out, nil
}
