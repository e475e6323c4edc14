// Package service implements the reservation engine on top of the store:
// the availability query, the hold manager, quoting, and the booking
// commit workflow.  Every store call is a suspension point; between two
// calls another session may have changed the turf, so decisions that
// matter are re-checked against the store rather than assumed.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/turf-slot-booking/internal/apperror"
	"github.com/iliyamo/turf-slot-booking/internal/availability"
	"github.com/iliyamo/turf-slot-booking/internal/model"
)

// MaxWindowDays bounds the availability window one request may derive.
const MaxWindowDays = 14

var tracer = otel.Tracer("github.com/iliyamo/turf-slot-booking/internal/service")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Config carries the engine's tunables.
type Config struct {
	HoldTTL        time.Duration
	CancelLeadTime time.Duration
	Location       *time.Location
}

// DefaultConfig mirrors the reference behaviour: five minute holds and a
// six hour cancellation lead time.
func DefaultConfig() Config {
	return Config{HoldTTL: 300 * time.Second, CancelLeadTime: 6 * time.Hour, Location: time.UTC}
}

// AvailabilityService loads snapshots and derives slot grids.
type AvailabilityService struct {
	store Store
	now   Clock
	loc   *time.Location
}

// NewAvailabilityService constructs an AvailabilityService.  A nil clock
// defaults to time.Now.
func NewAvailabilityService(store Store, cfg Config, now Clock) *AvailabilityService {
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &AvailabilityService{store: store, now: now, loc: cfg.Location}
}

// Snapshot loads everything needed to classify turfID's hours between
// fromDate and toDate inclusive.  A missing turf yields a snapshot with a
// nil Turf, which the resolver treats as unavailable.
func (s *AvailabilityService) Snapshot(ctx context.Context, turfID, sessionID, fromDate, toDate string) (availability.Snapshot, error) {
	snap := availability.Snapshot{SessionID: sessionID, Now: s.now(), Location: s.loc}
	turf, err := s.store.GetTurf(ctx, turfID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return snap, nil
		}
		return snap, err
	}
	snap.Turf = turf
	if snap.Bookings, err = s.store.ListBookings(ctx, turfID, fromDate, toDate); err != nil {
		return snap, err
	}
	if snap.Blocked, err = s.store.ListBlockedSlots(ctx, turfID, fromDate, toDate); err != nil {
		return snap, err
	}
	if snap.Holds, err = s.store.ListHolds(ctx, turfID, fromDate, toDate); err != nil {
		return snap, err
	}
	return snap, nil
}

// Today returns the current date in the venue timezone.
func (s *AvailabilityService) Today() string {
	return s.now().In(s.loc).Format(availability.DateLayout)
}

// Slots classifies days consecutive dates starting at fromDate for the
// calling session.  An unknown or unlisted turf yields an empty grid.
func (s *AvailabilityService) Slots(ctx context.Context, turfID, sessionID, fromDate string, days int) ([]availability.Day, error) {
	if days < 1 {
		days = 1
	}
	if days > MaxWindowDays {
		return nil, apperror.Validation("days must be at most %d", MaxWindowDays)
	}
	dates, err := availability.DateRange(fromDate, days)
	if err != nil {
		return nil, err
	}
	snap, err := s.Snapshot(ctx, turfID, sessionID, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, err
	}
	return availability.Resolve(snap, dates), nil
}

// Turf returns a publicly listed turf or NotFound.
func (s *AvailabilityService) Turf(ctx context.Context, turfID string) (*model.Turf, error) {
	t, err := s.store.GetTurf(ctx, turfID)
	if err != nil {
		return nil, err
	}
	if !t.IsPublic {
		return nil, apperror.NotFound("turf not found")
	}
	return t, nil
}

// TurfCard is the public view of a turf and the offers valid today.
type TurfCard struct {
	Turf   model.Turf    `json:"turf"`
	Hours  []string      `json:"hours"`
	Offers []model.Offer `json:"offers"`
}

// Card builds the public turf card.
func (s *AvailabilityService) Card(ctx context.Context, turfID string) (*TurfCard, error) {
	t, offers, err := s.cardOffers(ctx, turfID)
	if err != nil {
		return nil, err
	}
	card := &TurfCard{Turf: *t, Offers: offers}
	for _, h := range availability.Hours(*t) {
		card.Hours = append(card.Hours, model.HourLabel(h))
	}
	return card, nil
}

// RecordCardView counts one view of every offer shown on the turf card.
// It is kept apart from Card so that cached card responses are counted too.
func (s *AvailabilityService) RecordCardView(ctx context.Context, turfID string) error {
	_, offers, err := s.cardOffers(ctx, turfID)
	if err != nil || len(offers) == 0 {
		return err
	}
	ids := make([]string, len(offers))
	for i, o := range offers {
		ids[i] = o.ID
	}
	return s.store.IncrementOfferViews(ctx, ids)
}

func (s *AvailabilityService) cardOffers(ctx context.Context, turfID string) (*model.Turf, []model.Offer, error) {
	t, err := s.Turf(ctx, turfID)
	if err != nil {
		return nil, nil, err
	}
	today := s.now().In(s.loc).Format(availability.DateLayout)
	offers, err := s.store.ListOffers(ctx, t.OwnerID, t.ID, today)
	if err != nil {
		return nil, nil, err
	}
	return t, offers, nil
}
