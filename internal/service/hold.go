package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/turf-slot-booking/internal/apperror"
	"github.com/iliyamo/turf-slot-booking/internal/availability"
	"github.com/iliyamo/turf-slot-booking/internal/model"
)

// HoldRequest asks for a soft lock on [StartHour, StartHour+Duration).
type HoldRequest struct {
	TurfID    string
	Date      string
	StartHour int
	Duration  int
	SessionID string
	Identity  *model.Identity
}

// HoldManager creates, extends, releases and expires slot holds.  A
// session holds at most one hold per turf; acquiring a new one supersedes
// the previous hold.
type HoldManager struct {
	store Store
	feed  ChangeFeed
	slots *AvailabilityService
	now   Clock
	ttl   time.Duration
}

// NewHoldManager constructs a HoldManager.  feed may be nil.
func NewHoldManager(store Store, feed ChangeFeed, cfg Config, now Clock) *HoldManager {
	if now == nil {
		now = time.Now
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = DefaultConfig().HoldTTL
	}
	return &HoldManager{
		store: store,
		feed:  feed,
		slots: NewAvailabilityService(store, cfg, now),
		now:   now,
		ttl:   cfg.HoldTTL,
	}
}

// TTL returns the lifetime given to new holds.
func (m *HoldManager) TTL() time.Duration { return m.ttl }

// Acquire places a hold for the session.  Every requested hour must be
// available; otherwise nothing is held and a Conflict lists the taken
// hours.  The insert is arbitrated by the store, and the result is
// re-verified against a fresh snapshot before it is reported.
func (m *HoldManager) Acquire(ctx context.Context, req HoldRequest) (hold *model.SlotHold, err error) {
	ctx, span := tracer.Start(ctx, "HoldManager.Acquire", trace.WithAttributes(
		attribute.String("turf.id", req.TurfID),
		attribute.String("slot.date", req.Date),
		attribute.Int("slot.start_hour", req.StartHour),
		attribute.Int("slot.duration", req.Duration),
	))
	defer func() { endSpan(span, err) }()

	if req.Identity == nil || req.Identity.Phone == "" {
		return nil, apperror.AuthRequired("sign in with a phone number to hold a slot")
	}
	if req.SessionID == "" {
		return nil, apperror.Validation("session id is required")
	}
	if req.Duration < 1 {
		return nil, apperror.Validation("duration must be at least one hour")
	}

	prev, err := m.store.GetHoldBySession(ctx, req.TurfID, req.SessionID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	if prev != nil {
		if err := m.store.DeleteHold(ctx, prev.ID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
	}

	snap, err := m.slots.Snapshot(ctx, req.TurfID, req.SessionID, req.Date, req.Date)
	if err != nil {
		return nil, err
	}
	if err := availability.CheckRange(snap, req.Date, req.StartHour, req.Duration, false); err != nil {
		if prev != nil {
			m.publish(ctx, req.TurfID, ChangeHold)
		}
		return nil, err
	}

	now := m.now()
	hold = &model.SlotHold{
		ID:        uuid.NewString(),
		TurfID:    req.TurfID,
		Date:      req.Date,
		StartHour: req.StartHour,
		EndHour:   req.StartHour + req.Duration,
		SessionID: req.SessionID,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}
	if err := m.store.InsertHold(ctx, hold, now); err != nil {
		if prev != nil {
			m.publish(ctx, req.TurfID, ChangeHold)
		}
		return nil, err
	}
	if err := m.verify(ctx, hold); err != nil {
		if derr := m.store.DeleteHold(ctx, hold.ID); derr != nil && !errors.Is(derr, apperror.ErrNotFound) {
			log.Printf("hold: rollback of %s failed: %v", hold.ID, derr)
		}
		m.publish(ctx, req.TurfID, ChangeHold)
		return nil, err
	}
	m.publish(ctx, req.TurfID, ChangeHold)
	return hold, nil
}

// verify re-reads the turf and confirms every hour of h classifies as held
// by its own session.
func (m *HoldManager) verify(ctx context.Context, h *model.SlotHold) error {
	snap, err := m.slots.Snapshot(ctx, h.TurfID, h.SessionID, h.Date, h.Date)
	if err != nil {
		return err
	}
	for hour := h.StartHour; hour < h.EndHour; hour++ {
		if st := availability.Classify(snap, h.Date, hour); st != availability.HeldBySelf {
			return apperror.Conflict("slot %s was taken while holding: %s", model.HourLabel(hour), st)
		}
	}
	return nil
}

// Extend changes the number of held hours of the session's hold.  Only
// hours added by the extension are checked.  The expiry deadline is not
// moved.
func (m *HoldManager) Extend(ctx context.Context, turfID, sessionID string, duration int) (hold *model.SlotHold, err error) {
	ctx, span := tracer.Start(ctx, "HoldManager.Extend", trace.WithAttributes(
		attribute.String("turf.id", turfID),
		attribute.Int("slot.duration", duration),
	))
	defer func() { endSpan(span, err) }()

	if duration < 1 {
		return nil, apperror.Validation("duration must be at least one hour")
	}
	hold, err = m.Current(ctx, turfID, sessionID)
	if err != nil {
		return nil, err
	}
	newEnd := hold.StartHour + duration
	if newEnd == hold.EndHour {
		return hold, nil
	}
	if newEnd > hold.EndHour {
		snap, err := m.slots.Snapshot(ctx, turfID, sessionID, hold.Date, hold.Date)
		if err != nil {
			return nil, err
		}
		if err := availability.CheckRange(snap, hold.Date, hold.EndHour, newEnd-hold.EndHour, false); err != nil {
			return nil, err
		}
	}
	if err := m.store.ExtendHold(ctx, hold.ID, newEnd, m.now()); err != nil {
		return nil, err
	}
	prevEnd := hold.EndHour
	hold.EndHour = newEnd
	if newEnd > prevEnd {
		if err := m.verify(ctx, hold); err != nil {
			if rerr := m.store.ExtendHold(ctx, hold.ID, prevEnd, m.now()); rerr != nil {
				log.Printf("hold: shrinking %s back failed: %v", hold.ID, rerr)
			}
			m.publish(ctx, turfID, ChangeHold)
			return nil, err
		}
	}
	m.publish(ctx, turfID, ChangeHold)
	return hold, nil
}

// Current returns the session's live hold on turfID.  A hold found past its
// deadline is deleted and reported as ExpiredHold; no hold at all is
// NotFound.
func (m *HoldManager) Current(ctx context.Context, turfID, sessionID string) (*model.SlotHold, error) {
	if sessionID == "" {
		return nil, apperror.Validation("session id is required")
	}
	hold, err := m.store.GetHoldBySession(ctx, turfID, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFound("no hold for this session")
		}
		return nil, err
	}
	if !hold.Live(m.now()) {
		if err := m.store.DeleteHold(ctx, hold.ID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		m.publish(ctx, turfID, ChangeHold)
		return nil, apperror.ExpiredHold("hold expired at %s", hold.ExpiresAt.Format(time.RFC3339))
	}
	return hold, nil
}

// Release drops the session's hold.  Releasing nothing is not an error.
func (m *HoldManager) Release(ctx context.Context, turfID, sessionID string) error {
	hold, err := m.store.GetHoldBySession(ctx, turfID, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := m.store.DeleteHold(ctx, hold.ID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	m.publish(ctx, turfID, ChangeHold)
	return nil
}

// Sweep physically removes holds past their deadline.  Readers already
// ignore them; this only keeps the table small.
func (m *HoldManager) Sweep(ctx context.Context) (int, error) {
	return m.store.DeleteExpiredHolds(ctx, m.now())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *HoldManager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				log.Printf("hold-sweeper: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("hold-sweeper: removed %d expired holds", n)
			}
		}
	}
}

func (m *HoldManager) publish(ctx context.Context, turfID string, kind ChangeKind) {
	publishChange(ctx, m.feed, Change{TurfID: turfID, Kind: kind, At: m.now()})
}

// publishChange emits c on feed, logging failures.  Subscribers treat a
// missed signal the same as a stale view, so errors are not propagated.
func publishChange(ctx context.Context, feed ChangeFeed, c Change) {
	if feed == nil {
		return
	}
	if err := feed.Publish(ctx, c); err != nil {
		log.Printf("change-feed: publish %s/%s failed: %v", c.TurfID, c.Kind, err)
	}
}
