package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-slot-booking/internal/apperror"
	"github.com/iliyamo/turf-slot-booking/internal/availability"
	"github.com/iliyamo/turf-slot-booking/internal/model"
	"github.com/iliyamo/turf-slot-booking/internal/realtime"
	"github.com/iliyamo/turf-slot-booking/internal/repository/memory"
	"github.com/iliyamo/turf-slot-booking/internal/service"
)

// t0 is a Monday morning; slotDate is the following Saturday.
var t0 = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

const (
	turfID   = "turf-1"
	ownerID  = "owner-1"
	slotDate = "2026-10-24"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	clock *fakeClock
	store *memory.Store
	feed  *realtime.LocalFeed
	slots *service.AvailabilityService
	holds *service.HoldManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: t0}
	store := memory.New(clock.Now)
	store.AddTurf(model.Turf{
		ID: turfID, OwnerID: ownerID, Name: "Riverside Five-a-side", IsPublic: true,
		OpenTime: "06:00", CloseTime: "00:00", BasePrice: decimal.NewFromInt(1000),
	})
	cfg := service.DefaultConfig()
	feed := realtime.NewLocalFeed()
	return &fixture{
		clock: clock,
		store: store,
		feed:  feed,
		slots: service.NewAvailabilityService(store, cfg, clock.Now),
		holds: service.NewHoldManager(store, feed, cfg, clock.Now),
	}
}

func customer(phone string) *model.Identity {
	return &model.Identity{Phone: phone, Name: "Customer " + phone}
}

func holdReq(session string, start, duration int) service.HoldRequest {
	return service.HoldRequest{
		TurfID: turfID, Date: slotDate, StartHour: start, Duration: duration,
		SessionID: session, Identity: customer("+91" + session),
	}
}

func (f *fixture) status(t *testing.T, session string, hour int) availability.Status {
	t.Helper()
	days, err := f.slots.Slots(context.Background(), turfID, session, slotDate, 1)
	require.NoError(t, err)
	require.Len(t, days, 1)
	for _, c := range days[0].Cells {
		if c.Hour == hour {
			return c.Status
		}
	}
	t.Fatalf("hour %d not in grid", hour)
	return ""
}

func TestAcquireRequiresIdentity(t *testing.T) {
	f := newFixture(t)
	req := holdReq("s1", 18, 1)
	req.Identity = nil
	_, err := f.holds.Acquire(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)

	req.Identity = &model.Identity{Name: "no phone"}
	_, err = f.holds.Acquire(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)
	assert.Zero(t, f.store.HoldCount())
}

func TestAcquireAndClassify(t *testing.T) {
	f := newFixture(t)
	h, err := f.holds.Acquire(context.Background(), holdReq("s1", 18, 2))
	require.NoError(t, err)
	assert.Equal(t, 20, h.EndHour)
	assert.Equal(t, t0.Add(300*time.Second), h.ExpiresAt)

	assert.Equal(t, availability.HeldBySelf, f.status(t, "s1", 18))
	assert.Equal(t, availability.HeldBySelf, f.status(t, "s1", 19))
	assert.Equal(t, availability.HeldByOther, f.status(t, "s2", 19))
	assert.Equal(t, availability.Available, f.status(t, "s2", 20))
}

func TestHoldRace(t *testing.T) {
	f := newFixture(t)
	_, err := f.holds.Acquire(context.Background(), holdReq("s1", 18, 1))
	require.NoError(t, err)

	_, err = f.holds.Acquire(context.Background(), holdReq("s2", 18, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.True(t, err.(*apperror.Error).Retryable())
}

func TestHoldRaceConcurrent(t *testing.T) {
	f := newFixture(t)
	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		clashes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := "s" + string(rune('a'+i))
			_, err := f.holds.Acquire(context.Background(), holdReq(session, 18, 2))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperror.KindOf(err) == apperror.KindConflict:
				clashes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, clashes)
	assert.Equal(t, 1, f.store.HoldCount())
}

func TestConcurrentAcquiresKeepOneHoldPerSession(t *testing.T) {
	for round := 0; round < 50; round++ {
		f := newFixture(t)
		var wg sync.WaitGroup
		for _, start := range []int{8, 12, 16, 20} {
			wg.Add(1)
			go func(start int) {
				defer wg.Done()
				_, err := f.holds.Acquire(context.Background(), holdReq("s1", start, 1))
				if err != nil && apperror.KindOf(err) != apperror.KindConflict {
					t.Errorf("unexpected error: %v", err)
				}
			}(start)
		}
		wg.Wait()
		require.LessOrEqual(t, f.store.HoldCount(), 1, "round %d", round)
	}
}

func TestExpiryIsAbsolute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)

	f.clock.Set(t0.Add(299 * time.Second))
	assert.Equal(t, availability.HeldByOther, f.status(t, "s2", 18))
	cur, err := f.holds.Current(ctx, turfID, "s1")
	require.NoError(t, err)
	assert.Equal(t, time.Second, cur.Remaining(f.clock.Now()))

	f.clock.Set(t0.Add(300 * time.Second))
	// The row still exists, but nobody may treat it as live.
	assert.Equal(t, 1, f.store.HoldCount())
	assert.Equal(t, availability.Available, f.status(t, "s2", 18))
	assert.Equal(t, availability.Available, f.status(t, "s1", 18))

	_, err = f.holds.Acquire(ctx, holdReq("s2", 18, 1))
	require.NoError(t, err, "an expired hold must not block a new one")

	_, err = f.holds.Current(ctx, turfID, "s1")
	assert.ErrorIs(t, err, apperror.ErrExpiredHold)
	_, err = f.holds.Current(ctx, turfID, "s1")
	assert.ErrorIs(t, err, apperror.ErrNotFound, "expired hold is deleted by its owner")
}

func TestMultiHourAtomicity(t *testing.T) {
	f := newFixture(t)
	f.store.AddBooking(model.Booking{
		ID: "bk-0", TurfID: turfID, OwnerID: ownerID, CustomerPhone: "+91000",
		Date: slotDate, StartHour: 19, EndHour: 20, Status: model.BookingBooked,
	})

	_, err := f.holds.Acquire(context.Background(), holdReq("s1", 18, 2))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Zero(t, f.store.HoldCount())
	assert.Equal(t, availability.Available, f.status(t, "s2", 18))
}

func TestAcquireOutsideHoursAndPast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.holds.Acquire(ctx, holdReq("s1", 23, 2))
	assert.ErrorIs(t, err, apperror.ErrValidation)

	req := holdReq("s1", 8, 1)
	req.Date = "2026-10-19"
	_, err = f.holds.Acquire(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	req.TurfID = "missing"
	req.Date = slotDate
	_, err = f.holds.Acquire(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestNewSelectionSupersedes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 10, 1))
	require.NoError(t, err)
	_, err = f.holds.Acquire(ctx, holdReq("s1", 12, 2))
	require.NoError(t, err)

	assert.Equal(t, 1, f.store.HoldCount())
	assert.Equal(t, availability.Available, f.status(t, "s2", 10))
	assert.Equal(t, availability.HeldByOther, f.status(t, "s2", 13))
}

func TestReselectOverlappingOwnHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 10, 2))
	require.NoError(t, err)
	h, err := f.holds.Acquire(ctx, holdReq("s1", 11, 2))
	require.NoError(t, err)
	assert.Equal(t, 11, h.StartHour)
	assert.Equal(t, 1, f.store.HoldCount())
}

func TestExtendKeepsDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)
	deadline := h.ExpiresAt

	f.clock.Advance(2 * time.Minute)
	ext, err := f.holds.Extend(ctx, turfID, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, 20, ext.EndHour)
	assert.Equal(t, deadline, ext.ExpiresAt)

	cur, err := f.holds.Current(ctx, turfID, "s1")
	require.NoError(t, err)
	assert.Equal(t, deadline, cur.ExpiresAt)
	assert.Equal(t, 3*time.Minute, cur.Remaining(f.clock.Now()))
}

func TestExtendChecksOnlyNewHours(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)
	_, err = f.holds.Acquire(ctx, holdReq("s2", 20, 1))
	require.NoError(t, err)

	_, err = f.holds.Extend(ctx, turfID, "s1", 2)
	require.NoError(t, err)

	_, err = f.holds.Extend(ctx, turfID, "s1", 3)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	cur, err := f.holds.Current(ctx, turfID, "s1")
	require.NoError(t, err)
	assert.Equal(t, 20, cur.EndHour, "a failed extension leaves the hold as it was")

	shrunk, err := f.holds.Extend(ctx, turfID, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, 19, shrunk.EndHour)
	assert.Equal(t, availability.Available, f.status(t, "s3", 19))
}

func TestExtendAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)
	f.clock.Advance(5 * time.Minute)
	_, err = f.holds.Extend(ctx, turfID, "s1", 2)
	assert.ErrorIs(t, err, apperror.ErrExpiredHold)
}

func TestReleaseAndSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)
	require.NoError(t, f.holds.Release(ctx, turfID, "s1"))
	require.NoError(t, f.holds.Release(ctx, turfID, "s1"))
	assert.Zero(t, f.store.HoldCount())

	_, err = f.holds.Acquire(ctx, holdReq("s1", 10, 1))
	require.NoError(t, err)
	_, err = f.holds.Acquire(ctx, holdReq("s2", 12, 1))
	require.NoError(t, err)

	n, err := f.holds.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(f.holds.TTL())
	n, err = f.holds.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, f.store.HoldCount())
}

func TestHoldMutationsArePublished(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, unsubscribe, err := f.feed.Subscribe(ctx, turfID)
	require.NoError(t, err)
	defer unsubscribe()

	_, err = f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)

	select {
	case c := <-ch:
		assert.Equal(t, turfID, c.TurfID)
		assert.Equal(t, service.ChangeHold, c.Kind)
	case <-time.After(time.Second):
		t.Fatal("no change published")
	}
}

func TestSlotsWindow(t *testing.T) {
	f := newFixture(t)
	days, err := f.slots.Slots(context.Background(), turfID, "s1", slotDate, 3)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2026-10-26", days[2].Date)

	_, err = f.slots.Slots(context.Background(), turfID, "s1", slotDate, service.MaxWindowDays+1)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	days, err = f.slots.Slots(context.Background(), "missing", "s1", slotDate, 1)
	require.NoError(t, err)
	assert.Empty(t, days)
}
