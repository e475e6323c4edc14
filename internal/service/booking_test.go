package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-slot-booking/internal/apperror"
	"github.com/iliyamo/turf-slot-booking/internal/availability"
	"github.com/iliyamo/turf-slot-booking/internal/model"
	"github.com/iliyamo/turf-slot-booking/internal/service"
	"github.com/iliyamo/turf-slot-booking/internal/utils"
)

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) NotifyOwner(ctx context.Context, n service.OwnerNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type failingIssuer struct{}

func (failingIssuer) Issue(model.Booking) (string, string, error) {
	return "", "", errors.New("signer unavailable")
}

func newBookingService(f *fixture, d service.Dispatcher, issuer service.TicketIssuer) *service.BookingService {
	return service.NewBookingService(f.store, f.feed, f.holds, d, issuer, service.DefaultConfig(), f.clock.Now)
}

func commitReq(session, promo string) service.QuoteRequest {
	return service.QuoteRequest{TurfID: turfID, SessionID: session, Identity: customer("+91" + session), PromoCode: promo}
}

func TestCommitWorkflow(t *testing.T) {
	f := newFixture(t)
	f.store.AddOffer(model.Offer{
		ID: "of-10", OwnerID: ownerID, Title: "Ten off", DiscountType: model.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10), ValidFrom: "2026-10-01", ValidUntil: "2026-10-31",
		IsActive: true, CreatedAt: t0.Add(-time.Hour),
	})
	f.store.AddPromoCode(model.PromoCode{
		ID: "pc-1", OwnerID: ownerID, Code: "SAVE50", DiscountType: model.DiscountFixed,
		DiscountValue: decimal.NewFromInt(50), MinAmount: decimal.NewFromInt(500), IsActive: true,
	})

	d := &mockDispatcher{}
	d.On("NotifyOwner", mock.Anything, mock.MatchedBy(func(n service.OwnerNotification) bool {
		return n.OwnerID == ownerID && n.TurfName == "Riverside Five-a-side" &&
			n.Date == slotDate && n.Time == "18:00-19:00" && n.Amount.Equal(decimal.NewFromInt(850))
	})).Return(nil).Once()

	svc := newBookingService(f, d, utils.NewTicketSigner("ticket-key"))
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)

	quote, err := svc.Quote(ctx, commitReq("s1", "save50"))
	require.NoError(t, err)
	assert.True(t, quote.Quote.FinalPrice.Equal(decimal.NewFromInt(850)))
	assert.Equal(t, int64(15), quote.Quote.SavingsPercent)

	conf, err := svc.Commit(ctx, commitReq("s1", "SAVE50"))
	require.NoError(t, err)
	svc.Drain()
	d.AssertExpectations(t)

	b := conf.Booking
	assert.Equal(t, model.BookingBooked, b.Status)
	assert.True(t, b.TotalAmount.Equal(decimal.NewFromInt(850)))
	assert.True(t, b.DiscountAmount.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, model.SourceOffer, b.Source)
	require.NotNil(t, b.OfferID)
	assert.Equal(t, "of-10", *b.OfferID)
	require.NotNil(t, b.PromoCodeID)
	assert.Equal(t, "pc-1", *b.PromoCodeID)

	offer, _ := f.store.Offer("of-10")
	assert.Equal(t, 1, offer.UsageCount)
	assert.True(t, offer.Revenue.Equal(decimal.NewFromInt(850)))
	promo, _ := f.store.Promo("pc-1")
	assert.Equal(t, 1, promo.UsedCount)

	cust, ok := f.store.Customer(ownerID, "+91s1")
	require.True(t, ok)
	assert.Equal(t, 1, cust.TotalBookings)
	assert.True(t, cust.TotalSpent.Equal(decimal.NewFromInt(850)))
	assert.Equal(t, 80, cust.LoyaltyPoints)
	entries := f.store.LoyaltyEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, 80, entries[0].Points)
	assert.Equal(t, b.ID, entries[0].BookingID)

	assert.Equal(t, b.ID, conf.Ticket.BookingID)
	tk, booked, err := svc.VerifyTicket(ctx, conf.Ticket.Code)
	require.NoError(t, err)
	assert.Equal(t, conf.Ticket.Payload, tk.Payload)
	assert.Equal(t, b.ID, booked.ID)

	assert.Zero(t, f.store.HoldCount(), "hold released on commit")
	assert.Equal(t, availability.Booked, f.status(t, "s1", 18))
	assert.Equal(t, availability.Booked, f.status(t, "s2", 18))
}

func TestCommitExpiredHold(t *testing.T) {
	f := newFixture(t)
	svc := newBookingService(f, nil, utils.NewTicketSigner("k"))
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)

	f.clock.Advance(300 * time.Second)
	_, err = svc.Commit(ctx, commitReq("s1", ""))
	assert.ErrorIs(t, err, apperror.ErrExpiredHold)
	assert.Empty(t, f.store.ActiveBookings(turfID))

	_, err = svc.Commit(ctx, commitReq("s1", ""))
	assert.ErrorIs(t, err, apperror.ErrExpiredHold)
}

func TestCommitValidation(t *testing.T) {
	f := newFixture(t)
	svc := newBookingService(f, nil, utils.NewTicketSigner("k"))
	ctx := context.Background()

	req := commitReq("s1", "")
	req.Identity = nil
	_, err := svc.Commit(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)

	req.Identity = &model.Identity{Phone: "+91s1"}
	_, err = svc.Commit(ctx, req)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCommitUnknownPromo(t *testing.T) {
	f := newFixture(t)
	svc := newBookingService(f, nil, utils.NewTicketSigner("k"))
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)

	_, err = svc.Commit(ctx, commitReq("s1", "NOPE"))
	assert.ErrorIs(t, err, apperror.ErrIneligibleDiscount)
	assert.Equal(t, 1, f.store.HoldCount(), "hold kept for a retry")
}

func TestCommitFailureLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	svc := newBookingService(f, nil, failingIssuer{})
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)

	_, err = svc.Commit(ctx, commitReq("s1", ""))
	require.Error(t, err)

	assert.Empty(t, f.store.ActiveBookings(turfID))
	_, ok := f.store.Customer(ownerID, "+91s1")
	assert.False(t, ok)
	assert.Empty(t, f.store.LoyaltyEntries())
	cur, err := f.holds.Current(ctx, turfID, "s1")
	require.NoError(t, err, "hold survives so the customer can retry")
	assert.Equal(t, 18, cur.StartHour)
}

func TestNotificationFailureDoesNotFailCommit(t *testing.T) {
	f := newFixture(t)
	d := &mockDispatcher{}
	d.On("NotifyOwner", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	svc := newBookingService(f, d, utils.NewTicketSigner("k"))
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)

	conf, err := svc.Commit(ctx, commitReq("s1", ""))
	require.NoError(t, err)
	svc.Drain()
	d.AssertExpectations(t)
	assert.Len(t, f.store.ActiveBookings(turfID), 1)
	assert.Equal(t, model.BookingBooked, conf.Booking.Status)
}

func TestExclusivityUnderConcurrentCommits(t *testing.T) {
	f := newFixture(t)
	svc := newBookingService(f, nil, utils.NewTicketSigner("k"))
	ctx := context.Background()

	const n = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session := "c" + string(rune('a'+i))
			if _, err := f.holds.Acquire(ctx, holdReq(session, 18, 2)); err != nil {
				assert.ErrorIs(t, err, apperror.ErrConflict)
				return
			}
			if _, err := svc.Commit(ctx, commitReq(session, "")); err != nil {
				assert.ErrorIs(t, err, apperror.ErrConflict)
				return
			}
			mu.Lock()
			committed++
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, committed)
	assert.Len(t, f.store.ActiveBookings(turfID), 1)
}

func TestDiscountPriorityThroughQuote(t *testing.T) {
	f := newFixture(t)
	phone := "+91s1"
	for i, date := range []string{"2026-10-10", "2026-10-12"} {
		f.store.AddBooking(model.Booking{
			ID: "past-" + string(rune('a'+i)), TurfID: turfID, OwnerID: ownerID, CustomerPhone: phone,
			Date: date, StartHour: 18, EndHour: 19, Status: model.BookingBooked,
		})
	}
	f.store.AddBooking(model.Booking{
		ID: "cancelled", TurfID: turfID, OwnerID: ownerID, CustomerPhone: phone,
		Date: "2026-10-11", StartHour: 18, EndHour: 19, Status: model.BookingCancelled,
	})
	f.store.AddMilestone(model.LoyaltyMilestoneOffer{
		ID: "ms-3", OwnerID: ownerID, MilestoneBookingCount: 3, RewardType: model.RewardPercentage,
		RewardValue: decimal.NewFromInt(25), IsActive: true,
	})
	f.store.AddFirstBookingOffer(model.FirstBookingOffer{
		ID: "fb-3", OwnerID: ownerID, BookingNumber: 3, DiscountType: model.DiscountFixed,
		DiscountValue: decimal.NewFromInt(400), IsActive: true,
	})

	svc := newBookingService(f, nil, utils.NewTicketSigner("k"))
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)

	res, err := svc.Quote(ctx, commitReq("s1", ""))
	require.NoError(t, err)
	assert.Equal(t, model.SourceLoyaltyMilestone, res.Quote.Source)
	assert.True(t, res.Quote.LoyaltyDiscount.Equal(decimal.NewFromInt(250)))
	assert.True(t, res.Quote.FirstBookingDiscount.IsZero())

	conf, err := svc.Commit(ctx, commitReq("s1", ""))
	require.NoError(t, err)
	ms, _ := f.store.Milestone("ms-3")
	assert.Equal(t, 1, ms.UsageCount)
	assert.Equal(t, 70, conf.Customer.LoyaltyPoints)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	svc := newBookingService(f, nil, utils.NewTicketSigner("k"))
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 18, 1))
	require.NoError(t, err)
	conf, err := svc.Commit(ctx, commitReq("s1", ""))
	require.NoError(t, err)
	id := conf.Booking.ID

	_, err = svc.Cancel(ctx, id, customer("+91intruder"), "not mine")
	assert.ErrorIs(t, err, apperror.ErrPermission)

	_, err = svc.Cancel(ctx, id, nil, "anon")
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)

	slot := time.Date(2026, 10, 24, 18, 0, 0, 0, time.UTC)
	f.clock.Set(slot.Add(-6*time.Hour + time.Second))
	_, err = svc.Cancel(ctx, id, customer("+91s1"), "too late")
	assert.ErrorIs(t, err, apperror.ErrPermission)

	f.clock.Set(slot.Add(-6 * time.Hour))
	b, err := svc.Cancel(ctx, id, customer("+91s1"), "rain")
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	require.NotNil(t, b.CancellationReason)
	assert.Equal(t, "rain", *b.CancellationReason)

	stored, err := f.store.GetBooking(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, stored.Status)
	assert.Equal(t, "+91s1", *stored.CancelledBy)
	cust, _ := f.store.Customer(ownerID, "+91s1")
	assert.Equal(t, 100, cust.LoyaltyPoints, "points are never reversed")

	assert.Equal(t, availability.Available, f.status(t, "s2", 18))
	_, err = f.holds.Acquire(ctx, holdReq("s2", 18, 1))
	assert.NoError(t, err)

	_, err = svc.Cancel(ctx, id, customer("+91s1"), "again")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	svc := newBookingService(f, nil, utils.NewTicketSigner("k"))
	ctx := context.Background()
	_, err := f.holds.Acquire(ctx, holdReq("s1", 8, 1))
	require.NoError(t, err)
	_, err = svc.Commit(ctx, commitReq("s1", ""))
	require.NoError(t, err)

	mine, err := svc.ListMine(ctx, customer("+91s1"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 8, mine[0].StartHour)

	_, err = svc.ListMine(ctx, nil)
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)
}
