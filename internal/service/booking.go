package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/turf-slot-booking/internal/apperror"
	"github.com/iliyamo/turf-slot-booking/internal/availability"
	"github.com/iliyamo/turf-slot-booking/internal/model"
	"github.com/iliyamo/turf-slot-booking/internal/pricing"
)

// notifyTimeout bounds one owner notification attempt.
const notifyTimeout = 10 * time.Second

// QuoteRequest prices the session's held slot.
type QuoteRequest struct {
	TurfID    string
	SessionID string
	Identity  *model.Identity
	PromoCode string
}

// QuoteResult is a quote together with the hold it prices.
type QuoteResult struct {
	Hold  model.SlotHold `json:"hold"`
	Quote pricing.Quote  `json:"quote"`
}

// Confirmation is what a successful commit returns.
type Confirmation struct {
	Booking  model.Booking  `json:"booking"`
	Customer model.Customer `json:"customer"`
	Ticket   model.Ticket   `json:"ticket"`
	Quote    pricing.Quote  `json:"quote"`
}

// BookingService quotes held slots, commits them into bookings and
// handles cancellations.
type BookingService struct {
	store    Store
	feed     ChangeFeed
	holds    *HoldManager
	notifier Dispatcher
	tickets  TicketIssuer
	now      Clock
	loc      *time.Location
	lead     time.Duration

	wg sync.WaitGroup
}

// NewBookingService wires a BookingService.  feed and notifier may be nil.
func NewBookingService(store Store, feed ChangeFeed, holds *HoldManager, notifier Dispatcher, tickets TicketIssuer, cfg Config, now Clock) *BookingService {
	if now == nil {
		now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CancelLeadTime <= 0 {
		cfg.CancelLeadTime = DefaultConfig().CancelLeadTime
	}
	return &BookingService{
		store:    store,
		feed:     feed,
		holds:    holds,
		notifier: notifier,
		tickets:  tickets,
		now:      now,
		loc:      cfg.Location,
		lead:     cfg.CancelLeadTime,
	}
}

func requireIdentity(id *model.Identity, action string) error {
	if id == nil || id.Phone == "" {
		return apperror.AuthRequired("sign in with a phone number to %s", action)
	}
	return nil
}

// Quote prices the session's current hold for the authenticated customer.
func (s *BookingService) Quote(ctx context.Context, req QuoteRequest) (res *QuoteResult, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.Quote", trace.WithAttributes(attribute.String("turf.id", req.TurfID)))
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(req.Identity, "get a quote"); err != nil {
		return nil, err
	}
	hold, err := s.holds.Current(ctx, req.TurfID, req.SessionID)
	if err != nil {
		return nil, err
	}
	turf, err := s.store.GetTurf(ctx, req.TurfID)
	if err != nil {
		return nil, err
	}
	q, err := s.price(ctx, s.store, *turf, *hold, req.Identity.Phone, req.PromoCode)
	if err != nil {
		return nil, err
	}
	return &QuoteResult{Hold: *hold, Quote: q}, nil
}

// price loads the customer's history, the operator's campaigns and the
// promo code through st and runs the pricing engine.
func (s *BookingService) price(ctx context.Context, st Store, turf model.Turf, hold model.SlotHold, phone, code string) (pricing.Quote, error) {
	now := s.now()
	slotStart, err := availability.SlotStart(hold.Date, hold.StartHour, s.loc)
	if err != nil {
		return pricing.Quote{}, err
	}
	req := pricing.Request{
		Turf:      turf,
		Date:      hold.Date,
		StartHour: hold.StartHour,
		Duration:  hold.Duration(),
		SlotStart: slotStart,
		Now:       now,
	}
	if req.CompletedBookings, err = st.CountCompletedBookings(ctx, turf.OwnerID, phone, now, s.loc); err != nil {
		return pricing.Quote{}, err
	}
	if req.Milestones, err = st.ListMilestones(ctx, turf.OwnerID); err != nil {
		return pricing.Quote{}, err
	}
	if req.FirstBookingOffers, err = st.ListFirstBookingOffers(ctx, turf.OwnerID); err != nil {
		return pricing.Quote{}, err
	}
	if req.Offers, err = st.ListOffers(ctx, turf.OwnerID, turf.ID, hold.Date); err != nil {
		return pricing.Quote{}, err
	}
	if code != "" {
		promo, err := st.GetPromoCode(ctx, turf.OwnerID, code)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return pricing.Quote{}, apperror.IneligibleDiscount("promo code %s not found", code)
			}
			return pricing.Quote{}, err
		}
		base, _, _ := pricing.BasePrice(turf, slotStart.Weekday(), hold.StartHour, hold.Duration())
		if err := pricing.CheckPromo(promo, turf.ID, base, now); err != nil {
			return pricing.Quote{}, err
		}
		req.Promo = promo
	}
	return pricing.Compute(req)
}

// LoyaltyPoints is the loyalty credit for a paid amount: ten points per
// full hundred.
func LoyaltyPoints(paid decimal.Decimal) int {
	if !paid.IsPositive() {
		return 0
	}
	return int(paid.Div(decimal.NewFromInt(100)).Floor().IntPart()) * 10
}

// Commit turns the session's live hold into a booking.  The customer
// ledger, booking row, campaign counters, loyalty entry, ticket and hold
// release are written in one store transaction; if any of them fails the
// hold is left intact so the customer can retry before it expires.  The
// owner notification is dispatched afterwards and never affects the result.
func (s *BookingService) Commit(ctx context.Context, req QuoteRequest) (conf *Confirmation, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.Commit", trace.WithAttributes(attribute.String("turf.id", req.TurfID)))
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(req.Identity, "book a slot"); err != nil {
		return nil, err
	}
	if req.Identity.Name == "" {
		return nil, apperror.Validation("customer name is required")
	}
	hold, err := s.holds.Current(ctx, req.TurfID, req.SessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ExpiredHold("no active hold; select the slot again")
		}
		return nil, err
	}
	turf, err := s.store.GetTurf(ctx, req.TurfID)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		q, err := s.price(ctx, tx, *turf, *hold, req.Identity.Phone, req.PromoCode)
		if err != nil {
			return err
		}
		now := s.now()
		if !hold.Live(now) {
			return apperror.ExpiredHold("hold expired at %s", hold.ExpiresAt.Format(time.RFC3339))
		}
		points := LoyaltyPoints(q.FinalPrice)

		customer, err := tx.UpsertCustomer(ctx, turf.OwnerID, req.Identity.Phone, req.Identity.Name, q.FinalPrice, points)
		if err != nil {
			return err
		}

		b := model.Booking{
			ID:             uuid.NewString(),
			TurfID:         turf.ID,
			OwnerID:        turf.OwnerID,
			CustomerID:     customer.ID,
			CustomerPhone:  req.Identity.Phone,
			CustomerName:   req.Identity.Name,
			Date:           hold.Date,
			StartHour:      hold.StartHour,
			EndHour:        hold.EndHour,
			TotalAmount:    q.FinalPrice,
			DiscountAmount: q.TotalDiscount,
			Status:         model.BookingBooked,
			Source:         q.Source,
			CreatedAt:      now,
		}
		if q.SourceID != "" {
			id := q.SourceID
			b.OfferID = &id
		}
		if q.PromoCodeID != "" {
			id := q.PromoCodeID
			b.PromoCodeID = &id
		}
		if err := tx.InsertBooking(ctx, &b, hold.ID); err != nil {
			return err
		}
		if err := tx.DeleteHold(ctx, hold.ID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return err
		}

		if q.Source != model.SourceNone && q.SourceID != "" {
			if err := tx.IncrementOfferUsage(ctx, q.Source, q.SourceID, q.FinalPrice); err != nil {
				return err
			}
		}
		if q.PromoCodeID != "" {
			if err := tx.IncrementPromoUsage(ctx, q.PromoCodeID); err != nil {
				return err
			}
		}
		if points > 0 {
			entry := &model.LoyaltyEntry{
				ID:         uuid.NewString(),
				CustomerID: customer.ID,
				BookingID:  b.ID,
				Points:     points,
				Reason:     "booking",
				CreatedAt:  now,
			}
			if err := tx.InsertLoyaltyEntry(ctx, entry); err != nil {
				return err
			}
		}

		code, payload, err := s.tickets.Issue(b)
		if err != nil {
			return err
		}
		ticket := model.Ticket{ID: uuid.NewString(), BookingID: b.ID, Code: code, Payload: payload, IssuedAt: now}
		if err := tx.InsertTicket(ctx, &ticket); err != nil {
			return err
		}

		conf = &Confirmation{Booking: b, Customer: *customer, Ticket: ticket, Quote: q}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishChange(ctx, s.feed, Change{TurfID: turf.ID, Kind: ChangeBooking, At: s.now()})
	s.notifyOwner(*turf, conf.Booking)
	return conf, nil
}

// notifyOwner dispatches the owner notification in the background.
func (s *BookingService) notifyOwner(turf model.Turf, b model.Booking) {
	if s.notifier == nil {
		return
	}
	n := OwnerNotification{
		OwnerID:      turf.OwnerID,
		BookingID:    b.ID,
		CustomerName: b.CustomerName,
		Date:         b.Date,
		Time:         model.HourLabel(b.StartHour) + "-" + model.HourLabel(b.EndHour),
		TurfName:     turf.Name,
		Amount:       b.TotalAmount,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyOwner(ctx, n); err != nil {
			log.Printf("booking-notify: booking %s: %v", n.BookingID, err)
		}
	}()
}

// Drain waits for in-flight owner notifications.
func (s *BookingService) Drain() { s.wg.Wait() }

// Cancel moves a booking from booked to cancelled.  Only the customer who
// made it may cancel, and only while the slot starts at least the
// configured lead time from now.  Loyalty points are kept.
func (s *BookingService) Cancel(ctx context.Context, bookingID string, id *model.Identity, reason string) (b *model.Booking, err error) {
	ctx, span := tracer.Start(ctx, "BookingService.Cancel", trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer func() { endSpan(span, err) }()

	if err := requireIdentity(id, "cancel a booking"); err != nil {
		return nil, err
	}
	b, err = s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerPhone != id.Phone {
		return nil, apperror.Permission("only the customer who made this booking can cancel it")
	}
	if !b.Active() {
		return nil, apperror.Validation("booking is already cancelled")
	}
	start, err := availability.SlotStart(b.Date, b.StartHour, s.loc)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if start.Sub(now) < s.lead {
		return nil, apperror.Permission("bookings can only be cancelled at least %s before the start", s.lead)
	}
	if err := s.store.CancelBooking(ctx, b.ID, reason, id.Phone, now); err != nil {
		return nil, err
	}
	b.Status = model.BookingCancelled
	b.CancellationReason = &reason
	actor := id.Phone
	b.CancelledBy = &actor
	b.CancelledAt = &now
	publishChange(ctx, s.feed, Change{TurfID: b.TurfID, Kind: ChangeBooking, At: now})
	return b, nil
}

// ListMine returns the authenticated customer's bookings, newest first.
func (s *BookingService) ListMine(ctx context.Context, id *model.Identity) ([]model.Booking, error) {
	if err := requireIdentity(id, "list bookings"); err != nil {
		return nil, err
	}
	return s.store.ListBookingsByPhone(ctx, id.Phone)
}

// VerifyTicket resolves a ticket code to its ticket and booking.
func (s *BookingService) VerifyTicket(ctx context.Context, code string) (*model.Ticket, *model.Booking, error) {
	t, err := s.store.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	b, err := s.store.GetBooking(ctx, t.BookingID)
	if err != nil {
		return nil, nil, err
	}
	return t, b, nil
}
