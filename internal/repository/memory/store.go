// Package memory is an in-process implementation of the reservation store.
// It enforces the same claim rules as the SQL store: an hour can be claimed
// by at most one live hold or active booking at a time, and a session has at
// most one hold per turf.  Transactions are serialised behind a single mutex
// and applied by swapping in a modified copy of the state, so a failed
// transaction leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/turf-slot-booking/internal/apperror"
	"github.com/iliyamo/turf-slot-booking/internal/model"
	"github.com/iliyamo/turf-slot-booking/internal/service"
)

type state struct {
	turfs        map[string]model.Turf
	bookings     map[string]model.Booking
	blocked      []model.BlockedSlot
	holds        map[string]model.SlotHold
	milestones   []model.LoyaltyMilestoneOffer
	firstBooking []model.FirstBookingOffer
	offers       []model.Offer
	promos       map[string]model.PromoCode
	customers    map[string]model.Customer
	loyalty      []model.LoyaltyEntry
	tickets      map[string]model.Ticket
}

func newState() *state {
	return &state{
		turfs:     map[string]model.Turf{},
		bookings:  map[string]model.Booking{},
		holds:     map[string]model.SlotHold{},
		promos:    map[string]model.PromoCode{},
		customers: map[string]model.Customer{},
		tickets:   map[string]model.Ticket{},
	}
}

func (s *state) clone() *state {
	c := &state{
		turfs:        make(map[string]model.Turf, len(s.turfs)),
		bookings:     make(map[string]model.Booking, len(s.bookings)),
		blocked:      append([]model.BlockedSlot(nil), s.blocked...),
		holds:        make(map[string]model.SlotHold, len(s.holds)),
		milestones:   append([]model.LoyaltyMilestoneOffer(nil), s.milestones...),
		firstBooking: append([]model.FirstBookingOffer(nil), s.firstBooking...),
		offers:       append([]model.Offer(nil), s.offers...),
		promos:       make(map[string]model.PromoCode, len(s.promos)),
		customers:    make(map[string]model.Customer, len(s.customers)),
		loyalty:      append([]model.LoyaltyEntry(nil), s.loyalty...),
		tickets:      make(map[string]model.Ticket, len(s.tickets)),
	}
	for k, v := range s.turfs {
		c.turfs[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.holds {
		c.holds[k] = v
	}
	for k, v := range s.promos {
		c.promos[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	return c
}

// Store is safe for concurrent use.
type Store struct {
	mu  *sync.Mutex
	st  *state
	now func() time.Time
	tx  bool
}

// New returns an empty store.  now stamps customer rows; nil means
// time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{mu: &sync.Mutex{}, st: newState(), now: now}
}

var _ service.Store = (*Store)(nil)

func (s *Store) lock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// InTx runs fn against a private copy of the state and publishes the copy
// only if fn succeeds.  Other callers wait until the transaction ends.
func (s *Store) InTx(ctx context.Context, fn func(service.Store) error) error {
	if s.tx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Store{mu: s.mu, st: s.st.clone(), now: s.now, tx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// Seeding helpers.  The engine never writes these entities.

func (s *Store) AddTurf(t model.Turf) {
	defer s.lock()()
	s.st.turfs[t.ID] = t
}

func (s *Store) AddBooking(b model.Booking) {
	defer s.lock()()
	s.st.bookings[b.ID] = b
}

func (s *Store) AddBlockedSlot(b model.BlockedSlot) {
	defer s.lock()()
	s.st.blocked = append(s.st.blocked, b)
}

func (s *Store) AddOffer(o model.Offer) {
	defer s.lock()()
	s.st.offers = append(s.st.offers, o)
}

func (s *Store) AddFirstBookingOffer(o model.FirstBookingOffer) {
	defer s.lock()()
	s.st.firstBooking = append(s.st.firstBooking, o)
}

func (s *Store) AddMilestone(m model.LoyaltyMilestoneOffer) {
	defer s.lock()()
	s.st.milestones = append(s.st.milestones, m)
}

func (s *Store) AddPromoCode(p model.PromoCode) {
	defer s.lock()()
	s.st.promos[p.ID] = p
}

// Inspection helpers used by tests and the dev server.

// Customer returns the ledger row of (ownerID, phone).
func (s *Store) Customer(ownerID, phone string) (model.Customer, bool) {
	defer s.lock()()
	c, ok := s.st.customers[customerKey(ownerID, phone)]
	return c, ok
}

// LoyaltyEntries returns every ledger credit in insertion order.
func (s *Store) LoyaltyEntries() []model.LoyaltyEntry {
	defer s.lock()()
	return append([]model.LoyaltyEntry(nil), s.st.loyalty...)
}

// Offer returns a generic offer by id.
func (s *Store) Offer(id string) (model.Offer, bool) {
	defer s.lock()()
	for _, o := range s.st.offers {
		if o.ID == id {
			return o, true
		}
	}
	return model.Offer{}, false
}

// Milestone returns a loyalty milestone by id.
func (s *Store) Milestone(id string) (model.LoyaltyMilestoneOffer, bool) {
	defer s.lock()()
	for _, m := range s.st.milestones {
		if m.ID == id {
			return m, true
		}
	}
	return model.LoyaltyMilestoneOffer{}, false
}

// Promo returns a promo code by id.
func (s *Store) Promo(id string) (model.PromoCode, bool) {
	defer s.lock()()
	p, ok := s.st.promos[id]
	return p, ok
}

// HoldCount returns the number of hold rows, expired ones included.
func (s *Store) HoldCount() int {
	defer s.lock()()
	return len(s.st.holds)
}

// ActiveBookings returns every booked (not cancelled) booking of turfID.
func (s *Store) ActiveBookings(turfID string) []model.Booking {
	defer s.lock()()
	var out []model.Booking
	for _, b := range s.st.bookings {
		if b.TurfID == turfID && b.Active() {
			out = append(out, b)
		}
	}
	return out
}

func customerKey(ownerID, phone string) string { return ownerID + "|" + phone }

func overlaps(aStart, aEnd, bStart, bEnd int) bool { return aStart < bEnd && bStart < aEnd }

// claimedBy reports who, other than the hold skip, claims any hour of
// [start, end) on turfID/date at now.
func (s *state) claimedBy(turfID, date string, start, end int, skip string, now time.Time) error {
	for _, b := range s.bookings {
		if b.Active() && b.TurfID == turfID && b.Date == date && overlaps(start, end, b.StartHour, b.EndHour) {
			return apperror.Conflict("slot %s-%s on %s is already booked",
				model.HourLabel(b.StartHour), model.HourLabel(b.EndHour), date)
		}
	}
	for _, h := range s.holds {
		if h.ID == skip || !h.Live(now) {
			continue
		}
		if h.TurfID == turfID && h.Date == date && overlaps(start, end, h.StartHour, h.EndHour) {
			return apperror.Conflict("slot %s-%s on %s is held by another customer",
				model.HourLabel(h.StartHour), model.HourLabel(h.EndHour), date)
		}
	}
	return nil
}

func (s *Store) GetTurf(_ context.Context, turfID string) (*model.Turf, error) {
	defer s.lock()()
	t, ok := s.st.turfs[turfID]
	if !ok {
		return nil, apperror.NotFound("turf %s not found", turfID)
	}
	return &t, nil
}

func inRange(date, from, to string) bool { return date >= from && date <= to }

func (s *Store) ListBookings(_ context.Context, turfID, fromDate, toDate string) ([]model.Booking, error) {
	defer s.lock()()
	var out []model.Booking
	for _, b := range s.st.bookings {
		if b.TurfID == turfID && inRange(b.Date, fromDate, toDate) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartHour < out[j].StartHour
	})
	return out, nil
}

func (s *Store) ListBlockedSlots(_ context.Context, turfID, fromDate, toDate string) ([]model.BlockedSlot, error) {
	defer s.lock()()
	var out []model.BlockedSlot
	for _, b := range s.st.blocked {
		if b.TurfID == turfID && inRange(b.Date, fromDate, toDate) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) ListHolds(_ context.Context, turfID, fromDate, toDate string) ([]model.SlotHold, error) {
	defer s.lock()()
	var out []model.SlotHold
	for _, h := range s.st.holds {
		if h.TurfID == turfID && inRange(h.Date, fromDate, toDate) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) GetHoldBySession(_ context.Context, turfID, sessionID string) (*model.SlotHold, error) {
	defer s.lock()()
	for _, h := range s.st.holds {
		if h.TurfID == turfID && h.SessionID == sessionID {
			return &h, nil
		}
	}
	return nil, apperror.NotFound("no hold for this session")
}

func (s *Store) InsertHold(_ context.Context, h *model.SlotHold, now time.Time) error {
	defer s.lock()()
	if _, dup := s.st.holds[h.ID]; dup {
		return apperror.Conflict("hold %s already exists", h.ID)
	}
	for id, other := range s.st.holds {
		if other.TurfID != h.TurfID || other.SessionID != h.SessionID {
			continue
		}
		if other.Live(now) {
			return apperror.Conflict("session already holds %s-%s on %s",
				model.HourLabel(other.StartHour), model.HourLabel(other.EndHour), other.Date)
		}
		delete(s.st.holds, id)
	}
	if err := s.st.claimedBy(h.TurfID, h.Date, h.StartHour, h.EndHour, "", now); err != nil {
		return err
	}
	s.st.holds[h.ID] = *h
	return nil
}

func (s *Store) ExtendHold(_ context.Context, holdID string, newEnd int, now time.Time) error {
	defer s.lock()()
	h, ok := s.st.holds[holdID]
	if !ok {
		return apperror.NotFound("hold %s not found", holdID)
	}
	if newEnd > h.EndHour {
		if err := s.st.claimedBy(h.TurfID, h.Date, h.EndHour, newEnd, h.ID, now); err != nil {
			return err
		}
	}
	h.EndHour = newEnd
	s.st.holds[holdID] = h
	return nil
}

func (s *Store) DeleteHold(_ context.Context, holdID string) error {
	defer s.lock()()
	if _, ok := s.st.holds[holdID]; !ok {
		return apperror.NotFound("hold %s not found", holdID)
	}
	delete(s.st.holds, holdID)
	return nil
}

func (s *Store) DeleteExpiredHolds(_ context.Context, now time.Time) (int, error) {
	defer s.lock()()
	n := 0
	for id, h := range s.st.holds {
		if !h.Live(now) {
			delete(s.st.holds, id)
			n++
		}
	}
	return n, nil
}

// CountCompletedBookings counts active bookings whose last hour has ended.
func (s *Store) CountCompletedBookings(_ context.Context, ownerID, phone string, now time.Time, loc *time.Location) (int, error) {
	defer s.lock()()
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today, hour := local.Format("2006-01-02"), local.Hour()
	n := 0
	for _, b := range s.st.bookings {
		if b.OwnerID != ownerID || b.CustomerPhone != phone || !b.Active() {
			continue
		}
		if b.Date < today || (b.Date == today && b.EndHour <= hour) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListMilestones(_ context.Context, ownerID string) ([]model.LoyaltyMilestoneOffer, error) {
	defer s.lock()()
	var out []model.LoyaltyMilestoneOffer
	for _, m := range s.st.milestones {
		if m.OwnerID == ownerID && m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) ListFirstBookingOffers(_ context.Context, ownerID string) ([]model.FirstBookingOffer, error) {
	defer s.lock()()
	var out []model.FirstBookingOffer
	for _, o := range s.st.firstBooking {
		if o.OwnerID == ownerID && o.IsActive {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) ListOffers(_ context.Context, ownerID, turfID, date string) ([]model.Offer, error) {
	defer s.lock()()
	var out []model.Offer
	for _, o := range s.st.offers {
		if o.OwnerID == ownerID && o.AppliesToTurf(turfID) && o.ValidOn(date) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetPromoCode(_ context.Context, ownerID, code string) (*model.PromoCode, error) {
	defer s.lock()()
	for _, p := range s.st.promos {
		if p.OwnerID == ownerID && strings.EqualFold(p.Code, code) {
			return &p, nil
		}
	}
	return nil, apperror.NotFound("promo code %s not found", code)
}

func (s *Store) UpsertCustomer(_ context.Context, ownerID, phone, name string, spent decimal.Decimal, points int) (*model.Customer, error) {
	defer s.lock()()
	now := s.now()
	key := customerKey(ownerID, phone)
	c, ok := s.st.customers[key]
	if !ok {
		c = model.Customer{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			Phone:      phone,
			TotalSpent: decimal.Zero,
			CreatedAt:  now,
		}
	}
	if name != "" {
		c.Name = name
	}
	c.TotalBookings++
	c.TotalSpent = c.TotalSpent.Add(spent)
	c.LoyaltyPoints += points
	c.UpdatedAt = now
	s.st.customers[key] = c
	return &c, nil
}

func (s *Store) InsertBooking(_ context.Context, b *model.Booking, holdID string) error {
	defer s.lock()()
	if _, dup := s.st.bookings[b.ID]; dup {
		return apperror.Conflict("booking %s already exists", b.ID)
	}
	if err := s.st.claimedBy(b.TurfID, b.Date, b.StartHour, b.EndHour, holdID, b.CreatedAt); err != nil {
		return err
	}
	s.st.bookings[b.ID] = *b
	return nil
}

func (s *Store) GetBooking(_ context.Context, bookingID string) (*model.Booking, error) {
	defer s.lock()()
	b, ok := s.st.bookings[bookingID]
	if !ok {
		return nil, apperror.NotFound("booking %s not found", bookingID)
	}
	return &b, nil
}

func (s *Store) ListBookingsByPhone(_ context.Context, phone string) ([]model.Booking, error) {
	defer s.lock()()
	var out []model.Booking
	for _, b := range s.st.bookings {
		if b.CustomerPhone == phone {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CancelBooking(_ context.Context, bookingID, reason, actor string, at time.Time) error {
	defer s.lock()()
	b, ok := s.st.bookings[bookingID]
	if !ok {
		return apperror.NotFound("booking %s not found", bookingID)
	}
	if !b.Active() {
		return apperror.Conflict("booking %s is already cancelled", bookingID)
	}
	b.Status = model.BookingCancelled
	b.CancellationReason = &reason
	b.CancelledBy = &actor
	b.CancelledAt = &at
	s.st.bookings[bookingID] = b
	return nil
}

func (s *Store) IncrementOfferUsage(_ context.Context, source model.DiscountSource, offerID string, revenue decimal.Decimal) error {
	defer s.lock()()
	switch source {
	case model.SourceLoyaltyMilestone:
		for i := range s.st.milestones {
			if s.st.milestones[i].ID == offerID {
				s.st.milestones[i].UsageCount++
				s.st.milestones[i].Revenue = s.st.milestones[i].Revenue.Add(revenue)
				return nil
			}
		}
	case model.SourceFirstBooking:
		for i := range s.st.firstBooking {
			if s.st.firstBooking[i].ID == offerID {
				s.st.firstBooking[i].UsageCount++
				s.st.firstBooking[i].Revenue = s.st.firstBooking[i].Revenue.Add(revenue)
				return nil
			}
		}
	case model.SourceOffer, model.SourceTimeDecay:
		for i := range s.st.offers {
			if s.st.offers[i].ID == offerID {
				s.st.offers[i].UsageCount++
				s.st.offers[i].Revenue = s.st.offers[i].Revenue.Add(revenue)
				return nil
			}
		}
	}
	return apperror.NotFound("%s %s not found", source, offerID)
}

func (s *Store) IncrementOfferViews(_ context.Context, offerIDs []string) error {
	defer s.lock()()
	for _, id := range offerIDs {
		for i := range s.st.offers {
			if s.st.offers[i].ID == id {
				s.st.offers[i].ViewCount++
			}
		}
	}
	return nil
}

func (s *Store) IncrementPromoUsage(_ context.Context, promoID string) error {
	defer s.lock()()
	p, ok := s.st.promos[promoID]
	if !ok {
		return apperror.NotFound("promo code %s not found", promoID)
	}
	p.UsedCount++
	s.st.promos[promoID] = p
	return nil
}

func (s *Store) InsertLoyaltyEntry(_ context.Context, e *model.LoyaltyEntry) error {
	defer s.lock()()
	s.st.loyalty = append(s.st.loyalty, *e)
	return nil
}

func (s *Store) InsertTicket(_ context.Context, t *model.Ticket) error {
	defer s.lock()()
	if _, dup := s.st.tickets[t.Code]; dup {
		return apperror.Conflict("ticket code %s already issued", t.Code)
	}
	for _, existing := range s.st.tickets {
		if existing.BookingID == t.BookingID {
			return apperror.Conflict("booking %s already has a ticket", t.BookingID)
		}
	}
	s.st.tickets[t.Code] = *t
	return nil
}

func (s *Store) GetTicketByCode(_ context.Context, code string) (*model.Ticket, error) {
	defer s.lock()()
	t, ok := s.st.tickets[strings.ToUpper(code)]
	if !ok {
		return nil, apperror.NotFound("ticket %s not found", code)
	}
	return &t, nil
}
