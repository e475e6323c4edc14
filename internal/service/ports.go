package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/turf-slot-booking/internal/model"
)

// Store is the persistent store the engine races against.  Inserts that
// would claim an hour already claimed by a live hold of another session or
// by an active booking must fail with an apperror Conflict; that failure is
// the only authority on who won a race.
type Store interface {
	// InTx runs fn against a transactional view of the store.  If fn
	// returns an error nothing it wrote is kept.
	InTx(ctx context.Context, fn func(Store) error) error

	GetTurf(ctx context.Context, turfID string) (*model.Turf, error)

	ListBookings(ctx context.Context, turfID, fromDate, toDate string) ([]model.Booking, error)
	ListBlockedSlots(ctx context.Context, turfID, fromDate, toDate string) ([]model.BlockedSlot, error)
	ListHolds(ctx context.Context, turfID, fromDate, toDate string) ([]model.SlotHold, error)

	GetHoldBySession(ctx context.Context, turfID, sessionID string) (*model.SlotHold, error)
	InsertHold(ctx context.Context, h *model.SlotHold, now time.Time) error
	// ExtendHold moves a hold's end hour; the new hours must not be
	// claimed by anyone else.
	ExtendHold(ctx context.Context, holdID string, newEnd int, now time.Time) error
	DeleteHold(ctx context.Context, holdID string) error
	DeleteExpiredHolds(ctx context.Context, now time.Time) (int, error)

	CountCompletedBookings(ctx context.Context, ownerID, phone string, now time.Time, loc *time.Location) (int, error)
	ListMilestones(ctx context.Context, ownerID string) ([]model.LoyaltyMilestoneOffer, error)
	ListFirstBookingOffers(ctx context.Context, ownerID string) ([]model.FirstBookingOffer, error)
	// ListOffers returns the operator's offers valid on date for turfID,
	// ordered by created_at then id.
	ListOffers(ctx context.Context, ownerID, turfID, date string) ([]model.Offer, error)
	GetPromoCode(ctx context.Context, ownerID, code string) (*model.PromoCode, error)

	// UpsertCustomer resolves the (owner, phone) ledger row, creating it
	// when absent, and adds one booking worth spent to its stats.
	UpsertCustomer(ctx context.Context, ownerID, phone, name string, spent decimal.Decimal, points int) (*model.Customer, error)
	// InsertBooking converts the booking's hours into booking claims,
	// failing with Conflict when an active booking already claims one.
	InsertBooking(ctx context.Context, b *model.Booking, holdID string) error
	GetBooking(ctx context.Context, bookingID string) (*model.Booking, error)
	ListBookingsByPhone(ctx context.Context, phone string) ([]model.Booking, error)
	CancelBooking(ctx context.Context, bookingID, reason, actor string, at time.Time) error

	IncrementOfferUsage(ctx context.Context, source model.DiscountSource, offerID string, revenue decimal.Decimal) error
	IncrementOfferViews(ctx context.Context, offerIDs []string) error
	IncrementPromoUsage(ctx context.Context, promoID string) error
	InsertLoyaltyEntry(ctx context.Context, e *model.LoyaltyEntry) error
	InsertTicket(ctx context.Context, t *model.Ticket) error
	GetTicketByCode(ctx context.Context, code string) (*model.Ticket, error)
}

// ChangeKind says which kind of row changed.
type ChangeKind string

const (
	ChangeHold    ChangeKind = "hold"
	ChangeBooking ChangeKind = "booking"
)

// Change is a "something changed, re-fetch" signal for one turf.  It is
// never a state delta.
type Change struct {
	TurfID string     `json:"turf_id"`
	Kind   ChangeKind `json:"kind"`
	At     time.Time  `json:"at"`
}

// ChangeFeed is the change-notification channel scoped to turf id.
type ChangeFeed interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe delivers changes for turfID until ctx is done or the
	// returned cancel function is called.
	Subscribe(ctx context.Context, turfID string) (<-chan Change, func(), error)
}

// OwnerNotification is the payload handed to the notification dispatcher.
type OwnerNotification struct {
	OwnerID      string          `json:"turf_owner_id"`
	BookingID    string          `json:"booking_id"`
	CustomerName string          `json:"customer_name"`
	Date         string          `json:"date"`
	Time         string          `json:"time"`
	TurfName     string          `json:"turf_name"`
	Amount       decimal.Decimal `json:"amount"`
}

// Dispatcher delivers owner notifications.  Callers treat it as fire and
// forget: failures are logged, never propagated.
type Dispatcher interface {
	NotifyOwner(ctx context.Context, n OwnerNotification) error
}

// TicketIssuer produces the human-readable code and signed payload of a
// booking's ticket.
type TicketIssuer interface {
	Issue(b model.Booking) (code, payload string, err error)
}

// Clock returns the current instant.
type Clock func() time.Time
