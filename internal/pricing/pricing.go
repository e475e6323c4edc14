// Package pricing computes the price of a slot selection: a base price from
// the turf's rate table, one primary discount picked by strict priority
// (loyalty milestone, first-N booking offer, generic or time-decay offer),
// and an independent promo code discount stacked on top.
//
// The engine is pure.  Callers load the rate table, campaigns and promo
// code and pass them in a Request; offers are evaluated in the order given.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/turf-slot-booking/internal/apperror"
	"github.com/iliyamo/turf-slot-booking/internal/model"
)

// Peak window, [PeakStartHour, PeakEndHour).
const (
	PeakStartHour = 17
	PeakEndHour   = 21
)

var hundred = decimal.NewFromInt(100)

// Request describes one selection to price.
type Request struct {
	Turf      model.Turf
	Date      string
	StartHour int
	Duration  int
	// SlotStart and Now drive the time-decay schedule.
	SlotStart time.Time
	Now       time.Time
	// CompletedBookings counts the customer's non-cancelled bookings at
	// this venue whose slot has already elapsed.
	CompletedBookings  int
	Milestones         []model.LoyaltyMilestoneOffer
	FirstBookingOffers []model.FirstBookingOffer
	Offers             []model.Offer
	// Promo must already have passed CheckPromo.
	Promo *model.PromoCode
}

// Quote is the priced selection.  Exactly one of the primary layer
// amounts can be non-zero.
type Quote struct {
	BasePrice            decimal.Decimal      `json:"base_price"`
	HourlyRate           decimal.Decimal      `json:"hourly_rate"`
	PackagePrice         bool                 `json:"package_price"`
	LoyaltyDiscount      decimal.Decimal      `json:"loyalty_discount"`
	FirstBookingDiscount decimal.Decimal      `json:"first_booking_discount"`
	OfferDiscount        decimal.Decimal      `json:"offer_discount"`
	PromoDiscount        decimal.Decimal      `json:"promo_discount"`
	TotalDiscount        decimal.Decimal      `json:"total_discount"`
	FinalPrice           decimal.Decimal      `json:"final_price"`
	SavingsPercent       int64                `json:"savings_percent"`
	Source               model.DiscountSource `json:"discount_source,omitempty"`
	SourceID             string               `json:"discount_source_id,omitempty"`
	SourceTitle          string               `json:"discount_source_title,omitempty"`
	PromoCodeID          string               `json:"promo_code_id,omitempty"`
}

// PrimaryDiscount returns whichever primary layer fired, or zero.
func (q Quote) PrimaryDiscount() decimal.Decimal {
	return q.LoyaltyDiscount.Add(q.FirstBookingDiscount).Add(q.OfferDiscount)
}

// BasePrice resolves the undiscounted price.  A package price for exactly
// duration hours wins outright; otherwise the hourly rate is the base rate,
// replaced by the weekend or weekday rate, replaced again by the peak rate
// when the start hour is inside the peak window.
func BasePrice(t model.Turf, day time.Weekday, startHour, duration int) (price, hourly decimal.Decimal, pkg bool) {
	if p, ok := t.PackagePrice(duration); ok {
		return p, decimal.Zero, true
	}
	hourly = t.BasePrice
	weekend := day == time.Saturday || day == time.Sunday
	if weekend && t.WeekendPrice != nil {
		hourly = *t.WeekendPrice
	} else if !weekend && t.WeekdayPrice != nil {
		hourly = *t.WeekdayPrice
	}
	if t.PeakHourPrice != nil && startHour >= PeakStartHour && startHour < PeakEndHour {
		hourly = *t.PeakHourPrice
	}
	return hourly.Mul(decimal.NewFromInt(int64(duration))), hourly, false
}

// Compute prices the request.  The date must be YYYY-MM-DD and the duration
// at least one hour.
func Compute(r Request) (Quote, error) {
	d, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return Quote{}, apperror.Validation("date %q is not YYYY-MM-DD", r.Date)
	}
	if r.Duration < 1 {
		return Quote{}, apperror.Validation("duration must be at least one hour")
	}
	base, hourly, pkg := BasePrice(r.Turf, d.Weekday(), r.StartHour, r.Duration)
	q := Quote{
		BasePrice:            base,
		HourlyRate:           hourly,
		PackagePrice:         pkg,
		LoyaltyDiscount:      decimal.Zero,
		FirstBookingDiscount: decimal.Zero,
		OfferDiscount:        decimal.Zero,
		PromoDiscount:        decimal.Zero,
	}
	nextBooking := r.CompletedBookings + 1

	applied := applyMilestone(&q, r, nextBooking) ||
		applyFirstBooking(&q, r, nextBooking, d.Weekday())
	if !applied {
		applyOffer(&q, r, d.Weekday())
	}

	if r.Promo != nil {
		q.PromoDiscount = PromoDiscount(*r.Promo, base)
		q.PromoCodeID = r.Promo.ID
	}

	q.TotalDiscount = q.PrimaryDiscount().Add(q.PromoDiscount)
	q.FinalPrice = decimal.Max(decimal.Zero, base.Sub(q.TotalDiscount))
	if base.IsPositive() {
		q.SavingsPercent = q.TotalDiscount.Div(base).Mul(hundred).Round(0).IntPart()
	}
	return q, nil
}

func applyMilestone(q *Quote, r Request, nextBooking int) bool {
	for _, m := range r.Milestones {
		if !m.IsActive || m.MilestoneBookingCount != nextBooking {
			continue
		}
		var amount decimal.Decimal
		switch m.RewardType {
		case model.RewardFlat:
			amount = m.RewardValue
		case model.RewardPercentage:
			amount = percentOf(q.BasePrice, m.RewardValue)
		case model.RewardFreeHour:
			if r.Duration < m.FreeHourOnDuration || r.Duration < 1 {
				return false
			}
			amount = q.BasePrice.Div(decimal.NewFromInt(int64(r.Duration))).Round(2)
		default:
			return false
		}
		q.LoyaltyDiscount = amount
		q.Source = model.SourceLoyaltyMilestone
		q.SourceID = m.ID
		return true
	}
	return false
}

func applyFirstBooking(q *Quote, r Request, nextBooking int, day time.Weekday) bool {
	for _, o := range r.FirstBookingOffers {
		if !o.IsActive || o.BookingNumber != nextBooking {
			continue
		}
		if !o.DaysOfWeek.Contains(int(day)) || !o.Hours.Contains(r.StartHour) {
			continue
		}
		q.FirstBookingDiscount = discountAmount(o.DiscountType, o.DiscountValue, q.BasePrice)
		q.Source = model.SourceFirstBooking
		q.SourceID = o.ID
		return true
	}
	return false
}

// applyOffer takes the first offer in caller order whose filters match and
// whose discount is positive.  A time-decay offer that is still at 0% does
// not shadow the offers after it.
func applyOffer(q *Quote, r Request, day time.Weekday) bool {
	for _, o := range r.Offers {
		if !o.ValidOn(r.Date) || !o.AppliesToTurf(r.Turf.ID) {
			continue
		}
		if !o.DaysOfWeek.Contains(int(day)) || !o.Hours.Contains(r.StartHour) {
			continue
		}
		source := model.SourceOffer
		var amount decimal.Decimal
		if o.TimeDecay != nil {
			source = model.SourceTimeDecay
			amount = percentOf(q.BasePrice, DecayPercent(*o.TimeDecay, r.SlotStart.Sub(r.Now)))
		} else {
			amount = discountAmount(o.DiscountType, o.DiscountValue, q.BasePrice)
		}
		if !amount.IsPositive() {
			continue
		}
		q.OfferDiscount = amount
		q.Source = source
		q.SourceID = o.ID
		q.SourceTitle = o.Title
		return true
	}
	return false
}

// DefaultDecaySteps is used by schedules that define no steps.
var DefaultDecaySteps = []model.DecayStep{
	{WithinHours: 24, Percent: decimal.NewFromInt(10)},
	{WithinHours: 12, Percent: decimal.NewFromInt(20)},
	{WithinHours: 6, Percent: decimal.NewFromInt(30)},
	{WithinHours: 3, Percent: decimal.NewFromInt(40)},
}

// DecayPercent returns the discount percentage of a time-decay schedule
// when the slot starts in untilStart.  It is the largest step whose window
// contains untilStart, capped at MaxPercent when that is positive.
func DecayPercent(s model.DecaySchedule, untilStart time.Duration) decimal.Decimal {
	if untilStart < 0 {
		return decimal.Zero
	}
	steps := s.Steps
	if len(steps) == 0 {
		steps = DefaultDecaySteps
	}
	pct := decimal.Zero
	for _, st := range steps {
		if untilStart <= time.Duration(st.WithinHours)*time.Hour && st.Percent.GreaterThan(pct) {
			pct = st.Percent
		}
	}
	if s.MaxPercent.IsPositive() && pct.GreaterThan(s.MaxPercent) {
		pct = s.MaxPercent
	}
	return pct
}

// CheckPromo reports why a promo code cannot be applied, or nil.
func CheckPromo(p *model.PromoCode, turfID string, base decimal.Decimal, now time.Time) error {
	switch {
	case p == nil:
		return apperror.IneligibleDiscount("promo code not found")
	case !p.IsActive:
		return apperror.IneligibleDiscount("promo code %s is not active", p.Code)
	case p.ValidFrom != nil && now.Before(*p.ValidFrom):
		return apperror.IneligibleDiscount("promo code %s is not yet valid", p.Code)
	case p.ValidUntil != nil && now.After(*p.ValidUntil):
		return apperror.IneligibleDiscount("promo code %s has expired", p.Code)
	case p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit:
		return apperror.IneligibleDiscount("promo code %s has reached its usage limit", p.Code)
	case p.TurfID != nil && *p.TurfID != turfID:
		return apperror.IneligibleDiscount("promo code %s is not valid for this turf", p.Code)
	case base.LessThan(p.MinAmount):
		return apperror.IneligibleDiscount("promo code %s requires a minimum amount of %s", p.Code, p.MinAmount.StringFixed(2))
	}
	return nil
}

// PromoDiscount computes a promo code's discount against the pre-promo base.
func PromoDiscount(p model.PromoCode, base decimal.Decimal) decimal.Decimal {
	if p.DiscountType != model.DiscountPercentage {
		return p.DiscountValue
	}
	d := percentOf(base, p.DiscountValue)
	if p.MaxDiscount != nil && d.GreaterThan(*p.MaxDiscount) {
		d = *p.MaxDiscount
	}
	return d
}

func discountAmount(t model.DiscountType, value, base decimal.Decimal) decimal.Decimal {
	if t == model.DiscountPercentage {
		return percentOf(base, value)
	}
	return value
}

func percentOf(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred).Round(2)
}

