package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// RewardType is the reward of a loyalty milestone.
type RewardType string

const (
	RewardFlat       RewardType = "flat"
	RewardPercentage RewardType = "percentage"
	RewardFreeHour   RewardType = "free_hour"
)

// Offer is a generic scheduled campaign.  A nil TurfID makes the offer
// venue-wide for every turf of the operator.  ValidFrom/ValidUntil are
// inclusive YYYY-MM-DD dates.  Empty DaysOfWeek (0=Sunday) or Hours
// filters match everything.  When TimeDecay is set the discount is taken
// from the decay schedule instead of DiscountType/DiscountValue.
type Offer struct {
	ID            string          `db:"id" json:"id"`
	OwnerID       string          `db:"owner_id" json:"owner_id"`
	TurfID        *string         `db:"turf_id" json:"turf_id,omitempty"`
	Title         string          `db:"title" json:"title"`
	DiscountType  DiscountType    `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal `db:"discount_value" json:"discount_value"`
	ValidFrom     string          `db:"valid_from" json:"valid_from"`
	ValidUntil    string          `db:"valid_until" json:"valid_until"`
	DaysOfWeek    IntList         `db:"days_of_week" json:"days_of_week,omitempty"`
	Hours         IntList         `db:"hours" json:"hours,omitempty"`
	TimeDecay     *DecaySchedule  `db:"time_decay" json:"time_decay,omitempty"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	UsageCount    int             `db:"usage_count" json:"usage_count"`
	ViewCount     int             `db:"view_count" json:"view_count"`
	Revenue       decimal.Decimal `db:"revenue" json:"revenue"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// ValidOn reports whether date (YYYY-MM-DD) lies inside the validity window.
// Dates in that layout compare correctly as strings.
func (o Offer) ValidOn(date string) bool {
	return o.IsActive && o.ValidFrom <= date && date <= o.ValidUntil
}

// AppliesToTurf reports whether the offer is scoped to turfID or venue-wide.
func (o Offer) AppliesToTurf(turfID string) bool {
	return o.TurfID == nil || *o.TurfID == turfID
}

// FirstBookingOffer discounts a customer's Nth booking at a venue.
type FirstBookingOffer struct {
	ID            string          `db:"id" json:"id"`
	OwnerID       string          `db:"owner_id" json:"owner_id"`
	BookingNumber int             `db:"booking_number" json:"booking_number"`
	DiscountType  DiscountType    `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal `db:"discount_value" json:"discount_value"`
	DaysOfWeek    IntList         `db:"days_of_week" json:"days_of_week,omitempty"`
	Hours         IntList         `db:"hours" json:"hours,omitempty"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	UsageCount    int             `db:"usage_count" json:"usage_count"`
	Revenue       decimal.Decimal `db:"revenue" json:"revenue"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// LoyaltyMilestoneOffer rewards the booking that reaches an exact count of
// completed bookings.  FreeHourOnDuration gates the free_hour reward on a
// minimum booked duration.
type LoyaltyMilestoneOffer struct {
	ID                    string          `db:"id" json:"id"`
	OwnerID               string          `db:"owner_id" json:"owner_id"`
	MilestoneBookingCount int             `db:"milestone_booking_count" json:"milestone_booking_count"`
	RewardType            RewardType      `db:"reward_type" json:"reward_type"`
	RewardValue           decimal.Decimal `db:"reward_value" json:"reward_value"`
	FreeHourOnDuration    int             `db:"free_hour_on_duration" json:"free_hour_on_duration"`
	IsActive              bool            `db:"is_active" json:"is_active"`
	UsageCount            int             `db:"usage_count" json:"usage_count"`
	Revenue               decimal.Decimal `db:"revenue" json:"revenue"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
}

// PromoCode is an independent discount that stacks on top of the primary
// layer.  MaxDiscount caps percentage codes; UsageLimit nil means unlimited.
type PromoCode struct {
	ID            string           `db:"id" json:"id"`
	OwnerID       string           `db:"owner_id" json:"owner_id"`
	TurfID        *string          `db:"turf_id" json:"turf_id,omitempty"`
	Code          string           `db:"code" json:"code"`
	DiscountType  DiscountType     `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal  `db:"discount_value" json:"discount_value"`
	MaxDiscount   *decimal.Decimal `db:"max_discount" json:"max_discount,omitempty"`
	MinAmount     decimal.Decimal  `db:"min_amount" json:"min_amount"`
	UsageLimit    *int             `db:"usage_limit" json:"usage_limit,omitempty"`
	UsedCount     int              `db:"used_count" json:"used_count"`
	ValidFrom     *time.Time       `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil    *time.Time       `db:"valid_until" json:"valid_until,omitempty"`
	IsActive      bool             `db:"is_active" json:"is_active"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}
