package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Turf represents a bookable venue owned by a venue operator.  Opening
// hours are stored as "HH:MM" strings; a closing time of "00:00" (or
// "24:00") means the turf closes at midnight and is treated as hour 24.
//
// Pricing fields:
//  BasePrice     – hourly rate used when nothing more specific applies.
//  Price1h..3h   – optional fixed package prices for exactly 1, 2 or 3 hours.
//  WeekdayPrice  – optional hourly override for Monday–Friday.
//  WeekendPrice  – optional hourly override for Saturday and Sunday.
//  PeakHourPrice – optional hourly override inside the peak window.
type Turf struct {
	ID            string           `db:"id" json:"id"`
	OwnerID       string           `db:"owner_id" json:"owner_id"`
	Name          string           `db:"name" json:"name"`
	IsPublic      bool             `db:"is_public" json:"is_public"`
	OpenTime      string           `db:"open_time" json:"open_time"`
	CloseTime     string           `db:"close_time" json:"close_time"`
	BasePrice     decimal.Decimal  `db:"base_price" json:"base_price"`
	Price1h       *decimal.Decimal `db:"price_1h" json:"price_1h,omitempty"`
	Price2h       *decimal.Decimal `db:"price_2h" json:"price_2h,omitempty"`
	Price3h       *decimal.Decimal `db:"price_3h" json:"price_3h,omitempty"`
	WeekdayPrice  *decimal.Decimal `db:"weekday_price" json:"weekday_price,omitempty"`
	WeekendPrice  *decimal.Decimal `db:"weekend_price" json:"weekend_price,omitempty"`
	PeakHourPrice *decimal.Decimal `db:"peak_hour_price" json:"peak_hour_price,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// Hours returns the first bookable hour and the exclusive closing hour.
// A midnight close is reported as 24.
func (t Turf) Hours() (open, close int) {
	open = clockHour(t.OpenTime)
	close = clockHour(t.CloseTime)
	if close == 0 {
		close = 24
	}
	return open, close
}

// PackagePrice returns the fixed package price for exactly hours, if any.
func (t Turf) PackagePrice(hours int) (decimal.Decimal, bool) {
	var p *decimal.Decimal
	switch hours {
	case 1:
		p = t.Price1h
	case 2:
		p = t.Price2h
	case 3:
		p = t.Price3h
	}
	if p == nil {
		return decimal.Zero, false
	}
	return *p, true
}

func clockHour(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 24 {
		return 0
	}
	return h
}

// HourLabel formats an hour of day as "HH:00"; 24 is rendered as "00:00".
func HourLabel(h int) string {
	return time.Date(0, 1, 1, h%24, 0, 0, 0, time.UTC).Format("15:04")
}
