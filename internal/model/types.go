package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// IntList is a small set of integers persisted as a comma separated
// string ("0,6").  It backs the day-of-week and hour filters of offers.
type IntList []int

// Contains reports whether v is in the list.  An empty list contains
// everything, which is how filters express "match all".
func (l IntList) Contains(v int) bool {
	if len(l) == 0 {
		return true
	}
	for _, x := range l {
		if x == v {
			return true
		}
	}
	return false
}

func (l IntList) Value() (driver.Value, error) {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ","), nil
}

func (l *IntList) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("intlist: unsupported type %T", src)
	}
	out := IntList{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("intlist: %w", err)
		}
		out = append(out, n)
	}
	*l = out
	return nil
}

// DecayStep grants Percent once the slot starts within WithinHours.
type DecayStep struct {
	WithinHours int             `json:"within_hours"`
	Percent     decimal.Decimal `json:"percent"`
}

// DecaySchedule is the time-decay sub-schedule of an offer, stored as JSON.
type DecaySchedule struct {
	Steps      []DecayStep     `json:"steps,omitempty"`
	MaxPercent decimal.Decimal `json:"max_percent"`
}

func (d DecaySchedule) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *DecaySchedule) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return json.Unmarshal([]byte(v), d)
	case []byte:
		return json.Unmarshal(v, d)
	default:
		return fmt.Errorf("decay schedule: unsupported type %T", src)
	}
}
