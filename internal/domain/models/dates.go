package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day without time of day, always normalized to UTC midnight.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		// accept full timestamps from clients, keep the day part
		s = s[:len(DateLayout)]
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Less(o Date) bool  { return d.Time.Before(o.Time) }
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// DaysUntil counts whole days from d to o (negative when o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.Sub(d.Time).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// DateRange is a half-open stay [Start, End): the End day itself is not occupied.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.Start.Less(r.End)
}

// Overlaps reports a < d && c < b for [a,b) and [c,d).
func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.Less(o.End) && o.Start.Less(r.End)
}

func (r DateRange) Nights() int {
	return r.Start.DaysUntil(r.End)
}

func (r DateRange) String() string {
	return r.Start.String() + "/" + r.End.String()
}
