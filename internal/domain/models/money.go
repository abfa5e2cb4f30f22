package models

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor units (cents). Stored as DECIMAL(12,2), rendered as a decimal number.
type Money int64

func MoneyFromFloat(f float64) Money {
	return Money(math.Round(f * 100))
}

// ParseMoney parses "300", "300.5" or "300.50" without going through float.
// Only digits are accepted around the point, with one optional leading minus.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	raw := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, hasPoint := strings.Cut(s, ".")
	if !allDigits(whole) || !allDigits(frac) || (whole == "" && frac == "") || (hasPoint && frac == "") {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("amount %q has more than 2 decimals", raw)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	f, _ := strconv.ParseInt(frac, 10, 64)
	m := Money(w*100 + f)
	if neg {
		m = -m
	}
	return m, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// jsonNumber reports whether s has the shape of a JSON number literal.
func jsonNumber(s string) bool {
	s = strings.TrimPrefix(s, "-")
	mant, exp, hasExp := strings.Cut(strings.ToLower(s), "e")
	if hasExp {
		exp = strings.TrimLeft(exp, "+-")
		if exp == "" || !allDigits(exp) {
			return false
		}
	}
	whole, frac, hasPoint := strings.Cut(mant, ".")
	if whole == "" || !allDigits(whole) || !allDigits(frac) {
		return false
	}
	return !hasPoint || frac != ""
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Cents returns the amount in the processor's minor unit.
func (m Money) Cents() int64 { return int64(m) }

// Percent returns p percent of m, rounded down to the cent.
func (m Money) Percent(p int) Money {
	return m * Money(p) / 100
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*m = 0
		return nil
	}
	parsed, err := ParseMoney(s)
	if err == nil {
		*m = parsed
		return nil
	}
	// JSON numbers such as 300.125 or 3e2 are rounded rather than rejected
	if !jsonNumber(s) {
		return err
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/100 {
		return err
	}
	*m = MoneyFromFloat(f)
	return nil
}

func (m *Money) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = 0
	case int64:
		*m = Money(v * 100)
	case float64:
		*m = MoneyFromFloat(v)
	case []byte:
		parsed, err := ParseMoney(string(v))
		if err != nil {
			return err
		}
		*m = parsed
	case string:
		parsed, err := ParseMoney(v)
		if err != nil {
			return err
		}
		*m = parsed
	default:
		return fmt.Errorf("cannot scan %T into Money", src)
	}
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
