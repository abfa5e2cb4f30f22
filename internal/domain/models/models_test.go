package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, start, end string) DateRange {
	t.Helper()
	s, err := ParseDate(start)
	require.NoError(t, err)
	e, err := ParseDate(end)
	require.NoError(t, err)
	return DateRange{Start: s, End: e}
}

func TestDateRangeOverlapsHalfOpen(t *testing.T) {
	a := mustRange(t, "2025-09-01", "2025-09-05")

	assert.False(t, a.Overlaps(mustRange(t, "2025-09-05", "2025-09-10")), "back-to-back stays must not conflict")
	assert.False(t, mustRange(t, "2025-08-28", "2025-09-01").Overlaps(a))
	assert.True(t, a.Overlaps(mustRange(t, "2025-09-04", "2025-09-08")))
	assert.True(t, a.Overlaps(mustRange(t, "2025-09-02", "2025-09-03")), "contained range")
	assert.True(t, mustRange(t, "2025-08-01", "2025-10-01").Overlaps(a), "containing range")
}

func TestDateRangeValidAndNights(t *testing.T) {
	r := mustRange(t, "2025-10-01", "2025-10-04")
	assert.True(t, r.Valid())
	assert.Equal(t, 3, r.Nights())

	assert.False(t, mustRange(t, "2025-10-04", "2025-10-04").Valid())
	assert.False(t, mustRange(t, "2025-10-05", "2025-10-04").Valid())
	assert.False(t, DateRange{}.Valid())
}

func TestDateJSONAndScan(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-10-01T00:00:00Z"`), &d))
	assert.Equal(t, "2025-10-01", d.String())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-10-01"`, string(out))

	var scanned Date
	require.NoError(t, scanned.Scan(time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, scanned.Equal(NewDate(2025, 10, 2)))
	require.NoError(t, scanned.Scan([]byte("2025-10-03")))
	assert.Equal(t, "2025-10-03", scanned.String())
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to BookingStatus
		ok       bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingCancelled, BookingPending, false},
		{BookingCompleted, BookingPending, false},
		{BookingFailed, BookingPending, false},
		{BookingCancelled, BookingConfirmed, false},
		{BookingConfirmed, BookingPending, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
	assert.True(t, BookingCancelled.IsTerminal())
	assert.False(t, BookingConfirmed.IsTerminal())
}

func TestMapExternalStatus(t *testing.T) {
	cases := map[ExternalStatus]PaymentOutcome{
		ExternalSucceeded:             {BookingConfirmed, PaymentPaid},
		ExternalCanceled:              {BookingCancelled, PaymentCancelled},
		ExternalRequiresPaymentMethod: {BookingPending, PaymentFailed},
		ExternalRequiresAction:        {BookingPending, PaymentRequiresAuthentication},
		ExternalProcessing:            {BookingPending, PaymentProcessing},
	}
	for ext, want := range cases {
		got, ok := MapExternalStatus(ext)
		require.Truef(t, ok, "status %s should map", ext)
		assert.Equal(t, want, got)
	}

	_, ok := MapExternalStatus("requires_capture")
	assert.False(t, ok)
}

func TestMoneyParseAndFormat(t *testing.T) {
	m, err := ParseMoney("300")
	require.NoError(t, err)
	assert.Equal(t, Money(30000), m)
	assert.Equal(t, "300.00", m.String())

	m, err = ParseMoney("12.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), m.Cents())

	_, err = ParseMoney("1.234")
	assert.Error(t, err)

	m, err = ParseMoney("-0.5")
	require.NoError(t, err)
	assert.Equal(t, Money(-50), m)

	for _, bad := range []string{"1.-5", "1.+5", "+3", "-", ".", "5.", "1..2", "1,50", "0x10", "1 000", "--2", "99999999999999999999"} {
		_, err := ParseMoney(bad)
		assert.Error(t, err, bad)
	}

	var fromJSON Money
	require.NoError(t, json.Unmarshal([]byte(`299.99`), &fromJSON))
	assert.Equal(t, Money(29999), fromJSON)

	require.NoError(t, json.Unmarshal([]byte(`300.125`), &fromJSON))
	assert.Equal(t, Money(30013), fromJSON)

	require.NoError(t, json.Unmarshal([]byte(`3e2`), &fromJSON))
	assert.Equal(t, Money(30000), fromJSON)

	for _, bad := range []string{`"1.-5"`, `"1.+5"`, `"+3"`, `"NaN"`, `"Inf"`, `"0x1p4"`, `"1e400"`, `true`} {
		before := fromJSON
		assert.Error(t, json.Unmarshal([]byte(bad), &fromJSON), bad)
		assert.Equal(t, before, fromJSON, bad)
	}

	assert.Equal(t, Money(15000), Money(30000).Percent(50))
}
