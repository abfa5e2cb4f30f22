package utils

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "CAD 300.00", FormatCurrency(30000, "cad"))
	assert.Equal(t, "USD 1,234.05", FormatCurrency(123405, "usd"))
	assert.Equal(t, "CAD -0.50", FormatCurrency(-50, ""))
}

func TestSafeFilenamePart(t *testing.T) {
	assert.Equal(t, "NA", SafeFilenamePart("   "))
	assert.Equal(t, "Lake_cabin_a_b", SafeFilenamePart(" Lake cabin a/b "))
	assert.Equal(t, "xy", SafeFilenamePart("x\r\ny"))

	title := strings.Repeat("é", 39) + "日本"
	out := SafeFilenamePart(title)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, 40, utf8.RuneCountInString(out))
	assert.Equal(t, strings.Repeat("é", 39)+"日", out)

	assert.Equal(t, "ok", SafeFilenamePart("o\xffk"))
}

func TestLogEventCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	ConfigureLogger("info", "json", &buf)

	ctx := WithRequestID(context.Background(), "req-1")
	LogEvent(RequestID(ctx), "BOOKING", "accept", "booking_id=1")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"module":"booking"`)
	assert.Contains(t, out, `"msg":"booking_id=1"`)
}
