package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarExport(t *testing.T) {
	f := newFixture(t)
	pending := f.seed(models.BookingPending, models.PaymentPending, "2025-10-01", "2025-10-04")
	confirmed := f.seed(models.BookingConfirmed, models.PaymentPaid, "2025-10-10", "2025-10-12")
	f.seed(models.BookingCancelled, models.PaymentCancelled, "2025-10-20", "2025-10-22")
	f.store.Blocked[5] = models.BlockedDate{ID: 5, PropertyID: f.prop.ID, StartDate: day("2025-12-24"), EndDate: day("2025-12-27"), Reason: "family visit"}

	svc := CalendarService{
		Properties: f.store,
		Bookings:   f.store,
		Blocked:    f.store,
		UIDDomain:  "stays.test",
		Now:        func() time.Time { return f.now },
	}
	body, filename, err := svc.Export(f.ctx, f.prop.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("property-%d-Lake_cabin.ics", f.prop.ID), filename)

	ics := string(body)
	assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR"))
	assert.Contains(t, ics, fmt.Sprintf("UID:booking-%d@stays.test", pending.ID))
	assert.Contains(t, ics, fmt.Sprintf("UID:booking-%d@stays.test", confirmed.ID))
	assert.Contains(t, ics, "UID:blocked-5@stays.test")
	assert.Contains(t, ics, "STATUS:TENTATIVE")
	assert.Contains(t, ics, "DTSTART;VALUE=DATE:20251001")
	assert.Equal(t, 3, strings.Count(ics, "BEGIN:VEVENT"), "cancelled bookings are not exported")
	assert.NotContains(t, ics, "Ada Guest")
	assert.NotContains(t, ics, "ada@example.com")
	assert.NotContains(t, ics, "family visit")

	_, _, err = svc.Export(f.ctx, 4242)
	assert.True(t, domain.IsNotFound(err))
}
