package services

import (
	"context"
	"fmt"
	"time"

	"staybackend/internal/domain/models"
	"staybackend/internal/utils"

	ics "github.com/arran4/golang-ical"
)

const (
	calendarPastDays   = 30
	calendarFutureDays = 730
)

// CalendarService exports a property's occupancy as iCalendar. The feed is public,
// so events carry dates and status only, never guest data.
type CalendarService struct {
	Properties PropertyStore
	Bookings   BookingStore
	Blocked    BlockedDateStore
	// UIDDomain suffixes event UIDs, e.g. "stays.example.com".
	UIDDomain string
	Now       func() time.Time
}

func (s CalendarService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return utils.NowUTC()
}

// Export returns the .ics body and a download filename.
func (s CalendarService) Export(ctx context.Context, propertyID int64) ([]byte, string, error) {
	prop, err := s.Properties.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, "", err
	}
	now := s.now()
	today := models.DateOf(now)
	window := models.DateRange{Start: today.AddDays(-calendarPastDays), End: today.AddDays(calendarFutureDays)}

	bookings, err := s.Bookings.ActiveBookingsInRange(ctx, prop.ID, window, 0)
	if err != nil {
		return nil, "", err
	}
	blocked, err := s.Blocked.ListBlockedDates(ctx, prop.ID)
	if err != nil {
		return nil, "", err
	}

	domainPart := utils.Fallback(s.UIDDomain, "stays.local")
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//staybackend//availability//EN")
	cal.SetXWRCalName(utils.Fallback(prop.Title, fmt.Sprintf("Property %d", prop.ID)))

	for _, b := range bookings {
		ev := cal.AddEvent(fmt.Sprintf("booking-%d@%s", b.ID, domainPart))
		ev.SetDtStampTime(now)
		ev.SetAllDayStartAt(b.CheckIn.Time)
		ev.SetAllDayEndAt(b.CheckOut.Time)
		if b.Status == models.BookingConfirmed {
			ev.SetSummary("Reserved")
			ev.SetStatus(ics.ObjectStatusConfirmed)
		} else {
			ev.SetSummary("Pending request")
			ev.SetStatus(ics.ObjectStatusTentative)
		}
	}
	for _, bd := range blocked {
		if !bd.Range().Overlaps(window) {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("blocked-%d@%s", bd.ID, domainPart))
		ev.SetDtStampTime(now)
		ev.SetAllDayStartAt(bd.StartDate.Time)
		ev.SetAllDayEndAt(bd.EndDate.Time)
		ev.SetSummary("Blocked")
		ev.SetStatus(ics.ObjectStatusConfirmed)
	}

	filename := fmt.Sprintf("property-%d-%s.ics", prop.ID, utils.SafeFilenamePart(prop.Title))
	return []byte(cal.Serialize()), filename, nil
}
