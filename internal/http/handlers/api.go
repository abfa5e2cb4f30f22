package handlers

import (
	"context"
	"time"

	"staybackend/internal/services"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// API holds the services the HTTP handlers call. main builds one at startup.
type API struct {
	Bookings      services.BookingService
	Availability  services.AvailabilityService
	Payments      services.PaymentService
	BlockedDates  services.BlockedDateService
	Calendar      services.CalendarService
	Docs          services.DocsService
	Auth          services.AuthService
	Notifications services.NotificationService
	Activity      services.ActivityService
	Cleanup       services.CleanupService

	// AbandonThreshold is the sweep age used by the GET cron endpoint.
	AbandonThreshold time.Duration
	// Production hides internal error messages.
	Production bool
	DB         Pinger
}
