package services

import (
	"context"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
)

// BookingStore is implemented by repositories.BookingRepository.
type BookingStore interface {
	GetBooking(ctx context.Context, id int64) (models.Booking, error)
	FindBookingByIntent(ctx context.Context, intentID string) (models.Booking, error)
	CreateBooking(ctx context.Context, b models.Booking, buildEvents func(models.Booking) ([]models.OutboxEvent, error)) (models.Booking, error)
	ApplyChange(ctx context.Context, ch models.StatusChange, events []models.OutboxEvent) error
	AttachPaymentIntent(ctx context.Context, bookingID int64, intentID string) error
	ActiveBookingsInRange(ctx context.Context, propertyID int64, rng models.DateRange, excludeID int64) ([]models.Booking, error)
	ListBookings(ctx context.Context, f models.BookingFilter, p domain.Pagination) (models.BookingPage, error)
	SweepAbandoned(ctx context.Context, cutoff time.Time, dryRun bool) ([]int64, error)
}

type BlockedDateStore interface {
	ListBlockedDates(ctx context.Context, propertyID int64) ([]models.BlockedDate, error)
	BlockedInRange(ctx context.Context, propertyID int64, rng models.DateRange) ([]models.BlockedDate, error)
	GetBlockedDate(ctx context.Context, id int64) (models.BlockedDate, error)
	CreateBlockedDate(ctx context.Context, bd models.BlockedDate) (models.BlockedDate, error)
	DeleteBlockedDate(ctx context.Context, id int64) error
}

type PropertyStore interface {
	GetProperty(ctx context.Context, id int64) (models.Property, error)
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id int64) (models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (models.Profile, error)
	CreateProfile(ctx context.Context, p models.Profile) (models.Profile, error)
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
}

type ActivityStore interface {
	InsertActivity(ctx context.Context, a models.ActivityLog) error
	ListActivity(ctx context.Context, f models.ActivityFilter) ([]models.ActivityLog, error)
}

type OutboxStore interface {
	EnqueueOutbox(ctx context.Context, events ...models.OutboxEvent) error
	ReserveOutbox(ctx context.Context, limit int, lease time.Duration) ([]models.OutboxEvent, error)
	MarkOutboxDone(ctx context.Context, id string) error
	MarkOutboxFailed(ctx context.Context, id, lastErr string, retryAt time.Time) error
	MarkOutboxDead(ctx context.Context, id, lastErr string) error
	PurgeOutbox(ctx context.Context, before time.Time, limit int) (int64, error)
}

// PaymentGateway is the processor adapter (Stripe in production).
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req models.IntentRequest) (models.PaymentIntent, error)
	RetrieveIntent(ctx context.Context, intentID string) (models.PaymentIntent, error)
	Refund(ctx context.Context, intentID string, amount models.Money, idempotencyKey string) (models.Refund, error)
}

// WebhookVerifier authenticates and decodes processor callbacks.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string) (models.WebhookEvent, error)
}

// Claimer is a short-lived distributed claim (Redis SET NX in production).
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventPublisher relays dispatched outbox events to downstream consumers (Kafka).
type EventPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
}
