package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	intconfig "staybackend/internal/config"
	"staybackend/internal/http/handlers"
	"staybackend/internal/kafka"
	"staybackend/internal/metrics"
	"staybackend/internal/payments"
	"staybackend/internal/repositories"
	"staybackend/internal/services"
	redisstore "staybackend/internal/storage/redis"
	"staybackend/internal/utils"

	"github.com/sirupsen/logrus"
)

type app struct {
	log        *logrus.Logger
	db         *sql.DB
	metrics    *metrics.Metrics
	redis      *redisstore.Storage
	producer   *kafka.Producer
	api        *handlers.API
	dispatcher *services.Dispatcher
	cleanup    services.CleanupService
}

func buildApp(ctx context.Context, env intconfig.Env) (*app, error) {
	a := &app{log: utils.Log}

	db, err := intconfig.ConnectDB(env)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	a.db = db

	if env.MetricsEnabled {
		a.metrics = metrics.New()
	}

	var claimer services.Claimer
	if env.RedisAddr != "" {
		a.redis = redisstore.New(env.RedisAddr, env.RedisPassword)
		if err := a.redis.Ping(ctx); err != nil {
			a.log.WithError(err).Warn("redis unreachable, webhook dedupe falls back to reconcile idempotency")
		}
		claimer = a.redis
	}

	var publisher services.EventPublisher
	if len(env.KafkaBrokers) > 0 {
		a.producer = kafka.NewProducer(env.KafkaBrokers, env.KafkaTopic)
		publisher = a.producer
	}

	bookingsRepo := repositories.BookingRepository{DB: db}
	blockedRepo := repositories.BlockedDateRepository{DB: db}
	propertyRepo := repositories.PropertyRepository{DB: db}
	profileRepo := repositories.ProfileRepository{DB: db}
	notificationRepo := repositories.NotificationRepository{DB: db}
	activityRepo := repositories.ActivityRepository{DB: db}
	outboxRepo := repositories.OutboxRepository{DB: db}

	availability := services.AvailabilityService{Bookings: bookingsRepo, Blocked: blockedRepo}
	bookings := services.BookingService{
		Bookings:        bookingsRepo,
		Properties:      propertyRepo,
		Availability:    availability,
		Metrics:         a.metrics,
		DefaultCurrency: env.DefaultCurrency,
	}
	a.cleanup = services.CleanupService{
		Bookings: bookingsRepo,
		Outbox:   outboxRepo,
		Locker:   claimer,
		Metrics:  a.metrics,
	}
	a.dispatcher = &services.Dispatcher{
		Log:           a.log,
		Outbox:        outboxRepo,
		Notifications: notificationRepo,
		Activity:      activityRepo,
		Publisher:     publisher,
		Metrics:       a.metrics,
		BatchSize:     env.OutboxBatchSize,
		MaxAttempts:   env.OutboxMaxAttempts,
		Retention:     env.OutboxRetention,
	}

	a.api = &handlers.API{
		Bookings:     bookings,
		Availability: availability,
		Payments: services.PaymentService{
			Bookings: bookingsRepo,
			Booking:  bookings,
			Gateway:  payments.NewStripeGateway(env.StripeSecretKey),
			Verifier: payments.WebhookVerifier{
				Secret:        env.StripeWebhookSecret,
				AllowUnsigned: env.WebhookUnsignedAllowed(),
			},
			Claimer: claimer,
			Metrics: a.metrics,
		},
		BlockedDates:     services.BlockedDateService{Properties: propertyRepo, Blocked: blockedRepo},
		Calendar:         services.CalendarService{Properties: propertyRepo, Bookings: bookingsRepo, Blocked: blockedRepo, UIDDomain: uidDomain(env.AppURL)},
		Docs:             services.DocsService{Bookings: bookingsRepo, Properties: propertyRepo},
		Auth:             services.AuthService{Profiles: profileRepo, Secret: []byte(env.JWTSecret), TTL: env.TokenTTL},
		Notifications:    services.NotificationService{Notifications: notificationRepo},
		Activity:         services.ActivityService{Activity: activityRepo},
		Cleanup:          a.cleanup,
		AbandonThreshold: env.AbandonThreshold,
		Production:       env.IsProduction(),
		DB:               db,
	}
	return a, nil
}

func uidDomain(appURL string) string {
	u, err := url.Parse(appURL)
	if err != nil || u.Hostname() == "" {
		return "stays.local"
	}
	return u.Hostname()
}

func (a *app) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.WithError(err).Warn("close kafka producer")
		}
	}
	if a.redis != nil {
		if err := a.redis.Stop(); err != nil {
			a.log.WithError(err).Warn("close redis")
		}
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
