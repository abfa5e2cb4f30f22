package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"staybackend/internal/domain/models"
	"staybackend/internal/metrics"

	"github.com/sirupsen/logrus"
)

const (
	defaultOutboxLease     = 30 * time.Second
	maxOutboxRetryDelay    = 10 * time.Minute
	defaultOutboxBatchSize = 50
	defaultOutboxAttempts  = 10
	defaultOutboxRetention = 7 * 24 * time.Hour
	outboxPurgeInterval    = time.Hour
	outboxPurgeBatch       = 1000
)

// Dispatcher delivers committed outbox events: notification and activity rows are
// written to their tables, then every event is relayed to the publisher when one
// is configured. Delivery is at-least-once; the tables dedupe on event keys.
// An event that fails MaxAttempts times is parked as dead. Delivered events are
// purged once they are older than Retention.
type Dispatcher struct {
	Log           *logrus.Logger
	Outbox        OutboxStore
	Notifications NotificationStore
	Activity      ActivityStore
	Publisher     EventPublisher
	Metrics       *metrics.Metrics
	BatchSize     int
	MaxAttempts   int
	Retention     time.Duration
	Lease         time.Duration
	Now           func() time.Time
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) logger() *logrus.Entry {
	l := d.Log
	if l == nil {
		l = logrus.StandardLogger()
	}
	return l.WithField("module", "outbox")
}

// Run polls the outbox every interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	log := d.logger()
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	purge := time.NewTicker(outboxPurgeInterval)
	defer purge.Stop()

	log.WithFields(logrus.Fields{"interval": interval.String(), "batch": d.batchSize()}).Info("outbox dispatcher started")
	defer log.Info("outbox dispatcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("reserve outbox events failed")
			}
		case <-purge.C:
			if _, err := d.Purge(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("purge outbox failed")
			}
		}
	}
}

// Purge removes delivered events older than the retention window and returns how many went.
func (d *Dispatcher) Purge(ctx context.Context) (int64, error) {
	retention := d.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	n, err := d.Outbox.PurgeOutbox(ctx, d.now().Add(-retention), outboxPurgeBatch)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		d.logger().WithField("purged", n).Info("outbox purged")
	}
	return n, nil
}

func (d *Dispatcher) maxAttempts() int {
	if d.MaxAttempts > 0 {
		return d.MaxAttempts
	}
	return defaultOutboxAttempts
}

func (d *Dispatcher) batchSize() int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return defaultOutboxBatchSize
}

// DispatchOnce reserves one batch, processes it concurrently and returns how many
// events were delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	lease := d.Lease
	if lease <= 0 {
		lease = defaultOutboxLease
	}
	events, err := d.Outbox.ReserveOutbox(ctx, d.batchSize(), lease)
	if err != nil {
		return 0, err
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
	)
	for _, ev := range events {
		wg.Add(1)
		go func(ev models.OutboxEvent) {
			defer wg.Done()
			if d.process(ctx, ev) {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}(ev)
	}
	wg.Wait()
	return delivered, nil
}

func (d *Dispatcher) process(ctx context.Context, ev models.OutboxEvent) bool {
	log := d.logger().WithFields(logrus.Fields{"event_id": ev.ID, "kind": ev.Kind, "booking_id": ev.AggregateID})

	if err := d.deliver(ctx, ev); err != nil {
		if ev.Attempts >= d.maxAttempts() {
			log.WithError(err).WithField("attempts", ev.Attempts).Error("outbox event dead-lettered")
			d.Metrics.OutboxDispatched(ev.Kind, "dead")
			if merr := d.Outbox.MarkOutboxDead(ctx, ev.ID, err.Error()); merr != nil {
				log.WithError(merr).Error("mark outbox event dead")
			}
			return false
		}
		retryAt := d.now().Add(retryDelay(ev.Attempts))
		log.WithError(err).WithField("attempts", ev.Attempts).Warn("outbox delivery failed")
		d.Metrics.OutboxDispatched(ev.Kind, "failed")
		if merr := d.Outbox.MarkOutboxFailed(ctx, ev.ID, err.Error(), retryAt); merr != nil {
			log.WithError(merr).Error("mark outbox event failed")
		}
		return false
	}
	if err := d.Outbox.MarkOutboxDone(ctx, ev.ID); err != nil {
		log.WithError(err).Error("mark outbox event done")
		return false
	}
	d.Metrics.OutboxDispatched(ev.Kind, "done")
	return true
}

func (d *Dispatcher) deliver(ctx context.Context, ev models.OutboxEvent) error {
	switch ev.Kind {
	case models.OutboxKindNotification:
		var p models.NotificationPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		if p.UserID > 0 && d.Notifications != nil {
			data, err := json.Marshal(p.Data)
			if err != nil {
				return fmt.Errorf("encode notification data: %w", err)
			}
			if err := d.Notifications.InsertNotification(ctx, models.Notification{
				UserID:    p.UserID,
				Type:      p.Type,
				Title:     p.Title,
				Message:   p.Message,
				Data:      data,
				DedupeKey: p.DedupeKey,
				CreatedAt: ev.CreatedAt,
			}); err != nil {
				return err
			}
		}
	case models.OutboxKindActivity:
		var p models.ActivityPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return fmt.Errorf("decode activity: %w", err)
		}
		if d.Activity != nil {
			var meta json.RawMessage
			if len(p.Metadata) > 0 {
				raw, err := json.Marshal(p.Metadata)
				if err != nil {
					return fmt.Errorf("encode activity metadata: %w", err)
				}
				meta = raw
			}
			if err := d.Activity.InsertActivity(ctx, models.ActivityLog{
				ActorType:     p.ActorType,
				UserID:        p.UserID,
				Action:        p.Action,
				EntityType:    p.EntityType,
				EntityID:      p.EntityID,
				Metadata:      meta,
				SourceEventID: ev.ID,
				CreatedAt:     ev.CreatedAt,
			}); err != nil {
				return err
			}
		}
	case models.OutboxKindRefundRequested:
		// relayed only; the payments team consumes it from the topic
	default:
		return fmt.Errorf("unknown outbox kind %q", ev.Kind)
	}

	if d.Publisher == nil {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return d.Publisher.Publish(ctx, eventKey(ev), body)
}

// eventKey partitions by booking so one booking's events stay ordered.
func eventKey(ev models.OutboxEvent) []byte {
	if ev.AggregateID > 0 {
		return []byte(strconv.FormatInt(ev.AggregateID, 10))
	}
	return []byte(ev.Kind)
}

// retryDelay backs off exponentially from 5s, capped at maxOutboxRetryDelay.
func retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := 5 * time.Second
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxOutboxRetryDelay {
			return maxOutboxRetryDelay
		}
	}
	return delay
}
