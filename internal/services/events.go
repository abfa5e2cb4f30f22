package services

import (
	"encoding/json"
	"fmt"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/utils"

	"github.com/google/uuid"
)

// Notification types; the e-mail worker keys its templates on these.
const (
	NotifyBookingRequest     = "booking_request"
	NotifyBookingAccepted    = "booking_accepted"
	NotifyBookingRejected    = "booking_rejected"
	NotifyBookingCancelled   = "booking_cancelled"
	NotifyBookingCompleted   = "booking_completed"
	NotifyBookingUnavailable = "booking_unavailable"
	NotifyPaymentSuccessful  = "payment_successful"
	NotifyBookingPaid        = "booking_paid"
	NotifyPaymentFailed      = "payment_failed"
	NotifyPaymentAction      = "payment_requires_action"
	NotifyPaymentCancelled   = "payment_cancelled"
	NotifyRefundIssued       = "refund_issued"
)

// eventBatch collects outbox events for one state change; the first error sticks.
type eventBatch struct {
	now    time.Time
	events []models.OutboxEvent
	err    error
}

func newBatch(now time.Time) *eventBatch {
	return &eventBatch{now: now.UTC()}
}

func (b *eventBatch) add(kind string, aggregateID int64, payload any) string {
	if b.err != nil {
		return ""
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		b.err = fmt.Errorf("marshal %s event: %w", kind, err)
		return ""
	}
	id := uuid.NewString()
	b.events = append(b.events, models.OutboxEvent{
		ID:          id,
		Kind:        kind,
		AggregateID: aggregateID,
		Payload:     raw,
		Status:      models.OutboxPending,
		CreatedAt:   b.now,
	})
	return id
}

// notifyOnce emits a notification deduplicated per booking and type.
func (b *eventBatch) notifyOnce(bk models.Booking, userID int64, typ, title, message string) {
	b.notify(bk, userID, typ, title, message, fmt.Sprintf("%s:%d:%d", typ, bk.ID, userID))
}

func (b *eventBatch) notify(bk models.Booking, userID int64, typ, title, message, dedupeKey string) {
	if dedupeKey == "" {
		dedupeKey = fmt.Sprintf("%s:%d:%s", typ, bk.ID, uuid.NewString())
	}
	email := ""
	if userID == bk.GuestID {
		email = bk.GuestEmail
	}
	b.add(models.OutboxKindNotification, bk.ID, models.NotificationPayload{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data: map[string]any{
			"booking_id":  bk.ID,
			"property_id": bk.PropertyID,
			"check_in":    bk.CheckIn.String(),
			"check_out":   bk.CheckOut.String(),
		},
		DedupeKey: dedupeKey,
		Email:     email,
	})
}

func (b *eventBatch) activity(actor domain.Actor, action string, bookingID int64, meta map[string]any) {
	b.add(models.OutboxKindActivity, bookingID, models.ActivityPayload{
		ActorType:  actor.ActorType(),
		UserID:     actor.UserID,
		Action:     action,
		EntityType: "booking",
		EntityID:   bookingID,
		Metadata:   meta,
	})
}

func (b *eventBatch) refundRequested(bk models.Booking, amount models.Money, reason string) {
	b.add(models.OutboxKindRefundRequested, bk.ID, models.RefundRequestedPayload{
		BookingID:       bk.ID,
		PaymentIntentID: bk.PaymentIntentID,
		Amount:          amount,
		Reason:          reason,
	})
}

func (b *eventBatch) done() ([]models.OutboxEvent, error) {
	return b.events, b.err
}

func stayLabel(bk models.Booking) string {
	return fmt.Sprintf("%s to %s", bk.CheckIn.String(), bk.CheckOut.String())
}

func amountLabel(bk models.Booking, m models.Money) string {
	return utils.FormatCurrency(m.Cents(), bk.Currency)
}
