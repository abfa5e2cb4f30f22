package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/metrics"
	"staybackend/internal/utils"
)

const defaultWebhookDedupeTTL = 24 * time.Hour

// PaymentService bridges the payment processor and the booking lifecycle.
// Every status it learns about goes through BookingService.Reconcile.
type PaymentService struct {
	Bookings BookingStore
	Booking  BookingService
	Gateway  PaymentGateway
	Verifier WebhookVerifier
	// Claimer is optional; without it duplicate webhook deliveries fall through to
	// the idempotent reconcile.
	Claimer   Claimer
	DedupeTTL time.Duration
	Metrics   *metrics.Metrics
}

type CreateIntentInput struct {
	BookingID int64        `json:"bookingId" validate:"required,gt=0"`
	Amount    models.Money `json:"amount" validate:"gt=0"`
	Currency  string       `json:"currency" validate:"omitempty,len=3"`
}

func externalErr(service string, err error) error {
	if err == nil {
		return nil
	}
	var ext domain.ExternalServiceError
	if errors.As(err, &ext) || domain.IsValidation(err) || domain.IsNotFound(err) {
		return err
	}
	return domain.ExternalServiceError{Service: service, Err: err}
}

// CreateIntent opens (or reuses) a processor intent for the booking total.
// Statuses are left alone; only the intent id is recorded.
func (s PaymentService) CreateIntent(ctx context.Context, actor domain.Actor, in CreateIntentInput) (models.PaymentIntent, error) {
	if !actor.Authenticated() {
		return models.PaymentIntent{}, domain.AuthenticationError{Msg: "authentication required"}
	}
	if err := validateStruct(in); err != nil {
		return models.PaymentIntent{}, err
	}
	b, err := s.Bookings.GetBooking(ctx, in.BookingID)
	if err != nil {
		return models.PaymentIntent{}, err
	}
	if actor.UserID != b.GuestID && !actor.IsAdmin() {
		return models.PaymentIntent{}, domain.AuthorizationError{Msg: "only the guest can pay for this booking"}
	}
	if b.Status.IsTerminal() {
		return models.PaymentIntent{}, domain.StateError{Current: string(b.Status), Msg: fmt.Sprintf("Cannot pay for a booking with status: %s", b.Status)}
	}
	if b.PaymentStatus == models.PaymentPaid {
		return models.PaymentIntent{}, domain.StateError{Current: string(b.PaymentStatus), Msg: "Booking is already paid"}
	}
	if in.Amount != b.TotalAmount {
		return models.PaymentIntent{}, domain.ValidationError{Field: "amount", Msg: fmt.Sprintf("amount must equal the booking total %s", b.TotalAmount)}
	}
	currency := strings.ToLower(utils.Fallback(in.Currency, b.Currency))
	if currency != strings.ToLower(b.Currency) {
		return models.PaymentIntent{}, domain.ValidationError{Field: "currency", Msg: fmt.Sprintf("currency must be %s", b.Currency)}
	}

	if b.PaymentIntentID != "" {
		existing, err := s.Gateway.RetrieveIntent(ctx, b.PaymentIntentID)
		if err == nil && reusable(existing, b) {
			return existing, nil
		}
		if err != nil {
			utils.LogEvent(utils.RequestID(ctx), "payment", "create_intent",
				fmt.Sprintf("retrieve existing intent %s failed: %v", b.PaymentIntentID, err))
		}
	}

	intent, err := s.Gateway.CreateIntent(ctx, models.IntentRequest{
		BookingID:      b.ID,
		Amount:         b.TotalAmount,
		Currency:       currency,
		Description:    fmt.Sprintf("Booking #%d, %s", b.ID, stayLabel(b)),
		ReceiptEmail:   b.GuestEmail,
		IdempotencyKey: fmt.Sprintf("intent-%d-%d-%s", b.ID, b.TotalAmount.Cents(), b.PaymentStatus),
	})
	if err != nil {
		return models.PaymentIntent{}, externalErr("stripe", err)
	}

	if err := s.Bookings.AttachPaymentIntent(ctx, b.ID, intent.ID); err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			return models.PaymentIntent{}, domain.StateError{Msg: "Booking can no longer be paid"}
		}
		return models.PaymentIntent{}, err
	}
	utils.LogEvent(utils.RequestID(ctx), "payment", "create_intent", fmt.Sprintf("intent %s attached to booking %d", intent.ID, b.ID))
	return intent, nil
}

func reusable(intent models.PaymentIntent, b models.Booking) bool {
	if intent.ClientSecret == "" || intent.Amount != b.TotalAmount {
		return false
	}
	switch intent.Status {
	case models.ExternalRequiresPaymentMethod, models.ExternalRequiresAction, models.ExternalProcessing, "requires_confirmation":
		return true
	}
	return false
}

// HandlePaymentResponse is the client-side poll after checkout: fetch the intent
// and reconcile it exactly as a webhook would.
func (s PaymentService) HandlePaymentResponse(ctx context.Context, actor domain.Actor, intentID string) (ReconcileResult, error) {
	if !actor.Authenticated() {
		return ReconcileResult{}, domain.AuthenticationError{Msg: "authentication required"}
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return ReconcileResult{}, domain.ValidationError{Field: "paymentIntentId", Msg: "is required"}
	}
	intent, err := s.Gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return ReconcileResult{}, externalErr("stripe", err)
	}

	b, err := s.resolveBooking(ctx, intent.BookingID, intent.ID)
	if err != nil {
		return ReconcileResult{}, err
	}
	if err := canView(actor, b); err != nil {
		return ReconcileResult{}, err
	}
	return s.Booking.Reconcile(ctx, ReconcileInput{
		BookingID: b.ID,
		IntentID:  intent.ID,
		Status:    intent.Status,
		Source:    "poll",
	})
}

func (s PaymentService) resolveBooking(ctx context.Context, bookingID int64, intentID string) (models.Booking, error) {
	if bookingID > 0 {
		return s.Bookings.GetBooking(ctx, bookingID)
	}
	if intentID == "" {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return s.Bookings.FindBookingByIntent(ctx, intentID)
}

// WebhookResult is what the webhook endpoint acknowledges.
type WebhookResult struct {
	EventID   string `json:"eventId"`
	Type      string `json:"type"`
	Result    string `json:"result"`
	BookingID int64  `json:"bookingId,omitempty"`
}

// HandleWebhook verifies and applies one processor callback. Events that do not
// concern a known booking are acknowledged so the processor stops retrying.
func (s PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	ev, err := s.Verifier.Verify(payload, signature)
	if err != nil {
		s.Metrics.Webhook("unknown", "rejected")
		if domain.IsValidation(err) {
			return WebhookResult{}, err
		}
		return WebhookResult{}, domain.ValidationError{Field: "signature", Msg: "invalid webhook payload", Err: err}
	}
	res := WebhookResult{EventID: ev.ID, Type: ev.Type, BookingID: ev.BookingID}
	finish := func(result string) (WebhookResult, error) {
		res.Result = result
		s.Metrics.Webhook(ev.Type, result)
		return res, nil
	}

	if ev.Status == "" || (ev.IntentID == "" && ev.BookingID == 0) {
		return finish("ignored")
	}

	claimKey := "webhook:" + ev.ID
	claimed := false
	if s.Claimer != nil && ev.ID != "" {
		ttl := s.DedupeTTL
		if ttl <= 0 {
			ttl = defaultWebhookDedupeTTL
		}
		ok, err := s.Claimer.Claim(ctx, claimKey, ttl)
		switch {
		case err != nil:
			utils.LogError(utils.RequestID(ctx), "payment", "webhook_claim", err)
		case !ok:
			return finish("duplicate")
		default:
			claimed = true
		}
	}
	release := func() {
		if claimed {
			if err := s.Claimer.Release(ctx, claimKey); err != nil {
				utils.LogError(utils.RequestID(ctx), "payment", "webhook_release", err)
			}
		}
	}

	b, err := s.resolveBooking(ctx, ev.BookingID, ev.IntentID)
	if err != nil {
		if domain.IsNotFound(err) {
			utils.LogEvent(utils.RequestID(ctx), "payment", "webhook", fmt.Sprintf("event %s references unknown booking (intent %s)", ev.ID, ev.IntentID))
			return finish("unknown_booking")
		}
		release()
		s.Metrics.Webhook(ev.Type, "error")
		return res, err
	}
	res.BookingID = b.ID

	out, err := s.Booking.Reconcile(ctx, ReconcileInput{
		BookingID: b.ID,
		IntentID:  ev.IntentID,
		Status:    ev.Status,
		Source:    "webhook",
		EventID:   ev.ID,
	})
	if err != nil {
		release()
		s.Metrics.Webhook(ev.Type, "error")
		return res, err
	}
	if out.Applied {
		return finish("applied")
	}
	return finish("noop")
}

// ExecuteRefund issues the refund that a rejection or cancellation flagged.
func (s PaymentService) ExecuteRefund(ctx context.Context, actor domain.Actor, bookingID int64) (models.Booking, models.Refund, error) {
	if !actor.IsAdmin() {
		return models.Booking{}, models.Refund{}, domain.AuthorizationError{Msg: "admin access required"}
	}
	b, err := s.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return models.Booking{}, models.Refund{}, err
	}
	switch {
	case !b.RefundRequired:
		return b, models.Refund{}, domain.StateError{Current: string(b.PaymentStatus), Msg: "Booking has no pending refund"}
	case b.PaymentStatus != models.PaymentPaid:
		return b, models.Refund{}, domain.StateError{Current: string(b.PaymentStatus), Msg: fmt.Sprintf("Cannot refund a booking with payment status: %s", b.PaymentStatus)}
	case b.PaymentIntentID == "":
		return b, models.Refund{}, domain.StateError{Msg: "Booking has no payment intent to refund"}
	}
	amount := b.RefundAmount
	if amount <= 0 {
		amount = b.TotalAmount
	}

	refund, err := s.Gateway.Refund(ctx, b.PaymentIntentID, amount, fmt.Sprintf("refund-%d", b.ID))
	if err != nil {
		return b, models.Refund{}, externalErr("stripe", err)
	}

	updated, _, err := s.Booking.transition(ctx, b.ID, func(cur models.Booking) (*models.StatusChange, []models.OutboxEvent, error) {
		if cur.PaymentStatus == models.PaymentRefunded {
			return nil, nil, nil
		}
		ch := &models.StatusChange{ToPayment: models.PaymentRefunded, RefundRequired: boolPtr(false)}
		if !cur.Status.IsTerminal() {
			ch.ToStatus = models.BookingCancelled
			ch.CancellationReason = "Payment refunded"
		}
		ev := newBatch(s.Booking.now())
		ev.notifyOnce(cur, cur.GuestID, NotifyRefundIssued, "Refund issued",
			fmt.Sprintf("%s was refunded for %s.", amountLabel(cur, amount), stayLabel(cur)))
		ev.activity(actor, "refund_executed", cur.ID, map[string]any{
			"refund_id":         refund.ID,
			"amount":            amount.String(),
			"payment_intent_id": cur.PaymentIntentID,
		})
		events, err := ev.done()
		return ch, events, err
	})
	if err != nil {
		return b, refund, err
	}
	utils.LogEvent(utils.RequestID(ctx), "payment", "refund", fmt.Sprintf("booking %d refunded %s (refund %s)", b.ID, amount, refund.ID))
	return updated, refund, nil
}

// PaymentStatusView is the payment summary exposed to the booking's parties.
type PaymentStatusView struct {
	BookingID       int64                `json:"bookingId"`
	Status          models.BookingStatus `json:"status"`
	PaymentStatus   models.PaymentStatus `json:"paymentStatus"`
	PaymentIntentID string               `json:"paymentIntentId,omitempty"`
	TotalAmount     models.Money         `json:"totalAmount"`
	Currency        string               `json:"currency"`
	RefundRequired  bool                 `json:"refundRequired"`
	RefundAmount    models.Money         `json:"refundAmount"`
}

func (s PaymentService) GetPaymentStatus(ctx context.Context, actor domain.Actor, bookingID int64) (PaymentStatusView, error) {
	b, err := s.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return PaymentStatusView{}, err
	}
	if err := canView(actor, b); err != nil {
		return PaymentStatusView{}, err
	}
	return PaymentStatusView{
		BookingID:       b.ID,
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		PaymentIntentID: b.PaymentIntentID,
		TotalAmount:     b.TotalAmount,
		Currency:        b.Currency,
		RefundRequired:  b.RefundRequired,
		RefundAmount:    b.RefundAmount,
	}, nil
}
