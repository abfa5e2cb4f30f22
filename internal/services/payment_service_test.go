package services

import (
	"encoding/json"
	"errors"
	"testing"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookBody(t *testing.T, ev models.WebhookEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return raw
}

func TestCreateIntentPreconditions(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")

	_, err := f.payments.CreateIntent(f.ctx, guest, CreateIntentInput{BookingID: b.ID, Amount: 29999})
	assert.True(t, domain.IsValidation(err))

	_, err = f.payments.CreateIntent(f.ctx, guest, CreateIntentInput{BookingID: b.ID, Amount: 30000, Currency: "usd"})
	assert.True(t, domain.IsValidation(err))

	_, err = f.payments.CreateIntent(f.ctx, otherGuest, CreateIntentInput{BookingID: b.ID, Amount: 30000})
	assert.True(t, domain.IsAuthorization(err))

	paid := f.seed(models.BookingConfirmed, models.PaymentPaid, "2025-11-01", "2025-11-03")
	_, err = f.payments.CreateIntent(f.ctx, guest, CreateIntentInput{BookingID: paid.ID, Amount: 30000})
	assert.True(t, domain.IsState(err))

	f.gateway.Err = errors.New("stripe down")
	_, err = f.payments.CreateIntent(f.ctx, guest, CreateIntentInput{BookingID: b.ID, Amount: 30000})
	assert.True(t, domain.IsExternal(err))
	assert.Empty(t, f.store.Booking(b.ID).PaymentIntentID, "booking untouched when the processor fails")
}

func TestCreateIntentReusesOpenIntent(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")

	first, err := f.payments.CreateIntent(f.ctx, guest, CreateIntentInput{BookingID: b.ID, Amount: 30000})
	require.NoError(t, err)
	second, err := f.payments.CreateIntent(f.ctx, guest, CreateIntentInput{BookingID: b.ID, Amount: 30000})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.gateway.Intents, 1)
}

func TestWebhookAppliesOnceAndSkipsDuplicates(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")
	body := webhookBody(t, models.WebhookEvent{
		ID: "evt_1", Type: "payment_intent.succeeded", IntentID: "pi_1", BookingID: b.ID, Status: models.ExternalSucceeded,
	})

	res, err := f.payments.HandleWebhook(f.ctx, body, webhookSig)
	require.NoError(t, err)
	assert.Equal(t, "applied", res.Result)

	res, err = f.payments.HandleWebhook(f.ctx, body, webhookSig)
	require.NoError(t, err)
	assert.Equal(t, "duplicate", res.Result)

	redelivered := webhookBody(t, models.WebhookEvent{
		ID: "evt_2", Type: "payment_intent.succeeded", IntentID: "pi_1", BookingID: b.ID, Status: models.ExternalSucceeded,
	})
	res, err = f.payments.HandleWebhook(f.ctx, redelivered, webhookSig)
	require.NoError(t, err)
	assert.Equal(t, "noop", res.Result)

	got := f.store.Booking(b.ID)
	assert.Equal(t, models.BookingConfirmed, got.Status)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")
	body := webhookBody(t, models.WebhookEvent{ID: "evt_1", IntentID: "pi_1", BookingID: b.ID, Status: models.ExternalSucceeded})

	_, err := f.payments.HandleWebhook(f.ctx, body, "t=1,v1=forged")
	require.True(t, domain.IsValidation(err))
	assert.Equal(t, models.PaymentPending, f.store.Booking(b.ID).PaymentStatus)
}

func TestWebhookUnknownBookingIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	body := webhookBody(t, models.WebhookEvent{ID: "evt_3", Type: "payment_intent.succeeded", IntentID: "pi_missing", Status: models.ExternalSucceeded})

	res, err := f.payments.HandleWebhook(f.ctx, body, webhookSig)
	require.NoError(t, err)
	assert.Equal(t, "unknown_booking", res.Result)

	ignored := webhookBody(t, models.WebhookEvent{ID: "evt_4", Type: "customer.created"})
	res, err = f.payments.HandleWebhook(f.ctx, ignored, webhookSig)
	require.NoError(t, err)
	assert.Equal(t, "ignored", res.Result)
}

func TestWebhookFindsBookingByIntent(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")
	require.NoError(t, f.store.AttachPaymentIntent(f.ctx, b.ID, "pi_42"))
	body := webhookBody(t, models.WebhookEvent{ID: "evt_5", Type: "payment_intent.payment_failed", IntentID: "pi_42", Status: models.ExternalRequiresPaymentMethod})

	res, err := f.payments.HandleWebhook(f.ctx, body, webhookSig)
	require.NoError(t, err)
	assert.Equal(t, b.ID, res.BookingID)
	assert.Equal(t, models.PaymentFailed, f.store.Booking(b.ID).PaymentStatus)
}

func TestHandlePaymentResponseRequiresParty(t *testing.T) {
	f := newFixture(t)
	b := f.create(guest, "2025-10-01", "2025-10-04")
	intent, err := f.payments.CreateIntent(f.ctx, guest, CreateIntentInput{BookingID: b.ID, Amount: 30000})
	require.NoError(t, err)
	f.gateway.SetStatus(intent.ID, models.ExternalSucceeded)

	_, err = f.payments.HandlePaymentResponse(f.ctx, otherGuest, intent.ID)
	assert.True(t, domain.IsAuthorization(err))
	assert.Equal(t, models.PaymentPending, f.store.Booking(b.ID).PaymentStatus)

	_, err = f.payments.HandlePaymentResponse(f.ctx, guest, "")
	assert.True(t, domain.IsValidation(err))
}

func TestExecuteRefund(t *testing.T) {
	f := newFixture(t)
	b := f.seed(models.BookingPending, models.PaymentPaid, "2025-10-01", "2025-10-04")
	b.PaymentIntentID = "pi_paid"
	f.store.PutBooking(b)

	_, err := f.bookings.Reject(f.ctx, host, b.ID, "")
	require.NoError(t, err)

	_, _, err = f.payments.ExecuteRefund(f.ctx, host, b.ID)
	assert.True(t, domain.IsAuthorization(err))

	got, refund, err := f.payments.ExecuteRefund(f.ctx, admin, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Money(30000), refund.Amount)
	assert.Equal(t, models.PaymentRefunded, got.PaymentStatus)
	assert.False(t, got.RefundRequired)
	require.Len(t, f.gateway.Refunds, 1)

	_, _, err = f.payments.ExecuteRefund(f.ctx, admin, b.ID)
	assert.True(t, domain.IsState(err))
	assert.Len(t, f.gateway.Refunds, 1)
}

func TestGetPaymentStatus(t *testing.T) {
	f := newFixture(t)
	b := f.seed(models.BookingConfirmed, models.PaymentPaid, "2025-10-01", "2025-10-04")

	view, err := f.payments.GetPaymentStatus(f.ctx, host, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, view.PaymentStatus)

	_, err = f.payments.GetPaymentStatus(f.ctx, otherGuest, b.ID)
	assert.True(t, domain.IsAuthorization(err))
}
