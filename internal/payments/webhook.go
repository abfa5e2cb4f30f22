package payments

import (
	"encoding/json"
	"errors"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// WebhookVerifier checks the Stripe-Signature header and reduces the event to
// what reconciliation needs. Unsigned payloads are accepted only when
// AllowUnsigned is set, which config refuses in production.
type WebhookVerifier struct {
	Secret        string
	AllowUnsigned bool
	Tolerance     time.Duration
}

var errNoSecret = errors.New("webhook signing secret is not configured")

func (v WebhookVerifier) Verify(payload []byte, signatureHeader string) (models.WebhookEvent, error) {
	var (
		event stripe.Event
		err   error
	)
	switch {
	case v.Secret != "":
		event, err = webhook.ConstructEventWithOptions(payload, signatureHeader, v.Secret, webhook.ConstructEventOptions{
			Tolerance:                v.Tolerance,
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return models.WebhookEvent{}, domain.ValidationError{Field: "signature", Msg: "invalid webhook signature", Err: err}
		}
	case v.AllowUnsigned:
		if err := json.Unmarshal(payload, &event); err != nil {
			return models.WebhookEvent{}, domain.ValidationError{Field: "payload", Msg: "invalid webhook payload", Err: err}
		}
	default:
		return models.WebhookEvent{}, domain.ValidationError{Field: "signature", Msg: "webhook verification unavailable", Err: errNoSecret}
	}
	return decodeEvent(event)
}

// intentEventStatus is the status implied by each payment_intent.* event type.
var intentEventStatus = map[stripe.EventType]models.ExternalStatus{
	"payment_intent.succeeded":       models.ExternalSucceeded,
	"payment_intent.payment_failed":  models.ExternalRequiresPaymentMethod,
	"payment_intent.canceled":        models.ExternalCanceled,
	"payment_intent.processing":      models.ExternalProcessing,
	"payment_intent.requires_action": models.ExternalRequiresAction,
}

func decodeEvent(event stripe.Event) (models.WebhookEvent, error) {
	out := models.WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return out, nil
	}
	raw := event.Data.Raw

	if st, ok := intentEventStatus[event.Type]; ok {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return out, domain.ValidationError{Field: "payload", Msg: "invalid payment intent object", Err: err}
		}
		out.IntentID = pi.ID
		out.BookingID = bookingIDFrom(pi.Metadata)
		out.Status = st
		return out, nil
	}

	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(raw, &cs); err != nil {
			return out, domain.ValidationError{Field: "payload", Msg: "invalid checkout session object", Err: err}
		}
		if cs.PaymentIntent != nil {
			out.IntentID = cs.PaymentIntent.ID
		}
		out.BookingID = bookingIDFrom(cs.Metadata)
		if out.BookingID == 0 {
			out.BookingID = bookingIDFrom(map[string]string{metadataBookingID: cs.ClientReferenceID})
		}
		if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			out.Status = models.ExternalSucceeded
		}
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(raw, &ch); err != nil {
			return out, domain.ValidationError{Field: "payload", Msg: "invalid charge object", Err: err}
		}
		if ch.PaymentIntent != nil {
			out.IntentID = ch.PaymentIntent.ID
		}
		out.BookingID = bookingIDFrom(ch.Metadata)
		if ch.Refunded || ch.AmountRefunded > 0 {
			out.Status = models.ExternalRefunded
		}
	}
	return out, nil
}
