package models

// ExternalStatus is the payment processor's intent status.
type ExternalStatus string

const (
	ExternalSucceeded             ExternalStatus = "succeeded"
	ExternalCanceled              ExternalStatus = "canceled"
	ExternalRequiresPaymentMethod ExternalStatus = "requires_payment_method"
	ExternalRequiresAction        ExternalStatus = "requires_action"
	ExternalProcessing            ExternalStatus = "processing"
	// ExternalRefunded is synthesized from charge.refunded events.
	ExternalRefunded ExternalStatus = "refunded"
)

// PaymentOutcome is the internal (status, payment_status) an external status maps to.
type PaymentOutcome struct {
	Status  BookingStatus
	Payment PaymentStatus
}

var externalOutcomes = map[ExternalStatus]PaymentOutcome{
	ExternalSucceeded:             {BookingConfirmed, PaymentPaid},
	ExternalCanceled:              {BookingCancelled, PaymentCancelled},
	ExternalRequiresPaymentMethod: {BookingPending, PaymentFailed},
	ExternalRequiresAction:        {BookingPending, PaymentRequiresAuthentication},
	ExternalProcessing:            {BookingPending, PaymentProcessing},
	ExternalRefunded:              {BookingCancelled, PaymentRefunded},
}

// MapExternalStatus returns false for statuses that carry no reconciliation meaning
// (requires_confirmation, requires_capture, ...).
func MapExternalStatus(s ExternalStatus) (PaymentOutcome, bool) {
	out, ok := externalOutcomes[s]
	return out, ok
}

// PaymentIntent is the subset of the processor's intent the service relies on.
type PaymentIntent struct {
	ID           string         `json:"intentId"`
	ClientSecret string         `json:"clientSecret,omitempty"`
	Status       ExternalStatus `json:"status"`
	BookingID    int64          `json:"bookingId"`
	Amount       Money          `json:"amount"`
	Currency     string         `json:"currency"`
}

type IntentRequest struct {
	BookingID      int64
	Amount         Money
	Currency       string
	Description    string
	ReceiptEmail   string
	IdempotencyKey string
}

// WebhookEvent is a verified processor callback reduced to what reconciliation needs.
type WebhookEvent struct {
	ID        string
	Type      string
	IntentID  string
	BookingID int64
	Status    ExternalStatus
}

type Refund struct {
	ID       string `json:"refundId"`
	IntentID string `json:"intentId"`
	Amount   Money  `json:"amount"`
	Status   string `json:"status"`
}
