package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const metadataBookingID = "booking_id"

// StripeGateway talks to the Stripe API with one client built at startup.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req models.IntentRequest) (models.PaymentIntent, error) {
	const op = "payments.stripe.CreateIntent"

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.Cents()),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	params.Context = ctx
	params.AddMetadata(metadataBookingID, strconv.FormatInt(req.BookingID, 10))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return models.PaymentIntent{}, wrapStripeErr(op, err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, intentID string) (models.PaymentIntent, error) {
	const op = "payments.stripe.RetrieveIntent"

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return models.PaymentIntent{}, wrapStripeErr(op, err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string, amount models.Money, idempotencyKey string) (models.Refund, error) {
	const op = "payments.stripe.Refund"

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amount.Cents()),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	r, err := g.api.Refunds.New(params)
	if err != nil {
		return models.Refund{}, wrapStripeErr(op, err)
	}
	return models.Refund{
		ID:       r.ID,
		IntentID: intentID,
		Amount:   models.Money(r.Amount),
		Status:   string(r.Status),
	}, nil
}

func toIntent(pi *stripe.PaymentIntent) models.PaymentIntent {
	out := models.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       models.ExternalStatus(pi.Status),
		Amount:       models.Money(pi.Amount),
		Currency:     string(pi.Currency),
	}
	out.BookingID = bookingIDFrom(pi.Metadata)
	return out
}

func bookingIDFrom(meta map[string]string) int64 {
	if meta == nil {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimSpace(meta[metadataBookingID]), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func wrapStripeErr(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.HTTPStatusCode == http.StatusNotFound:
			return domain.NotFoundError{Resource: "payment intent", Err: fmt.Errorf("%s: %w", op, err)}
		case se.Type == stripe.ErrorTypeCard || se.Type == stripe.ErrorTypeInvalidRequest:
			return domain.ValidationError{Field: "payment", Msg: se.Msg, Err: fmt.Errorf("%s: %w", op, err)}
		}
	}
	return domain.ExternalServiceError{Service: "stripe", Err: fmt.Errorf("%s: %w", op, err)}
}
