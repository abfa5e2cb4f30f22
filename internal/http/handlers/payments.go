package handlers

import (
	"io"
	"net/http"
	"strings"

	"staybackend/internal/domain"
	"staybackend/internal/http/middleware"
	"staybackend/internal/services"
	"staybackend/internal/utils"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 512 << 10

// POST /api/payments/create-payment-intent
func (a *API) CreatePaymentIntent(c *gin.Context) {
	var in services.CreateIntentInput
	if !BindJSONOrError(c, &in) {
		return
	}
	intent, err := a.Payments.CreateIntent(c.Request.Context(), middleware.Actor(c), in)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
		"status":          intent.Status,
	})
}

type paymentResponseRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
}

// POST /api/payments/handle-payment-response
func (a *API) HandlePaymentResponse(c *gin.Context) {
	var req paymentResponseRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	intentID := strings.TrimSpace(req.PaymentIntentID)
	if intentID == "" {
		a.RespondDomainError(c, domain.ValidationError{Field: "paymentIntentId", Msg: "is required"})
		return
	}
	res, err := a.Payments.HandlePaymentResponse(c.Request.Context(), middleware.Actor(c), intentID)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"booking":       res.Booking,
		"status":        res.Booking.Status,
		"paymentStatus": res.Booking.PaymentStatus,
		"applied":       res.Applied,
	})
}

// GET /api/payments/:bookingId/status
func (a *API) PaymentStatus(c *gin.Context) {
	id, ok := paramID(c, "bookingId")
	if !ok {
		return
	}
	view, err := a.Payments.GetPaymentStatus(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/payments/webhook
//
// The raw body is needed for signature verification, so it is read directly.
// Non-2xx answers make the processor redeliver.
func (a *API) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(payload) == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "empty webhook payload", nil)
		return
	}
	if len(payload) > maxWebhookBody {
		respondError(c, http.StatusRequestEntityTooLarge, "payload_too_large", "webhook payload too large", nil)
		return
	}
	res, err := a.Payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		utils.LogError(middleware.GetRequestID(c), "webhook", "handle", err)
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "eventId": res.EventID, "type": res.Type, "result": res.Result})
}
