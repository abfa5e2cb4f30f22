package handlers

import (
	"net/http"

	"staybackend/internal/http/middleware"
	"staybackend/internal/services"

	"github.com/gin-gonic/gin"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

// optionalReason accepts an empty body.
func optionalReason(c *gin.Context) (string, bool) {
	var req reasonRequest
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid JSON payload", nil)
		return "", false
	}
	return req.Reason, true
}

// POST /api/bookings
func (a *API) CreateBooking(c *gin.Context) {
	var in services.CreateBookingInput
	if !BindJSONOrError(c, &in) {
		return
	}
	b, err := a.Bookings.Create(c.Request.Context(), middleware.Actor(c), in)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": b})
}

// GET /api/bookings/:id
func (a *API) GetBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := a.Bookings.Get(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// GET /api/bookings/mine
func (a *API) ListMyBookings(c *gin.Context) {
	f, err := bookingFilter(c)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	list, err := a.Bookings.ListMine(c.Request.Context(), middleware.Actor(c), f)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// POST /api/bookings/:id/accept
func (a *API) AcceptBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := a.Bookings.Accept(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking accepted", "booking": b})
}

// POST /api/bookings/:id/reject
func (a *API) RejectBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	reason, ok := optionalReason(c)
	if !ok {
		return
	}
	b, err := a.Bookings.Reject(c.Request.Context(), middleware.Actor(c), id, reason)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking rejected", "booking": b, "refundRequired": b.RefundRequired})
}

// POST /api/bookings/:id/cancel
func (a *API) CancelBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	reason, ok := optionalReason(c)
	if !ok {
		return
	}
	res, err := a.Bookings.Cancel(c.Request.Context(), middleware.Actor(c), id, reason)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/bookings/:id/complete
func (a *API) CompleteBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := a.Bookings.Complete(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

// GET /api/bookings/:id/receipt
func (a *API) BookingReceipt(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	pdf, filename, err := a.Docs.GenerateReceipt(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
