package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"staybackend/internal/domain/models"
	"staybackend/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// GET /api/admin/bookings
func (a *API) AdminListBookings(c *gin.Context) {
	f, err := bookingFilter(c)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	if pid, err := strconv.ParseInt(strings.TrimSpace(c.Query("property_id")), 10, 64); err == nil && pid > 0 {
		f.PropertyID = pid
	}
	list, err := a.Bookings.ListAll(c.Request.Context(), middleware.Actor(c), f)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/admin/activity-logs?action=&entity_type=&entity_id=&limit=
func (a *API) AdminActivityLogs(c *gin.Context) {
	f := models.ActivityFilter{
		Action:     strings.TrimSpace(c.Query("action")),
		EntityType: strings.TrimSpace(c.Query("entity_type")),
		Limit:      queryInt(c, "limit", 0),
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(c.Query("entity_id")), 10, 64); err == nil {
		f.EntityID = id
	}
	logs, err := a.Activity.List(c.Request.Context(), middleware.Actor(c), f)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// POST /api/admin/bookings/:id/refund
func (a *API) AdminRefundBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, refund, err := a.Payments.ExecuteRefund(c.Request.Context(), middleware.Actor(c), id)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b, "refund": refund})
}
