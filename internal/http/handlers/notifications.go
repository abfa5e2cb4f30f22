package handlers

import (
	"net/http"

	"staybackend/internal/domain/models"
	"staybackend/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

// GET /api/notifications?unread=true&limit=
func (a *API) ListNotifications(c *gin.Context) {
	list, err := a.Notifications.List(c.Request.Context(), middleware.Actor(c), queryBool(c, "unread"), queryInt(c, "limit", 0))
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// POST /api/notifications/:id/read
func (a *API) MarkNotificationRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := a.Notifications.MarkRead(c.Request.Context(), middleware.Actor(c), id); err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
