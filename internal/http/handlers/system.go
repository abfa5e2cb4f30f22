package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) DBCheck(c *gin.Context) {
	if a.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "db_unavailable", "database not connected", nil)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := a.DB.PingContext(ctx); err != nil {
		respondError(c, http.StatusServiceUnavailable, "db_unavailable", a.message(err, "database unreachable"), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "reachable"})
}
