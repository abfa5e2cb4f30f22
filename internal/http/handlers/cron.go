package handlers

import (
	"net/http"
	"time"

	"staybackend/internal/services"

	"github.com/gin-gonic/gin"
)

type cleanupRequest struct {
	DryRun bool `json:"dryRun"`
	// MaxAge is in minutes.
	MaxAge int `json:"maxAge"`
}

// GET /api/cron/cleanup-abandoned-bookings
func (a *API) CronCleanup(c *gin.Context) {
	start := time.Now()
	res, err := a.Cleanup.Sweep(c.Request.Context(), a.AbandonThreshold, false)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"skipped":         res.Skipped,
		"deletedCount":    res.DeletedCount,
		"bookingIds":      res.DeletedIDs,
		"executionTimeMs": time.Since(start).Milliseconds(),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// POST /api/cron/cleanup-abandoned-bookings
func (a *API) ManualCleanup(c *gin.Context) {
	var req cleanupRequest
	if c.Request.ContentLength != 0 {
		if !BindJSONOrError(c, &req) {
			return
		}
	}
	maxAge := a.AbandonThreshold
	if req.MaxAge > 0 {
		maxAge = time.Duration(req.MaxAge) * time.Minute
	}
	if maxAge <= 0 {
		maxAge = services.DefaultAbandonThreshold
	}

	res, err := a.Cleanup.Sweep(c.Request.Context(), maxAge, req.DryRun)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	if req.DryRun {
		c.JSON(http.StatusOK, gin.H{
			"dryRun":      true,
			"wouldDelete": len(res.Candidates),
			"bookingIds":  res.Candidates,
			"cutoff":      res.Cutoff,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"skipped":      res.Skipped,
		"deletedCount": res.DeletedCount,
		"bookingIds":   res.DeletedIDs,
	})
}
