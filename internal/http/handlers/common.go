package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"

	"github.com/gin-gonic/gin"
)

// BindJSONOrError ensures body is present and parsable.
func BindJSONOrError[T any](c *gin.Context, dst *T) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "request body is empty", nil)
		return false
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid JSON payload", nil)
		return false
	}
	return true
}

// paramID reads a positive int64 path parameter.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid "+name, gin.H{"field": name})
		return 0, false
	}
	return id, true
}

// queryID reads a required positive int64 query parameter.
func queryID(c *gin.Context, name string) (int64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		respondError(c, http.StatusBadRequest, "validation_error", name+" is required", gin.H{"field": name})
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "invalid "+name, gin.H{"field": name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryDate(c *gin.Context, name string) (models.Date, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, domain.ValidationError{Field: name, Msg: "must be YYYY-MM-DD", Err: err}
	}
	return d, nil
}

// bookingFilter parses status, start_date, end_date, page and limit.
func bookingFilter(c *gin.Context) (models.BookingFilter, error) {
	from, err := queryDate(c, "start_date")
	if err != nil {
		return models.BookingFilter{}, err
	}
	to, err := queryDate(c, "end_date")
	if err != nil {
		return models.BookingFilter{}, err
	}
	return models.BookingFilter{
		Status: models.BookingStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		From:   from,
		To:     to,
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 0),
	}, nil
}

func queryBool(c *gin.Context, name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return err == nil && v
}
