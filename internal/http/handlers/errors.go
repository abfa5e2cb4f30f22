package handlers

import (
	"errors"
	"net/http"

	"staybackend/internal/domain"
	"staybackend/internal/http/middleware"
	"staybackend/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Details:   details,
		RequestID: middleware.GetRequestID(c),
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func (a *API) RespondDomainError(c *gin.Context, err error) {
	var (
		validation domain.ValidationError
		conflict   domain.ConflictError
		external   domain.ExternalServiceError
	)
	switch {
	case errors.As(err, &validation):
		var details any
		if validation.Field != "" {
			details = gin.H{"field": validation.Field}
		}
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), details)
	case domain.IsState(err):
		respondError(c, http.StatusBadRequest, "invalid_state", err.Error(), nil)
	case domain.IsAuthentication(err):
		respondError(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case domain.IsAuthorization(err):
		respondError(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &conflict):
		var details any
		if conflict.Details != nil {
			details = gin.H{"conflicts": conflict.Details}
		}
		respondError(c, http.StatusConflict, "conflict", err.Error(), details)
	case errors.As(err, &external) && external.Service != "database":
		utils.LogError(middleware.GetRequestID(c), "http", c.FullPath(), err)
		respondError(c, http.StatusBadGateway, "external_service_error", a.message(err, "payment provider unavailable"), nil)
	default:
		utils.LogError(middleware.GetRequestID(c), "http", c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "internal_error", a.message(err, "internal server error"), nil)
	}
}

func (a *API) message(err error, fallback string) string {
	if a.Production || err == nil {
		return fallback
	}
	return err.Error()
}
