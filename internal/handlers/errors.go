package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/voyago/booking-backend/internal/services"
	"github.com/voyago/booking-backend/pkg/validator"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Field   string            `json:"field,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// respondError maps a service error onto its HTTP status and error code
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	resp := ErrorResponse{Message: err.Error()}

	var (
		verr *services.ValidationError
		rerr *services.RateLimitError
	)
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrInvalidTransition):
		status, code = http.StatusUnprocessableEntity, "invalid_transition"
	case errors.Is(err, services.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, services.ErrConflict):
		status, code = http.StatusConflict, "conflict"
		resp.Message = "Booking was modified concurrently. Reload it and try again."
	case errors.Is(err, services.ErrProviderRetryFailed):
		status, code = http.StatusBadGateway, "provider_retry_failed"
	case errors.As(err, &rerr):
		status, code = http.StatusTooManyRequests, "retry_limited"
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rerr.RetryAfter)))
	case errors.As(err, &verr):
		status, code = http.StatusBadRequest, "validation_error"
		resp.Field = verr.Field
	}

	resp.Error = code
	if status == http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		}).Error("Request failed")
		resp.Message = "An unexpected error occurred"
	}

	c.JSON(status, resp)
}

// respondBindingError reports a malformed or invalid request body
func respondBindingError(c *gin.Context, err error) {
	resp := ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request body",
	}
	if fields := validator.FieldErrors(err); fields != nil {
		resp.Message = "Request validation failed"
		resp.Fields = fields
	}
	c.JSON(http.StatusBadRequest, resp)
}

func retryAfterSeconds(at time.Time) int {
	seconds := int(time.Until(at).Seconds()) + 1
	if seconds < 1 {
		return 1
	}
	return seconds
}

func respondBadRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: code, Message: message})
}
