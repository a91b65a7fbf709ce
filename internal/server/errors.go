package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	fulfillmentdomain "github.com/smallbiznis/marketfill/internal/fulfillment/domain"
	marketplacedomain "github.com/smallbiznis/marketfill/internal/marketplace/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var v *ValidationErrors
	if errors.As(err, &v) {
		return v
	}
	return nil
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, marketplacedomain.ErrSubscriptionNotFound),
		errors.Is(err, marketplacedomain.ErrOperationNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, fulfillmentdomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "invalid_transition",
			Message: err.Error(),
		}
	case errors.Is(err, fulfillmentdomain.ErrOperationPendingUpstream):
		return http.StatusConflict, errorPayload{
			Type:    "operation_pending",
			Message: "an operation is still pending upstream, retry once it completes",
		}
	case errors.Is(err, marketplacedomain.ErrMalformedOperationLocation):
		return http.StatusBadGateway, errorPayload{
			Type:    "upstream_error",
			Message: "the marketplace returned an unusable operation location",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog labels request errors for the access log.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case asValidationErrors(err) != nil:
		return "validation_error", "invalid_request"
	case errors.Is(err, ErrUnauthorized):
		return "auth_error", "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "auth_error", "forbidden"
	case errors.Is(err, marketplacedomain.ErrSubscriptionNotFound):
		return "not_found", "subscription_not_found"
	case errors.Is(err, marketplacedomain.ErrOperationNotFound):
		return "not_found", "operation_not_found"
	case errors.Is(err, fulfillmentdomain.ErrInvalidTransition):
		return "conflict", "invalid_transition"
	case errors.Is(err, fulfillmentdomain.ErrOperationPendingUpstream):
		return "conflict", "operation_pending"
	case errors.Is(err, marketplacedomain.ErrMalformedOperationLocation):
		return "upstream_error", "malformed_operation_location"
	default:
		return "internal_error", "internal"
	}
}
