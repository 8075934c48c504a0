package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	identitydomain "github.com/everafterhq/everafter/internal/identity/domain"
	paymentdomain "github.com/everafterhq/everafter/internal/payment/domain"
	signupdomain "github.com/everafterhq/everafter/internal/signup/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

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

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}

	case errors.Is(err, signupdomain.ErrSlugReserved),
		errors.Is(err, signupdomain.ErrSlugTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "slug is not available",
			Errors: []ValidationError{
				{Field: "slug", Code: "slug_unavailable", Message: "slug is not available"},
			},
		}

	case errors.Is(err, signupdomain.ErrSlugConflictPostPayment):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    "SLUG_CONFLICT_POST_PAYMENT",
			Message: "the chosen address was claimed while payment was in progress; support has been notified",
		}

	case errors.Is(err, signupdomain.ErrAccountExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Code:    "ACCOUNT_EXISTS",
			Message: "an account with this email already exists",
		}

	case errors.Is(err, signupdomain.ErrPaymentNotCompleted):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Code:    "PAYMENT_NOT_COMPLETED",
			Message: "payment has not completed",
		}

	case errors.Is(err, signupdomain.ErrSignupNotFound),
		errors.Is(err, paymentdomain.ErrSessionNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}

	case errors.Is(err, paymentdomain.ErrInvalidSignature),
		errors.Is(err, paymentdomain.ErrInvalidPayload):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid webhook payload",
		}

	case errors.Is(err, paymentdomain.ErrGatewayFailure),
		errors.Is(err, identitydomain.ErrGatewayFailure):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "upstream provider unavailable",
		}

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, signupdomain.ErrInvalidEmail),
		errors.Is(err, signupdomain.ErrInvalidPassword),
		errors.Is(err, signupdomain.ErrInvalidPartnerNames),
		errors.Is(err, signupdomain.ErrInvalidSlug),
		errors.Is(err, signupdomain.ErrInvalidTheme):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
