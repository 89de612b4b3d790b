// Package handlers provides the HTTP handler implementations for the public
// API.
//
// Every failure path goes through fail(), so all endpoints share one error
// envelope: a stable machine-readable code, a human-readable message, and the
// request id for log correlation. Rejected status transitions get the wider
// TransitionErrorResponse, which carries the current status, the requested
// status, and the caller's role so the client can explain the rejection
// without a follow-up request.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dowajoo/go-market-backend/internal/domain"
	"github.com/dowajoo/go-market-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope returned by every endpoint. It also
// backs the Swagger failure schemas.
type ErrorResponse struct {
	// echoed from X-Request-ID for log correlation
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// stable machine-readable code, see errors.go
	Code string `json:"code" example:"not_found"`
	// safe to show to users
	Message string `json:"message" example:"order not found"`
}

// TransitionErrorResponse is the envelope for a rejected status transition.
//
// It carries everything the client needs to explain the rejection without a
// follow-up request: which status the order is in, which status was asked
// for, and the role the caller held when the rule was evaluated.
type TransitionErrorResponse struct {
	RequestID       string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code            string `json:"code" example:"invalid_transition"`
	Message         string `json:"message" example:"cannot change order from delivered to in_progress as buyer"`
	CurrentStatus   string `json:"current_status" example:"delivered"`
	RequestedStatus string `json:"requested_status" example:"in_progress"`
	Role            string `json:"role" example:"buyer"`
}

// fail aborts the request with the standard envelope. 5xx responses are also
// logged through the request-scoped logger; 4xx are the client's problem and
// only appear in the access log.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail exposes fail() to the router for NoRoute/NoMethod fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failTransition aborts the request with a TransitionErrorResponse derived
// from a domain.TransitionError. Always a client error, never logged as 5xx.
func failTransition(c *gin.Context, te *domain.TransitionError) {
	c.AbortWithStatusJSON(http.StatusBadRequest, TransitionErrorResponse{
		RequestID:       c.Writer.Header().Get("X-Request-ID"),
		Code:            ErrCodeInvalidTransition,
		Message:         te.Error(),
		CurrentStatus:   string(te.CurrentStatus),
		RequestedStatus: string(te.RequestedStatus),
		Role:            string(te.Role),
	})
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
