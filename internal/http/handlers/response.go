// Package handlers implements the HTTP endpoints: the webhook ingress that
// feeds user updates and channel posts into the dispatcher, and the operator
// API.
//
// This file holds the response helpers shared by every endpoint.
//
// Conventions:
//   - Every error leaves through fail() as an ErrorResponse with a stable
//     `code` from errors.go. Clients branch on the code, never the message.
//   - fail() logs 5xx responses through the request-scoped logger, so the
//     log line carries the same request id as the response.
//   - ok() and noContent() write success bodies. Success bodies are plain
//     JSON objects with no envelope.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "order not found"
//	}
//
// Example success response:
//
//	HTTP/1.1 200 OK
//	{ "code": "ab12cd34", "status": "completed" }
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-service-desk/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
//
// Fields:
//   - RequestID: echoed from the X-Request-ID response header, used to find
//     the matching server log line.
//   - Code: stable, machine-readable (see errors.go).
//   - Message: human-readable, safe to show to operators.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"order not found"`
}

// fail aborts the request with a structured error and logs server-side errors.
//
// It writes an ErrorResponse with the given status and stops the handler
// chain. Statuses >= 500 are logged at error level with the code and message;
// the underlying error is attached by callers via c.Error so the access log
// records it too.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON with status.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an empty 204.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
