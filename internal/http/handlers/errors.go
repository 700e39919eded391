// Package handlers defines the stable error codes returned in the
// ErrorResponse envelope. Clients branch on the code, not the message.
package handlers

// Generic codes, shared with the middleware that rejects requests before a
// handler runs (auth, rate limiting, fallbacks).
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"

	// Desk-specific:

	// ErrCodeMalformedUpdate: the update has no sender or the post no message id.
	ErrCodeMalformedUpdate = "malformed_update"
	// ErrCodeUnknownAction: the callback data names no known action.
	ErrCodeUnknownAction = "unknown_action"
	// ErrCodeUpdateFailed and ErrCodeIngestFailed are retryable 500s.
	ErrCodeUpdateFailed = "update_failed"
	ErrCodeIngestFailed = "ingest_failed"
	ErrCodeEmptyKeyword = "empty_keyword"
)
