// Package services defines the business logic of the service desk: the
// conversational workflow, the operator relay, channel-post ingestion with
// fan-out, subscriptions, settings and read paths.
//
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers. Translation
// into user-facing texts or HTTP status codes happens in the dispatcher and
// the handler layer.
package services

import "errors"

// Workflow errors.
var (
	// ErrNoActiveRequest is returned when submit is pressed without a live
	// document-collection session.
	ErrNoActiveRequest = errors.New("no active request")

	// ErrCategoryNotFound indicates the selected category does not exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrServiceNotFound indicates the selected service does not exist.
	ErrServiceNotFound = errors.New("service not found")

	// ErrTrackingCodeExhausted is returned when every generated tracking code
	// collided with an existing order.
	ErrTrackingCodeExhausted = errors.New("could not allocate a unique tracking code")

	// ErrMalformedUpdate is returned for updates without a sender or payload.
	ErrMalformedUpdate = errors.New("malformed update")
)

// Order and operator errors.
var (
	// ErrOrderNotFound indicates the tracking code does not resolve to an
	// order visible to the caller.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNotOperator is returned when a non-operator tries an operator action.
	ErrNotOperator = errors.New("not an operator")

	// ErrUserNotFound indicates a moderation target does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// Content, subscription and settings errors.
var (
	// ErrPostNotFound indicates the requested post was evicted or never existed.
	ErrPostNotFound = errors.New("post not found")

	// ErrEmptyKeyword is returned for blank search input.
	ErrEmptyKeyword = errors.New("search keyword is empty")

	// ErrEmptyTag is returned when a subscription toggle names no tag.
	ErrEmptyTag = errors.New("tag is empty")

	// ErrNotANumber is returned when a numeric setting receives other input.
	ErrNotANumber = errors.New("value is not a number")

	// ErrLimitOutOfRange is returned when a post limit is outside the allowed range.
	ErrLimitOutOfRange = errors.New("post limit out of range")
)
