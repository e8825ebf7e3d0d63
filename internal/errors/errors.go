// Package errors defines the indexer error taxonomy: transient provider
// failures that are retried forever, fatal failures that abort immediately,
// and categorized errors surfaced by the API layer.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryTransient represents recoverable provider errors (rate limits,
	// gateway timeouts, network blips); retried with backoff, never surfaced
	// as a permanent failure.
	CategoryTransient ErrorCategory = "transient"
	// CategoryFatal represents unrecoverable provider errors (malformed
	// request, auth failure)
	CategoryFatal ErrorCategory = "fatal"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
)

// CategorizedError carries a category and HTTP status alongside the cause.
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// NewTransient wraps a recoverable provider error.
func NewTransient(op string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryTransient,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "PROVIDER_TRANSIENT",
		Message:    fmt.Sprintf("transient provider error during %s", op),
		Cause:      cause,
	}
}

// NewFatal wraps an unrecoverable provider or configuration error.
func NewFatal(op string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryFatal,
		StatusCode: http.StatusInternalServerError,
		Code:       "PROVIDER_FATAL",
		Message:    fmt.Sprintf("fatal error during %s", op),
		Cause:      cause,
	}
}

// NewDatabaseError wraps a database failure.
func NewDatabaseError(op string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", op),
		Cause:      cause,
	}
}

// NewNotFound creates a not-found error for the API layer.
func NewNotFound(what string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", what),
	}
}

// transientMarkers are substrings that identify recoverable upstream errors.
// RPC providers are inconsistent about error shapes, so string matching is
// the pragmatic classification alongside net.Error checks.
var transientMarkers = []string{
	"429",
	"too many requests",
	"rate limit",
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"broken pipe",
	"502",
	"503",
	"bad gateway",
	"service unavailable",
	"eof",
	"deadlock",
}

// resultLimitMarkers identify a provider rejecting a log query whose block
// range matched too many results or too large a response. Retrying the same
// range cannot succeed; the caller must shrink it. Provider phrasings vary
// as much as the transient ones do, hence substring matching again.
var resultLimitMarkers = []string{
	"query returned more than",
	"response size exceeded",
	"result set too large",
	"too many logs",
	"block range is too wide",
	"exceed maximum block range",
}

// IsResultLimit reports whether a provider refused a log query over its
// result or payload limit. Such errors are chunk-local: not retryable as-is,
// not fatal to the process.
func IsResultLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range resultLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsTransient reports whether an error should be retried with backoff.
// Context cancellation is never transient: the caller is shutting down.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// A per-call deadline firing is a hung upstream call, not a shutdown.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category == CategoryTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsFatal reports whether an error must abort the process.
func IsFatal(err error) bool {
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category == CategoryFatal
	}
	return false
}

// HTTPStatus maps an error to the status code the API layer should return.
func HTTPStatus(err error) int {
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}
