// Package apperr defines the error categories surfaced by the HTTP API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrUpstream    = errors.New("upstream service failure")
	ErrExtraction  = errors.New("text extraction failed")
)

// ValidationError carries field-level messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Validation builds a ValidationError for a single field.
func Validation(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// NotFound reports a missing resource of the given kind.
func NotFound(kind string) error {
	return fmt.Errorf("%s %w", kind, ErrNotFound)
}

// Upstream categories exposed to clients.
const (
	CategoryAccessDenied   = "access_denied"
	CategoryNotFound       = "not_found"
	CategoryInvalidRequest = "invalid_request"
	CategoryThrottled      = "throttled"
	CategoryUnavailable    = "unavailable"
)

var upstreamMessages = map[string]string{
	CategoryAccessDenied:   "the AI service rejected our credentials",
	CategoryNotFound:       "the requested AI resource is not available",
	CategoryInvalidRequest: "the AI service rejected the request",
	CategoryThrottled:      "the AI service is busy, please retry shortly",
	CategoryUnavailable:    "the AI service is unavailable",
}

// UpstreamError wraps a failure returned by a remote AI provider.
type UpstreamError struct {
	Service  string
	Category string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Service, e.Category)
	}
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Category, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// PublicMessage is safe to show to end users.
func (e *UpstreamError) PublicMessage() string {
	if msg, ok := upstreamMessages[e.Category]; ok {
		return msg
	}
	return upstreamMessages[CategoryUnavailable]
}

// Upstream builds an UpstreamError.
func Upstream(service, category string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Category: category, Err: err}
}

// ExtractionError records why a single file could not be turned into text.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExtraction}
	}
	return []error{ErrExtraction, e.Err}
}

// Status maps an error onto an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Category returns a short label used for logging and auditing.
func Category(err error) string {
	var up *UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limit"
	case errors.As(err, &up):
		return "upstream:" + up.Category
	case errors.Is(err, ErrExtraction):
		return "extraction"
	default:
		return "internal"
	}
}
