package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/ent0n29/personachat/internal/ratelimit"
	"github.com/ent0n29/personachat/internal/reliability"
)

var (
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrMissingField     = errors.New("missing required field")
	ErrUnknownDomain    = errors.New("unknown domain")
	ErrUpstream         = errors.New("upstream failure")
)

// RateLimitError carries the limiter decision for a rejected request.
type RateLimitError struct {
	Decision ratelimit.Decision
	At       time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: %d requests per window", ErrRateLimited, e.Decision.Limit)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

func (e *RateLimitError) RetryAfter() time.Duration {
	return e.Decision.RetryAfter(e.At)
}

// UpstreamError wraps a failed completion call. Its details are for
// operators; callers only ever see the masked response.
type UpstreamError struct {
	Err   error
	Class reliability.Classification
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%v (%s): %v", ErrUpstream, e.Class.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

// Outcome labels err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMethodNotAllowed):
		return "method_not_allowed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrUnknownDomain):
		return "unknown_domain"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "internal_error"
	}
}
