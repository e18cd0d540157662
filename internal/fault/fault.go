// Package fault defines the closed error taxonomy used across Fathom and the
// classifier that maps raw upstream failures onto it.
//
// Every failure that crosses the tool boundary is rendered as a single line
// "<KIND>: <message>", never a stack trace. Classification is pure and
// order-sensitive: the first matching rule wins.
package fault

import (
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go/v2"
)

// Kind is one member of the closed error taxonomy.
type Kind string

const (
	// KindAuth is an authentication or authorization failure. Never retried.
	KindAuth Kind = "AUTH_ERROR"

	// KindRateLimit is a rate or quota rejection. Retryable with backoff.
	KindRateLimit Kind = "RATE_LIMIT"

	// KindSafety is a safety/moderation refusal.
	KindSafety Kind = "SAFETY_BLOCK"

	// KindContentBlocked is a generic content-policy rejection.
	KindContentBlocked Kind = "CONTENT_BLOCKED"

	// KindTimeout is a deadline exhaustion: either a transport timeout or a
	// client-side polling budget running out. For the latter the message
	// carries the job identifier so the caller can resume out of band.
	KindTimeout Kind = "TIMEOUT"

	// KindValidation is a locally detected parameter violation, raised
	// before any network call. Never retried.
	KindValidation Kind = "VALIDATION_ERROR"

	// KindAPI is the fallback for any other upstream failure.
	KindAPI Kind = "API_ERROR"

	// KindResearchFailed means a deep-research job reached the remote
	// "failed" state.
	KindResearchFailed Kind = "RESEARCH_FAILED"
)

// Error is a classified failure. It implements error with the canonical
// single-line "<KIND>: <message>" rendering.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New constructs an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and KindAPI
// otherwise.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindAPI
}

// Classify maps a raw failure onto the taxonomy. It inspects the upstream
// API error status code when one is present, then falls back to message
// substrings. Validation failures are raised locally before any remote call
// and never pass through here.
func Classify(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return &Error{Kind: KindAuth, Message: msg}
		case 429:
			return &Error{Kind: KindRateLimit, Message: msg}
		}
	}

	switch {
	case containsAny(lower, "api key", "unauthorized", "authentication", "invalid_api_key"):
		return &Error{Kind: KindAuth, Message: msg}
	case containsAny(lower, "rate limit", "rate_limit", "quota", "too many requests"):
		return &Error{Kind: KindRateLimit, Message: msg}
	case containsAny(lower, "safety", "moderation", "refused"):
		return &Error{Kind: KindSafety, Message: msg}
	case containsAny(lower, "content policy", "content_policy", "blocked"):
		return &Error{Kind: KindContentBlocked, Message: msg}
	case containsAny(lower, "deadline exceeded", "timed out", "timeout"):
		return &Error{Kind: KindTimeout, Message: msg}
	default:
		return &Error{Kind: KindAPI, Message: msg}
	}
}

// containsAny reports whether s contains at least one of the substrings.
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
