// Package retry provides the generic executor that races an operation
// against a per-attempt deadline and retries transient failures with
// deterministic exponential backoff.
//
// Retryability is decided per failed attempt: recognised transport-transient
// signals (HTTP 429/502/503, connection resets, timeouts, DNS failures) and
// case-insensitive substring matches against the policy's patterns are
// retried; typed AUTH_ERROR and VALIDATION_ERROR failures never are. Backoff
// growth is deterministic, without jitter, because call volume at this layer is
// one in-flight request per tool invocation.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	oai "github.com/openai/openai-go/v2"

	"github.com/fathom-mcp/fathom/internal/fault"
)

// Policy holds the tuning knobs for [Do].
type Policy struct {
	// MaxRetries is the number of re-attempts after the first try. Zero
	// means a single attempt.
	MaxRetries int

	// InitialDelay is the sleep before the first retry. Default: 1s.
	InitialDelay time.Duration

	// MaxDelay caps the backoff growth. Default: 30s.
	MaxDelay time.Duration

	// BackoffMultiplier scales the delay after each retry. Default: 2.
	BackoffMultiplier float64

	// RetryablePatterns are case-insensitive substrings that mark a failure
	// message as transient, in addition to the built-in transport signals.
	RetryablePatterns []string

	// PerAttemptTimeout bounds each individual attempt. Zero disables the
	// per-attempt race (the caller's context still applies).
	PerAttemptTimeout time.Duration

	// OnRetry, when set, observes every retry decision just before the
	// backoff sleep. Used to feed metrics; must not block.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// TransientPatterns is the default pattern set for upstream model calls.
var TransientPatterns = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"server overloaded",
	"overloaded",
	"service unavailable",
	"bad gateway",
	"temporarily",
}

// withDefaults fills zero-valued knobs.
func (p Policy) withDefaults() Policy {
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.BackoffMultiplier <= 1 {
		p.BackoffMultiplier = 2
	}
	return p
}

// Do executes fn under the policy. name labels the operation in log events.
//
// Each attempt runs with its own deadline when PerAttemptTimeout is set; an
// attempt that exceeds it fails with a TIMEOUT fault and is subject to the
// same retry decision as any other failure. A non-retryable failure, an
// exhausted retry budget, or cancellation of the caller's context propagates
// the error immediately.
func Do[T any](ctx context.Context, name string, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	delay := p.InitialDelay

	var zero T
	for attempt := 0; ; attempt++ {
		v, err := runAttempt(ctx, p.PerAttemptTimeout, fn)
		if err == nil {
			if attempt > 0 {
				slog.Info("retry: succeeded after retries", "op", name, "attempts", attempt+1)
			}
			return v, nil
		}

		retryable := Retryable(err, p.RetryablePatterns)
		slog.Debug("retry: attempt failed",
			"op", name,
			"attempt", attempt+1,
			"retryable", retryable,
			"err", err,
		)

		if !retryable || attempt >= p.MaxRetries {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		slog.Info("retry: backing off", "op", name, "attempt", attempt+1, "delay", delay)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.BackoffMultiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}

// attemptResult pairs an attempt's value and error for the deadline race.
type attemptResult[T any] struct {
	val T
	err error
}

// runAttempt races one invocation of fn against the per-attempt timeout.
// The goroutine running fn is left to finish on its own after a timeout; its
// context is cancelled so a well-behaved operation returns promptly.
func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan attemptResult[T], 1)
	go func() {
		v, err := fn(attemptCtx)
		ch <- attemptResult[T]{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-attemptCtx.Done():
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fault.New(fault.KindTimeout, "attempt exceeded %s deadline", timeout)
	}
}

// Retryable reports whether err is worth another attempt. Typed auth and
// validation faults are final; recognised transport-transient status codes
// and net-level signals are transient; otherwise patterns decide.
func Retryable(err error, patterns []string) bool {
	if err == nil {
		return false
	}

	var fe *fault.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case fault.KindAuth, fault.KindValidation:
			return false
		case fault.KindRateLimit, fault.KindTimeout:
			return true
		}
	}

	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 502, 503:
			return true
		case 400, 401, 403, 404:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	lower := strings.ToLower(err.Error())
	for _, pat := range append([]string{"connection reset", "connection refused", "broken pipe", "no such host", "timed out", "timeout"}, patterns...) {
		if strings.Contains(lower, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}
