// Package retry repeats page fetches that failed for reasons that may not
// hold on the next attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/shelf/internal/engine"
)

// Policy controls how often and how patiently an operation is repeated.
type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean a single attempt.
	MaxAttempts int
	// Backoff is the wait after the first failure; it doubles per attempt up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// RetryStatus lists the HTTP statuses worth another attempt.
	RetryStatus []int
}

// DefaultPolicy returns three attempts starting at a one second backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     time.Second,
		MaxBackoff:  30 * time.Second,
		RetryStatus: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// Do calls fn until it succeeds, fails with an error not worth repeating,
// runs out of attempts or ctx is done.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := max(p.MaxAttempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			if attempt > 1 {
				log.Debug().Int("attempts", attempt).Msg("Succeeded after retry")
			}
			return nil
		}
		if !p.retryable(err) {
			log.Debug().Err(err).Msg("Not retrying")
			return err
		}
		if attempt == attempts {
			break
		}

		wait := p.backoff(attempt)
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", wait).
			Msg("Retrying")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if attempts == 1 {
		return err
	}
	log.Warn().Int("attempts", attempts).Err(err).Msg("Giving up")
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

// backoff returns the wait after the given failed attempt (1-based).
func (p Policy) backoff(attempt int) time.Duration {
	wait := p.Backoff
	for i := 1; i < attempt; i++ {
		wait *= 2
		if p.MaxBackoff > 0 && wait >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && wait > p.MaxBackoff {
		return p.MaxBackoff
	}
	return wait
}

// retryable: an HTTP status decides by RetryStatus, a marker missing from a
// loaded page stays missing, a marker timeout may be a slow render, and
// otherwise engine errors carry their own verdict.
func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, engine.ErrMarkerAbsent) {
		return false
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return slices.Contains(p.RetryStatus, sc.GetStatusCode())
	}
	if engine.IsTimeout(err) {
		return true
	}
	if errors.As(err, new(*engine.EngineError)) {
		return engine.Retryable(err)
	}
	return true
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	GetStatusCode() int
}

// StatusError is an HTTP response that was not a success.
type StatusError struct {
	Code   int
	Detail string
}

// NewStatusError returns a StatusError for code; detail is usually the URL.
func NewStatusError(code int, detail string) StatusError {
	return StatusError{Code: code, Detail: detail}
}

func (e StatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// GetStatusCode implements StatusCoder.
func (e StatusError) GetStatusCode() int {
	return e.Code
}
