// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Common engine errors
var (
	ErrBrowserNotFound = errors.New("chrome browser not found")
	ErrFetchTimeout    = errors.New("readiness marker did not appear in time")
	ErrNavigation      = errors.New("navigation failed")
	ErrInvalidURL      = errors.New("invalid URL")
	ErrParseError      = errors.New("failed to parse response")
	ErrPoolExhausted   = errors.New("no worker could be scheduled")
	ErrPoolClosed      = errors.New("browser pool is closed")

	// ErrMarkerAbsent is wrapped in a timeout when the page loaded completely
	// and the marker is not in it. Waiting longer will not change that.
	ErrMarkerAbsent = errors.New("marker absent from loaded page")
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeTimeout    ErrorCode = "TIMEOUT"
	ErrCodeNavigation ErrorCode = "NAVIGATION"
	ErrCodeValidation ErrorCode = "VALIDATION"
	ErrCodeParseError ErrorCode = "PARSE_ERROR"
	ErrCodeExhausted  ErrorCode = "POOL_EXHAUSTED"
)

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	switch {
	case e.Code == ErrCodeTimeout && target == ErrFetchTimeout:
		return true
	case e.Code == ErrCodeNavigation && target == ErrNavigation:
		return true
	case e.Code == ErrCodeExhausted && target == ErrPoolExhausted:
		return true
	case e.Code == ErrCodeValidation && target == ErrInvalidURL:
		return true
	case e.Code == ErrCodeParseError && target == ErrParseError:
		return true
	}
	return errors.Is(e.Underlying, target)
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Retry:      false,
		Details:    make(map[string]interface{}),
	}
}

// TimeoutError reports that the readiness marker never showed up for url.
func TimeoutError(url, marker string, err error) *EngineError {
	return NewEngineError(ErrCodeTimeout, "waiting for "+marker, err).
		WithDetail("url", url).
		WithDetail("marker", marker)
}

// NavigationError reports that url could not be loaded at all.
func NavigationError(url string, err error) *EngineError {
	return NewEngineError(ErrCodeNavigation, "loading "+url, err).
		WithRetry().
		WithDetail("url", url)
}

// WithRetry marks the error as retryable
func (e *EngineError) WithRetry() *EngineError {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// IsTimeout reports whether err is a readiness timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrFetchTimeout)
}

// IsNavigation reports whether err is a navigation failure.
func IsNavigation(err error) bool {
	return errors.Is(err, ErrNavigation)
}

// Retryable reports whether err was marked retryable anywhere in its chain.
func Retryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retry
	}
	return false
}
