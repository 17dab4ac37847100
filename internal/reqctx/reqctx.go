// Package reqctx tags contexts with the ids of a run and of each page fetched
// in it, so log lines and failures from concurrent workers can be told apart.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

// RequestContext identifies one fetch (or the run itself) within a CLI invocation.
type RequestContext struct {
	RequestID string
	RunID     string
	Key       string
	StartTime time.Time
}

// Elapsed returns the time since the request started.
func (rc *RequestContext) Elapsed() time.Duration {
	return time.Since(rc.StartTime)
}

// WithRun starts a run and returns its id. The run id doubles as the request id
// of work done outside any harvest worker.
func WithRun(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, ctxKey{}, &RequestContext{
		RequestID: id,
		RunID:     id,
		StartTime: time.Now(),
	}), id
}

// WithRequestContext starts a request for key inside whatever run ctx carries.
func WithRequestContext(ctx context.Context, key string) context.Context {
	rc := &RequestContext{
		RequestID: uuid.NewString(),
		Key:       key,
		StartTime: time.Now(),
	}
	if parent, ok := ctx.Value(ctxKey{}).(*RequestContext); ok {
		rc.RunID = parent.RunID
	}
	return context.WithValue(ctx, ctxKey{}, rc)
}

// GetRequestContext returns the request carried by ctx, or one with id "unknown".
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(ctxKey{}).(*RequestContext); ok {
		return rc
	}
	return &RequestContext{RequestID: "unknown", StartTime: time.Now()}
}

// Logger returns l with the ids carried by ctx attached.
func Logger(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	rc := GetRequestContext(ctx)
	lc := l.With().Str("request_id", rc.RequestID)
	if rc.RunID != "" && rc.RunID != rc.RequestID {
		lc = lc.Str("run_id", rc.RunID)
	}
	if rc.Key != "" {
		lc = lc.Str("key", rc.Key)
	}
	return lc.Logger()
}

// RequestError is a failure tagged with the request that produced it.
type RequestError struct {
	RequestID string
	Key       string
	Elapsed   time.Duration
	Err       error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RequestID, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError tags err with the request carried by ctx.
func NewRequestError(ctx context.Context, err error) error {
	rc := GetRequestContext(ctx)
	return &RequestError{
		RequestID: rc.RequestID,
		Key:       rc.Key,
		Elapsed:   rc.Elapsed(),
		Err:       err,
	}
}
