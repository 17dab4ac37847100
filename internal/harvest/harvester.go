// Package harvest runs one unit of work per key with bounded concurrency and
// returns exactly one result per key, whatever happens to the individual workers.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/law-makers/shelf/internal/engine"
	"github.com/law-makers/shelf/internal/reqctx"
)

// DefaultLimit is the number of workers allowed to run at once when none is given.
const DefaultLimit = 10

// ErrNotScheduled is the cause recorded on results whose key was never handed to a worker.
var ErrNotScheduled = errors.New("harvest cancelled before key was scheduled")

// Worker produces the value for one key.
type Worker[T any] func(ctx context.Context, key string) (T, error)

// Option configures a Harvester.
type Option func(*settings)

type settings struct {
	logger   zerolog.Logger
	progress func(Status)
}

// WithLogger sets the logger used for per-key events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithProgress registers fn to be called once per result as it is produced.
// fn may be called from several goroutines at once.
func WithProgress(fn func(Status)) Option {
	return func(s *settings) {
		s.progress = fn
	}
}

// Harvester fans a worker out over a list of keys.
type Harvester[T any] struct {
	limit int
	settings
}

// New creates a Harvester running at most limit workers at a time.
// A limit <= 0 selects DefaultLimit.
func New[T any](limit int, opts ...Option) *Harvester[T] {
	if limit <= 0 {
		limit = DefaultLimit
	}
	h := &Harvester[T]{
		limit:    limit,
		settings: settings{logger: log.Logger},
	}
	for _, opt := range opts {
		opt(&h.settings)
	}
	return h
}

// Limit returns the concurrency limit.
func (h *Harvester[T]) Limit() int {
	return h.limit
}

// Harvest runs worker for every key and blocks until all of them are accounted for.
//
// Worker errors and panics become failure results. Once ctx is cancelled no new
// key is scheduled; running workers finish and the rest are returned as cancelled.
// The only error returned is one wrapping engine.ErrPoolExhausted, when not a
// single key could be scheduled; the fully-cancelled set is returned with it.
func (h *Harvester[T]) Harvest(ctx context.Context, keys []string, worker Worker[T]) (*ResultSet[T], error) {
	if ctx == nil {
		ctx = context.Background()
	}

	rs := &ResultSet[T]{Results: make([]Result[T], 0, len(keys))}
	if len(keys) == 0 {
		return rs, nil
	}

	start := time.Now()
	scheduled := 0
	for r := range h.Stream(ctx, keys, worker) {
		if r.Status == StatusCancelled {
			rs.Cancelled = true
		} else {
			scheduled++
		}
		rs.Results = append(rs.Results, r)
	}

	h.logger.Debug().
		Int("keys", len(keys)).
		Int("succeeded", rs.Successes()).
		Int("failed", rs.Failures()).
		Int("skipped", rs.Skipped()).
		Dur("duration", time.Since(start)).
		Msg("Harvest finished")

	if scheduled == 0 {
		err := engine.NewEngineError(engine.ErrCodeExhausted, "no worker could be scheduled", context.Cause(ctx)).
			WithDetail("keys", len(keys))
		return rs, fmt.Errorf("harvesting %d keys: %w", len(keys), err)
	}

	return rs, nil
}

// Stream is Harvest without the barrier: results are delivered as they complete
// and the channel is closed after exactly len(keys) results.
func (h *Harvester[T]) Stream(ctx context.Context, keys []string, worker Worker[T]) <-chan Result[T] {
	if ctx == nil {
		ctx = context.Background()
	}

	out := make(chan Result[T], len(keys))
	go func() {
		defer close(out)
		h.run(ctx, keys, worker, out)
	}()
	return out
}

func (h *Harvester[T]) run(ctx context.Context, keys []string, worker Worker[T], out chan<- Result[T]) {
	sem := semaphore.NewWeighted(int64(h.limit))
	var wg sync.WaitGroup

	for i, key := range keys {
		if ctx.Err() != nil || sem.Acquire(ctx, 1) != nil {
			h.logger.Debug().
				Int("scheduled", i).
				Int("skipped", len(keys)-i).
				Msg("Harvest cancelled, not scheduling remaining keys")
			for j := i; j < len(keys); j++ {
				h.emit(out, Result[T]{
					Index:  j,
					Key:    keys[j],
					Err:    ErrNotScheduled,
					Status: StatusCancelled,
				})
			}
			break
		}

		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			defer sem.Release(1)
			h.emit(out, h.execute(ctx, i, key, worker))
		}(i, key)
	}

	wg.Wait()
}

// execute runs one worker. In-flight work is detached from ctx cancellation so
// it completes or fails on its own bound.
func (h *Harvester[T]) execute(ctx context.Context, i int, key string, worker Worker[T]) (res Result[T]) {
	res = Result[T]{Index: i, Key: key}

	wctx := reqctx.WithRequestContext(context.WithoutCancel(ctx), key)
	logger := reqctx.Logger(wctx, h.logger)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			var zero T
			res.Value = zero
			res.Err = reqctx.NewRequestError(wctx, fmt.Errorf("worker panic: %v", p))
			res.Status = StatusFailure
			logger.Error().Interface("panic", p).Msg("Worker panicked")
		}
	}()

	value, err := worker(wctx, key)
	if err != nil {
		res.Err = reqctx.NewRequestError(wctx, err)
		res.Status = StatusFailure
		logger.Warn().Err(err).Dur("duration", time.Since(start)).Msg("Worker failed")
		return res
	}

	res.Value = value
	res.Status = StatusSuccess
	logger.Debug().Dur("duration", time.Since(start)).Msg("Worker finished")
	return res
}

func (h *Harvester[T]) emit(out chan<- Result[T], r Result[T]) {
	out <- r
	if h.progress != nil {
		h.progress(r.Status)
	}
}
