// Package ratelimit paces page loads so concurrent workers pointed at one
// storefront reach it at a fixed rate.
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Default pacing when a limiter is created without positive values.
const (
	DefaultRPS   = 5.0
	DefaultBurst = 10
)

// Limiter is what the fetchers need: block until rawURL may be loaded.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// HostLimiter keeps one token bucket per host, shared by every worker.
type HostLimiter struct {
	rps     rate.Limit
	burst   int
	buckets sync.Map // host -> *rate.Limiter
}

// NewHostLimiter allows rps page loads per second per host, with bursts of burst.
func NewHostLimiter(rps float64, burst int) *HostLimiter {
	if rps <= 0 {
		rps = DefaultRPS
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &HostLimiter{rps: rate.Limit(rps), burst: burst}
}

// Wait blocks until rawURL's host has a token or ctx is done. URLs without a
// host pass straight through; loading them reports the real problem.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	if host == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	if err := l.bucket(host).Wait(ctx); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		log.Debug().Str("host", host).Dur("waited", waited).Msg("Throttled page load")
	}
	return nil
}

// Allow takes a token for rawURL's host if one is available right now.
func (l *HostLimiter) Allow(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return true
	}
	return l.bucket(host).Allow()
}

// Hosts returns how many hosts have a bucket.
func (l *HostLimiter) Hosts() int {
	n := 0
	l.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (l *HostLimiter) bucket(host string) *rate.Limiter {
	if b, ok := l.buckets.Load(host); ok {
		return b.(*rate.Limiter)
	}
	b, _ := l.buckets.LoadOrStore(host, rate.NewLimiter(l.rps, l.burst))
	return b.(*rate.Limiter)
}

// hostOf returns the lowercase host of rawURL without its port, or "".
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
