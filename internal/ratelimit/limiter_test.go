package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestHostLimiter_BurstThenBlock(t *testing.T) {
	l := NewHostLimiter(1, 2)

	if !l.Allow("https://www.naiin.com/product/detail/1") {
		t.Fatal("first request should be allowed")
	}
	if !l.Allow("https://WWW.NAIIN.COM:443/product/detail/2") {
		t.Fatal("second request should be allowed (burst 2)")
	}
	if l.Allow("https://www.naiin.com/product/detail/3") {
		t.Fatal("third request should be throttled")
	}

	if !l.Allow("https://example.com/") {
		t.Fatal("different host should have its own bucket")
	}
	if l.Hosts() != 2 {
		t.Errorf("expected 2 host buckets, got %d", l.Hosts())
	}
}

func TestHostLimiter_WaitHonoursContext(t *testing.T) {
	l := NewHostLimiter(0.1, 1)
	l.Allow("https://example.com/a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "https://example.com/b"); err == nil {
		t.Fatal("expected Wait to fail once the context expires")
	}
}

func TestHostLimiter_NoHostPassesThrough(t *testing.T) {
	l := NewHostLimiter(1, 1)
	if err := l.Wait(context.Background(), "::not a url"); err != nil {
		t.Fatalf("invalid URLs should pass through, got %v", err)
	}
	if err := l.Wait(context.Background(), "/relative/path"); err != nil {
		t.Fatalf("relative URLs should pass through, got %v", err)
	}
	if l.Hosts() != 0 {
		t.Errorf("expected no buckets, got %d", l.Hosts())
	}
}

func TestNewHostLimiter_Defaults(t *testing.T) {
	l := NewHostLimiter(0, 0)
	if float64(l.rps) != DefaultRPS || l.burst != DefaultBurst {
		t.Errorf("unexpected defaults %v/%d", l.rps, l.burst)
	}
}
