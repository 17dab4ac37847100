// Package proxy rotates outgoing page loads across the configured proxies.
package proxy

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultCooldown is how long a proxy that failed a request is passed over.
const DefaultCooldown = 5 * time.Minute

// Pool hands out proxies round-robin, passing over those that failed recently.
type Pool struct {
	mu       sync.Mutex
	proxies  []string
	next     int
	benched  map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewPool builds a Pool from --proxy values. Entries without a scheme are
// taken as http proxies; entries that do not parse are dropped with a warning.
func NewPool(entries []string) *Pool {
	p := &Pool{
		benched:  make(map[string]time.Time),
		cooldown: DefaultCooldown,
		now:      time.Now,
	}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "://") {
			e = "http://" + e
		}
		if u, err := url.Parse(e); err != nil || u.Host == "" {
			log.Warn().Str("proxy", e).Msg("Ignoring malformed proxy")
			continue
		}
		p.proxies = append(p.proxies, e)
	}
	return p
}

// Len returns the number of usable proxies.
func (p *Pool) Len() int {
	return len(p.proxies)
}

// Next returns the next proxy not cooling down, or "" without proxies. When
// every proxy is cooling down the next one in turn is returned anyway.
func (p *Pool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.proxies)
	if n == 0 {
		return ""
	}
	now := p.now()
	for i := 0; i < n; i++ {
		candidate := p.proxies[(p.next+i)%n]
		if since, ok := p.benched[candidate]; ok {
			if now.Sub(since) < p.cooldown {
				continue
			}
			delete(p.benched, candidate)
		}
		p.next = (p.next + i + 1) % n
		return candidate
	}

	fallback := p.proxies[p.next]
	p.next = (p.next + 1) % n
	return fallback
}

// Failed benches proxy for the cooldown period.
func (p *Pool) Failed(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.benched[proxy] = p.now()
	log.Debug().Str("proxy", proxy).Dur("cooldown", p.cooldown).Msg("Proxy benched")
}

// Succeeded returns proxy to rotation.
func (p *Pool) Succeeded(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.benched, proxy)
}

type pinnedKey struct{}

// Transport is an http.Transport Proxy hook routing a request through the
// proxy pinned on it by Pin, or the environment's proxy otherwise.
func Transport(req *http.Request) (*url.URL, error) {
	if p, ok := req.Context().Value(pinnedKey{}).(string); ok && p != "" {
		return url.Parse(p)
	}
	return http.ProxyFromEnvironment(req)
}

// Pin routes req through proxy so a failure can be blamed on it.
func Pin(req *http.Request, proxy string) *http.Request {
	if proxy == "" {
		return req
	}
	return req.WithContext(context.WithValue(req.Context(), pinnedKey{}, proxy))
}
