// Package ratelimit serialises outbound requests to a single origin,
// composing a per-minute ceiling with randomized inter-request jitter so
// concurrent workers never hammer one career site in lockstep.
package ratelimit

import (
	"context"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/interfaces"
)

// Gate implements interfaces.RateGate with one token-bucket limiter per
// origin (scheme+host), lazily created on first use.
type Gate struct {
	mu          sync.Mutex
	origins     map[string]*originLimiter
	rps         rate.Limit
	burst       int
	minJitter   time.Duration
	maxJitter   time.Duration
}

type originLimiter struct {
	limiter     *rate.Limiter
	mu          sync.Mutex
	requests    int64
	windowStart time.Time
	lastRequest time.Time
}

// New creates a rate gate from the scheduler's ratelimit configuration.
// RequestsPerMinute becomes the token-bucket refill rate; Min/MaxDelaySeconds
// bound the jitter sleep applied after every acquired token.
func New(cfg common.RateLimitConfig) *Gate {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 20
	}
	return &Gate{
		origins:   make(map[string]*originLimiter),
		rps:       rate.Limit(float64(perMinute) / 60.0),
		burst:     1,
		minJitter: cfg.MinDelay(),
		maxJitter: cfg.MaxDelay(),
	}
}

// Acquire blocks until rawURL's origin is clear to fire, then sleeps a random
// jitter interval within [minJitter, maxJitter] before returning.
func (g *Gate) Acquire(ctx context.Context, rawURL string) error {
	origin := originOf(rawURL)

	g.mu.Lock()
	ol, exists := g.origins[origin]
	if !exists {
		ol = &originLimiter{
			limiter:     rate.NewLimiter(g.rps, g.burst),
			windowStart: time.Now(),
		}
		g.origins[origin] = ol
	}
	g.mu.Unlock()

	if err := ol.limiter.Wait(ctx); err != nil {
		return err
	}

	ol.mu.Lock()
	ol.requests++
	ol.lastRequest = time.Now()
	ol.mu.Unlock()

	jitter := g.jitter()
	if jitter <= 0 {
		return nil
	}

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// jitter picks a uniform random duration in [minJitter, maxJitter].
func (g *Gate) jitter() time.Duration {
	if g.maxJitter <= g.minJitter {
		return g.minJitter
	}
	span := g.maxJitter - g.minJitter
	return g.minJitter + time.Duration(rand.Int63n(int64(span)))
}

// Stats returns a snapshot of every origin this gate has seen traffic for.
func (g *Gate) Stats() map[string]interfaces.OriginStats {
	g.mu.Lock()
	origins := make([]string, 0, len(g.origins))
	limiters := make([]*originLimiter, 0, len(g.origins))
	for o, ol := range g.origins {
		origins = append(origins, o)
		limiters = append(limiters, ol)
	}
	g.mu.Unlock()

	out := make(map[string]interfaces.OriginStats, len(origins))
	for i, o := range origins {
		ol := limiters[i]
		ol.mu.Lock()
		out[o] = interfaces.OriginStats{
			Requests:    ol.requests,
			WindowStart: ol.windowStart,
			LastRequest: ol.lastRequest,
		}
		ol.mu.Unlock()
	}
	return out
}

// originOf reduces a URL to its scheme+host rate-limiting key.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

var _ interfaces.RateGate = (*Gate)(nil)
