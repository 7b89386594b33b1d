// Package session binds the Rate Gate and HTTP Fetcher into the single
// handle the HTML fallback path uses, so every request it issues --
// the listing page and every individual job posting -- is serialised
// through the same per-origin limiter.
package session

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
)

// Session implements interfaces.Fetcher by acquiring the rate gate before
// delegating each request to the underlying fetcher.
type Session struct {
	gate    interfaces.RateGate
	fetcher interfaces.Fetcher
}

// New wires a session from the shared rate gate and HTTP fetcher.
func New(gate interfaces.RateGate, fetcher interfaces.Fetcher) *Session {
	return &Session{gate: gate, fetcher: fetcher}
}

// Get acquires the rate gate for rawURL's origin, then delegates to the
// underlying fetcher.
func (s *Session) Get(ctx context.Context, rawURL string, headers map[string]string, params map[string]string, log arbor.ILogger) ([]byte, error) {
	if err := s.gate.Acquire(ctx, rawURL); err != nil {
		return nil, err
	}
	return s.fetcher.Get(ctx, rawURL, headers, params, log)
}

// Post acquires the rate gate for rawURL's origin, then delegates to the
// underlying fetcher.
func (s *Session) Post(ctx context.Context, rawURL string, headers map[string]string, body []byte, log arbor.ILogger) ([]byte, error) {
	if err := s.gate.Acquire(ctx, rawURL); err != nil {
		return nil, err
	}
	return s.fetcher.Post(ctx, rawURL, headers, body, log)
}

var _ interfaces.Fetcher = (*Session)(nil)
