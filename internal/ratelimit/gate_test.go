package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/quaero/internal/common"
)

func TestGate_AcquireAppliesJitter(t *testing.T) {
	gate := New(common.RateLimitConfig{
		RequestsPerMinute: 600,
		MinDelaySeconds:   0.05,
		MaxDelaySeconds:   0.05,
	})

	start := time.Now()
	err := gate.Acquire(context.Background(), "https://boards.example.com/jobs")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestGate_SeparatesOriginsByHost(t *testing.T) {
	gate := New(common.RateLimitConfig{RequestsPerMinute: 600, MinDelaySeconds: 0, MaxDelaySeconds: 0})

	require.NoError(t, gate.Acquire(context.Background(), "https://a.example.com/jobs"))
	require.NoError(t, gate.Acquire(context.Background(), "https://b.example.com/jobs"))

	stats := gate.Stats()
	require.Contains(t, stats, "https://a.example.com")
	require.Contains(t, stats, "https://b.example.com")
	assert.EqualValues(t, 1, stats["https://a.example.com"].Requests)
	assert.EqualValues(t, 1, stats["https://b.example.com"].Requests)
}

func TestGate_AcquireRespectsContextCancellation(t *testing.T) {
	gate := New(common.RateLimitConfig{RequestsPerMinute: 1, MinDelaySeconds: 5, MaxDelaySeconds: 5})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.NoError(t, gate.Acquire(context.Background(), "https://slow.example.com/jobs"))
	err := gate.Acquire(ctx, "https://slow.example.com/jobs")
	assert.Error(t, err)
}

func TestOriginOf(t *testing.T) {
	cases := map[string]string{
		"https://boards.greenhouse.io/acme/jobs/1": "https://boards.greenhouse.io",
		"http://example.com/careers":               "http://example.com",
		"not a url":                                 "not a url",
	}
	for input, want := range cases {
		assert.Equal(t, want, originOf(input))
	}
}
