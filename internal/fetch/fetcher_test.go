package fetch

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/quaero/internal/common"
)

func testRetryConfig() common.RetryConfig {
	return common.RetryConfig{
		Attempts:     3,
		DelaySeconds: 0.01,
		Backoff:      2.0,
		MaxBackoff:   200 * time.Millisecond,
	}
}

func TestClient_GetSucceedsOnFirstTry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(common.HTTPConfig{TimeoutSeconds: 5}, testRetryConfig())
	body, err := client.Get(t.Context(), server.URL, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestClient_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	client := New(common.HTTPConfig{TimeoutSeconds: 5}, testRetryConfig())
	body, err := client.Get(t.Context(), server.URL, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClient_ExhaustsRetriesAndReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := New(common.HTTPConfig{TimeoutSeconds: 5}, testRetryConfig())
	_, err := client.Get(t.Context(), server.URL, nil, nil, nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.Status)
}

func TestClient_RotatesUserAgentAcrossAttempts(t *testing.T) {
	seen := make(map[string]bool)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.Header.Get("User-Agent")] = true
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(common.HTTPConfig{TimeoutSeconds: 5}, testRetryConfig())
	_, _ = client.Get(t.Context(), server.URL, nil, nil, nil)

	assert.GreaterOrEqual(t, len(seen), 2, "expected multiple distinct user agents across retries")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, outcomeOK, classify(http.StatusOK, nil))
	assert.Equal(t, outcomeRateLimited, classify(http.StatusTooManyRequests, nil))
	assert.Equal(t, outcomeAccessDenied, classify(http.StatusUnauthorized, nil))
	assert.Equal(t, outcomeAccessDenied, classify(http.StatusForbidden, nil))
	assert.Equal(t, outcomeHTTPStatus, classify(http.StatusInternalServerError, nil))
}

func TestRetryPolicy_BackoffOrdering(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:       5,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}

	// Rate-limited backoff (exponential * 2) should exceed a generic http
	// status backoff (linear) at the same attempt number, since 429 asks
	// callers to back off harder.
	rateLimited := policy.backoff(outcomeRateLimited, 2)
	httpStatus := policy.backoff(outcomeHTTPStatus, 2)
	assert.Greater(t, rateLimited, httpStatus)
}

func TestRetryPolicy_ShouldRetryRespectsMaxAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2}
	assert.True(t, policy.shouldRetry(outcomeTimeout, 0))
	assert.False(t, policy.shouldRetry(outcomeTimeout, 1))
	assert.False(t, policy.shouldRetry(outcomeOK, 0))
}
