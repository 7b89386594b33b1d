package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
)

type fakeGate struct {
	acquired []string
	err      error
}

func (f *fakeGate) Acquire(ctx context.Context, rawURL string) error {
	f.acquired = append(f.acquired, rawURL)
	return f.err
}

func (f *fakeGate) Stats() map[string]interfaces.OriginStats {
	return nil
}

type fakeFetcher struct {
	getCalls  int
	postCalls int
	response  []byte
	err       error
}

func (f *fakeFetcher) Get(ctx context.Context, rawURL string, headers map[string]string, params map[string]string, log arbor.ILogger) ([]byte, error) {
	f.getCalls++
	return f.response, f.err
}

func (f *fakeFetcher) Post(ctx context.Context, rawURL string, headers map[string]string, body []byte, log arbor.ILogger) ([]byte, error) {
	f.postCalls++
	return f.response, f.err
}

func TestSession_GetAcquiresGateBeforeFetching(t *testing.T) {
	gate := &fakeGate{}
	fetcher := &fakeFetcher{response: []byte("body")}
	sess := New(gate, fetcher)

	body, err := sess.Get(context.Background(), "https://example.com/jobs", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "body", string(body))
	assert.Equal(t, []string{"https://example.com/jobs"}, gate.acquired)
	assert.Equal(t, 1, fetcher.getCalls)
}

func TestSession_GetStopsWhenGateDenies(t *testing.T) {
	gate := &fakeGate{err: errors.New("gate closed")}
	fetcher := &fakeFetcher{response: []byte("body")}
	sess := New(gate, fetcher)

	_, err := sess.Get(context.Background(), "https://example.com/jobs", nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 0, fetcher.getCalls, "fetcher must not be called when the gate denies")
}

func TestSession_PostAcquiresGateBeforeFetching(t *testing.T) {
	gate := &fakeGate{}
	fetcher := &fakeFetcher{response: []byte("ok")}
	sess := New(gate, fetcher)

	_, err := sess.Post(context.Background(), "https://example.com/apply", nil, []byte("payload"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.postCalls)
	assert.Len(t, gate.acquired, 1)
}

func TestSession_EveryRequestIsGatedIndividually(t *testing.T) {
	gate := &fakeGate{}
	fetcher := &fakeFetcher{response: []byte("x")}
	sess := New(gate, fetcher)

	urls := []string{
		"https://example.com/jobs",
		"https://example.com/jobs/1",
		"https://example.com/jobs/2",
	}
	for _, u := range urls {
		_, err := sess.Get(context.Background(), u, nil, nil, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, urls, gate.acquired, "every individual job-posting request must pass through the gate")
}
