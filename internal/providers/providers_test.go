package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
)

type fakeFetcher struct {
	responses map[string]string
	err       error
}

func (f *fakeFetcher) Get(ctx context.Context, rawURL string, headers map[string]string, params map[string]string, log arbor.ILogger) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.responses[rawURL]
	if !ok {
		return nil, errors.New("no fixture for " + rawURL)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) Post(ctx context.Context, rawURL string, headers map[string]string, body []byte, log arbor.ILogger) ([]byte, error) {
	return nil, errors.New("unused in these tests")
}

var _ interfaces.Fetcher = (*fakeFetcher)(nil)

func TestGreenhouse_MatchAndFetch(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://boards-api.greenhouse.io/v1/boards/acme/jobs?content=true": `{
			"jobs": [{"title": "Engineer", "content": "desc", "absolute_url": "https://boards.greenhouse.io/acme/jobs/1",
				"updated_at": "2026-01-15T00:00:00Z", "location": {"name": "Remote"},
				"departments": [{"name": "Engineering"}]}]
		}`,
	}}
	gh := NewGreenhouse(fetcher, arbor.NewLogger())

	assert.True(t, gh.MatchURL("https://boards.greenhouse.io/acme"))
	slug, ok := gh.ExtractSlug("https://boards.greenhouse.io/acme/jobs/1")
	require.True(t, ok)
	assert.Equal(t, "acme", slug)

	jobs, err := gh.FetchJobs(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Engineer", jobs[0].Title)
	assert.Equal(t, "Engineering", jobs[0].Department)
	assert.Equal(t, "Remote", jobs[0].Location)
	require.NotNil(t, jobs[0].PostedAt)
}

func TestGreenhouse_DoesNotMatchOtherHosts(t *testing.T) {
	gh := NewGreenhouse(&fakeFetcher{}, arbor.NewLogger())
	assert.False(t, gh.MatchURL("https://jobs.lever.co/acme"))
}

func TestLever_MatchAndFetch(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://api.lever.co/v0/postings/acme?mode=json": `[{
			"text": "Designer", "hostedUrl": "https://jobs.lever.co/acme/1",
			"applyUrl": "https://jobs.lever.co/acme/1/apply", "createdAt": 1700000000000,
			"categories": {"location": "NYC", "department": "Design", "commitment": "Full-time"},
			"descriptionPlain": "desc"
		}]`,
	}}
	l := NewLever(fetcher, arbor.NewLogger())

	assert.True(t, l.MatchURL("https://jobs.lever.co/acme"))
	slug, ok := l.ExtractSlug("https://jobs.lever.co/acme/1")
	require.True(t, ok)
	assert.Equal(t, "acme", slug)

	jobs, err := l.FetchJobs(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Designer", jobs[0].Title)
	assert.Equal(t, "NYC", jobs[0].Location)
	assert.Equal(t, "Full-time", jobs[0].EmploymentType)
	assert.Equal(t, "https://jobs.lever.co/acme/1/apply", jobs[0].ApplyURL, "applyUrl must win over hostedUrl when both are present")
	require.NotNil(t, jobs[0].PostedAt)
}

func TestLever_FallsBackToHostedURLWhenApplyURLMissing(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://api.lever.co/v0/postings/acme?mode=json": `[{
			"text": "Designer", "hostedUrl": "https://jobs.lever.co/acme/1", "createdAt": 1700000000000,
			"categories": {"location": "NYC", "department": "Design", "commitment": "Full-time"},
			"descriptionPlain": "desc"
		}]`,
	}}
	l := NewLever(fetcher, arbor.NewLogger())

	jobs, err := l.FetchJobs(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "https://jobs.lever.co/acme/1", jobs[0].ApplyURL)
}

func TestAshby_MatchAndFetch(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://api.ashbyhq.com/posting-api/job-board/acme": `{
			"jobs": [{"title": "PM", "descriptionHtml": "<p>desc</p>", "location": "Remote", "department": "Product",
				"employmentType": "Full-time", "jobUrl": "https://jobs.ashbyhq.com/acme/1",
				"applicationUrl": "https://jobs.ashbyhq.com/acme/1/application", "publishedDate": "2026-02-01T00:00:00Z"}]
		}`,
	}}
	a := NewAshby(fetcher, arbor.NewLogger())

	assert.True(t, a.MatchURL("https://jobs.ashbyhq.com/acme"))
	jobs, err := a.FetchJobs(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "PM", jobs[0].Title)
	assert.Equal(t, "Product", jobs[0].Department)
	assert.Equal(t, "<p>desc</p>", jobs[0].Description)
	assert.Equal(t, "https://jobs.ashbyhq.com/acme/1/application", jobs[0].ApplyURL, "applicationUrl must win over jobUrl when both are present")
	require.NotNil(t, jobs[0].PostedAt)
}

func TestAshby_FallsBackToJobURLWhenApplicationURLMissing(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://api.ashbyhq.com/posting-api/job-board/acme": `{
			"jobs": [{"title": "PM", "descriptionHtml": "<p>desc</p>", "location": "Remote", "department": "Product",
				"employmentType": "Full-time", "jobUrl": "https://jobs.ashbyhq.com/acme/1", "publishedDate": "2026-02-01T00:00:00Z"}]
		}`,
	}}
	a := NewAshby(fetcher, arbor.NewLogger())

	jobs, err := a.FetchJobs(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "https://jobs.ashbyhq.com/acme/1", jobs[0].ApplyURL)
}

func TestWorkable_MatchAndFetch(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]string{
		"https://apply.workable.com/api/v1/widget/accounts/acme": `{
			"jobs": [{"title": "Support", "description": "desc", "location": {"city": "Austin"},
				"department": "Support", "employment_type": "Part-time", "url": "https://acme.workable.com/1",
				"created_at": "2026-03-01T00:00:00Z"}]
		}`,
	}}
	w := NewWorkable(fetcher, arbor.NewLogger())

	assert.True(t, w.MatchURL("https://apply.workable.com/acme"))
	jobs, err := w.FetchJobs(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Support", jobs[0].Title)
	assert.Equal(t, "Austin", jobs[0].Location)
}

func TestRouter_MatchesFirstRecognisedProvider(t *testing.T) {
	router := NewRouter(&fakeFetcher{}, arbor.NewLogger())

	provider, slug, ok := router.Match("https://boards.greenhouse.io/acme/jobs")
	require.True(t, ok)
	assert.Equal(t, "greenhouse", provider.Name())
	assert.Equal(t, "acme", slug)

	provider, slug, ok = router.Match("https://jobs.lever.co/acme")
	require.True(t, ok)
	assert.Equal(t, "lever", provider.Name())
	assert.Equal(t, "acme", slug)
}

func TestRouter_NoMatchForUnknownCareerPage(t *testing.T) {
	router := NewRouter(&fakeFetcher{}, arbor.NewLogger())

	_, _, ok := router.Match("https://careers.acme.example.com")
	assert.False(t, ok)
}

func TestRouter_ProvidersExposesFullRegisteredSet(t *testing.T) {
	router := NewRouter(&fakeFetcher{}, arbor.NewLogger())
	names := make([]string, 0, 4)
	for _, p := range router.Providers() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"greenhouse", "lever", "ashby", "workable"}, names)
}
