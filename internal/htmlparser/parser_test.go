package htmlparser

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
	pages map[string]string
	err   error
}

func (f *fakeFetcher) Get(ctx context.Context, rawURL string, headers map[string]string, params map[string]string, log arbor.ILogger) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, errors.New("no fixture for " + rawURL)
	}
	return []byte(body), nil
}

func (f *fakeFetcher) Post(ctx context.Context, rawURL string, headers map[string]string, body []byte, log arbor.ILogger) ([]byte, error) {
	return nil, errors.New("unused in these tests")
}

var _ interfaces.Fetcher = (*fakeFetcher)(nil)

const careerPageHTML = `
<html><body>
<nav><a href="/about">About</a></nav>
<ul>
  <li><a href="/jobs/senior-engineer">Senior Engineer</a></li>
  <li><a href="/jobs/senior-engineer">Senior Engineer (duplicate)</a></li>
  <li><a href="/careers/designer?utm=1">Designer</a></li>
  <li><a href="/jobs/resume.pdf">Ignore PDF</a></li>
  <li><a href="#top">Back to top</a></li>
  <li><a href="mailto:hr@example.com">Email HR</a></li>
</ul>
</body></html>`

func TestParser_GetJobLinksDeduplicatesAndFiltersNonJobLinks(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.example.com/careers": careerPageHTML,
	}}
	parser := New(fetcher, arbor.NewLogger(), nil)

	links, err := parser.GetJobLinks(context.Background(), "https://acme.example.com/careers")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"https://acme.example.com/jobs/senior-engineer",
		"https://acme.example.com/careers/designer?utm=1",
	}, links)
}

func TestParser_GetJobLinksReturnsFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	parser := New(fetcher, arbor.NewLogger(), nil)

	_, err := parser.GetJobLinks(context.Background(), "https://acme.example.com/careers")
	require.Error(t, err)
}

const jobPostingHTML = `
<html><body>
<h1>Senior Engineer</h1>
<div class="job-location">Remote</div>
<article class="description">We are looking for a senior engineer to join our team.</article>
</body></html>`

func TestParser_ParseJobPostingExtractsFields(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.example.com/jobs/senior-engineer": jobPostingHTML,
	}}
	parser := New(fetcher, arbor.NewLogger(), nil)

	job, err := parser.ParseJobPosting(context.Background(), "https://acme.example.com/jobs/senior-engineer")
	require.NoError(t, err)
	assert.Equal(t, "Senior Engineer", job.Title)
	assert.Equal(t, "Remote", job.Location)
	assert.Contains(t, job.Description, "senior engineer")
	assert.Equal(t, "https://acme.example.com/jobs/senior-engineer", job.ApplyURL)
	assert.True(t, job.Active)
}

const noTitlePostingHTML = `<html><body><p>Nothing useful here.</p></body></html>`

func TestParser_ParseJobPostingFailsWithoutTitle(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.example.com/jobs/empty": noTitlePostingHTML,
	}}
	parser := New(fetcher, arbor.NewLogger(), nil)

	_, err := parser.ParseJobPosting(context.Background(), "https://acme.example.com/jobs/empty")
	assert.Error(t, err)
}

const jsonLDPostingHTML = `
<html><head>
<script type="application/ld+json">
{"@context": "https://schema.org", "@type": "JobPosting", "title": "Staff Engineer",
 "description": "Own the platform roadmap.", "employmentType": "FULL_TIME", "datePosted": "2026-04-01",
 "hiringOrganization": {"name": "Platform"},
 "jobLocation": {"address": {"addressLocality": "Austin", "addressRegion": "TX"}}}
</script>
</head><body><h1>Fallback Title</h1></body></html>`

func TestParser_ParseJobPostingPrefersJSONLD(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.example.com/jobs/staff-engineer": jsonLDPostingHTML,
	}}
	parser := New(fetcher, arbor.NewLogger(), nil)

	job, err := parser.ParseJobPosting(context.Background(), "https://acme.example.com/jobs/staff-engineer")
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", job.Title)
	assert.Equal(t, "Austin, TX", job.Location)
	assert.Equal(t, "Platform", job.Department)
	assert.Equal(t, "FULL_TIME", job.EmploymentType)
	require.NotNil(t, job.PostedAt)
}

func TestParser_ParseJobPostingAppliesJobFilter(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.example.com/jobs/senior-engineer": jobPostingHTML,
	}}
	filter := &interfaces.JobFilter{ExcludeKeywords: []string{"senior"}}
	parser := New(fetcher, arbor.NewLogger(), filter)

	job, err := parser.ParseJobPosting(context.Background(), "https://acme.example.com/jobs/senior-engineer")
	assert.ErrorIs(t, err, ErrFiltered)
	require.NotNil(t, job, "a filtered-out posting is still returned alongside ErrFiltered")
	assert.Equal(t, "Senior Engineer", job.Title)
}

func TestParser_DetectProviderHintFindsEmbeddedProviderURL(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://careers.acme.example.com": `<html><body>
			<iframe src="https://boards.greenhouse.io/embed/job_board?for=acme"></iframe>
		</body></html>`,
	}}
	parser := New(fetcher, arbor.NewLogger(), nil)

	hint, ok := parser.DetectProviderHint(context.Background(), "https://careers.acme.example.com")
	require.True(t, ok)
	assert.Contains(t, hint, "greenhouse.io")
}

func TestParser_DetectProviderHintNoMatch(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://careers.acme.example.com": `<html><body>No vendor reference here.</body></html>`,
	}}
	parser := New(fetcher, arbor.NewLogger(), nil)

	_, ok := parser.DetectProviderHint(context.Background(), "https://careers.acme.example.com")
	assert.False(t, ok)
}
