package interfaces

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/models"
)

// RateGate serialises requests to a single origin (scheme+host), composing a
// per-minute ceiling with inter-request jitter.
type RateGate interface {
	Acquire(ctx context.Context, url string) error
	Stats() map[string]OriginStats
}

// OriginStats is a point-in-time snapshot of one origin's rate-gate state.
type OriginStats struct {
	Requests    int64
	WindowStart time.Time
	LastRequest time.Time
}

// Fetcher performs rate-gate-aware, retrying HTTP requests.
type Fetcher interface {
	Get(ctx context.Context, url string, headers map[string]string, params map[string]string, log arbor.ILogger) ([]byte, error)
	Post(ctx context.Context, url string, headers map[string]string, body []byte, log arbor.ILogger) ([]byte, error)
}

// Provider is one structured-API capability (greenhouse, lever, ashby,
// workable, ...), matched against a company's career URL.
type Provider interface {
	Name() string
	MatchURL(url string) bool
	ExtractSlug(url string) (string, bool)
	FetchJobs(ctx context.Context, slug string) ([]models.Job, error)
}

// JobFilter optionally narrows scraped HTML postings to ones matching a
// keyword policy. A zero-value filter (no keywords configured) matches
// everything.
type JobFilter struct {
	IncludeKeywords  []string
	ExcludeKeywords  []string
	RequiredKeywords []string
	TitleOnly        bool
	MinMatches       int
}

// Matches reports whether job satisfies the filter: none of ExcludeKeywords
// may appear, every one of RequiredKeywords must appear, and (when
// IncludeKeywords is non-empty) at least MinMatches of them must appear,
// searching the title alone when TitleOnly is set or the title and
// description otherwise. Matching is case-insensitive substring.
func (f JobFilter) Matches(job models.Job) bool {
	haystack := strings.ToLower(job.Title)
	if !f.TitleOnly {
		haystack += " " + strings.ToLower(job.Description)
	}

	for _, kw := range f.ExcludeKeywords {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			return false
		}
	}

	for _, kw := range f.RequiredKeywords {
		if kw != "" && !strings.Contains(haystack, strings.ToLower(kw)) {
			return false
		}
	}

	if len(f.IncludeKeywords) == 0 {
		return true
	}

	matches := 0
	for _, kw := range f.IncludeKeywords {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			matches++
		}
	}

	min := f.MinMatches
	if min <= 0 {
		min = 1
	}
	return matches >= min
}

// HTMLParser is the fallback path used when no structured-API provider
// matches a company's career page.
type HTMLParser interface {
	GetJobLinks(ctx context.Context, careerURL string) ([]string, error)
	ParseJobPosting(ctx context.Context, url string) (*models.Job, error)

	// DetectProviderHint sniffs careerURL's HTML for a structured-API
	// provider reference (a Greenhouse/Lever/Ashby/Workable script, link, or
	// badge embedded in a custom-domain career page) and returns an absolute
	// URL a Provider.MatchURL/ExtractSlug pair can recognise, when found.
	DetectProviderHint(ctx context.Context, careerURL string) (string, bool)
}

// QueueBuilder produces the ordered, prioritised crawl candidates for one
// scheduler tick.
type QueueBuilder interface {
	BuildAllSubscribed(ctx context.Context) ([]models.QueueEntry, QueueStats, error)
	BuildStale(ctx context.Context, ttl time.Duration) ([]models.QueueEntry, QueueStats, error)
}

// QueueStats summarises one queue-build pass.
type QueueStats struct {
	CompanyCount      int
	SubscriberTotal   int
	ByPriority        map[models.Priority]int
	ByProvider        map[string]int
	EstimatedDuration time.Duration
}

// WorkResult is the outcome of crawling one queue entry.
type WorkResult struct {
	CompanyID     int64
	Success       bool
	JobsFound     int
	JobsInserted  int
	Method        string // "cache", "api:<provider>", "html"
	CacheHit      bool
	DurationMS    int64
	Errors        []string
}

// WorkerPool crawls a batch of queue entries under a bounded concurrency cap.
type WorkerPool interface {
	Run(ctx context.Context, batch []models.QueueEntry, tickID, batchID string, forceRefresh bool) []WorkResult
}

// SchedulerService drives the IDLE -> BUILDING -> DISPATCHING -> WAITING loop.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	RunOnce(ctx context.Context) error
}

// CrawlRequest names an explicit company to (re)crawl outside the scheduled
// loop. URL is optional; when empty, the stored company URL is used.
type CrawlRequest struct {
	Name string
	URL  string
}

// CrawlRequestStatus reports the lifecycle of an ad-hoc crawl submission.
type CrawlRequestStatus struct {
	JobID        string
	Status       string // queued|running|completed|failed
	JobsFound    int
	JobsInserted int
	Error        string
}

// CrawlRequestHandler is the collaborator surface offered to an HTTP front
// end. No type in this module implements it, and no transport is provided.
type CrawlRequestHandler interface {
	SubmitCrawl(ctx context.Context, requests []CrawlRequest) (string, error)
	GetStatus(ctx context.Context, jobID string) (*CrawlRequestStatus, error)
}
