// Package worker implements the bounded-concurrency crawl of one batch of
// queue entries: cache probe, structured-API attempt, HTML fallback, and
// cache write-through, one goroutine per company capped by a semaphore.
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

// ProviderRouter matches a career URL against the structured-API provider
// registry. Satisfied by *providers.Router.
type ProviderRouter interface {
	Match(careerURL string) (provider interfaces.Provider, slug string, ok bool)
}

// Pool implements interfaces.WorkerPool over a buffered-channel semaphore,
// the teacher's bounded-concurrency idiom applied to per-company crawls.
type Pool struct {
	companies  interfaces.CompanyStorage
	cache      interfaces.CacheStore
	crawlLogs  interfaces.CrawlLogStorage
	router     ProviderRouter
	html       interfaces.HTMLParser
	maxWorkers int
	logger     arbor.ILogger
}

// New wires a worker pool from the storage manager's surfaces, the
// structured-API router, and the HTML fallback parser. The HTML parser is
// expected to be rate-gated internally (see internal/session); the pool
// itself never talks to the rate gate directly.
func New(
	companies interfaces.CompanyStorage,
	cache interfaces.CacheStore,
	crawlLogs interfaces.CrawlLogStorage,
	router ProviderRouter,
	html interfaces.HTMLParser,
	cfg common.WorkerConfig,
	logger arbor.ILogger,
) *Pool {
	max := cfg.MaxConcurrentTasks
	if max <= 0 {
		max = 10
	}
	return &Pool{
		companies:  companies,
		cache:      cache,
		crawlLogs:  crawlLogs,
		router:     router,
		html:       html,
		maxWorkers: max,
		logger:     logger,
	}
}

// Run crawls every entry in batch under the pool's concurrency cap, returning
// one WorkResult per entry in batch order.
func (p *Pool) Run(ctx context.Context, batch []models.QueueEntry, tickID, batchID string, forceRefresh bool) []interfaces.WorkResult {
	results := make([]interfaces.WorkResult, len(batch))
	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup

	for i, entry := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, e models.QueueEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = p.crawlOne(ctx, e, tickID, batchID, forceRefresh)
		}(i, entry)
	}

	wg.Wait()
	return results
}

// crawlOne runs the cache-probe -> API -> HTML pipeline for a single
// company, recovering from any panic so one bad entry never fails the batch.
func (p *Pool) crawlOne(ctx context.Context, entry models.QueueEntry, tickID, batchID string, forceRefresh bool) (result interfaces.WorkResult) {
	result.CompanyID = entry.CompanyID
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Int64("company_id", entry.CompanyID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("panic recovered in worker crawl, company marked failed")
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("panic: %v", r))
		}
		result.DurationMS = time.Since(start).Milliseconds()
	}()

	contextLogger := p.logger.WithCorrelationId(tickID)

	if !forceRefresh {
		if cached, fresh, err := p.cache.GetCached(ctx, entry.CompanyID); err == nil && fresh {
			result.Success = true
			result.CacheHit = true
			result.JobsFound = cached.JobCount
			result.Method = "cache"
			p.appendLog(ctx, tickID, batchID, entry.CompanyID, entry.URL, models.OutcomeSuccess, "", time.Since(start))
			return result
		}
	}

	provider, slug, ok := p.router.Match(entry.URL)
	if !ok {
		if hint, found := p.html.DetectProviderHint(ctx, entry.URL); found {
			if hintProvider, hintSlug, hintOK := p.router.Match(hint); hintOK {
				contextLogger.Debug().Int64("company_id", entry.CompanyID).Str("provider", hintProvider.Name()).Msg("Structured-API provider detected by HTML sniffing")
				provider, slug, ok = hintProvider, hintSlug, true
			}
		}
	}

	if ok {
		jobs, err := provider.FetchJobs(ctx, slug)
		if err == nil {
			inserted := p.upsertAll(ctx, entry.CompanyID, jobs)
			if err := p.cache.UpdateCache(ctx, entry.CompanyID, jobs, provider.Name(), time.Since(start).Milliseconds()); err != nil {
				contextLogger.Warn().Err(err).Int64("company_id", entry.CompanyID).Msg("Failed to update cache after API crawl")
			}
			_ = p.companies.UpdateProvider(ctx, entry.CompanyID, provider.Name(), slug)
			_ = p.companies.UpdateLastCrawled(ctx, entry.CompanyID)

			result.Success = true
			result.JobsFound = len(jobs)
			result.JobsInserted = inserted
			result.Method = "api:" + provider.Name()
			p.appendLog(ctx, tickID, batchID, entry.CompanyID, entry.URL, models.OutcomeSuccess, "", time.Since(start))
			return result
		}
		if err != nil {
			contextLogger.Debug().Err(err).Int64("company_id", entry.CompanyID).Str("provider", provider.Name()).Msg("Structured-API attempt failed, falling back to HTML")
			result.Errors = append(result.Errors, err.Error())
		}
	}

	return p.crawlHTML(ctx, entry, tickID, batchID, start, result)
}

func (p *Pool) crawlHTML(ctx context.Context, entry models.QueueEntry, tickID, batchID string, start time.Time, result interfaces.WorkResult) interfaces.WorkResult {
	contextLogger := p.logger.WithCorrelationId(tickID)

	links, err := p.html.GetJobLinks(ctx, entry.URL)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		p.appendLog(ctx, tickID, batchID, entry.CompanyID, entry.URL, outcomeFor(err), err.Error(), time.Since(start))
		return result
	}

	var jobs []models.Job
	for _, link := range links {
		job, err := p.html.ParseJobPosting(ctx, link)
		if err != nil {
			contextLogger.Debug().Err(err).Str("url", link).Msg("Failed to parse job posting, skipping")
			continue
		}
		jobs = append(jobs, *job)
	}

	// Deactivate every existing job before re-upserting this pass's set: Upsert
	// re-activates a matching (company, title, location) row, so whatever was
	// not found this crawl is left inactive without needing its row id.
	if err := p.cache.MarkInactiveExcept(ctx, entry.CompanyID, nil); err != nil {
		contextLogger.Warn().Err(err).Int64("company_id", entry.CompanyID).Msg("Failed to mark stale jobs inactive")
	}
	inserted := p.upsertAll(ctx, entry.CompanyID, jobs)

	if err := p.cache.UpdateCache(ctx, entry.CompanyID, jobs, "html", time.Since(start).Milliseconds()); err != nil {
		contextLogger.Warn().Err(err).Int64("company_id", entry.CompanyID).Msg("Failed to update cache after HTML crawl")
	}
	_ = p.companies.UpdateLastCrawled(ctx, entry.CompanyID)

	result.Success = true
	result.JobsFound = len(jobs)
	result.JobsInserted = inserted
	result.Method = "html"
	p.appendLog(ctx, tickID, batchID, entry.CompanyID, entry.URL, models.OutcomeSuccess, "", time.Since(start))
	return result
}

func (p *Pool) upsertAll(ctx context.Context, companyID int64, jobs []models.Job) int {
	inserted := 0
	for i := range jobs {
		jobs[i].CompanyID = companyID
		if err := p.cache.UpsertJob(ctx, companyID, &jobs[i]); err != nil {
			p.logger.Warn().Err(err).Int64("company_id", companyID).Str("title", jobs[i].Title).Msg("Failed to upsert job")
			continue
		}
		inserted++
	}
	return inserted
}

func (p *Pool) appendLog(ctx context.Context, tickID, batchID string, companyID int64, url, outcome, errMsg string, d time.Duration) {
	log := &models.CrawlLog{
		TickID:         tickID,
		BatchID:        batchID,
		CompanyID:      companyID,
		URL:            url,
		Outcome:        outcome,
		ErrorMessage:   errMsg,
		ResponseTimeMS: d.Milliseconds(),
		CreatedAt:      time.Now(),
	}
	if err := p.crawlLogs.Append(ctx, log); err != nil {
		p.logger.Warn().Err(err).Int64("company_id", companyID).Msg("Failed to append crawl log")
	}
}

func outcomeFor(err error) string {
	if err == nil {
		return models.OutcomeSuccess
	}
	return models.OutcomeError
}

var _ interfaces.WorkerPool = (*Pool)(nil)
