// Package queuebuilder joins companies, subscriber counts, and cache
// freshness into the prioritised, deduplicated work list the scheduler
// dispatches each tick.
package queuebuilder

import (
	"context"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

const (
	apiEstimatedDuration  = 3 * time.Second
	htmlEstimatedDuration = 20 * time.Second
)

// ProviderMatcher answers whether a career URL has a structured-API
// provider, so the builder can estimate per-entry crawl duration without
// performing a network call. Satisfied by *providers.Router.
type ProviderMatcher interface {
	Match(careerURL string) (provider interfaces.Provider, slug string, ok bool)
}

// Builder implements interfaces.QueueBuilder against the storage manager's
// company and cache surfaces.
type Builder struct {
	companies interfaces.CompanyStorage
	cache     interfaces.CacheStore
	matcher   ProviderMatcher
	ttl       time.Duration
	logger    arbor.ILogger
}

// New wires a queue builder from the storage manager's company/cache
// surfaces, the structured-API matcher, and the scheduler's TTL.
func New(companies interfaces.CompanyStorage, cache interfaces.CacheStore, matcher ProviderMatcher, ttl time.Duration, logger arbor.ILogger) *Builder {
	return &Builder{companies: companies, cache: cache, matcher: matcher, ttl: ttl, logger: logger}
}

// BuildAllSubscribed returns every company with at least one subscriber.
func (b *Builder) BuildAllSubscribed(ctx context.Context) ([]models.QueueEntry, interfaces.QueueStats, error) {
	companies, err := b.companies.AllSubscribed(ctx)
	if err != nil {
		return nil, interfaces.QueueStats{}, err
	}
	return b.build(ctx, companies)
}

// BuildStale returns companies whose cache has expired or never ran. This is
// the default mode driving the scheduled loop.
func (b *Builder) BuildStale(ctx context.Context, ttl time.Duration) ([]models.QueueEntry, interfaces.QueueStats, error) {
	companies, err := b.companies.Stale(ctx, int64(ttl.Seconds()))
	if err != nil {
		return nil, interfaces.QueueStats{}, err
	}
	return b.build(ctx, companies)
}

func (b *Builder) build(ctx context.Context, companies []*models.Company) ([]models.QueueEntry, interfaces.QueueStats, error) {
	stats := interfaces.QueueStats{
		ByPriority: make(map[models.Priority]int),
		ByProvider: make(map[string]int),
	}

	entries := make([]models.QueueEntry, 0, len(companies))
	for _, c := range companies {
		if valid, isTest, _, err := common.ValidateBaseURL(c.BaseURL, b.logger); err != nil || !valid {
			b.logger.Warn().Err(err).Int64("company_id", c.ID).Str("base_url", c.BaseURL).Msg("Skipping company with invalid base url")
			continue
		} else if isTest {
			b.logger.Debug().Int64("company_id", c.ID).Str("base_url", c.BaseURL).Msg("Queueing test/local career url")
		}

		subCount, err := b.companies.SubscriberCount(ctx, c.ID)
		if err != nil {
			b.logger.Warn().Err(err).Int64("company_id", c.ID).Msg("Failed to read subscriber count, assuming zero")
			subCount = 0
		}

		var cacheExpiresAt *time.Time
		cacheExpired := true
		if entry, fresh, err := b.cache.GetCached(ctx, c.ID); err == nil && entry != nil {
			cacheExpiresAt = &entry.ExpiresAt
			cacheExpired = !fresh
		}

		priority := classify(subCount, cacheExpired)

		qe := models.QueueEntry{
			CompanyID:       c.ID,
			Name:            c.Name,
			URL:             c.BaseURL,
			Provider:        c.Provider,
			SubscriberCount: subCount,
			LastCrawledAt:   c.LastCrawledAt,
			CacheExpiresAt:  cacheExpiresAt,
			Priority:        priority,
		}
		entries = append(entries, qe)

		stats.SubscriberTotal += subCount
		stats.ByPriority[priority]++

		providerTag := c.Provider
		if providerTag == "" && b.matcher != nil {
			if p, _, ok := b.matcher.Match(c.BaseURL); ok {
				providerTag = p.Name()
			}
		}
		if providerTag != "" {
			stats.ByProvider[providerTag]++
			stats.EstimatedDuration += apiEstimatedDuration
		} else {
			stats.EstimatedDuration += htmlEstimatedDuration
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority < entries[j].Priority
		}
		return entries[i].SubscriberCount > entries[j].SubscriberCount
	})

	stats.CompanyCount = len(entries)
	return entries, stats, nil
}

// classify applies the priority table: first match wins, evaluated
// top-to-bottom.
func classify(subCount int, cacheExpired bool) models.Priority {
	switch {
	case cacheExpired && subCount >= 5:
		return models.PriorityCritical
	case subCount >= 5:
		return models.PriorityHigh
	case subCount >= 1:
		return models.PriorityNormal
	case subCount == 0 && cacheExpired:
		return models.PriorityLow
	default:
		return models.PriorityBackground
	}
}

var _ interfaces.QueueBuilder = (*Builder)(nil)
