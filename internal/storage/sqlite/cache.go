package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

// CacheStore implements interfaces.CacheStore, wrapping JobStorage for the
// per-job upsert/deactivate operations and job_cache for the freshness row.
type CacheStore struct {
	db     *SQLiteDB
	jobs   interfaces.JobStorage
	logger arbor.ILogger
	ttl    time.Duration
}

// NewCacheStore creates a cache store backed by db with the given TTL
// (default 24h, matching the scheduler's crawl interval).
func NewCacheStore(db *SQLiteDB, jobs interfaces.JobStorage, logger arbor.ILogger, ttl time.Duration) interfaces.CacheStore {
	return &CacheStore{db: db, jobs: jobs, logger: logger, ttl: ttl}
}

// GetCached returns the cache entry for companyID iff it has not expired.
func (s *CacheStore) GetCached(ctx context.Context, companyID int64) (*models.CacheEntry, bool, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT company_id, jobs_json, job_count, provider, crawled_at, expires_at, duration_ms
		FROM job_cache WHERE company_id = ?
	`, companyID)

	var entry models.CacheEntry
	var jobsJSON string
	var provider sql.NullString
	var crawledAt, expiresAt int64

	err := row.Scan(&entry.CompanyID, &jobsJSON, &entry.JobCount, &provider, &crawledAt, &expiresAt, &entry.DurationMS)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	entry.Provider = provider.String
	entry.CrawledAt = time.Unix(crawledAt, 0)
	entry.ExpiresAt = time.Unix(expiresAt, 0)

	if !entry.Fresh(time.Now()) {
		return nil, false, nil
	}

	if err := json.Unmarshal([]byte(jobsJSON), &entry.Jobs); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached jobs for company %d: %w", companyID, err)
	}

	return &entry, true, nil
}

// UpdateCache idempotently upserts the cache row for companyID.
func (s *CacheStore) UpdateCache(ctx context.Context, companyID int64, jobs []models.Job, provider string, durationMS int64) error {
	jobsJSON, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("failed to encode jobs for company %d: %w", companyID, err)
	}

	now := time.Now()
	expiresAt := now.Add(s.ttl)

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO job_cache (company_id, jobs_json, job_count, provider, crawled_at, expires_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			jobs_json = excluded.jobs_json,
			job_count = excluded.job_count,
			provider = excluded.provider,
			crawled_at = excluded.crawled_at,
			expires_at = excluded.expires_at,
			duration_ms = excluded.duration_ms
	`, companyID, string(jobsJSON), len(jobs), provider, now.Unix(), expiresAt.Unix(), durationMS)
	return err
}

// UpsertJob delegates to the underlying job storage.
func (s *CacheStore) UpsertJob(ctx context.Context, companyID int64, job *models.Job) error {
	job.CompanyID = companyID
	return s.jobs.Upsert(ctx, job)
}

// MarkInactiveExcept delegates to the underlying job storage.
func (s *CacheStore) MarkInactiveExcept(ctx context.Context, companyID int64, freshIDs []int64) error {
	return s.jobs.MarkInactiveExcept(ctx, companyID, freshIDs)
}
