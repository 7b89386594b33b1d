package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

// CompanyStorage implements interfaces.CompanyStorage against SQLite.
type CompanyStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewCompanyStorage creates a new company storage backed by db.
func NewCompanyStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.CompanyStorage {
	return &CompanyStorage{db: db, logger: logger}
}

// GetOrCreate returns the existing company for baseURL, inserting one if
// this is the first reference.
func (s *CompanyStorage) GetOrCreate(ctx context.Context, name, baseURL string) (*models.Company, error) {
	if c, err := s.getByBaseURL(ctx, baseURL); err == nil {
		return c, nil
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now()
	result, err := s.db.DB().ExecContext(ctx,
		`INSERT INTO companies (name, base_url, active, created_at, updated_at) VALUES (?, ?, 1, ?, ?)`,
		name, baseURL, now.Unix(), now.Unix())
	if err != nil {
		// Concurrent insert raced us; fetch the now-existing row.
		if c, gerr := s.getByBaseURL(ctx, baseURL); gerr == nil {
			return c, nil
		}
		return nil, fmt.Errorf("failed to create company %s: %w", baseURL, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

func (s *CompanyStorage) getByBaseURL(ctx context.Context, baseURL string) (*models.Company, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT id, name, base_url, provider, provider_slug, last_crawled_at, active, created_at, updated_at
		 FROM companies WHERE base_url = ?`, baseURL)
	return scanCompany(row)
}

// Get returns the company with the given id.
func (s *CompanyStorage) Get(ctx context.Context, id int64) (*models.Company, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT id, name, base_url, provider, provider_slug, last_crawled_at, active, created_at, updated_at
		 FROM companies WHERE id = ?`, id)
	return scanCompany(row)
}

// List returns every active company.
func (s *CompanyStorage) List(ctx context.Context) ([]*models.Company, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT id, name, base_url, provider, provider_slug, last_crawled_at, active, created_at, updated_at
		 FROM companies WHERE active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCompanies(rows)
}

// UpdateLastCrawled stamps the company's last_crawled_at to now.
func (s *CompanyStorage) UpdateLastCrawled(ctx context.Context, id int64) error {
	now := time.Now()
	_, err := s.db.DB().ExecContext(ctx,
		`UPDATE companies SET last_crawled_at = ?, updated_at = ? WHERE id = ?`,
		now.Unix(), now.Unix(), id)
	return err
}

// UpdateProvider records the detected structured-API provider tag (and slug)
// for a company so future queue builds can estimate crawl duration.
func (s *CompanyStorage) UpdateProvider(ctx context.Context, id int64, provider, slug string) error {
	_, err := s.db.DB().ExecContext(ctx,
		`UPDATE companies SET provider = ?, provider_slug = ?, updated_at = ? WHERE id = ?`,
		provider, slug, time.Now().Unix(), id)
	return err
}

// SubscriberCount returns the number of distinct subscribers for a company.
func (s *CompanyStorage) SubscriberCount(ctx context.Context, id int64) (int, error) {
	var count int
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM company_subscriptions WHERE company_id = ?`, id).Scan(&count)
	return count, err
}

// AllSubscribed returns companies with at least one subscriber, ordered by
// subscriber count descending then oldest-last-crawled first.
func (s *CompanyStorage) AllSubscribed(ctx context.Context) ([]*models.Company, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT c.id, c.name, c.base_url, c.provider, c.provider_slug, c.last_crawled_at, c.active, c.created_at, c.updated_at
		FROM companies c
		JOIN (
			SELECT company_id, COUNT(*) AS sub_count
			FROM company_subscriptions
			GROUP BY company_id
		) s ON s.company_id = c.id
		WHERE c.active = 1
		ORDER BY s.sub_count DESC, c.last_crawled_at ASC NULLS FIRST
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCompanies(rows)
}

// Stale returns companies whose cache has expired or never ran, ordered by
// subscriber count descending then oldest first.
func (s *CompanyStorage) Stale(ctx context.Context, ttlSeconds int64) ([]*models.Company, error) {
	now := time.Now().Unix()
	cutoff := now - ttlSeconds
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT c.id, c.name, c.base_url, c.provider, c.provider_slug, c.last_crawled_at, c.active, c.created_at, c.updated_at
		FROM companies c
		LEFT JOIN job_cache jc ON jc.company_id = c.id
		LEFT JOIN (
			SELECT company_id, COUNT(*) AS sub_count
			FROM company_subscriptions
			GROUP BY company_id
		) s ON s.company_id = c.id
		WHERE c.active = 1
		  AND (jc.expires_at IS NULL OR jc.expires_at < ? OR c.last_crawled_at IS NULL OR c.last_crawled_at < ?)
		ORDER BY COALESCE(s.sub_count, 0) DESC, c.last_crawled_at ASC NULLS FIRST
	`, now, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCompanies(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(row rowScanner) (*models.Company, error) {
	var c models.Company
	var provider, slug sql.NullString
	var lastCrawled sql.NullInt64
	var active int
	var createdAt, updatedAt int64

	if err := row.Scan(&c.ID, &c.Name, &c.BaseURL, &provider, &slug, &lastCrawled, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	c.Provider = provider.String
	c.ProviderSlug = slug.String
	c.Active = active == 1
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	if lastCrawled.Valid {
		t := time.Unix(lastCrawled.Int64, 0)
		c.LastCrawledAt = &t
	}
	return &c, nil
}

func scanCompanies(rows *sql.Rows) ([]*models.Company, error) {
	var out []*models.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
