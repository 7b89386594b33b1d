package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

// JobStorage implements interfaces.JobStorage against SQLite.
type JobStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewJobStorage creates a new job storage backed by db.
func NewJobStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{db: db, logger: logger}
}

// Upsert inserts or refreshes a job, keyed by (company, title, location),
// re-activating it. Duplicate-key races are swallowed, matching the
// teacher's busy-error string-matching retry idiom applied to UNIQUE
// constraint violations instead of SQLITE_BUSY.
func (s *JobStorage) Upsert(ctx context.Context, job *models.Job) error {
	now := job.ScrapedAt
	if now.IsZero() {
		now = time.Now()
	}

	var postedAt sql.NullInt64
	if job.PostedAt != nil {
		postedAt = sql.NullInt64{Int64: job.PostedAt.Unix(), Valid: true}
	}

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO jobs (company_id, title, description, location, department, employment_type, apply_url, posted_at, scraped_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(company_id, title, location) DO UPDATE SET
			description = excluded.description,
			department = excluded.department,
			employment_type = excluded.employment_type,
			apply_url = excluded.apply_url,
			posted_at = excluded.posted_at,
			scraped_at = excluded.scraped_at,
			active = 1
	`, job.CompanyID, job.Title, job.Description, job.Location, job.Department, job.EmploymentType,
		job.ApplyURL, postedAt, now.Unix())
	if err != nil {
		if isUniqueConstraintError(err) {
			s.logger.Debug().Str("title", job.Title).Msg("Job upsert raced a duplicate insert, ignoring")
			return nil
		}
		return fmt.Errorf("failed to upsert job %q for company %d: %w", job.Title, job.CompanyID, err)
	}
	return nil
}

// isUniqueConstraintError matches modernc.org/sqlite's UNIQUE constraint
// error text, the same idiom the teacher uses for "database is locked".
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed")
}

// MarkInactiveExcept deactivates every active job of companyID whose id is
// not in freshIDs. The worker pool invokes it once per HTML crawl pass, with
// nil freshIDs, before upserting that pass's jobs; the API path does not call it.
func (s *JobStorage) MarkInactiveExcept(ctx context.Context, companyID int64, freshIDs []int64) error {
	if len(freshIDs) == 0 {
		_, err := s.db.DB().ExecContext(ctx,
			`UPDATE jobs SET active = 0 WHERE company_id = ? AND active = 1`, companyID)
		return err
	}

	placeholders := make([]string, len(freshIDs))
	args := make([]interface{}, 0, len(freshIDs)+1)
	args = append(args, companyID)
	for i, id := range freshIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`UPDATE jobs SET active = 0 WHERE company_id = ? AND active = 1 AND id NOT IN (%s)`,
		strings.Join(placeholders, ","))
	_, err := s.db.DB().ExecContext(ctx, query, args...)
	return err
}

// ListActive returns every active job for a company.
func (s *JobStorage) ListActive(ctx context.Context, companyID int64) ([]*models.Job, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, company_id, title, description, location, department, employment_type, apply_url, posted_at, scraped_at, active
		FROM jobs WHERE company_id = ? AND active = 1
	`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(rows *sql.Rows) (*models.Job, error) {
	var j models.Job
	var description, department, employmentType sql.NullString
	var postedAt sql.NullInt64
	var scrapedAt int64
	var active int

	if err := rows.Scan(&j.ID, &j.CompanyID, &j.Title, &description, &j.Location, &department,
		&employmentType, &j.ApplyURL, &postedAt, &scrapedAt, &active); err != nil {
		return nil, err
	}

	j.Description = description.String
	j.Department = department.String
	j.EmploymentType = employmentType.String
	j.Active = active == 1
	j.ScrapedAt = time.Unix(scrapedAt, 0)
	if postedAt.Valid {
		t := time.Unix(postedAt.Int64, 0)
		j.PostedAt = &t
	}
	return &j, nil
}
