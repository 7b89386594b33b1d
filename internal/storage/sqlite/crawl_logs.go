package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
	"github.com/ternarybob/quaero/internal/models"
)

// CrawlLogStorage implements interfaces.CrawlLogStorage against SQLite.
type CrawlLogStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewCrawlLogStorage creates a new crawl log storage backed by db.
func NewCrawlLogStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.CrawlLogStorage {
	return &CrawlLogStorage{db: db, logger: logger}
}

// Append inserts one crawl log row.
func (s *CrawlLogStorage) Append(ctx context.Context, log *models.CrawlLog) error {
	now := log.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	var companyID sql.NullInt64
	if log.CompanyID != 0 {
		companyID = sql.NullInt64{Int64: log.CompanyID, Valid: true}
	}

	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO crawl_logs (tick_id, batch_id, company_id, url, outcome, error_message, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, log.TickID, log.BatchID, companyID, log.URL, log.Outcome, log.ErrorMessage, log.ResponseTimeMS, now.Unix())
	return err
}

// ListByTick returns every crawl log row recorded during tickID.
func (s *CrawlLogStorage) ListByTick(ctx context.Context, tickID string) ([]*models.CrawlLog, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, tick_id, batch_id, company_id, url, outcome, error_message, response_time_ms, created_at
		FROM crawl_logs WHERE tick_id = ? ORDER BY created_at ASC
	`, tickID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.CrawlLog
	for rows.Next() {
		var l models.CrawlLog
		var companyID sql.NullInt64
		var errMsg sql.NullString
		var createdAt int64

		if err := rows.Scan(&l.ID, &l.TickID, &l.BatchID, &companyID, &l.URL, &l.Outcome, &errMsg, &l.ResponseTimeMS, &createdAt); err != nil {
			return nil, err
		}
		l.CompanyID = companyID.Int64
		l.ErrorMessage = errMsg.String
		l.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, &l)
	}
	return out, rows.Err()
}
