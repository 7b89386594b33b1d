package sqlite

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/interfaces"
)

// SubscriptionStorage implements interfaces.SubscriptionStorage.
type SubscriptionStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// NewSubscriptionStorage creates a new subscription storage backed by db.
func NewSubscriptionStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.SubscriptionStorage {
	return &SubscriptionStorage{db: db, logger: logger}
}

// Subscribe records subscriber's interest in companyID. Idempotent.
func (s *SubscriptionStorage) Subscribe(ctx context.Context, companyID int64, subscriber string) error {
	_, err := s.db.DB().ExecContext(ctx,
		`INSERT INTO company_subscriptions (company_id, subscriber, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(company_id, subscriber) DO NOTHING`,
		companyID, subscriber, time.Now().Unix())
	return err
}

// Unsubscribe removes subscriber's interest in companyID, if present.
func (s *SubscriptionStorage) Unsubscribe(ctx context.Context, companyID int64, subscriber string) error {
	_, err := s.db.DB().ExecContext(ctx,
		`DELETE FROM company_subscriptions WHERE company_id = ? AND subscriber = ?`,
		companyID, subscriber)
	return err
}
