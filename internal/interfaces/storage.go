package interfaces

import (
	"context"

	"github.com/ternarybob/quaero/internal/models"
)

// CompanyStorage persists tracked companies and their subscriber aggregates.
type CompanyStorage interface {
	GetOrCreate(ctx context.Context, name, baseURL string) (*models.Company, error)
	Get(ctx context.Context, id int64) (*models.Company, error)
	List(ctx context.Context) ([]*models.Company, error)
	UpdateLastCrawled(ctx context.Context, id int64) error
	UpdateProvider(ctx context.Context, id int64, provider, slug string) error
	SubscriberCount(ctx context.Context, id int64) (int, error)
	AllSubscribed(ctx context.Context) ([]*models.Company, error)
	Stale(ctx context.Context, ttl int64) ([]*models.Company, error)
}

// JobStorage persists job postings discovered for a company.
type JobStorage interface {
	Upsert(ctx context.Context, job *models.Job) error
	MarkInactiveExcept(ctx context.Context, companyID int64, freshIDs []int64) error
	ListActive(ctx context.Context, companyID int64) ([]*models.Job, error)
}

// CacheStore is the write-through cache contract in front of JobStorage,
// serving the worker pool's cache-probe step and recording crawl freshness.
type CacheStore interface {
	GetCached(ctx context.Context, companyID int64) (*models.CacheEntry, bool, error)
	UpdateCache(ctx context.Context, companyID int64, jobs []models.Job, provider string, durationMS int64) error
	UpsertJob(ctx context.Context, companyID int64, job *models.Job) error
	MarkInactiveExcept(ctx context.Context, companyID int64, freshIDs []int64) error
}

// CrawlLogStorage appends fetch-outcome rows for auditing a scheduler tick.
type CrawlLogStorage interface {
	Append(ctx context.Context, log *models.CrawlLog) error
	ListByTick(ctx context.Context, tickID string) ([]*models.CrawlLog, error)
}

// SubscriptionStorage persists subscriber interest used only for queue
// priority aggregation; subscriber identity is never read outside it.
type SubscriptionStorage interface {
	Subscribe(ctx context.Context, companyID int64, subscriber string) error
	Unsubscribe(ctx context.Context, companyID int64, subscriber string) error
}

// StorageManager aggregates the scheduler's storage surfaces behind one
// SQLite-backed connection, mirroring the teacher's manager pattern.
type StorageManager interface {
	Companies() CompanyStorage
	Jobs() JobStorage
	Cache() CacheStore
	CrawlLogs() CrawlLogStorage
	Subscriptions() SubscriptionStorage
	DB() interface{}
	Close() error
}
