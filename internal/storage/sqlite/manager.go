package sqlite

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/interfaces"
)

// Manager implements interfaces.StorageManager over a single SQLite
// connection shared by all storage surfaces.
type Manager struct {
	db            *SQLiteDB
	companies     interfaces.CompanyStorage
	jobs          interfaces.JobStorage
	cache         interfaces.CacheStore
	crawlLogs     interfaces.CrawlLogStorage
	subscriptions interfaces.SubscriptionStorage
	logger        arbor.ILogger
}

// NewManager opens the SQLite database and wires up every storage surface.
func NewManager(logger arbor.ILogger, dbConfig *common.DatabaseConfig, environment string, crawlInterval int) (interfaces.StorageManager, error) {
	db, err := NewSQLiteDB(logger, dbConfig, environment)
	if err != nil {
		return nil, err
	}

	jobs := NewJobStorage(db, logger)
	ttl := common.SchedulerConfig{CrawlIntervalHours: crawlInterval}.CrawlInterval()

	manager := &Manager{
		db:            db,
		companies:     NewCompanyStorage(db, logger),
		jobs:          jobs,
		cache:         NewCacheStore(db, jobs, logger, ttl),
		crawlLogs:     NewCrawlLogStorage(db, logger),
		subscriptions: NewSubscriptionStorage(db, logger),
		logger:        logger,
	}

	logger.Info().Msg("Storage manager initialized (companies, jobs, cache, crawl logs, subscriptions)")

	return manager, nil
}

func (m *Manager) Companies() interfaces.CompanyStorage       { return m.companies }
func (m *Manager) Jobs() interfaces.JobStorage                { return m.jobs }
func (m *Manager) Cache() interfaces.CacheStore               { return m.cache }
func (m *Manager) CrawlLogs() interfaces.CrawlLogStorage       { return m.crawlLogs }
func (m *Manager) Subscriptions() interfaces.SubscriptionStorage { return m.subscriptions }

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.DB()
	}
	return nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
