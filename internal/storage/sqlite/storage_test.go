package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quaero/internal/common"
	"github.com/ternarybob/quaero/internal/models"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	cfg := &common.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "quaero.db"),
		CacheSizeMB:   8,
		BusyTimeoutMS: 2000,
	}
	db, err := NewSQLiteDB(arbor.NewLogger(), cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCompanyStorage_GetOrCreateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	companies := NewCompanyStorage(db, arbor.NewLogger())

	first, err := companies.GetOrCreate(context.Background(), "Acme", "https://acme.example.com")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.True(t, first.Active)

	second, err := companies.GetOrCreate(context.Background(), "Acme", "https://acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "a repeated base url must resolve to the same company row")
}

func TestCompanyStorage_UpdateProviderAndLastCrawled(t *testing.T) {
	db := newTestDB(t)
	companies := NewCompanyStorage(db, arbor.NewLogger())

	company, err := companies.GetOrCreate(context.Background(), "Acme", "https://acme.example.com")
	require.NoError(t, err)

	require.NoError(t, companies.UpdateProvider(context.Background(), company.ID, "greenhouse", "acme"))
	require.NoError(t, companies.UpdateLastCrawled(context.Background(), company.ID))

	reloaded, err := companies.Get(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Equal(t, "greenhouse", reloaded.Provider)
	assert.Equal(t, "acme", reloaded.ProviderSlug)
	require.NotNil(t, reloaded.LastCrawledAt)
}

func TestCompanyStorage_SubscriberCountAndAllSubscribed(t *testing.T) {
	db := newTestDB(t)
	companies := NewCompanyStorage(db, arbor.NewLogger())
	subs := NewSubscriptionStorage(db, arbor.NewLogger())

	popular, err := companies.GetOrCreate(context.Background(), "Popular", "https://popular.example.com")
	require.NoError(t, err)
	quiet, err := companies.GetOrCreate(context.Background(), "Quiet", "https://quiet.example.com")
	require.NoError(t, err)

	require.NoError(t, subs.Subscribe(context.Background(), popular.ID, "alice"))
	require.NoError(t, subs.Subscribe(context.Background(), popular.ID, "bob"))
	require.NoError(t, subs.Subscribe(context.Background(), popular.ID, "alice"), "re-subscribing the same user must be idempotent")

	count, err := companies.SubscriberCount(context.Background(), popular.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	quietCount, err := companies.SubscriberCount(context.Background(), quiet.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, quietCount)

	subscribed, err := companies.AllSubscribed(context.Background())
	require.NoError(t, err)
	require.Len(t, subscribed, 1)
	assert.Equal(t, popular.ID, subscribed[0].ID)

	require.NoError(t, subs.Unsubscribe(context.Background(), popular.ID, "alice"))
	count, err = companies.SubscriberCount(context.Background(), popular.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCompanyStorage_StaleReturnsNeverCrawledAndExpiredCache(t *testing.T) {
	db := newTestDB(t)
	companies := NewCompanyStorage(db, arbor.NewLogger())
	jobs := NewJobStorage(db, arbor.NewLogger())
	cache := NewCacheStore(db, jobs, arbor.NewLogger(), time.Hour)

	neverCrawled, err := companies.GetOrCreate(context.Background(), "Never", "https://never.example.com")
	require.NoError(t, err)

	fresh, err := companies.GetOrCreate(context.Background(), "Fresh", "https://fresh.example.com")
	require.NoError(t, err)
	require.NoError(t, cache.UpdateCache(context.Background(), fresh.ID, nil, "greenhouse", 10))
	require.NoError(t, companies.UpdateLastCrawled(context.Background(), fresh.ID))

	stale, err := companies.Stale(context.Background(), int64(time.Hour.Seconds()))
	require.NoError(t, err)

	ids := make([]int64, 0, len(stale))
	for _, c := range stale {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, neverCrawled.ID)
	assert.NotContains(t, ids, fresh.ID, "a company with a fresh cache and recent crawl must not be considered stale")
}

func TestCacheStore_UpdateAndGetCachedRoundTrips(t *testing.T) {
	db := newTestDB(t)
	companies := NewCompanyStorage(db, arbor.NewLogger())
	jobs := NewJobStorage(db, arbor.NewLogger())
	cache := NewCacheStore(db, jobs, arbor.NewLogger(), time.Hour)

	company, err := companies.GetOrCreate(context.Background(), "Acme", "https://acme.example.com")
	require.NoError(t, err)

	jobList := []models.Job{{Title: "Engineer", Location: "Remote"}}
	require.NoError(t, cache.UpdateCache(context.Background(), company.ID, jobList, "greenhouse", 250))

	entry, fresh, err := cache.GetCached(context.Background(), company.ID)
	require.NoError(t, err)
	assert.True(t, fresh)
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.JobCount)
	assert.Equal(t, "greenhouse", entry.Provider)
	require.Len(t, entry.Jobs, 1)
	assert.Equal(t, "Engineer", entry.Jobs[0].Title)
}

func TestCacheStore_GetCachedMissesWhenNoRow(t *testing.T) {
	db := newTestDB(t)
	companies := NewCompanyStorage(db, arbor.NewLogger())
	jobs := NewJobStorage(db, arbor.NewLogger())
	cache := NewCacheStore(db, jobs, arbor.NewLogger(), time.Hour)

	company, err := companies.GetOrCreate(context.Background(), "Acme", "https://acme.example.com")
	require.NoError(t, err)

	_, fresh, err := cache.GetCached(context.Background(), company.ID)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestCacheStore_UpsertJobAndMarkInactiveExcept(t *testing.T) {
	db := newTestDB(t)
	companies := NewCompanyStorage(db, arbor.NewLogger())
	jobs := NewJobStorage(db, arbor.NewLogger())
	cache := NewCacheStore(db, jobs, arbor.NewLogger(), time.Hour)

	company, err := companies.GetOrCreate(context.Background(), "Acme", "https://acme.example.com")
	require.NoError(t, err)

	job := &models.Job{Title: "Engineer", Location: "Remote"}
	require.NoError(t, cache.UpsertJob(context.Background(), company.ID, job))

	require.NoError(t, cache.MarkInactiveExcept(context.Background(), company.ID, nil))

	active, err := jobs.ListActive(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Empty(t, active, "the job not re-upserted after MarkInactiveExcept must be deactivated")
}

func TestCrawlLogStorage_AppendAndListByTick(t *testing.T) {
	db := newTestDB(t)
	logs := NewCrawlLogStorage(db, arbor.NewLogger())

	log1 := &models.CrawlLog{TickID: "tick-a", BatchID: "batch-1", CompanyID: 1, URL: "https://acme.example.com", Outcome: models.OutcomeSuccess, CreatedAt: time.Now()}
	log2 := &models.CrawlLog{TickID: "tick-b", BatchID: "batch-1", CompanyID: 2, URL: "https://other.example.com", Outcome: models.OutcomeError, CreatedAt: time.Now()}

	require.NoError(t, logs.Append(context.Background(), log1))
	require.NoError(t, logs.Append(context.Background(), log2))

	tickALogs, err := logs.ListByTick(context.Background(), "tick-a")
	require.NoError(t, err)
	require.Len(t, tickALogs, 1)
	assert.Equal(t, int64(1), tickALogs[0].CompanyID)
}
