package sqlite

const schemaSQL = `
-- Companies being tracked for job postings. base_url is the career page
-- (or ATS slug source) the crawler starts from.
CREATE TABLE IF NOT EXISTS companies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	base_url TEXT NOT NULL UNIQUE,
	provider TEXT,
	provider_slug TEXT,
	last_crawled_at INTEGER,
	active INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_active ON companies(active);

-- Company subscriptions: tuple (subscriber, company), unique. Used only to
-- aggregate a subscriber count per company in the queue builder.
CREATE TABLE IF NOT EXISTS company_subscriptions (
	company_id INTEGER NOT NULL,
	subscriber TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (company_id, subscriber),
	FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_subscriptions_company ON company_subscriptions(company_id);

-- Jobs discovered during crawling. Unique by (company, title, location) so a
-- repeat sighting upserts in place rather than duplicating.
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	location TEXT NOT NULL DEFAULT '',
	department TEXT,
	employment_type TEXT,
	apply_url TEXT NOT NULL,
	posted_at INTEGER,
	scraped_at INTEGER NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	UNIQUE(company_id, title, location),
	FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_jobs_company ON jobs(company_id, active);
CREATE INDEX IF NOT EXISTS idx_jobs_scraped ON jobs(scraped_at);

-- job_cache is the write-through cache keyed by company, one row per company.
-- expires_at = crawled_at + TTL; a read is only valid while expires_at > now.
CREATE TABLE IF NOT EXISTS job_cache (
	company_id INTEGER PRIMARY KEY,
	jobs_json TEXT NOT NULL,
	job_count INTEGER NOT NULL DEFAULT 0,
	provider TEXT,
	crawled_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (company_id) REFERENCES companies(id) ON DELETE CASCADE
);

-- crawl_logs is an append-only record with one row per company crawl, written
-- by the worker pool with outcome success or error; individual fetch attempts
-- and their retry outcomes are not recorded. Rows are correlated by
-- tick_id/batch_id to one scheduler iteration for after-the-fact auditing.
CREATE TABLE IF NOT EXISTS crawl_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tick_id TEXT NOT NULL,
	batch_id TEXT NOT NULL,
	company_id INTEGER,
	url TEXT NOT NULL,
	outcome TEXT NOT NULL, -- success|rate_limited|access_denied|http_<n>|timeout|client_error|error
	error_message TEXT,
	response_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_crawl_logs_tick ON crawl_logs(tick_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_crawl_logs_company ON crawl_logs(company_id, created_at DESC);
`

// InitSchema initializes the database schema and runs versioned migrations.
func (s *SQLiteDB) InitSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return err
	}
	s.logger.Info().Msg("Database schema initialized")

	if err := s.migrate(); err != nil {
		return err
	}

	return nil
}
