package models

import "time"

// CacheEntry is the write-through cache row for one company. A read is only
// valid while ExpiresAt is in the future.
type CacheEntry struct {
	CompanyID  int64     `json:"company_id"`
	Jobs       []Job     `json:"jobs"`
	JobCount   int       `json:"job_count"`
	Provider   string    `json:"provider,omitempty"`
	CrawledAt  time.Time `json:"crawled_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Fresh reports whether the cache entry is still valid at the given instant.
func (c *CacheEntry) Fresh(now time.Time) bool {
	return c.ExpiresAt.After(now)
}
