package models

import "time"

// Company is a career page tracked by the scheduler. Created on first
// reference, updated on every successful crawl.
type Company struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	BaseURL       string     `json:"base_url"`
	Provider      string     `json:"provider,omitempty"`
	ProviderSlug  string     `json:"provider_slug,omitempty"`
	LastCrawledAt *time.Time `json:"last_crawled_at,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
