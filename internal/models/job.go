package models

import "time"

// Job is one posting scraped or fetched for a Company. Unique by
// (company, title, location); upsert refreshes fields and re-activates.
type Job struct {
	ID             int64      `json:"id"`
	CompanyID      int64      `json:"company_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location"`
	Department     string     `json:"department,omitempty"`
	EmploymentType string     `json:"employment_type,omitempty"`
	ApplyURL       string     `json:"apply_url"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	ScrapedAt      time.Time  `json:"scraped_at"`
	Active         bool       `json:"active"`
}

// Source tags where a Job record came from.
const (
	SourceAPI  = "api"
	SourceHTML = "html"
)
