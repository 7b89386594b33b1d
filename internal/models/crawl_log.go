package models

import (
	"strconv"
	"time"
)

// Outcome tags for crawl_logs rows, named after the HTTP Fetcher's
// retry/classification policy. The worker pool writes only OutcomeSuccess
// and OutcomeError.
const (
	OutcomeSuccess      = "success"
	OutcomeRateLimited  = "rate_limited"
	OutcomeAccessDenied = "access_denied"
	OutcomeTimeout      = "timeout"
	OutcomeClientError  = "client_error"
	OutcomeError        = "error"
)

// OutcomeHTTPStatus formats the http_<n> outcome tag for a non-2xx,
// non-special-cased response status.
func OutcomeHTTPStatus(status int) string {
	return "http_" + strconv.Itoa(status)
}

// CrawlLog is one append-only row recording the outcome of one company's crawl
// (cache hit, API pass or HTML pass), correlated to a scheduler tick/batch for
// auditing. Individual fetch attempts are not logged.
type CrawlLog struct {
	ID              int64     `json:"id"`
	TickID          string    `json:"tick_id"`
	BatchID         string    `json:"batch_id"`
	CompanyID       int64     `json:"company_id,omitempty"`
	URL             string    `json:"url"`
	Outcome         string    `json:"outcome"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	ResponseTimeMS  int64     `json:"response_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
