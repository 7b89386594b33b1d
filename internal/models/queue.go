package models

import "time"

// Priority ranks a QueueEntry for dispatch ordering. Zero value (CRITICAL)
// sorts first; higher values are lower priority.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground
)

// String returns the priority's canonical name, used in logs and stats.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "CRITICAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	case PriorityBackground:
		return "BACKGROUND"
	default:
		return "UNKNOWN"
	}
}

// QueueEntry is one in-memory, ephemeral candidate produced by the priority
// queue builder for a single scheduler tick.
type QueueEntry struct {
	CompanyID       int64
	Name            string
	URL             string
	Provider        string
	SubscriberCount int
	LastCrawledAt   *time.Time
	CacheExpiresAt  *time.Time
	Priority        Priority
}
