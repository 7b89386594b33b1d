package common

import (
	"github.com/google/uuid"
)

// NewTickID generates a unique id for one scheduler loop iteration, used to
// correlate log lines and crawl-log rows across a single tick.
// Format: tick_<uuid>
func NewTickID() string {
	return "tick_" + uuid.New().String()
}

// NewBatchID generates a unique id for one dispatched batch within a tick.
// Format: batch_<uuid>
func NewBatchID() string {
	return "batch_" + uuid.New().String()
}
