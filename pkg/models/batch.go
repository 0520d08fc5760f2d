package models

import "time"

// BatchState represents the replication state of a batch operation.
type BatchState string

const (
	// BatchPending means the batch has not been submitted yet.
	BatchPending BatchState = "pending"
	// BatchInFlight means the batch is being submitted.
	BatchInFlight BatchState = "in_flight"
	// BatchPartiallySucceeded means some items succeeded and some
	// ended as permanent errors.
	BatchPartiallySucceeded BatchState = "partially_succeeded"
	// BatchSucceeded means every item got an external ref.
	BatchSucceeded BatchState = "succeeded"
	// BatchFailed means no item in the batch succeeded.
	BatchFailed BatchState = "failed"
)

// Valid returns true if the state is a known value.
func (s BatchState) Valid() bool {
	switch s {
	case BatchPending, BatchInFlight, BatchPartiallySucceeded, BatchSucceeded, BatchFailed:
		return true
	default:
		return false
	}
}

// BatchOperation is a bounded group of hierarchy nodes replicated
// together to the external tracker. Items within a batch are all at the
// same hierarchy level; a parent's batch is always submitted before
// batches holding its children.
type BatchOperation struct {
	// ID identifies the batch in logs and timings.
	ID string `json:"id"`
	// Level is the hierarchy level of every item in the batch.
	Level Level `json:"level"`
	// Items is the ordered list of node IDs to replicate.
	Items []string `json:"items"`
	// Attempt counts submissions of this batch, starting at 0.
	Attempt int `json:"attempt"`
	// State is the current replication state.
	State BatchState `json:"state"`
}

// BatchTiming records how long one batch took end to end.
type BatchTiming struct {
	BatchID  string        `json:"batch_id"`
	Level    Level         `json:"level"`
	Items    int           `json:"items"`
	Duration time.Duration `json:"duration"`
}
