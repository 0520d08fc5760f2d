package models

// StreamState represents the scheduling state of a stream task.
type StreamState string

const (
	// StreamPending means the task has not been dispatched yet.
	StreamPending StreamState = "pending"
	// StreamRunning means the task is currently executing.
	StreamRunning StreamState = "running"
	// StreamDone means the task completed successfully.
	StreamDone StreamState = "done"
	// StreamFailed means the task failed, or was blocked by a failed
	// dependency and never ran.
	StreamFailed StreamState = "failed"
)

// Valid returns true if the state is a known value.
func (s StreamState) Valid() bool {
	switch s {
	case StreamPending, StreamRunning, StreamDone, StreamFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true once the task can no longer change state.
func (s StreamState) Terminal() bool {
	return s == StreamDone || s == StreamFailed
}

// StreamTask is one schedulable unit in the orchestrator's dependency
// graph. Tasks with no unmet dependency run concurrently up to the
// configured limit.
type StreamTask struct {
	// StreamID is the registered name of the stream implementation.
	StreamID string `json:"stream_id"`
	// DependsOn lists the stream IDs that must reach Done first.
	DependsOn []string `json:"depends_on,omitempty"`
	// State is the current scheduling state.
	State StreamState `json:"state"`
	// BlockedBy is set when State is Failed because a dependency
	// failed. Empty for tasks that actually ran and failed.
	BlockedBy string `json:"blocked_by,omitempty"`
}
