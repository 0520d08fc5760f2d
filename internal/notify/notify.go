// Package notify delivers lifecycle events to optional sinks.
// Delivery is fire and forget: no pipeline behavior depends on a sink
// accepting an event.
package notify

import (
	"log"
	"time"
)

// Event types emitted by the pipeline.
const (
	EventDecompositionComplete = "decomposition:complete"
	EventQualityPassed         = "quality:passed"
	EventQualityFailed         = "quality:failed"
	EventCreationComplete      = "creation:complete"
)

// Event is one lifecycle notification.
type Event struct {
	// Type is one of the Event* constants.
	Type string `json:"type"`
	// HierarchyID is the subject hierarchy.
	HierarchyID string `json:"hierarchy_id"`
	// Detail is a short human-readable summary.
	Detail string `json:"detail,omitempty"`
	// At is when the event was emitted.
	At time.Time `json:"at"`
}

// Sink receives lifecycle events. Implementations must not block for
// long and may fail silently; errors are deliberately not returned.
type Sink interface {
	Notify(event Event)
}

// LogSink writes events to the process log.
type LogSink struct{}

// Notify implements Sink.
func (LogSink) Notify(event Event) {
	log.Printf("[notify] %s hierarchy=%s %s", event.Type, event.HierarchyID, event.Detail)
}

// Multi fans one event out to several sinks.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(event Event) {
	for _, s := range m {
		s.Notify(event)
	}
}
