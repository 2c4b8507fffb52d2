// Package monitor records handler invocations of an observable dispatcher.
//
// Tracking granularity follows the delivery mode:
//   - Handler: tracked per (FiringID, SubscriptionID), one entry per handler
//     invoked by a firing
//   - Queued: tracked per FiringID only, since a firing delivers to at most
//     one queued subscriber
//
// Example usage:
//
//	store := monitor.NewMemoryStore()
//	defer store.Close()
//
//	d := observable.New(
//	    observable.WithHooks(monitor.Hooks(store, observable.Hooks{})),
//	)
//
//	// Query monitor entries
//	page, err := store.List(ctx, monitor.Filter{
//	    Status:    []monitor.Status{monitor.StatusPending},
//	    StartTime: time.Now().Add(-time.Hour),
//	    Limit:     100,
//	})
//
// An entry still pending after its firing returned marks the handler that
// aborted that firing.
package monitor

import (
	"time"
)

// Mode is the delivery mode of a recorded invocation.
type Mode int

const (
	// Handler is a handler-mode invocation, keyed by (FiringID, SubscriptionID).
	Handler Mode = iota

	// Queued is a single-consumer delivery, keyed by FiringID.
	Queued
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case Handler:
		return "handler"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// ParseMode parses a string into a Mode.
// Returns Handler for unknown values.
func ParseMode(s string) Mode {
	switch s {
	case "queued":
		return Queued
	default:
		return Handler
	}
}

// Status represents the processing status of a monitor entry.
type Status string

const (
	// StatusPending indicates the handler has started but not completed.
	StatusPending Status = "pending"

	// StatusCompleted indicates the handler succeeded.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the handler returned an error, aborting its firing.
	StatusFailed Status = "failed"
)

// Entry represents a single monitor record of a handler invocation.
type Entry struct {
	// For Handler: (FiringID, SubscriptionID) is the unique key
	// For Queued: FiringID is the unique key
	FiringID       string `json:"firing_id" msgpack:"firing_id"`
	SubscriptionID string `json:"subscription_id" msgpack:"subscription_id"`

	EventName    string `json:"event_name" msgpack:"event_name"`
	Description  string `json:"description" msgpack:"description"`
	DispatcherID string `json:"dispatcher_id" msgpack:"dispatcher_id"`
	Priority     string `json:"priority" msgpack:"priority"`
	Mode         Mode   `json:"mode" msgpack:"mode"`

	Status Status `json:"status" msgpack:"status"`
	Error  string `json:"error,omitempty" msgpack:"error,omitempty"`

	StartedAt   time.Time     `json:"started_at" msgpack:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" msgpack:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty" msgpack:"duration,omitempty"`

	// OpenTelemetry correlation
	TraceID string `json:"trace_id,omitempty" msgpack:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty" msgpack:"span_id,omitempty"`
}

// IsComplete returns true if the handler returned.
func (e *Entry) IsComplete() bool {
	return e.Status == StatusCompleted || e.Status == StatusFailed
}

// HasError returns true if the entry has an error recorded.
func (e *Entry) HasError() bool {
	return e.Error != ""
}
