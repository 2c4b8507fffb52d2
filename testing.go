package observable

import (
	"context"
	"sync"
	"time"
)

// RecordedCall represents a single invocation received by a Recorder
type RecordedCall struct {
	Event          string
	Priority       Priority
	SubscriptionID string
	Queued         bool
	Args           []any
	Time           time.Time
}

// Recorder is a subscriber for tests. It handles every event, records each
// invocation and optionally delegates to a callback.
//
// Example:
//
//	rec := observable.NewRecorder(nil)
//	d.Subscribe(ctx, "order placed", rec, "")
//	d.Fire(ctx, "order placed", 42)
//	rec.Count() // 1
type Recorder struct {
	mu       sync.Mutex
	received []RecordedCall
	handler  HandlerFunc
	events   []Spec
}

// NewRecorder creates a recorder. If handler is nil, every invocation succeeds.
func NewRecorder(handler HandlerFunc, events ...Spec) *Recorder {
	return &Recorder{
		received: make([]RecordedCall, 0),
		handler:  handler,
		events:   events,
	}
}

// Handler implements Subscriber for every event name
func (r *Recorder) Handler(event string) HandlerFunc {
	return func(ctx context.Context, args ...any) error {
		r.mu.Lock()
		r.received = append(r.received, RecordedCall{
			Event:          event,
			Priority:       ContextPriority(ctx),
			SubscriptionID: ContextSubscriptionID(ctx),
			Queued:         ContextQueued(ctx),
			Args:           args,
			Time:           time.Now(),
		})
		r.mu.Unlock()

		if r.handler != nil {
			return r.handler(ctx, args...)
		}
		return nil
	}
}

// Events implements Lister with the specs given to NewRecorder
func (r *Recorder) Events() []Spec {
	return r.events
}

// Received returns a copy of all received calls
func (r *Recorder) Received() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]RecordedCall, len(r.received))
	copy(result, r.received)
	return result
}

// Count returns the number of calls received
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

// Last returns the last received call, or nil if none
func (r *Recorder) Last() *RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.received) == 0 {
		return nil
	}
	last := r.received[len(r.received)-1]
	return &last
}

// Reset clears all received calls
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.received = make([]RecordedCall, 0)
	r.mu.Unlock()
}

// WaitFor waits until at least n calls are received or the timeout expires
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if r.Count() >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return r.Count() >= n
}

var _ Lister = (*Recorder)(nil)
