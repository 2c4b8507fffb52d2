package observable

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	spanKeyEventName        = "event.name"
	spanKeyEventDescription = "event.description"
	spanKeyFiringID         = "event.firing_id"
	spanKeyDispatcher       = "event.dispatcher"
)

// registration is one subscription of a subscriber to an event.
type registration struct {
	id         string
	subscriber Subscriber
	handler    HandlerFunc
	priority   Priority
	queued     bool
	event      *Event
	removed    atomic.Bool
}

// Event is the record of one canonical event name: its handler buckets,
// its queue buckets and the dispatch logic. Records are created lazily by
// the first subscription and live as long as their dispatcher.
//
// Event values are read-only for collaborators; registration goes through
// the Dispatcher.
type Event struct {
	d           *Dispatcher
	name        string
	description string
	handlers    map[Priority][]*registration
	queued      map[Priority][]*registration
}

func newEvent(d *Dispatcher, name, description string) *Event {
	return &Event{
		d:           d,
		name:        name,
		description: description,
		handlers:    make(map[Priority][]*registration),
		queued:      make(map[Priority][]*registration),
	}
}

// Name returns the canonical event name
func (e *Event) Name() string {
	return e.name
}

// Description returns the description the event was created with
func (e *Event) Description() string {
	return e.description
}

// Priorities returns the handler bucket priorities in visiting order
func (e *Event) Priorities() []Priority {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return orderedKeys(e.handlers)
}

// QueuedPriorities returns the queue bucket priorities in visiting order
func (e *Event) QueuedPriorities() []Priority {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return orderedKeys(e.queued)
}

// Handlers returns the subscribers of bucket p in registration order
func (e *Event) Handlers(p Priority) []Subscriber {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return subscribersOf(e.handlers[p.orDefault()])
}

// Queued returns the subscribers waiting in queue bucket p, oldest first
func (e *Event) Queued(p Priority) []Subscriber {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return subscribersOf(e.queued[p.orDefault()])
}

// Len returns the number of handler-mode registrations
func (e *Event) Len() int {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	n := 0
	for _, regs := range e.handlers {
		n += len(regs)
	}
	return n
}

// QueueLen returns the number of pending queued subscribers
func (e *Event) QueueLen() int {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	n := 0
	for _, regs := range e.queued {
		n += len(regs)
	}
	return n
}

// snapshot copies bucket p so the pass over it is unaffected by
// registrations added or removed while it runs.
func (e *Event) snapshot(p Priority) []*registration {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return append([]*registration(nil), e.handlers[p]...)
}

// dequeue pops the oldest subscriber of the first non-empty queue bucket.
func (e *Event) dequeue() *registration {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	for _, p := range orderedKeys(e.queued) {
		regs := e.queued[p]
		if len(regs) == 0 {
			continue
		}
		r := regs[0]
		regs[0] = nil
		e.queued[p] = regs[1:]
		return r
	}
	return nil
}

// fire runs one complete firing. The first handler error aborts the rest of
// the firing, including the remaining hooks.
func (e *Event) fire(ctx context.Context, args []any, link trace.SpanContext) (err error) {
	d := e.d
	firingID := NewID()
	ctx = withFiring(ctx, d, e, firingID)

	if d.tracingEnabled {
		var span trace.Span
		spanOpts := []trace.SpanStartOption{
			trace.WithAttributes(
				attribute.String(spanKeyEventName, e.name),
				attribute.String(spanKeyEventDescription, e.description),
				attribute.String(spanKeyFiringID, firingID),
				attribute.String(spanKeyDispatcher, d.name)),
			trace.WithSpanKind(trace.SpanKindInternal),
		}
		if link.IsValid() {
			spanOpts = append(spanOpts, trace.WithLinks(trace.Link{SpanContext: link}))
		}
		ctx, span = d.tracer.Start(ctx, fmt.Sprintf("%s.fire", e.name), spanOpts...)
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}()
	}
	d.count(ctx, d.fired, e.name)

	hooks := d.Hooks()
	hooks.preFire(ctx, e.description)

	for _, p := range e.Priorities() {
		pctx := withInvocation(ctx, p, "", false)
		hooks.preFirePerPriority(pctx, e.description, p)
		for _, r := range e.snapshot(p) {
			if r.removed.Load() {
				continue
			}
			rctx := withInvocation(ctx, p, r.id, false)
			hooks.preFirePerClass(rctx, e.description, p, r.subscriber)
			if err := d.invoke(rctx, r, args); err != nil {
				return err
			}
			hooks.postFirePerClass(rctx, e.description, p, r.subscriber)
		}
		hooks.postFirePerPriority(pctx, e.description, p)
	}

	if r := e.dequeue(); r != nil {
		rctx := withInvocation(ctx, r.priority, "", true)
		if err := d.invoke(rctx, r, args); err != nil {
			return err
		}
	}

	hooks.postFire(ctx, e.description)
	return nil
}

// invoke calls the handler of r through the middleware chain.
func (d *Dispatcher) invoke(ctx context.Context, r *registration, args []any) error {
	if err := d.wrap(r.handler)(ctx, args...); err != nil {
		d.count(ctx, d.failed, r.event.name)
		id := r.id
		if r.queued {
			id = ""
		}
		return &HandlerError{
			Event:          r.event.name,
			Priority:       r.priority,
			SubscriptionID: id,
			Queued:         r.queued,
			Err:            err,
		}
	}
	d.count(ctx, d.delivered, r.event.name)
	return nil
}

func (d *Dispatcher) count(ctx context.Context, c metric.Int64Counter, event string) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func orderedKeys(m map[Priority][]*registration) []Priority {
	keys := make([]Priority, 0, len(m))
	for p := range m {
		keys = append(keys, p)
	}
	sortPriorities(keys)
	return keys
}

func subscribersOf(regs []*registration) []Subscriber {
	out := make([]Subscriber, len(regs))
	for i, r := range regs {
		out[i] = r.subscriber
	}
	return out
}
