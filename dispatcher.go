package observable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rbaliyan/observable/scheduler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// NewID generates a new unique ID
func NewID() string {
	u, err := uuid.NewRandom()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

// Dispatcher is a process-local registry of events and their subscribers.
//
// Its state is shared by every publisher and subscriber holding it. Handlers
// and hooks are always invoked without internal locks held, so they may
// subscribe, unsubscribe or fire from inside a dispatch.
type Dispatcher struct {
	id     string
	name   string
	logger *slog.Logger

	mu            sync.RWMutex
	closed        bool
	events        map[string]*Event
	subscribers   map[Subscriber][]*registration
	registrations map[string]*registration
	hooks         Hooks

	middleware      []Middleware
	recoveryEnabled bool
	tracingEnabled  bool
	onError         func(event string, err error)
	loop            scheduler.Scheduler

	tracer     trace.Tracer
	fired      metric.Int64Counter
	delivered  metric.Int64Counter
	failed     metric.Int64Counter
	subscribed metric.Int64Counter
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	o := newDispatcherOptions(opts...)

	d := &Dispatcher{
		id:              NewID(),
		name:            o.name,
		logger:          o.logger.With("component", "dispatcher>"+o.name),
		events:          make(map[string]*Event),
		subscribers:     make(map[Subscriber][]*registration),
		registrations:   make(map[string]*registration),
		hooks:           o.hooks,
		middleware:      o.middleware,
		recoveryEnabled: o.recoveryEnabled,
		tracingEnabled:  o.tracingEnabled,
		onError:         o.onError,
		loop:            o.loop,
	}

	if d.onError == nil {
		d.onError = func(event string, err error) {
			d.logger.Error("deferred firing failed", "event", event, "error", err)
		}
	}
	if d.loop == nil {
		d.loop = scheduler.New(scheduler.WithLogger(d.logger))
	}
	if d.tracingEnabled {
		d.tracer = otel.Tracer(d.name)
	}
	if o.metricsEnabled {
		meter := otel.Meter(d.name)
		d.fired, _ = meter.Int64Counter("observable.fired",
			metric.WithDescription("Total number of firings"))
		d.delivered, _ = meter.Int64Counter("observable.delivered",
			metric.WithDescription("Total number of successful handler invocations"))
		d.failed, _ = meter.Int64Counter("observable.failed",
			metric.WithDescription("Total number of failed handler invocations"))
		d.subscribed, _ = meter.Int64Counter("observable.subscribed",
			metric.WithDescription("Total number of subscriptions"))
	}
	return d
}

// ID returns the dispatcher ID
func (d *Dispatcher) ID() string {
	return d.id
}

// Name returns the dispatcher name
func (d *Dispatcher) Name() string {
	return d.name
}

// Logger returns the dispatcher logger
func (d *Dispatcher) Logger() *slog.Logger {
	return d.logger
}

// Event returns the record of the event named by description, or nil when
// nothing ever subscribed to it.
func (d *Dispatcher) Event(description string) *Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.events[Normalize(description)]
}

// Events returns the canonical names of all event records, sorted.
func (d *Dispatcher) Events() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.events))
	for name := range d.events {
		names = append(names, name)
	}
	d.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Subscribe registers s to be invoked on every firing of the event named by
// description, at priority p (empty means DefaultPriority). It returns the
// registration id, usable with Cancel.
//
// Returns ErrInvalidArgument if the description is empty, s is nil or not
// comparable, or s has no handler for the canonical event name. Nothing is
// registered in that case.
func (d *Dispatcher) Subscribe(ctx context.Context, description string, s Subscriber, p Priority) (string, error) {
	r, err := d.subscribe(ctx, description, s, p, false)
	if err != nil {
		return "", err
	}
	return r.id, nil
}

// WaitInQueue registers s for a single delivery: the first firing that
// reaches its queue bucket while s is the oldest waiter there consumes it.
// At most one queued subscriber is delivered per firing. Queued
// registrations cannot be unsubscribed.
func (d *Dispatcher) WaitInQueue(ctx context.Context, description string, s Subscriber, p Priority) error {
	_, err := d.subscribe(ctx, description, s, p, true)
	return err
}

// SubscribeBulk subscribes l to every event it lists, in order.
// It stops at the first failure; earlier subscriptions stay registered.
func (d *Dispatcher) SubscribeBulk(ctx context.Context, l Lister) ([]string, error) {
	if err := RequireNotNil(l, "subscriber"); err != nil {
		return nil, err
	}
	specs := l.Events()
	if err := VerifyType(specs, KindArray, "subscriber.events"); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(specs))
	for _, spec := range specs {
		id, err := d.Subscribe(ctx, spec.Event, l, spec.Priority)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (d *Dispatcher) subscribe(ctx context.Context, description string, s Subscriber, p Priority, queued bool) (*registration, error) {
	name, handler, err := validateSubscription(description, s)
	if err != nil {
		return nil, err
	}

	r := &registration{
		id:         NewID(),
		subscriber: s,
		handler:    handler,
		priority:   p.orDefault(),
		queued:     queued,
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrDispatcherClosed
	}
	e, ok := d.events[name]
	if !ok {
		e = newEvent(d, name, description)
		d.events[name] = e
	}
	r.event = e
	if queued {
		e.queued[r.priority] = append(e.queued[r.priority], r)
	} else {
		e.handlers[r.priority] = append(e.handlers[r.priority], r)
		d.subscribers[s] = append(d.subscribers[s], r)
		d.registrations[r.id] = r
	}
	d.mu.Unlock()

	if !ok {
		d.logger.Debug("created event", "event", name, "description", description)
	}
	d.logger.Debug("subscribed", "event", name, "priority", r.priority, "queued", queued, "subscription", r.id)
	d.count(ctx, d.subscribed, name)
	return r, nil
}

func validateSubscription(description string, s Subscriber) (string, HandlerFunc, error) {
	if err := RequireNotNil(description, "event"); err != nil {
		return "", nil, err
	}
	name := Normalize(description)
	if err := RequireNotNil(name, "event"); err != nil {
		return "", nil, err
	}
	if err := RequireNotNil(s, "subscriber"); err != nil {
		return "", nil, err
	}
	if err := VerifyType(s, KindObject, "subscriber"); err != nil {
		return "", nil, err
	}
	if !isComparable(s) {
		return "", nil, invalidArgument("subscriber", "Invalid type for subscriber. Expecting comparable.")
	}
	label := "subscriber." + name
	handler := s.Handler(name)
	if err := RequireNotNil(handler, label); err != nil {
		return "", nil, err
	}
	return name, handler, nil
}

// Unsubscribe removes every handler-mode registration of s and returns how
// many were removed. Removing an unknown or already removed subscriber is a
// no-op. Queued registrations are not affected.
func (d *Dispatcher) Unsubscribe(s Subscriber) int {
	if s == nil || !isComparable(s) {
		return 0
	}

	d.mu.Lock()
	regs := d.subscribers[s]
	for _, r := range regs {
		d.remove(r)
	}
	delete(d.subscribers, s)
	d.mu.Unlock()

	if len(regs) > 0 {
		d.logger.Debug("unsubscribed", "registrations", len(regs))
	}
	return len(regs)
}

// Cancel removes the handler-mode registration with the given id.
// Returns false if no such registration exists.
func (d *Dispatcher) Cancel(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.registrations[id]
	if !ok {
		return false
	}
	d.remove(r)

	regs := slices.DeleteFunc(d.subscribers[r.subscriber], func(x *registration) bool {
		return x == r
	})
	if len(regs) == 0 {
		delete(d.subscribers, r.subscriber)
	} else {
		d.subscribers[r.subscriber] = regs
	}
	return true
}

// remove detaches r from its bucket by identity. Callers hold d.mu.
func (d *Dispatcher) remove(r *registration) {
	r.removed.Store(true)
	delete(d.registrations, r.id)

	bucket := r.event.handlers[r.priority]
	if i := slices.Index(bucket, r); i >= 0 {
		r.event.handlers[r.priority] = slices.Delete(bucket, i, i+1)
	}
}

// Fire synchronously dispatches args to the event named by description:
// every handler bucket in priority order, then at most one queued
// subscriber. Firing an event nobody subscribed to is a no-op.
//
// The first handler error aborts the rest of the firing and is returned
// wrapped in a *HandlerError.
func (d *Dispatcher) Fire(ctx context.Context, description string, args ...any) error {
	e, err := d.lookup(description)
	if err != nil || e == nil {
		return err
	}
	return e.fire(ctx, args, trace.SpanContext{})
}

// FireAsync schedules one firing of the event named by description on the
// dispatcher's run loop and returns immediately, with the args captured now.
// Its errors go to the handler set by WithErrorHandler.
//
// With the default loop the firing runs on the loop goroutine and may start
// before FireAsync's caller has returned, concurrently with it. With a loop
// from scheduler.NewManual it runs only when the owner calls Wait or Close,
// after the owner's call stack has unwound.
//
// The context passed to handlers keeps the values of ctx but not its
// cancellation.
func (d *Dispatcher) FireAsync(ctx context.Context, description string, args ...any) error {
	e, err := d.lookup(description)
	if err != nil || e == nil {
		return err
	}

	captured := slices.Clone(args)
	link := trace.SpanContextFromContext(ctx)
	detached := context.WithValue(context.WithoutCancel(ctx), deferredContextKey, d)

	err = d.loop.Schedule(func() {
		if err := e.fire(detached, captured, link); err != nil {
			d.onError(e.description, err)
		}
	})
	if errors.Is(err, scheduler.ErrClosed) {
		return ErrDispatcherClosed
	}
	return err
}

func (d *Dispatcher) lookup(description string) (*Event, error) {
	name := Normalize(description)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrDispatcherClosed
	}
	return d.events[name], nil
}

// Wait blocks until every deferred firing scheduled so far has run. With a
// manual loop the firings run on the calling goroutine.
//
// A deferred firing cannot wait for itself: called with the context of one
// of this dispatcher's deferred firings, Wait returns ErrWaitInDeferred.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if inDeferred(ctx, d) {
		return ErrWaitInDeferred
	}
	return d.loop.Wait(ctx)
}

// Close rejects further use of the dispatcher and waits for pending
// deferred firings to finish. Like Wait, it returns ErrWaitInDeferred,
// leaving the dispatcher open, when called from a deferred firing.
func (d *Dispatcher) Close(ctx context.Context) error {
	if inDeferred(ctx, d) {
		return ErrWaitInDeferred
	}

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	if err := d.loop.Close(ctx); err != nil {
		return fmt.Errorf("close scheduler: %w", err)
	}
	return nil
}

// wrap applies recovery and the configured middleware to a handler.
func (d *Dispatcher) wrap(h HandlerFunc) HandlerFunc {
	h = Chain(h, d.middleware...)
	if d.recoveryEnabled {
		h = RecoveryMiddleware()(h)
	}
	return h
}
