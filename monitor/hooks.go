package monitor

import (
	"context"
	"time"

	"github.com/rbaliyan/observable"
	"go.opentelemetry.io/otel/trace"
)

// Hooks returns dispatcher hooks that record every handler-mode invocation
// in store and then call the matching hook of next.
//
// A pending entry is written before the handler runs and completed after it
// returns. A handler error aborts its firing before PostFirePerClass runs,
// so its entry stays pending. Queued deliveries are not recorded; use
// Middleware for those.
//
// Example:
//
//	d := observable.New(
//	    observable.WithHooks(monitor.Hooks(store, observable.Hooks{
//	        PostFire: audit,
//	    })),
//	)
func Hooks(store Store, next observable.Hooks) observable.Hooks {
	h := next
	h.PreFirePerClass = func(ctx context.Context, event string, p observable.Priority, s observable.Subscriber) {
		record(ctx, store, newEntry(ctx, event))
		if next.PreFirePerClass != nil {
			next.PreFirePerClass(ctx, event, p, s)
		}
	}
	h.PostFirePerClass = func(ctx context.Context, event string, p observable.Priority, s observable.Subscriber) {
		firingID := observable.ContextFiringID(ctx)
		subscriptionID := observable.ContextSubscriptionID(ctx)

		var duration time.Duration
		if entry, err := store.Get(ctx, firingID, subscriptionID); err == nil && entry != nil {
			duration = time.Since(entry.StartedAt)
		}
		complete(ctx, store, firingID, subscriptionID, StatusCompleted, nil, duration)
		if next.PostFirePerClass != nil {
			next.PostFirePerClass(ctx, event, p, s)
		}
	}
	return h
}

// Middleware creates a dispatcher middleware that records every invocation,
// queued deliveries included, and marks failed handlers with StatusFailed.
//
// Use either Middleware or Hooks on one dispatcher; both write the same keys.
//
// Example:
//
//	d := observable.New(observable.WithMiddleware(monitor.Middleware(store)))
func Middleware(store Store) observable.Middleware {
	return func(next observable.HandlerFunc) observable.HandlerFunc {
		return func(ctx context.Context, args ...any) error {
			entry := newEntry(ctx, observable.ContextDescription(ctx))
			record(ctx, store, entry)

			start := time.Now()
			handlerErr := next(ctx, args...)
			duration := time.Since(start)

			status := StatusCompleted
			if handlerErr != nil {
				status = StatusFailed
			}
			complete(ctx, store, entry.FiringID, entry.SubscriptionID, status, handlerErr, duration)
			return handlerErr
		}
	}
}

// newEntry builds a pending entry from the dispatch context.
func newEntry(ctx context.Context, description string) *Entry {
	mode := Handler
	if observable.ContextQueued(ctx) {
		mode = Queued
	}

	entry := &Entry{
		FiringID:       observable.ContextFiringID(ctx),
		SubscriptionID: observable.ContextSubscriptionID(ctx),
		EventName:      observable.ContextEventName(ctx),
		Description:    description,
		Priority:       string(observable.ContextPriority(ctx)),
		Mode:           mode,
		Status:         StatusPending,
		StartedAt:      time.Now(),
	}
	if d := observable.ContextDispatcher(ctx); d != nil {
		entry.DispatcherID = d.ID()
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		entry.TraceID = span.SpanContext().TraceID().String()
		entry.SpanID = span.SpanContext().SpanID().String()
	}
	return entry
}

// record writes entry, best effort: a monitor failure never fails dispatch.
func record(ctx context.Context, store Store, entry *Entry) {
	if err := store.Record(ctx, entry); err != nil {
		if logger := observable.ContextLogger(ctx); logger != nil {
			logger.Warn("monitor record failed", "error", err)
		}
	}
}

func complete(ctx context.Context, store Store, firingID, subscriptionID string, status Status, handlerErr error, duration time.Duration) {
	if err := store.Complete(ctx, firingID, subscriptionID, status, handlerErr, duration); err != nil {
		if logger := observable.ContextLogger(ctx); logger != nil {
			logger.Warn("monitor update failed", "error", err)
		}
	}
}
