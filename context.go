package observable

import (
	"context"
	"log/slog"
)

const (
	dispatchContextKey contextKey = iota
	deferredContextKey
)

// contextKey
type contextKey int

// dispatchContextData is the per-invocation data carried to handlers and hooks.
type dispatchContextData struct {
	name           string
	description    string
	firingID       string
	priority       Priority
	subscriptionID string
	queued         bool
	logger         *slog.Logger
	dispatcher     *Dispatcher
}

// inDeferred reports whether ctx belongs to a deferred firing of d.
func inDeferred(ctx context.Context, d *Dispatcher) bool {
	owner, ok := ctx.Value(deferredContextKey).(*Dispatcher)
	return ok && owner == d
}

func contextData(ctx context.Context) (*dispatchContextData, bool) {
	s, ok := ctx.Value(dispatchContextKey).(*dispatchContextData)
	return s, ok
}

// ContextEventName get canonical event name stored in context
func ContextEventName(ctx context.Context) string {
	if s, ok := contextData(ctx); ok {
		return s.name
	}
	return ""
}

// ContextDescription get event description stored in context
func ContextDescription(ctx context.Context) string {
	if s, ok := contextData(ctx); ok {
		return s.description
	}
	return ""
}

// ContextFiringID get the id of the current firing
func ContextFiringID(ctx context.Context) string {
	if s, ok := contextData(ctx); ok {
		return s.firingID
	}
	return ""
}

// ContextPriority get the priority of the bucket being dispatched.
// Empty outside a bucket pass.
func ContextPriority(ctx context.Context) Priority {
	if s, ok := contextData(ctx); ok {
		return s.priority
	}
	return ""
}

// ContextSubscriptionID get the registration id of the handler being invoked.
// Empty for queued deliveries, which are not tracked.
func ContextSubscriptionID(ctx context.Context) string {
	if s, ok := contextData(ctx); ok {
		return s.subscriptionID
	}
	return ""
}

// ContextQueued reports whether the invocation is a queued delivery
func ContextQueued(ctx context.Context) bool {
	if s, ok := contextData(ctx); ok {
		return s.queued
	}
	return false
}

// ContextLogger get dispatcher logger stored in context
func ContextLogger(ctx context.Context) *slog.Logger {
	if s, ok := contextData(ctx); ok {
		return s.logger
	}
	return nil
}

// ContextDispatcher get the dispatcher running the firing
func ContextDispatcher(ctx context.Context) *Dispatcher {
	if s, ok := contextData(ctx); ok {
		return s.dispatcher
	}
	return nil
}

// withFiring starts the context of a firing.
func withFiring(ctx context.Context, d *Dispatcher, e *Event, firingID string) context.Context {
	return context.WithValue(ctx, dispatchContextKey, &dispatchContextData{
		name:        e.name,
		description: e.description,
		firingID:    firingID,
		logger:      d.logger,
		dispatcher:  d,
	})
}

// withInvocation narrows a firing context to one bucket or one handler.
// The parent data is copied so sibling invocations never share state.
func withInvocation(ctx context.Context, priority Priority, subscriptionID string, queued bool) context.Context {
	s, ok := contextData(ctx)
	if !ok {
		return ctx
	}
	next := *s
	next.priority = priority
	next.subscriptionID = subscriptionID
	next.queued = queued
	return context.WithValue(ctx, dispatchContextKey, &next)
}
