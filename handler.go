package observable

import "context"

// HandlerFunc receives the arguments of a firing.
// Returning an error aborts the remainder of that firing.
type HandlerFunc func(ctx context.Context, args ...any) error

// Subscriber is a component that handles events.
//
// Handler returns the callback for a canonical event name, or nil when the
// subscriber does not handle that event. The subscriber value itself is the
// registered unit: it is compared by equality on Unsubscribe, so its dynamic
// type must be comparable (pointer receivers are the usual choice).
type Subscriber interface {
	Handler(event string) HandlerFunc
}

// Spec names one subscription of a Lister.
// An empty Priority means DefaultPriority.
type Spec struct {
	Event    string
	Priority Priority
}

// On is shorthand for a Spec at the default priority.
func On(event string) Spec {
	return Spec{Event: event}
}

// OnPriority is shorthand for a Spec at priority p.
func OnPriority(event string, p Priority) Spec {
	return Spec{Event: event, Priority: p}
}

// Lister is a Subscriber that enumerates its own subscriptions.
// It is used with SubscribeBulk.
type Lister interface {
	Subscriber
	Events() []Spec
}

// funcSubscriber handles a single event with one callback.
type funcSubscriber struct {
	event string
	fn    HandlerFunc
}

// Func returns a subscriber handling only event with fn.
// Each call returns a distinct subscriber.
func Func(event string, fn HandlerFunc) Subscriber {
	return &funcSubscriber{event: Normalize(event), fn: fn}
}

func (s *funcSubscriber) Handler(event string) HandlerFunc {
	if event != s.event {
		return nil
	}
	return s.fn
}

// mapSubscriber handles several events, keyed by canonical name.
type mapSubscriber struct {
	handlers map[string]HandlerFunc
}

// Map returns a subscriber handling every event in handlers. Keys may be
// descriptions; they are normalized. Each call returns a distinct subscriber.
func Map(handlers map[string]HandlerFunc) Subscriber {
	m := &mapSubscriber{handlers: make(map[string]HandlerFunc, len(handlers))}
	for k, fn := range handlers {
		m.handlers[Normalize(k)] = fn
	}
	return m
}

func (s *mapSubscriber) Handler(event string) HandlerFunc {
	return s.handlers[event]
}
