package observable

import (
	"context"
	"sync"
)

var (
	defaultOnce       sync.Once
	defaultDispatcher *Dispatcher
)

// Default returns the process-wide dispatcher used by the package-level
// functions. It is created on first use and never closed.
func Default() *Dispatcher {
	defaultOnce.Do(func() {
		defaultDispatcher = New()
	})
	return defaultDispatcher
}

// Subscribe registers s on the default dispatcher
func Subscribe(description string, s Subscriber, p Priority) (string, error) {
	return Default().Subscribe(context.Background(), description, s, p)
}

// WaitInQueue queues s for one delivery on the default dispatcher
func WaitInQueue(description string, s Subscriber, p Priority) error {
	return Default().WaitInQueue(context.Background(), description, s, p)
}

// SubscribeBulk subscribes l to everything it lists on the default dispatcher
func SubscribeBulk(l Lister) ([]string, error) {
	return Default().SubscribeBulk(context.Background(), l)
}

// Unsubscribe removes s from the default dispatcher
func Unsubscribe(s Subscriber) int {
	return Default().Unsubscribe(s)
}

// Fire dispatches synchronously on the default dispatcher
func Fire(ctx context.Context, description string, args ...any) error {
	return Default().Fire(ctx, description, args...)
}

// FireAsync schedules a deferred firing on the default dispatcher
func FireAsync(ctx context.Context, description string, args ...any) error {
	return Default().FireAsync(ctx, description, args...)
}

// SetPreFire installs the pre-fire hook of the default dispatcher
func SetPreFire(fn func(ctx context.Context, event string)) error {
	return Default().SetPreFire(fn)
}

// SetPreFirePerPriority installs the per-priority pre hook of the default dispatcher
func SetPreFirePerPriority(fn func(ctx context.Context, event string, priority Priority)) error {
	return Default().SetPreFirePerPriority(fn)
}

// SetPreFirePerClass installs the per-handler pre hook of the default dispatcher
func SetPreFirePerClass(fn func(ctx context.Context, event string, priority Priority, s Subscriber)) error {
	return Default().SetPreFirePerClass(fn)
}

// SetPostFirePerClass installs the per-handler post hook of the default dispatcher
func SetPostFirePerClass(fn func(ctx context.Context, event string, priority Priority, s Subscriber)) error {
	return Default().SetPostFirePerClass(fn)
}

// SetPostFirePerPriority installs the per-priority post hook of the default dispatcher
func SetPostFirePerPriority(fn func(ctx context.Context, event string, priority Priority)) error {
	return Default().SetPostFirePerPriority(fn)
}

// SetPostFire installs the post-fire hook of the default dispatcher
func SetPostFire(fn func(ctx context.Context, event string)) error {
	return Default().SetPostFire(fn)
}
