package observable

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rbaliyan/observable/ratelimit"
)

// Middleware wraps a handler invocation.
//
// Example:
//
//	timing := func(next observable.HandlerFunc) observable.HandlerFunc {
//	    return func(ctx context.Context, args ...any) error {
//	        start := time.Now()
//	        err := next(ctx, args...)
//	        log.Printf("%s took %v", observable.ContextEventName(ctx), time.Since(start))
//	        return err
//	    }
//	}
//	d := observable.New(observable.WithMiddleware(timing))
type Middleware func(HandlerFunc) HandlerFunc

// Chain composes middleware; the first element is the outermost.
func Chain(handler HandlerFunc, middleware ...Middleware) HandlerFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// RecoveryMiddleware converts a panic into an error wrapping ErrHandlerPanic.
func RecoveryMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, args ...any) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if logger := ContextLogger(ctx); logger != nil {
						logger.Error("handler panic recovered",
							"event", ContextEventName(ctx),
							"priority", ContextPriority(ctx),
							"error", r,
							"stack", string(debug.Stack()),
						)
					}
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(ctx, args...)
		}
	}
}

// RateLimitMiddleware delays every invocation until l admits it. If ctx is
// done first, the invocation fails with the context error.
func RateLimitMiddleware(l ratelimit.Limiter) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, args ...any) error {
			if err := l.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit: %w", err)
			}
			return next(ctx, args...)
		}
	}
}

// EventRateLimitMiddleware gives every event its own bucket from k, keyed by
// canonical event name, so one busy event cannot starve the others.
func EventRateLimitMiddleware(k *ratelimit.Keyed) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, args ...any) error {
			if err := k.For(ContextEventName(ctx)).Wait(ctx); err != nil {
				return fmt.Errorf("rate limit %s: %w", ContextEventName(ctx), err)
			}
			return next(ctx, args...)
		}
	}
}

// TimeoutMiddleware gives every invocation a context deadline of d.
// Handlers must observe ctx themselves; dispatch is never interrupted.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, args ...any) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, args...)
		}
	}
}
