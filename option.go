package observable

import (
	"log/slog"

	"github.com/rbaliyan/observable/scheduler"
)

// DefaultDispatcherName is the name of dispatchers created without WithName.
var DefaultDispatcherName = "observable"

// dispatcherOptions holds configuration for a dispatcher (unexported)
type dispatcherOptions struct {
	name            string
	logger          *slog.Logger
	hooks           Hooks
	middleware      []Middleware
	recoveryEnabled bool
	tracingEnabled  bool
	metricsEnabled  bool
	onError         func(event string, err error)
	loop            scheduler.Scheduler
}

// Option option function for dispatcher configuration
type Option func(*dispatcherOptions)

// newDispatcherOptions creates options with defaults and applies provided options
func newDispatcherOptions(opts ...Option) *dispatcherOptions {
	o := &dispatcherOptions{
		name:            DefaultDispatcherName,
		logger:          slog.Default(),
		recoveryEnabled: true,
		tracingEnabled:  true,
		metricsEnabled:  true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithName sets the dispatcher name used in logs, spans and meters
func WithName(name string) Option {
	return func(o *dispatcherOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets a custom logger for the dispatcher
func WithLogger(l *slog.Logger) Option {
	return func(o *dispatcherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHooks installs lifecycle hooks at construction.
// Nil fields stay no-ops.
func WithHooks(h Hooks) Option {
	return func(o *dispatcherOptions) {
		o.hooks = o.hooks.merge(h)
	}
}

// WithMiddleware adds middleware around every handler and queued invocation.
// The first middleware added is the outermost.
func WithMiddleware(m ...Middleware) Option {
	return func(o *dispatcherOptions) {
		for _, mw := range m {
			if mw != nil {
				o.middleware = append(o.middleware, mw)
			}
		}
	}
}

// WithRecovery enable/disable conversion of handler panics into errors.
// recovery should always be enabled, can be disabled for testing.
func WithRecovery(v bool) Option {
	return func(o *dispatcherOptions) {
		o.recoveryEnabled = v
	}
}

// WithTracing enable/disable OpenTelemetry spans for firings
func WithTracing(v bool) Option {
	return func(o *dispatcherOptions) {
		o.tracingEnabled = v
	}
}

// WithMetrics enable/disable OpenTelemetry counters
func WithMetrics(v bool) Option {
	return func(o *dispatcherOptions) {
		o.metricsEnabled = v
	}
}

// WithErrorHandler sets the callback receiving errors of deferred firings.
// The caller of FireAsync cannot observe them; by default they are logged.
func WithErrorHandler(fn func(event string, err error)) Option {
	return func(o *dispatcherOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithScheduler sets the run loop executing deferred firings.
// The dispatcher owns the loop and closes it on Close.
//
// Pass scheduler.NewManual() to run deferred firings only when the owner
// calls Wait, never in parallel with it.
func WithScheduler(l scheduler.Scheduler) Option {
	return func(o *dispatcherOptions) {
		if l != nil {
			o.loop = l
		}
	}
}
