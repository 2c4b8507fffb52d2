package observable

import (
	"errors"
	"fmt"
)

// Dispatcher errors
var (
	// ErrInvalidArgument is returned for malformed registration or installer calls:
	// a missing value, a value of the wrong kind, or a subscriber that does not
	// handle the event it subscribes to.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDispatcherClosed is returned after Close by the operations that
	// register subscribers, install hooks or fire events. Unsubscribe, Cancel,
	// Event and Events keep working on a closed dispatcher.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrWaitInDeferred is returned by Wait and Close called from one of the
	// dispatcher's own deferred firings.
	ErrWaitInDeferred = errors.New("wait called from a deferred firing")

	// ErrHandlerPanic marks a handler panic converted into an error by recovery.
	ErrHandlerPanic = errors.New("handler panicked")
)

// InvalidArgumentError carries the message of a failed validation.
// It matches ErrInvalidArgument with errors.Is.
type InvalidArgumentError struct {
	Label   string
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return e.Message
}

// Is reports ErrInvalidArgument as the error kind.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func invalidArgument(label, format string, args ...any) error {
	return &InvalidArgumentError{
		Label:   label,
		Message: fmt.Sprintf(format, args...),
	}
}

// HandlerError wraps the first failure raised by a handler during a firing.
// The failure aborts the remaining handlers, buckets and hooks of that firing.
type HandlerError struct {
	Event          string
	Priority       Priority
	SubscriptionID string
	Queued         bool
	Err            error
}

func (e *HandlerError) Error() string {
	mode := "handler"
	if e.Queued {
		mode = "queued"
	}
	return fmt.Sprintf("event %q: %s at priority %q failed: %v", e.Event, mode, e.Priority, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// IsHandlerError checks if an error was raised by a handler during dispatch.
func IsHandlerError(err error) bool {
	var he *HandlerError
	return errors.As(err, &he)
}
