// Package scheduler provides the serial run loop used for deferred dispatch.
//
// A Loop runs scheduled tasks one at a time, in the order they were
// scheduled. Scheduling never blocks the caller and never runs the task
// inline. Two kinds of loop exist:
//
//   - New starts a background goroutine that drains the queue. A task may
//     start as soon as Schedule returns, so it can run concurrently with the
//     goroutine that scheduled it.
//   - NewManual starts no goroutine. Tasks run on the owner's goroutine when
//     it calls Drain, Wait or Close, so a task never starts before the
//     owner's current call stack has unwound and never runs in parallel with
//     it.
//
// # Basic Usage
//
//	loop := scheduler.New()
//	defer loop.Close(ctx)
//
//	loop.Schedule(func() {
//	    fmt.Println("runs on the loop goroutine")
//	})
//
//	// Block until everything scheduled so far has run
//	loop.Wait(ctx)
//
// # Manual Loops
//
//	loop := scheduler.NewManual()
//	loop.Schedule(func() { fmt.Println("second") })
//	fmt.Println("first")
//	loop.Drain(ctx) // prints "second"
//
// # Ordering
//
// Tasks scheduled from within a running task are appended to the end of the
// queue and run after every task already queued.
//
// # Panics
//
// A panicking task does not stop the loop. The panic is passed to the
// handler set with WithPanicHandler, or logged at error level.
//
// # Waiting From a Task
//
// A running task counts as pending, so Wait or Close called from inside a
// task of a background loop only returns when its context is done. A manual
// loop detects the call and returns ErrReentrant.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

var (
	// ErrClosed is returned when scheduling on a closed loop.
	ErrClosed = errors.New("scheduler: loop is closed")

	// ErrReentrant is returned when a manual loop is drained from one of
	// its own tasks.
	ErrReentrant = errors.New("scheduler: loop drained from a running task")

	// ErrNotManual is returned by Drain on a loop with its own goroutine.
	ErrNotManual = errors.New("scheduler: loop is not manual")
)

// Task is a unit of deferred work.
type Task func()

// Scheduler schedules tasks for deferred execution.
// All implementations must be safe for concurrent use.
type Scheduler interface {
	// Schedule queues a task. It never runs the task inline.
	Schedule(task Task) error

	// Wait blocks until every task scheduled so far has run,
	// or the context is done.
	Wait(ctx context.Context) error

	// Close stops accepting tasks, runs the queued ones and stops the loop.
	Close(ctx context.Context) error
}

// loopOptions holds configuration for a loop.
type loopOptions struct {
	logger       *slog.Logger
	panicHandler func(recovered any, stack []byte)
}

// Option configures a Loop.
type Option func(*loopOptions)

// WithLogger sets the logger used for recovered panics.
func WithLogger(l *slog.Logger) Option {
	return func(o *loopOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPanicHandler sets the callback receiving panics raised by tasks.
func WithPanicHandler(fn func(recovered any, stack []byte)) Option {
	return func(o *loopOptions) {
		if fn != nil {
			o.panicHandler = fn
		}
	}
}

// Loop is an unbounded FIFO of tasks drained by one goroutine at a time.
type Loop struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Task
	inflight int
	idle     chan struct{}
	closed   bool
	done     chan struct{}
	opts     loopOptions

	manual   bool
	draining bool
}

// New creates a loop and starts its goroutine.
func New(opts ...Option) *Loop {
	l := newLoop(opts)
	go l.run()
	return l
}

// NewManual creates a loop without a goroutine. Its tasks run on the
// goroutine calling Drain, Wait or Close, which should be the one owning
// the loop.
func NewManual(opts ...Option) *Loop {
	l := newLoop(opts)
	l.manual = true
	return l
}

func newLoop(opts []Option) *Loop {
	o := loopOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	idle := make(chan struct{})
	close(idle)

	l := &Loop{
		idle: idle,
		done: make(chan struct{}),
		opts: o,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Manual reports whether the loop is driven by its owner.
func (l *Loop) Manual() bool {
	return l.manual
}

// Schedule appends task to the queue.
func (l *Loop) Schedule(task Task) error {
	if task == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if l.inflight == 0 {
		l.idle = make(chan struct{})
	}
	l.inflight++
	l.queue = append(l.queue, task)
	l.cond.Signal()
	return nil
}

// Len returns the number of tasks scheduled but not yet finished.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight
}

// Wait blocks until the loop is idle or the context is done.
// Tasks scheduled while waiting extend the wait. On a manual loop Wait
// drains the queue on the calling goroutine.
func (l *Loop) Wait(ctx context.Context) error {
	if l.manual {
		return l.Drain(ctx)
	}
	for {
		l.mu.Lock()
		idle := l.idle
		pending := l.inflight
		l.mu.Unlock()

		if pending == 0 {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting tasks and waits until queued tasks have run.
// Calling Close more than once is safe.
func (l *Loop) Close(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Broadcast()
	}
	l.mu.Unlock()

	if l.manual {
		return l.Drain(ctx)
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain runs queued tasks on the calling goroutine, including tasks they
// schedule, until the queue is empty or ctx is done. ctx is checked between
// tasks; a running task is never interrupted. Only manual loops can be
// drained.
func (l *Loop) Drain(ctx context.Context) error {
	if !l.manual {
		return ErrNotManual
	}

	l.mu.Lock()
	if l.draining {
		l.mu.Unlock()
		return ErrReentrant
	}
	l.draining = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.draining = false
		l.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		task, ok := l.pop()
		l.mu.Unlock()
		if !ok {
			return nil
		}
		l.exec(task)
		l.finish()
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		task, ok := l.pop()
		l.mu.Unlock()
		if !ok {
			return
		}

		l.exec(task)
		l.finish()
	}
}

// pop removes the head of the queue. Callers hold l.mu.
func (l *Loop) pop() (Task, bool) {
	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

func (l *Loop) finish() {
	l.mu.Lock()
	l.inflight--
	if l.inflight == 0 {
		close(l.idle)
	}
	l.mu.Unlock()
}

func (l *Loop) exec(task Task) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			if l.opts.panicHandler != nil {
				l.opts.panicHandler(r, stack)
				return
			}
			l.opts.logger.Error("scheduled task panic recovered",
				"error", r,
				"stack", string(stack),
			)
		}
	}()
	task()
}

// Compile-time check
var _ Scheduler = (*Loop)(nil)
