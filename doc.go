// Package observable provides a process-local publish/subscribe dispatcher.
//
// Components register interest in named events at a priority level. Firing
// an event invokes every registered handler synchronously in priority order,
// then delivers to at most one subscriber waiting in the event's queue.
//
// Basic example:
//
//	type Cache struct{}
//
//	func (c *Cache) Handler(event string) observable.HandlerFunc {
//	    switch event {
//	    case "userUpdated":
//	        return c.invalidate
//	    }
//	    return nil
//	}
//
//	d := observable.New()
//	defer d.Close(ctx)
//
//	// "User Updated" and "user-updated" both name the event "userUpdated"
//	d.Subscribe(ctx, "User Updated", &Cache{}, "a")
//	d.Fire(ctx, "user updated", userID)
//
// Event Names:
// Descriptions are folded into canonical names by Normalize. Two
// descriptions with the same canonical name refer to the same event.
//
// Priorities:
// Buckets are visited in ascending lexicographic order of their Priority.
// DefaultPriority ("z") is used when no priority is given and is always
// visited last. Within a bucket, handlers run in registration order.
//
// Delivery Modes:
//   - Subscribe: the subscriber is invoked on every firing until unsubscribed.
//   - WaitInQueue: the subscriber is invoked once, by the first firing that
//     reaches its bucket while it is the oldest waiter. Each firing delivers to
//     at most one queued subscriber, from the first non-empty queue bucket.
//
// Deferred Dispatch:
// FireAsync returns immediately and runs the firing later on the
// dispatcher's serial run loop (see package scheduler). Deferred firings run
// one at a time in the order they were scheduled.
//
// The default loop has its own goroutine, so a deferred firing can run
// concurrently with the goroutine that scheduled it, including alongside its
// synchronous Fire calls. For a single logical thread of control, give the
// dispatcher a manual loop; deferred firings then run only when the owner
// yields by calling Wait:
//
//	d := observable.New(observable.WithScheduler(scheduler.NewManual()))
//	d.FireAsync(ctx, "tick")
//	// ... the rest of this turn
//	d.Wait(ctx) // runs the deferred firing here
//
// Lifecycle Hooks:
// Six hooks run around handler-mode dispatch: PreFire, PreFirePerPriority,
// PreFirePerClass, PostFirePerClass, PostFirePerPriority and PostFire. Install
// them with WithHooks or the Set* methods.
//
// Errors:
// Validation failures wrap ErrInvalidArgument. A handler error aborts the rest
// of its firing, hooks included, and is returned from Fire as a *HandlerError.
// Errors of deferred firings go to the WithErrorHandler callback.
//
// Mutation During Dispatch:
// A bucket is copied when its pass starts. Subscribers added while a pass
// runs are first invoked on the next firing; subscribers removed while a pass
// runs are skipped if not yet reached.
//
// Default Dispatcher:
// The package-level functions (Subscribe, Fire, ...) operate on Default(),
// a process-wide dispatcher created on first use.
package observable
