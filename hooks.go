package observable

import "context"

// Hooks are the six lifecycle points invoked around handler-mode dispatch.
// Each hook receives the description the event was first subscribed with.
// Nil fields are no-ops.
//
// For one firing with one handler at one priority the order is:
//
//	PreFire → PreFirePerPriority → PreFirePerClass → handler →
//	PostFirePerClass → PostFirePerPriority → PostFire
//
// Queued deliveries do not invoke the per-priority or per-class hooks.
type Hooks struct {
	PreFire             func(ctx context.Context, event string)
	PreFirePerPriority  func(ctx context.Context, event string, priority Priority)
	PreFirePerClass     func(ctx context.Context, event string, priority Priority, s Subscriber)
	PostFirePerClass    func(ctx context.Context, event string, priority Priority, s Subscriber)
	PostFirePerPriority func(ctx context.Context, event string, priority Priority)
	PostFire            func(ctx context.Context, event string)
}

// merge returns h with every non-nil field of o installed over it.
func (h Hooks) merge(o Hooks) Hooks {
	if o.PreFire != nil {
		h.PreFire = o.PreFire
	}
	if o.PreFirePerPriority != nil {
		h.PreFirePerPriority = o.PreFirePerPriority
	}
	if o.PreFirePerClass != nil {
		h.PreFirePerClass = o.PreFirePerClass
	}
	if o.PostFirePerClass != nil {
		h.PostFirePerClass = o.PostFirePerClass
	}
	if o.PostFirePerPriority != nil {
		h.PostFirePerPriority = o.PostFirePerPriority
	}
	if o.PostFire != nil {
		h.PostFire = o.PostFire
	}
	return h
}

func (h Hooks) preFire(ctx context.Context, event string) {
	if h.PreFire != nil {
		h.PreFire(ctx, event)
	}
}

func (h Hooks) preFirePerPriority(ctx context.Context, event string, p Priority) {
	if h.PreFirePerPriority != nil {
		h.PreFirePerPriority(ctx, event, p)
	}
}

func (h Hooks) preFirePerClass(ctx context.Context, event string, p Priority, s Subscriber) {
	if h.PreFirePerClass != nil {
		h.PreFirePerClass(ctx, event, p, s)
	}
}

func (h Hooks) postFirePerClass(ctx context.Context, event string, p Priority, s Subscriber) {
	if h.PostFirePerClass != nil {
		h.PostFirePerClass(ctx, event, p, s)
	}
}

func (h Hooks) postFirePerPriority(ctx context.Context, event string, p Priority) {
	if h.PostFirePerPriority != nil {
		h.PostFirePerPriority(ctx, event, p)
	}
}

func (h Hooks) postFire(ctx context.Context, event string) {
	if h.PostFire != nil {
		h.PostFire(ctx, event)
	}
}

// SetPreFire installs the hook run once before every firing.
// A later call replaces the earlier installation.
func (d *Dispatcher) SetPreFire(fn func(ctx context.Context, event string)) error {
	if err := VerifyType(fn, KindFunction, "preFire"); err != nil {
		return err
	}
	return d.installHooks(Hooks{PreFire: fn})
}

// SetPreFirePerPriority installs the hook run before each priority bucket.
func (d *Dispatcher) SetPreFirePerPriority(fn func(ctx context.Context, event string, priority Priority)) error {
	if err := VerifyType(fn, KindFunction, "preFirePerPriority"); err != nil {
		return err
	}
	return d.installHooks(Hooks{PreFirePerPriority: fn})
}

// SetPreFirePerClass installs the hook run before each handler.
func (d *Dispatcher) SetPreFirePerClass(fn func(ctx context.Context, event string, priority Priority, s Subscriber)) error {
	if err := VerifyType(fn, KindFunction, "preFirePerClass"); err != nil {
		return err
	}
	return d.installHooks(Hooks{PreFirePerClass: fn})
}

// SetPostFirePerClass installs the hook run after each handler.
func (d *Dispatcher) SetPostFirePerClass(fn func(ctx context.Context, event string, priority Priority, s Subscriber)) error {
	if err := VerifyType(fn, KindFunction, "postFirePerClass"); err != nil {
		return err
	}
	return d.installHooks(Hooks{PostFirePerClass: fn})
}

// SetPostFirePerPriority installs the hook run after each priority bucket.
func (d *Dispatcher) SetPostFirePerPriority(fn func(ctx context.Context, event string, priority Priority)) error {
	if err := VerifyType(fn, KindFunction, "postFirePerPriority"); err != nil {
		return err
	}
	return d.installHooks(Hooks{PostFirePerPriority: fn})
}

// SetPostFire installs the hook run once after every firing.
func (d *Dispatcher) SetPostFire(fn func(ctx context.Context, event string)) error {
	if err := VerifyType(fn, KindFunction, "postFire"); err != nil {
		return err
	}
	return d.installHooks(Hooks{PostFire: fn})
}

// SetHooks installs every non-nil field of h, replacing earlier installations.
func (d *Dispatcher) SetHooks(h Hooks) error {
	return d.installHooks(h)
}

// Hooks returns the currently installed hooks.
func (d *Dispatcher) Hooks() Hooks {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hooks
}

func (d *Dispatcher) installHooks(h Hooks) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.hooks = d.hooks.merge(h)
	return nil
}
