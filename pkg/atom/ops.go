package atom

import "sync/atomic"

// Get returns a's current value. It never blocks on async work; an async
// atom that has not finished reads as Initial.
func Get[A any](r *Registry, a Atom[A]) A {
	var v any
	r.update(func() {
		v = r.ensure(a.base()).value
	})
	return a.cast(v)
}

// Set writes v to a. Subscribers are notified before Set returns, unless
// another goroutine is already delivering notifications, in which case that
// goroutine delivers them.
func Set[R, W any](r *Registry, a Writable[R, W], v W) {
	r.update(func() {
		r.write(a.base(), v)
	})
}

// Update writes fn(current) to a. The read and the write happen under one
// lock acquisition, so no other write can land in between. fn must not
// call into the registry.
func Update[R, W any](r *Registry, a Writable[R, W], fn func(R) W) {
	r.update(func() {
		b := a.base()
		cur := a.cast(r.ensure(b).value)
		r.write(b, fn(cur))
	})
}

// SubscribeOption configures Subscribe.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	immediate bool
}

// Immediate makes Subscribe call fn once with the current value before it
// returns.
func Immediate() SubscribeOption {
	return func(c *subscribeConfig) {
		c.immediate = true
	}
}

// Subscribe calls fn with a's value every time it changes and returns a
// function that ends the subscription. Calling the returned function more
// than once has no further effect.
func Subscribe[A any](r *Registry, a Atom[A], fn func(A), opts ...SubscribeOption) func() {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := &subscription{
		fn: func(v any) { fn(a.cast(v)) },
	}
	sub.active.Store(true)

	var current any
	r.update(func() {
		n := r.ensure(a.base())
		r.nextSub++
		sub.id = r.nextSub
		sub.node = n
		n.subs = append(n.subs, sub)
		current = n.value
		r.metrics.subscribed()
		r.logger.Debug("atom subscribed", "atom", a.Label(), "subscription", sub.id)
	})

	if cfg.immediate {
		sub.fn(current)
	}

	return func() {
		if !sub.active.Swap(false) {
			return
		}
		r.update(func() {
			r.unsubscribe(sub)
		})
	}
}

func (r *Registry) unsubscribe(sub *subscription) {
	n := sub.node
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
	r.metrics.unsubscribed()
	r.logger.Debug("atom unsubscribed", "atom", n.base.Label(), "subscription", sub.id)

	if r.current(n) && n.removable() {
		r.scheduleRemoval(n)
	}
}

// Mount keeps h's node alive without observing its value and returns a
// function that releases it. Calling the returned function more than once
// has no further effect.
func Mount(r *Registry, h Handle) func() {
	var n *node
	r.update(func() {
		n = r.ensure(h.base())
		n.mounts++
		r.metrics.mounted()
		r.logger.Debug("atom mounted", "atom", h.Label())
	})

	var released atomic.Bool
	return func() {
		if released.Swap(true) {
			return
		}
		r.update(func() {
			if !r.current(n) {
				return
			}
			n.mounts--
			r.metrics.unmounted(1)
			r.logger.Debug("atom unmounted", "atom", h.Label())
			if n.removable() {
				r.scheduleRemoval(n)
			}
		})
	}
}

// Refresh forces h to recompute now. It has no effect on state atoms or on
// atoms without a node.
func Refresh(r *Registry, h Handle) {
	r.update(func() {
		r.refresh(h.base())
	})
}

// Batch runs fn and defers recomputation and notification until the
// outermost Batch on r returns. Batches are per registry, not per
// goroutine.
func Batch(r *Registry, fn func()) {
	r.mu.Lock()
	r.batchDepth++
	r.mu.Unlock()

	defer r.update(func() {
		r.batchDepth--
	})
	fn()
}
