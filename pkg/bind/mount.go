package bind

import "github.com/vango-dev/atom/pkg/atom"

// Mount keeps h alive for the lifetime of the current owner without
// observing its value.
func Mount(r *atom.Registry, h atom.Handle) {
	r = registry(r)
	release := atom.Mount(r, h)
	register(r.Logger(), h.Label(), release)
}

// Refresh mounts h and returns a function that forces it to recompute.
func Refresh(r *atom.Registry, h atom.Handle) func() {
	r = registry(r)
	Mount(r, h)
	return func() {
		atom.Refresh(r, h)
	}
}

// Subscribe calls fn on every change of a until the current owner is
// disposed. Pass atom.Immediate() to also call it once with the current
// value.
func Subscribe[A any](r *atom.Registry, a atom.Atom[A], fn func(A), opts ...atom.SubscribeOption) {
	r = registry(r)
	unsubscribe := atom.Subscribe(r, a, fn, opts...)
	register(r.Logger(), a.Label(), unsubscribe)
}
