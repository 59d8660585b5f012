package bind

import (
	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/reactive"
)

// Value binds a to a new read-only reactive cell.
func Value[A any](r *atom.Registry, a atom.Atom[A]) reactive.ReadSignal[A] {
	return cell(registry(r), a).ReadOnly()
}

// Atom binds a to a new reactive cell and returns it with a setter.
func Atom[R, W any](r *atom.Registry, a atom.Writable[R, W]) (reactive.ReadSignal[R], *Setter[R, W]) {
	r = registry(r)
	return cell(r, a).ReadOnly(), &Setter[R, W]{r: r, a: a}
}

// cell seeds a signal from the store, subscribes, resyncs once and hands
// the subscription to the current owner. The order matters: a write between
// the seed and the subscription is caught by the resync. The subscription
// is registered even if the resync panics.
func cell[A any](r *atom.Registry, a atom.Atom[A]) *reactive.Signal[A] {
	sig := reactive.NewSignal(atom.Get(r, a))

	sync := func() {
		sig.Set(atom.Get(r, a))
	}

	unsubscribe := atom.Subscribe(r, a, func(A) { sync() })
	defer register(r.Logger(), a.Label(), unsubscribe)

	sync()
	return sig
}
