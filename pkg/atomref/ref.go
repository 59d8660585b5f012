// Package atomref provides mutable reference cells that live outside any
// registry, and projections of them onto a single field.
//
//	settings := atomref.Make(Settings{Theme: "dark"})
//	theme := atomref.Prop(settings, atomref.StructField[Settings, string]("Theme"))
//
//	stop := theme.Subscribe(func(t string) { fmt.Println("theme:", t) })
//	defer stop()
//
//	theme.Set("light") // prints "theme: light"
//
// A projection holds no value of its own. It reads and writes through its
// parent and listens on the parent's subscription, so projecting a
// projection works to any depth.
package atomref

import (
	"sort"
	"sync"

	"github.com/vango-dev/atom/internal/equal"
)

// ReadonlyRef is a value that can be read and observed.
type ReadonlyRef[A any] interface {
	// Value returns the current value.
	Value() A

	// Subscribe calls fn with the new value on every change and returns a
	// function that stops it. Stopping twice is a no-op.
	Subscribe(fn func(A)) func()
}

// Ref is a ReadonlyRef that can be written.
type Ref[A any] interface {
	ReadonlyRef[A]

	// Set replaces the value.
	Set(v A)

	// Update replaces the value with fn(current) atomically.
	Update(fn func(A) A)

	// Path returns the lens keys from the root to this ref.
	Path() []string
}

type root[A any] struct {
	mu     sync.Mutex
	value  A
	subs   map[uint64]func(A)
	nextID uint64
}

// Make returns a root ref holding initial.
func Make[A any](initial A) Ref[A] {
	return &root[A]{
		value: initial,
		subs:  make(map[uint64]func(A)),
	}
}

func (r *root[A]) Value() A {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

func (r *root[A]) Set(v A) {
	r.Update(func(A) A { return v })
}

func (r *root[A]) Update(fn func(A) A) {
	next, subs := r.swap(fn)
	for _, fn := range subs {
		fn(next)
	}
}

// swap stores fn(current) and returns the subscribers to notify, none when
// the value did not change.
func (r *root[A]) swap(fn func(A) A) (A, []func(A)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := fn(r.value)
	if equal.Default(r.value, next) {
		return next, nil
	}
	r.value = next
	return next, r.snapshot()
}

// snapshot returns subscribers in subscription order. Caller holds mu.
func (r *root[A]) snapshot() []func(A) {
	ids := make([]uint64, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]func(A), len(ids))
	for i, id := range ids {
		out[i] = r.subs[id]
	}
	return out
}

func (r *root[A]) Subscribe(fn func(A)) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *root[A]) Path() []string {
	return nil
}

type prop[A, F any] struct {
	parent Ref[A]
	lens   Lens[A, F]
}

// Prop projects parent onto the field selected by lens. Every call returns
// a new, independent ref.
func Prop[A, F any](parent Ref[A], lens Lens[A, F]) Ref[F] {
	return &prop[A, F]{parent: parent, lens: lens}
}

func (p *prop[A, F]) Value() F {
	return p.lens.Get(p.parent.Value())
}

func (p *prop[A, F]) Set(v F) {
	p.parent.Update(func(a A) A {
		return p.lens.Set(a, v)
	})
}

func (p *prop[A, F]) Update(fn func(F) F) {
	p.parent.Update(func(a A) A {
		return p.lens.Set(a, fn(p.lens.Get(a)))
	})
}

// Subscribe listens on the parent and forwards only changes of the field.
func (p *prop[A, F]) Subscribe(fn func(F)) func() {
	var mu sync.Mutex
	last := p.Value()

	return p.parent.Subscribe(func(a A) {
		next := p.lens.Get(a)

		mu.Lock()
		if equal.Default(last, next) {
			mu.Unlock()
			return
		}
		last = next
		mu.Unlock()

		fn(next)
	})
}

func (p *prop[A, F]) Path() []string {
	return append(p.parent.Path(), p.lens.Key)
}
