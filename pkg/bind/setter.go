package bind

import "github.com/vango-dev/atom/pkg/atom"

// Setter writes to an atom.
type Setter[R, W any] struct {
	r *atom.Registry
	a atom.Writable[R, W]
}

// Set writes v.
func (s *Setter[R, W]) Set(v W) {
	atom.Set(s.r, s.a, v)
}

// Update writes fn(current), where current is read from the store when
// Update is called. fn runs outside the registry lock and may read other
// atoms.
func (s *Setter[R, W]) Update(fn func(R) W) {
	s.Set(fn(atom.Get[R](s.r, s.a)))
}

// Apply performs w.
func (s *Setter[R, W]) Apply(w Write[R, W]) {
	w.apply(s)
}

// Write is a write request: either a Literal or an Updater. The set is
// closed, so a function-valued W passed as a Literal is always stored, never
// called.
type Write[R, W any] interface {
	apply(s *Setter[R, W])
}

// Literal writes Value as is.
type Literal[R, W any] struct {
	Value W
}

func (l Literal[R, W]) apply(s *Setter[R, W]) {
	s.Set(l.Value)
}

// Updater computes the value to write from the current one.
type Updater[R, W any] func(R) W

func (u Updater[R, W]) apply(s *Setter[R, W]) {
	s.Update(u)
}

// UseSetter mounts a for the lifetime of the current owner and returns a
// setter for it.
func UseSetter[R, W any](r *atom.Registry, a atom.Writable[R, W]) *Setter[R, W] {
	r = registry(r)
	Mount(r, a)
	return &Setter[R, W]{r: r, a: a}
}
