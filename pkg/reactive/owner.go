package reactive

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Owner is a disposal scope. When an Owner is disposed, its child owners,
// effects and cleanups are disposed with it.
//
// Owners form a hierarchy mirroring the component tree: a child is disposed
// before its parent's own cleanups run.
type Owner struct {
	id     uint64
	parent *Owner

	mu       sync.Mutex
	children []*Owner
	effects  []*Effect
	cleanups []func()

	disposed atomic.Bool
}

// NewOwner creates an Owner under parent. A nil parent creates a root.
func NewOwner(parent *Owner) *Owner {
	o := &Owner{id: nextID(), parent: parent}
	if parent != nil {
		parent.mu.Lock()
		parent.children = append(parent.children, o)
		parent.mu.Unlock()
	}
	return o
}

// ID returns the owner's unique id.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent Owner, or nil for a root.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// IsDisposed reports whether Dispose has run.
func (o *Owner) IsDisposed() bool {
	return o.disposed.Load()
}

func (o *Owner) registerEffect(e *Effect) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.disposed.Load() {
		o.effects = append(o.effects, e)
	}
}

// OnCleanup registers fn to run when the Owner is disposed.
// On an already disposed Owner, fn runs immediately.
func (o *Owner) OnCleanup(fn func()) {
	o.mu.Lock()
	if o.disposed.Load() {
		o.mu.Unlock()
		fn()
		return
	}
	o.cleanups = append(o.cleanups, fn)
	o.mu.Unlock()
}

// Dispose disposes children (last created first), then effects, then runs
// cleanups in reverse registration order. Calling it again is a no-op.
func (o *Owner) Dispose() {
	o.mu.Lock()
	if o.disposed.Swap(true) {
		o.mu.Unlock()
		return
	}
	children, effects, cleanups := o.children, o.effects, o.cleanups
	o.children, o.effects, o.cleanups = nil, nil, nil
	o.mu.Unlock()

	if p := o.parent; p != nil {
		p.mu.Lock()
		if i := slices.Index(p.children, o); i >= 0 {
			p.children = slices.Delete(p.children, i, i+1)
		}
		p.mu.Unlock()
	}

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}
	for _, e := range effects {
		e.dispose()
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// OnCleanup registers fn with the current owner of this goroutine.
// It reports false, and does nothing, when no owner is established.
func OnCleanup(fn func()) bool {
	owner := CurrentOwner()
	if owner == nil {
		return false
	}
	owner.OnCleanup(fn)
	return true
}

// CreateRoot runs fn under a new root owner and returns its result.
// fn receives the owner's dispose function. If fn panics the root is
// disposed before the panic continues, so nothing registered during setup
// outlives it.
func CreateRoot[T any](fn func(dispose func()) T) T {
	owner := NewOwner(nil)
	var out T
	Run(owner, func() {
		out = fn(owner.Dispose)
	})
	return out
}

// Run runs fn with owner as the current owner. A panic in fn disposes the
// owner and is then re-raised.
func Run(owner *Owner, fn func()) {
	completed := false
	defer func() {
		if !completed {
			owner.Dispose()
		}
	}()
	WithOwner(owner, fn)
	completed = true
}
