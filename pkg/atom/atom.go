// Package atom is a keyed atom store.
//
// An atom is an immutable handle naming one value slot. The values live in
// a Registry, which computes derived atoms on demand, tracks which atoms
// read which, and pushes changes to subscribers.
//
//	count := atom.Make(0, atom.WithLabel("count"))
//	doubled := atom.Map(count, func(n int) int { return n * 2 })
//
//	r := atom.NewRegistry()
//	stop := atom.Subscribe(r, doubled, func(v int) { fmt.Println(v) })
//	defer stop()
//
//	atom.Set(r, count, 3) // prints 6
//
// Read functions of derived and writable atoms run while the registry is
// locked. They must read other atoms through Read and write through Write,
// never through the registry functions, which would deadlock.
package atom

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/vango-dev/atom/pkg/result"
)

type kind uint8

const (
	kindState kind = iota
	kindDerived
	kindAsync
)

func (k kind) String() string {
	switch k {
	case kindState:
		return "state"
	case kindDerived:
		return "derived"
	case kindAsync:
		return "async"
	default:
		return "unknown"
	}
}

var idCounter uint64

// atomBase is the untyped identity and behaviour of an atom. Typed handles
// wrap a pointer to it, so handles compare by identity.
type atomBase struct {
	id        uint64
	label     string
	key       string
	keepAlive bool
	kind      kind

	// state
	initial func() any
	decode  func([]byte) (any, error)

	// derived
	read  func(*Context) any
	write func(*WriteContext, any)

	// async
	run     func(context.Context, *Context) (any, error)
	pending func(prev any) any
	succeed func(v any) any
	fail    func(cause *result.Cause, prev any) any
}

func newBase(k kind, opts []Option) *atomBase {
	b := &atomBase{
		id:   atomic.AddUint64(&idCounter, 1),
		kind: k,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *atomBase) ID() uint64 {
	return b.id
}

func (b *atomBase) Label() string {
	if b.label != "" {
		return b.label
	}
	return fmt.Sprintf("atom#%d", b.id)
}

func (b *atomBase) base() *atomBase {
	return b
}

// Handle is the untyped identity of an atom. It is all Mount and Refresh
// need.
type Handle interface {
	ID() uint64
	Label() string
	base() *atomBase
}

// Atom is a handle whose value has type A.
type Atom[A any] interface {
	Handle
	cast(v any) A
}

// Writable is an atom read as R and written with W.
type Writable[R, W any] interface {
	Atom[R]
	accepts(W)
}

// Option configures an atom.
type Option func(*atomBase)

// WithLabel names the atom in logs, spans and errors.
func WithLabel(label string) Option {
	return func(b *atomBase) {
		b.label = label
	}
}

// KeepAlive keeps a derived or async atom's node after its last subscriber
// leaves.
func KeepAlive() Option {
	return func(b *atomBase) {
		b.keepAlive = true
	}
}

// WithKey sets the key a state atom is dehydrated and hydrated under.
// Ignored for derived atoms.
func WithKey(key string) Option {
	return func(b *atomBase) {
		b.key = key
	}
}

func cast[A any](v any) A {
	if v == nil {
		var zero A
		return zero
	}
	return v.(A)
}

// State is a writable source atom. Its value is whatever was last written.
type State[A any] struct {
	*atomBase
}

func (State[A]) cast(v any) A { return cast[A](v) }
func (State[A]) accepts(A)     {}

// Make returns a state atom holding initial until written.
func Make[A any](initial A, opts ...Option) *State[A] {
	b := newBase(kindState, opts)
	b.initial = func() any { return initial }
	b.decode = func(data []byte) (any, error) {
		var v A
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return &State[A]{atomBase: b}
}

type readable[A any] struct {
	*atomBase
}

func (readable[A]) cast(v any) A { return cast[A](v) }

// Readable returns a derived atom computed by read. Atoms read through
// Read inside read become dependencies.
func Readable[A any](read func(*Context) A, opts ...Option) Atom[A] {
	b := newBase(kindDerived, opts)
	b.read = func(c *Context) any { return read(c) }
	return readable[A]{atomBase: b}
}

// Map derives an atom by applying fn to a's value.
func Map[A, B any](a Atom[A], fn func(A) B, opts ...Option) Atom[B] {
	return Readable(func(c *Context) B {
		return fn(Read(c, a))
	}, opts...)
}

type writable[R, W any] struct {
	*atomBase
}

func (writable[R, W]) cast(v any) R { return cast[R](v) }
func (writable[R, W]) accepts(W)    {}

// MakeWritable returns a derived atom with a custom write. write usually
// forwards to the source atoms read reads.
func MakeWritable[R, W any](read func(*Context) R, write func(*WriteContext, W), opts ...Option) Writable[R, W] {
	b := newBase(kindDerived, opts)
	b.read = func(c *Context) any { return read(c) }
	b.write = func(w *WriteContext, v any) { write(w, cast[W](v)) }
	return writable[R, W]{atomBase: b}
}

// Async returns an atom evaluated by fn on its own goroutine.
//
// The atom is Initial and waiting until the first run completes. A
// recompute keeps the previous result flagged as waiting. A returned error
// becomes a Failure, a panic becomes a defect. ctx is cancelled when the
// atom is recomputed or dropped.
func Async[A any](fn func(ctx context.Context, c *Context) (A, error), opts ...Option) Atom[result.Result[A]] {
	b := newBase(kindAsync, opts)
	b.run = func(ctx context.Context, c *Context) (any, error) {
		return fn(ctx, c)
	}
	b.pending = func(prev any) any {
		if prev == nil {
			return result.Initial[A](true)
		}
		return prev.(result.Result[A]).AsWaiting()
	}
	b.succeed = func(v any) any {
		return result.Success(cast[A](v))
	}
	b.fail = func(cause *result.Cause, prev any) any {
		if prev == nil {
			return result.Failure[A](cause)
		}
		return result.FailureWithPrevious(cause, prev.(result.Result[A]))
	}
	return readable[result.Result[A]]{atomBase: b}
}
