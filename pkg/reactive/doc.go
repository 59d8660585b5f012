// Package reactive provides the fine-grained reactive runtime that atom
// bindings render into.
//
// Dependencies are tracked automatically at runtime: reading a signal inside
// an effect or memo subscribes that effect or memo to the signal's changes.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := NewSignal(0)
//	value := count.Get()  // Read (subscribes current listener)
//	count.Set(5)          // Write (notifies subscribers)
//
// ReadSignal[T] is the read side of a signal. Bindings hand out a
// ReadSignal so that only the binding that created a cell writes to it.
//
// Memo[T] is a cached derived computation, Effect runs side effects when
// its dependencies change.
//
// # Ownership
//
// An Owner is a disposal scope. Effects created and cleanups registered
// while an owner is current belong to it, and run exactly once when the
// owner is disposed:
//
//	CreateRoot(func(dispose func()) struct{} {
//	    OnCleanup(func() { fmt.Println("bye") })
//	    defer dispose()
//	    return struct{}{}
//	})
//
// # Suspension
//
// A read that is not ready returns an error built by Suspend. A Boundary
// waits for the carried Awaitable and renders again; suspension is never
// reported as a failure.
//
// # Thread Safety
//
// All primitives are safe for concurrent use. The tracking context is
// per-goroutine, so goroutines that create effects must establish an owner
// with WithOwner.
package reactive
