package reactive

import (
	"runtime"
	"sync"
)

// trackingContext holds the reactive state of one goroutine.
type trackingContext struct {
	// owner receives effects and cleanups created on this goroutine.
	owner *Owner

	// listener is what is currently tracking dependencies.
	// nil means reads do not subscribe.
	listener Listener

	// batchDepth counts nested Batch calls.
	batchDepth int

	// pending accumulates listeners to notify when the batch completes.
	pending []Listener
}

func (c *trackingContext) empty() bool {
	return c.owner == nil && c.listener == nil && c.batchDepth == 0 && len(c.pending) == 0
}

// trackingContexts maps goroutine IDs to their tracking context.
var trackingContexts sync.Map

// goroutineID parses the current goroutine's ID from its stack header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> ".
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// lookupContext returns the current goroutine's context or nil.
// Read paths use it so goroutines that only read never allocate a context.
func lookupContext() *trackingContext {
	if ctx, ok := trackingContexts.Load(goroutineID()); ok {
		return ctx.(*trackingContext)
	}
	return nil
}

// mutateContext runs fn against the current goroutine's context, creating
// it on demand and releasing it once it no longer carries state.
func mutateContext(fn func(ctx *trackingContext)) {
	gid := goroutineID()
	var ctx *trackingContext
	if v, ok := trackingContexts.Load(gid); ok {
		ctx = v.(*trackingContext)
	} else {
		ctx = &trackingContext{}
		trackingContexts.Store(gid, ctx)
	}
	fn(ctx)
	if ctx.empty() {
		trackingContexts.Delete(gid)
	}
}

func currentListener() Listener {
	if ctx := lookupContext(); ctx != nil {
		return ctx.listener
	}
	return nil
}

// setCurrentListener returns the previous listener so it can be restored.
func setCurrentListener(l Listener) Listener {
	var old Listener
	mutateContext(func(ctx *trackingContext) {
		old = ctx.listener
		ctx.listener = l
	})
	return old
}

// CurrentOwner returns the owner established on this goroutine, or nil.
func CurrentOwner() *Owner {
	if ctx := lookupContext(); ctx != nil {
		return ctx.owner
	}
	return nil
}

func setCurrentOwner(o *Owner) *Owner {
	var old *Owner
	mutateContext(func(ctx *trackingContext) {
		old = ctx.owner
		ctx.owner = o
	})
	return old
}

func batchDepth() int {
	if ctx := lookupContext(); ctx != nil {
		return ctx.batchDepth
	}
	return 0
}

func enterBatch() {
	mutateContext(func(ctx *trackingContext) { ctx.batchDepth++ })
}

// leaveBatch decrements the batch depth. When the outermost batch ends it
// returns the queued listeners.
func leaveBatch() []Listener {
	var drained []Listener
	mutateContext(func(ctx *trackingContext) {
		ctx.batchDepth--
		if ctx.batchDepth == 0 {
			drained = ctx.pending
			ctx.pending = nil
		}
	})
	return drained
}

func queuePending(l Listener) {
	mutateContext(func(ctx *trackingContext) {
		ctx.pending = append(ctx.pending, l)
	})
}

// WithOwner runs fn with owner as the current owner.
// Use it when a goroutine creates effects or cleanups for a component.
//
//	go func() {
//	    WithOwner(parent, func() {
//	        OnCleanup(stop)
//	    })
//	}()
func WithOwner(owner *Owner, fn func()) {
	old := setCurrentOwner(owner)
	defer setCurrentOwner(old)
	fn()
}

// WithListener runs fn with l tracking dependencies.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}
