package reactive

import (
	"sync"
	"sync/atomic"
)

// Effect is a reactive side effect. It runs when created and re-runs
// whenever a signal or memo it read changes. A returned Cleanup runs before
// the next run and on disposal.
type Effect struct {
	id uint64

	fn func() Cleanup

	// cleanupMu guards cleanup; dispose may run on another goroutine than
	// the one re-running the effect.
	cleanup   Cleanup
	cleanupMu sync.Mutex

	sources   []*signalBase
	sourcesMu sync.Mutex

	// pending means a run has been requested and not started yet.
	pending atomic.Bool

	// running guards against re-entrant runs when the body writes to one of
	// its own dependencies; the outer run loop picks the request up.
	running atomic.Bool

	disposed atomic.Bool
}

// CreateEffect creates an effect owned by the current owner and runs it.
//
//	CreateEffect(func() Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
func CreateEffect(fn func() Cleanup) *Effect {
	owner := CurrentOwner()

	e := &Effect{
		id: nextID(),
		fn: fn,
	}
	if owner != nil {
		owner.registerEffect(e)
	}

	e.pending.Store(true)
	e.run()
	return e
}

// MarkDirty re-runs the effect on the calling goroutine. A request made
// while the effect is running is picked up when the current run ends.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}
	if !e.pending.CompareAndSwap(false, true) {
		return
	}
	if e.running.Load() {
		return
	}
	e.run()
}

// ID implements Listener.
func (e *Effect) ID() uint64 {
	return e.id
}

// IsDisposed reports whether the effect has been disposed.
func (e *Effect) IsDisposed() bool {
	return e.disposed.Load()
}

func (e *Effect) run() {
	for {
		if !e.running.CompareAndSwap(false, true) {
			return
		}
		for e.pending.Swap(false) && !e.disposed.Load() {
			e.runOnce()
		}
		e.running.Store(false)

		// A request that raced with the end of the loop is picked up here.
		if !e.pending.Load() || e.disposed.Load() {
			return
		}
	}
}

func (e *Effect) runOnce() {
	if prev := e.takeCleanup(); prev != nil {
		prev()
	}
	e.dropSources()

	var next Cleanup
	WithListener(e, func() {
		next = e.fn()
	})

	e.cleanupMu.Lock()
	if !e.disposed.Load() {
		e.cleanup = next
		e.cleanupMu.Unlock()
		return
	}
	e.cleanupMu.Unlock()

	// Disposed mid-run: nothing else will run this cleanup or drop the
	// sources the run just subscribed to.
	if next != nil {
		next()
	}
	e.dropSources()
}

func (e *Effect) takeCleanup() Cleanup {
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	c := e.cleanup
	e.cleanup = nil
	return c
}

func (e *Effect) dropSources() {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = e.sources[:0]
}

func (e *Effect) addSource(source *signalBase) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()
	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

func (e *Effect) dispose() {
	e.cleanupMu.Lock()
	if e.disposed.Swap(true) {
		e.cleanupMu.Unlock()
		return
	}
	c := e.cleanup
	e.cleanup = nil
	e.cleanupMu.Unlock()

	if c != nil {
		c()
	}
	e.dropSources()
}

var _ sourceTracker = (*Effect)(nil)
