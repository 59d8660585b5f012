package reactive

import "sync/atomic"

// Listener is anything that can be notified when a dependency changes.
// Implemented by memos and effects.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	MarkDirty()

	// ID returns a unique identifier used for deduplication.
	ID() uint64
}

// Cleanup is returned by effects and runs before the effect re-runs and
// when it is disposed.
type Cleanup func()

// sourceTracker is a listener that records the signals it read so it can
// unsubscribe from them later.
type sourceTracker interface {
	Listener
	addSource(source *signalBase)
}

var idCounter uint64

// nextID returns a process-unique identifier for a reactive primitive.
func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}
