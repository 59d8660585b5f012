package reactive

// Batch groups signal updates into one notification phase.
// Listeners affected inside fn are collected, deduplicated and notified
// once when the outermost batch completes.
//
//	Batch(func() {
//	    first.Set("Ada")
//	    last.Set("Lovelace")
//	})
func Batch(fn func()) {
	enterBatch()
	defer func() {
		if drained := leaveBatch(); len(drained) > 0 {
			notifyUnique(drained)
		}
	}()
	fn()
}

func notifyUnique(listeners []Listener) {
	seen := make(map[uint64]bool, len(listeners))
	for _, l := range listeners {
		id := l.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		l.MarkDirty()
	}
}

// Untracked runs fn without recording signal reads as dependencies.
// For a single read prefer Peek.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}
