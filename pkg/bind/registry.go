package bind

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/reactive"
)

var (
	defaultRegistry     *atom.Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry. It is created on first use
// and lives until the process exits.
func Default() *atom.Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = atom.NewRegistry()
	})
	return defaultRegistry
}

func registry(r *atom.Registry) *atom.Registry {
	if r == nil {
		return Default()
	}
	return r
}

// register hands dispose to the current owner.
func register(logger *slog.Logger, label string, dispose func()) {
	if !reactive.OnCleanup(dispose) {
		logger.Debug("binding created without an owner, it is never released", "atom", label)
	}
}
