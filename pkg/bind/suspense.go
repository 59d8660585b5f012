package bind

import (
	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/reactive"
	"github.com/vango-dev/atom/pkg/result"
)

// SuspenseOption configures Suspense.
type SuspenseOption func(*suspenseConfig)

type suspenseConfig struct {
	suspendOnWaiting bool
	includeFailure   bool
}

// SuspendOnWaiting also suspends on results flagged as waiting, instead of
// returning the stale result.
func SuspendOnWaiting() SuspenseOption {
	return func(c *suspenseConfig) {
		c.suspendOnWaiting = true
	}
}

// IncludeFailure returns failures as data instead of as an error.
func IncludeFailure() SuspenseOption {
	return func(c *suspenseConfig) {
		c.includeFailure = true
	}
}

// Suspender resolves an async atom for rendering.
type Suspender[A any] struct {
	r    *atom.Registry
	a    atom.Atom[result.Result[A]]
	cell reactive.ReadSignal[result.Result[A]]
	cfg  suspenseConfig
}

// Suspense binds a to a reactive cell and returns a Suspender over it.
func Suspense[A any](r *atom.Registry, a atom.Atom[result.Result[A]], opts ...SuspenseOption) *Suspender[A] {
	r = registry(r)

	var cfg suspenseConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Suspender[A]{
		r:    r,
		a:    a,
		cell: Value(r, a),
		cfg:  cfg,
	}
}

// Resolution is the outcome of one Resolve.
//
// Exactly one of these holds: Pending is set and the caller should wait on
// it, Err is set and holds the failure, or Result is the value to render.
// Result is also filled in while pending or failed.
type Resolution[A any] struct {
	Result  result.Result[A]
	Pending *atom.Future[A]
	Err     error
}

// IsPending reports whether the resolution must be waited out.
func (r Resolution[A]) IsPending() bool {
	return r.Pending != nil
}

// Resolve reads the cell, tracking it in the current listener, and maps
// its state:
//
//   - Initial: pending, always.
//   - waiting: pending with SuspendOnWaiting, otherwise returned as is.
//   - Failure: Err is the squashed cause, unless IncludeFailure is set.
//   - otherwise: the result.
//
// The pending future resolves, and is never rejected, once the store holds
// a result that is not pending.
func (s *Suspender[A]) Resolve() Resolution[A] {
	res := s.cell.Get()

	if atom.Pending(res, s.cfg.suspendOnWaiting) {
		s.r.Metrics().RecordSuspension()
		s.r.Logger().Debug("atom suspended", "atom", s.a.Label(), "state", res.String())
		return Resolution[A]{
			Result:  res,
			Pending: atom.GetResult(s.r, s.a, atom.SuspendOnWaiting(s.cfg.suspendOnWaiting)),
		}
	}

	if res.IsFailure() && !s.cfg.includeFailure {
		return Resolution[A]{Result: res, Err: res.Cause().Squash()}
	}
	return Resolution[A]{Result: res}
}

// Read is Resolve for a reactive.Boundary: a pending resolution is returned
// as a suspension error carrying the future.
func (s *Suspender[A]) Read() (result.Result[A], error) {
	res := s.Resolve()
	if res.Pending != nil {
		return res.Result, reactive.Suspend(res.Pending)
	}
	return res.Result, res.Err
}
