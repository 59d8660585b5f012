package atom

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/atom/pkg/result"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// startAsync cancels any evaluation in flight, starts a new one and returns
// the placeholder value the node holds meanwhile.
func (r *Registry) startAsync(n *node) any {
	if n.cancel != nil {
		n.cancel()
	}
	n.gen++

	ctx, cancel := context.WithCancel(context.Background())
	ctx, span := r.tracer.Start(ctx, "atom.async",
		trace.WithAttributes(
			attribute.String("atom.registry", r.id.String()),
			attribute.String("atom.label", n.base.Label()),
			attribute.Int64("atom.generation", int64(n.gen)),
		),
	)
	n.cancel = cancel

	c := &Context{r: r, n: n, ctx: ctx, async: true, gen: n.gen}
	go r.runAsync(c, span)

	return n.base.pending(n.value)
}

func (r *Registry) runAsync(c *Context, span trace.Span) {
	defer span.End()

	n := c.n
	value, cause := evaluate(c)

	outcome := "success"
	switch {
	case cause == nil:
	case cause.IsInterrupted():
		outcome = "interrupted"
	case len(cause.Failures()) > 0:
		outcome = "failure"
	default:
		outcome = "defect"
	}
	if cause != nil {
		err := cause.Squash()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	r.update(func() {
		if !r.current(n) || n.gen != c.gen {
			outcome = "stale"
			return
		}
		if n.cancel != nil {
			n.cancel()
			n.cancel = nil
		}

		var next any
		if cause == nil {
			next = n.base.succeed(value)
		} else {
			next = n.base.fail(cause, n.value)
			r.logger.Warn("async atom failed", "atom", n.base.Label(), "error", cause.Squash())
		}
		r.assign(n, next)
	})

	span.SetAttributes(attribute.String("atom.outcome", outcome))
	r.metrics.asyncFinished(outcome)
}

func evaluate(c *Context) (value any, cause *result.Cause) {
	defer func() {
		if p := recover(); p != nil {
			cause = result.Die(p)
		}
	}()

	v, err := c.n.base.run(c.ctx, c)
	if err != nil {
		if errors.Is(err, context.Canceled) && c.ctx.Err() != nil {
			return nil, result.Interrupt()
		}
		return nil, result.Fail(err)
	}
	return v, nil
}

// Future is the eventual result of an async atom. It resolves once and is
// never rejected: a failed evaluation resolves it with a Failure.
type Future[A any] struct {
	done chan struct{}
	once sync.Once
	res  result.Result[A]
}

func newFuture[A any]() *Future[A] {
	return &Future[A]{done: make(chan struct{})}
}

func (f *Future[A]) resolve(res result.Result[A]) bool {
	resolved := false
	f.once.Do(func() {
		f.res = res
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done is closed when the future resolves.
func (f *Future[A]) Done() <-chan struct{} {
	return f.done
}

// Result returns the resolved result and whether the future has resolved.
func (f *Future[A]) Result() (result.Result[A], bool) {
	select {
	case <-f.done:
		return f.res, true
	default:
		return result.Result[A]{}, false
	}
}

// Wait blocks until the future resolves or ctx ends.
func (f *Future[A]) Wait(ctx context.Context) (result.Result[A], error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		return result.Result[A]{}, ctx.Err()
	}
}

// ResultOption configures GetResult.
type ResultOption func(*resultConfig)

type resultConfig struct {
	suspendOnWaiting bool
}

// SuspendOnWaiting makes GetResult also wait out results that are flagged
// as waiting.
func SuspendOnWaiting(on bool) ResultOption {
	return func(c *resultConfig) {
		c.suspendOnWaiting = on
	}
}

// Pending reports whether res is still pending: Initial, or waiting when
// suspendOnWaiting is set.
func Pending[A any](res result.Result[A], suspendOnWaiting bool) bool {
	return res.IsInitial() || (suspendOnWaiting && res.IsWaiting())
}

// GetResult returns a future resolved with the first result of a that is
// not pending. The atom stays subscribed, and so alive, until then.
func GetResult[A any](r *Registry, a Atom[result.Result[A]], opts ...ResultOption) *Future[A] {
	var cfg resultConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	f := newFuture[A]()
	var stop atomic.Pointer[func()]

	unsubscribe := Subscribe(r, a, func(res result.Result[A]) {
		if Pending(res, cfg.suspendOnWaiting) {
			return
		}
		if f.resolve(res) {
			if s := stop.Load(); s != nil {
				(*s)()
			}
		}
	}, Immediate())

	stop.Store(&unsubscribe)
	if _, ok := f.Result(); ok {
		unsubscribe()
	}
	return f
}
