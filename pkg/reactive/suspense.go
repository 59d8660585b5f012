package reactive

import (
	"context"
	"errors"
)

// ErrSuspended matches any error produced by Suspend under errors.Is.
var ErrSuspended = errors.New("reactive: suspended")

// Awaitable is a pending computation a suspended read waits on.
// Done is closed once the computation settles.
type Awaitable interface {
	Done() <-chan struct{}
}

// SuspendedError signals that a value is not ready yet. It is control flow
// for a Boundary, not a failure.
type SuspendedError struct {
	On Awaitable
}

func (e *SuspendedError) Error() string {
	return ErrSuspended.Error()
}

// Is reports ErrSuspended as a match.
func (e *SuspendedError) Is(target error) bool {
	return target == ErrSuspended
}

// Suspend returns the error a read hands to its Boundary while a is pending.
func Suspend(a Awaitable) error {
	return &SuspendedError{On: a}
}

// AsSuspended extracts the awaitable from a suspension error.
func AsSuspended(err error) (Awaitable, bool) {
	var se *SuspendedError
	if errors.As(err, &se) && se.On != nil {
		return se.On, true
	}
	return nil, false
}

// BoundaryOption configures a Boundary.
type BoundaryOption func(*Boundary)

// WithFallback sets a function called every time the boundary suspends,
// before it starts waiting.
func WithFallback(fn func()) BoundaryOption {
	return func(b *Boundary) {
		b.fallback = fn
	}
}

// Boundary is the host side of suspension. It renders, waits out any
// suspension and renders again; every other error is returned to the
// caller, which acts as the error boundary.
type Boundary struct {
	fallback func()
}

// NewBoundary creates a Boundary.
func NewBoundary(opts ...BoundaryOption) *Boundary {
	b := &Boundary{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Render calls render until it completes without suspending. It returns
// render's error, or ctx.Err() if ctx ends while suspended.
func (b *Boundary) Render(ctx context.Context, render func() error) error {
	for {
		err := render()
		pending, suspended := AsSuspended(err)
		if !suspended {
			return err
		}

		if b.fallback != nil {
			b.fallback()
		}

		select {
		case <-pending.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
