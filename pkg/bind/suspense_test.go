package bind

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/reactive"
	"github.com/vango-dev/atom/pkg/result"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// gated returns an async atom that succeeds with value once release closes.
func gated[A any](value A, release <-chan struct{}) atom.Atom[result.Result[A]] {
	return atom.Async(func(ctx context.Context, _ *atom.Context) (A, error) {
		select {
		case <-release:
			return value, nil
		case <-ctx.Done():
			var zero A
			return zero, ctx.Err()
		}
	})
}

func TestSuspenseInitialSuspends(t *testing.T) {
	r, promReg := newTestRegistry(t)
	release := make(chan struct{})
	user := gated("ada", release)

	owner := reactive.NewOwner(nil)
	defer owner.Dispose()

	var s *Suspender[string]
	reactive.Run(owner, func() {
		s = Suspense(r, user)
	})

	for i := 0; i < 3; i++ {
		res := s.Resolve()
		require.True(t, res.IsPending())
		assert.True(t, res.Result.IsInitial())
	}
	assert.Equal(t, 3.0, metricValue(t, promReg, "atom_registry_suspensions_total"))

	pending := s.Resolve().Pending
	require.NotNil(t, pending)
	close(release)

	select {
	case <-pending.Done():
	case <-time.After(waitFor):
		t.Fatal("future did not resolve")
	}
	settled, ok := pending.Result()
	require.True(t, ok)
	assert.True(t, settled.IsSuccess())

	require.Eventually(t, func() bool { return !s.Resolve().IsPending() }, waitFor, tick)
	res := s.Resolve()
	require.NoError(t, res.Err)
	name, ok := res.Result.Value()
	require.True(t, ok)
	assert.Equal(t, "ada", name)
}

func TestSuspenseReadUnderBoundary(t *testing.T) {
	r, _ := newTestRegistry(t)
	release := make(chan struct{})
	user := gated("grace", release)

	owner := reactive.NewOwner(nil)
	defer owner.Dispose()

	var s *Suspender[string]
	reactive.Run(owner, func() {
		s = Suspense(r, user)
	})

	fallbacks := 0
	boundary := reactive.NewBoundary(reactive.WithFallback(func() { fallbacks++ }))

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	var name string
	err := boundary.Render(ctx, func() error {
		res, err := s.Read()
		if err != nil {
			return err
		}
		name, _ = res.Value()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "grace", name)
	assert.GreaterOrEqual(t, fallbacks, 1)
}

func TestSuspenseFailure(t *testing.T) {
	boom := errors.New("boom")
	failing := atom.Async(func(context.Context, *atom.Context) (int, error) {
		return 0, boom
	})

	t.Run("as error", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		owner := reactive.NewOwner(nil)
		defer owner.Dispose()

		var s *Suspender[int]
		reactive.Run(owner, func() {
			s = Suspense(r, failing)
		})

		require.Eventually(t, func() bool { return !s.Resolve().IsPending() }, waitFor, tick)
		res := s.Resolve()
		assert.ErrorIs(t, res.Err, boom)
		assert.True(t, res.Result.IsFailure())

		_, err := s.Read()
		assert.ErrorIs(t, err, boom)
	})

	t.Run("as data", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		owner := reactive.NewOwner(nil)
		defer owner.Dispose()

		var s *Suspender[int]
		reactive.Run(owner, func() {
			s = Suspense(r, failing, IncludeFailure())
		})

		require.Eventually(t, func() bool { return !s.Resolve().IsPending() }, waitFor, tick)
		res, err := s.Read()
		require.NoError(t, err)
		require.True(t, res.IsFailure())
		assert.Equal(t, []error{boom}, res.Cause().Failures())
	})
}

func TestSuspenseWaiting(t *testing.T) {
	r, _ := newTestRegistry(t)
	dep := atom.Make(1)
	block := make(chan struct{})
	defer close(block)

	job := atom.Async(func(ctx context.Context, c *atom.Context) (int, error) {
		n := atom.Read(c, dep)
		if n > 1 {
			select {
			case <-block:
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		return n * 10, nil
	})

	owner := reactive.NewOwner(nil)
	defer owner.Dispose()

	var lenient, strict *Suspender[int]
	reactive.Run(owner, func() {
		lenient = Suspense(r, job)
		strict = Suspense(r, job, SuspendOnWaiting())
	})

	require.Eventually(t, func() bool {
		return !lenient.Resolve().IsPending() && !strict.Resolve().IsPending()
	}, waitFor, tick)

	atom.Set(r, dep, 2)

	require.Eventually(t, func() bool { return lenient.Resolve().Result.IsWaiting() }, waitFor, tick)
	res := lenient.Resolve()
	assert.False(t, res.IsPending())
	n, ok := res.Result.Value()
	require.True(t, ok)
	assert.Equal(t, 10, n)

	assert.Eventually(t, func() bool { return strict.Resolve().IsPending() }, waitFor, tick)
}

func TestSuspenseTracksInEffect(t *testing.T) {
	r, _ := newTestRegistry(t)
	release := make(chan struct{})
	user := gated(42, release)

	owner := reactive.NewOwner(nil)
	defer owner.Dispose()

	states := make(chan bool, 8)
	reactive.Run(owner, func() {
		s := Suspense(r, user)
		reactive.CreateEffect(func() reactive.Cleanup {
			states <- s.Resolve().IsPending()
			return nil
		})
	})

	assert.True(t, <-states)
	close(release)

	select {
	case pending := <-states:
		assert.False(t, pending)
	case <-time.After(waitFor):
		t.Fatal("effect did not rerun")
	}
}
