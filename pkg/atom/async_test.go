package atom

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vango-dev/atom/pkg/result"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// gated returns an async atom that resolves with value once release is
// closed.
func gated[A any](value A, release <-chan struct{}) Atom[result.Result[A]] {
	return Async(func(ctx context.Context, _ *Context) (A, error) {
		select {
		case <-release:
			return value, nil
		case <-ctx.Done():
			var zero A
			return zero, ctx.Err()
		}
	})
}

func TestAsyncLifecycle(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	user := gated("ada", release)

	var got recorder[result.Result[string]]
	stop := Subscribe(r, user, got.add, Immediate())
	defer stop()

	first := Get(r, user)
	assert.True(t, first.IsInitial())
	assert.True(t, first.IsWaiting())

	close(release)
	require.Eventually(t, func() bool { return len(got.all()) == 2 }, waitFor, tick)

	v, ok := Get(r, user).Value()
	assert.True(t, ok)
	assert.Equal(t, "ada", v)

	values := got.all()
	require.Len(t, values, 2)
	assert.True(t, values[0].IsInitial())
	assert.True(t, values[1].IsSuccess())
}

func TestAsyncFailure(t *testing.T) {
	r := NewRegistry()
	errNotFound := errors.New("not found")
	lookup := Async(func(context.Context, *Context) (int, error) {
		return 0, errNotFound
	})

	stop := Mount(r, lookup)
	defer stop()

	require.Eventually(t, func() bool { return Get(r, lookup).IsFailure() }, waitFor, tick)
	assert.ErrorIs(t, Get(r, lookup).Cause().Squash(), errNotFound)
}

func TestAsyncPanicBecomesDefect(t *testing.T) {
	r := NewRegistry()
	broken := Async(func(context.Context, *Context) (int, error) {
		panic("exploded")
	})

	stop := Mount(r, broken)
	defer stop()

	require.Eventually(t, func() bool { return Get(r, broken).IsFailure() }, waitFor, tick)
	defect, ok := Get(r, broken).Cause().Defect()
	assert.True(t, ok)
	assert.Equal(t, "exploded", defect)
}

func TestAsyncDependencyRestartsEvaluation(t *testing.T) {
	r := NewRegistry()
	id := Make(1)
	name := Async(func(ctx context.Context, c *Context) (string, error) {
		n := Read(c, id)
		if n == 1 {
			return "one", nil
		}
		return "other", nil
	})

	stop := Subscribe(r, name, func(result.Result[string]) {})
	defer stop()

	require.Eventually(t, func() bool {
		v, _ := Get(r, name).Value()
		return v == "one"
	}, waitFor, tick)

	Set(r, id, 2)

	// The previous success is kept while the new evaluation runs.
	now := Get(r, name)
	if now.IsWaiting() {
		v, ok := now.Value()
		assert.True(t, ok)
		assert.Equal(t, "one", v)
	}

	require.Eventually(t, func() bool {
		res := Get(r, name)
		v, _ := res.Value()
		return v == "other" && !res.IsWaiting()
	}, waitFor, tick)
}

func TestAsyncCancelledOnRefresh(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	var cancelled int
	runs := 0
	slow := Async(func(ctx context.Context, _ *Context) (int, error) {
		mu.Lock()
		runs++
		run := runs
		mu.Unlock()

		if run == 1 {
			<-ctx.Done()
			mu.Lock()
			cancelled++
			mu.Unlock()
			return 0, ctx.Err()
		}
		return run, nil
	})

	stop := Mount(r, slow)
	defer stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 1
	}, waitFor, tick)

	Refresh(r, slow)

	require.Eventually(t, func() bool { return Get(r, slow).IsSuccess() }, waitFor, tick)
	assert.Equal(t, 2, Get(r, slow).ValueOr(0))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return cancelled == 1
	}, waitFor, tick)
}

func TestAsyncCancelledWhenDropped(t *testing.T) {
	r := NewRegistry(WithIdleTimeout(0))
	cancelled := make(chan struct{})
	slow := Async(func(ctx context.Context, _ *Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})

	release := Mount(r, slow)
	release()

	select {
	case <-cancelled:
	case <-time.After(waitFor):
		t.Fatal("evaluation was not cancelled")
	}
	assert.False(t, r.Has(slow))
}

func TestGetResultResolves(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	value := gated(42, release)

	f := GetResult(r, value)
	_, done := f.Result()
	assert.False(t, done)

	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, res.ValueOr(0))
}

func TestGetResultResolvesWithFailure(t *testing.T) {
	r := NewRegistry()
	errBoom := errors.New("boom")
	failing := Async(func(context.Context, *Context) (int, error) {
		return 0, errBoom
	})

	f := GetResult(r, failing)

	select {
	case <-f.Done():
	case <-time.After(waitFor):
		t.Fatal("future did not resolve")
	}
	res, ok := f.Result()
	require.True(t, ok)
	assert.True(t, res.IsFailure())
}

func TestGetResultAlreadySettled(t *testing.T) {
	r := NewRegistry()
	ready := Readable(func(*Context) result.Result[int] { return result.Success(7) })

	f := GetResult(r, ready)
	res, ok := f.Result()
	require.True(t, ok)
	assert.Equal(t, 7, res.ValueOr(0))
}

func TestGetResultWaiting(t *testing.T) {
	r := NewRegistry()
	src := Make(result.Success(1).AsWaiting())

	stale := GetResult(r, src)
	_, ok := stale.Result()
	assert.True(t, ok, "waiting results resolve unless SuspendOnWaiting is set")

	strict := GetResult(r, src, SuspendOnWaiting(true))
	_, ok = strict.Result()
	assert.False(t, ok)

	Set(r, src, result.Success(2))
	res, ok := strict.Result()
	require.True(t, ok)
	assert.Equal(t, 2, res.ValueOr(0))
}

func TestGetResultWaitContext(t *testing.T) {
	r := NewRegistry()
	never := Make(result.Initial[int](false))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := GetResult(r, never).Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPending(t *testing.T) {
	assert.True(t, Pending(result.Initial[int](false), false))
	assert.False(t, Pending(result.Success(1).AsWaiting(), false))
	assert.True(t, Pending(result.Success(1).AsWaiting(), true))
	assert.False(t, Pending(result.FailWith[int](errors.New("x")), true))
}

type recordedSpan struct {
	name  string
	attrs []attribute.KeyValue
}

// recordingTracer records started spans and otherwise behaves like noop.
type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	spans []recordedSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	t.mu.Lock()
	t.spans = append(t.spans, recordedSpan{name: name, attrs: cfg.Attributes()})
	t.mu.Unlock()
	return t.Tracer.Start(ctx, name, opts...)
}

func (t *recordingTracer) recorded() []recordedSpan {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]recordedSpan(nil), t.spans...)
}

func TestAsyncSpan(t *testing.T) {
	tracer := &recordingTracer{}
	r := NewRegistry(WithTracer(tracer))
	value := Async(func(context.Context, *Context) (int, error) {
		return 1, nil
	}, WithLabel("answer"))

	stop := Mount(r, value)
	defer stop()
	require.Eventually(t, func() bool { return Get(r, value).IsSuccess() }, waitFor, tick)

	spans := tracer.recorded()
	require.Len(t, spans, 1)
	assert.Equal(t, "atom.async", spans[0].name)
	assert.Contains(t, spans[0].attrs, attribute.String("atom.label", "answer"))
	assert.Contains(t, spans[0].attrs, attribute.String("atom.registry", r.ID().String()))
}
