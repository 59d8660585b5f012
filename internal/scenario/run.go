package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/expr-lang/expr"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/bind"
	"github.com/vango-dev/atom/pkg/reactive"
	"github.com/vango-dev/atom/pkg/result"
)

// printer serialises output from the writer goroutine and async workers.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Run binds the watched atoms under one owner, printing every change to
// out, and then performs the steps in order. The bindings are released
// when Run returns.
func (w *World) Run(ctx context.Context, out io.Writer) error {
	p := &printer{out: out}

	owner := reactive.NewOwner(nil)
	defer owner.Dispose()

	reactive.Run(owner, func() {
		for _, name := range w.file.Watch {
			w.watch(w.entries[name], p)
		}
	})

	for i, step := range w.file.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.logger.Debug("scenario step", "step", i+1, "line", step.Line)
		if err := w.runStep(ctx, i, step, p); err != nil {
			return w.file.locate(errors.FromError(err, "A108"), step.Line, step.Column)
		}
	}
	return nil
}

func (w *World) watch(e *Entry, p *printer) {
	switch e.Kind {
	case KindAsync:
		s := bind.Suspense(w.r, e.async, bind.IncludeFailure())
		reactive.CreateEffect(func() reactive.Cleanup {
			res := s.Resolve()
			if res.IsPending() {
				p.printf("%s pending", e.Name)
				return nil
			}
			p.printf("%s %s", e.Name, describeResult(res.Result))
			return nil
		})

	default:
		var value reactive.ReadSignal[any]
		if e.Kind == KindState {
			value = bind.Value[any](w.r, e.state)
		} else {
			value = bind.Value(w.r, e.derived)
		}
		reactive.CreateEffect(func() reactive.Cleanup {
			p.printf("%s = %s", e.Name, FormatValue(value.Get()))
			return nil
		})
	}
}

func (w *World) runStep(ctx context.Context, i int, step Step, p *printer) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.New("A108").WithDetailf("step %d panicked: %v", i+1, rec)
		}
	}()

	switch {
	case step.Set != nil:
		return w.Set(step.Set.Atom, step.Set.Value)

	case step.Update != nil:
		e := w.entries[step.Update.Atom]
		prog := w.updates[i]
		var evalErr error
		atom.Update[any, any](w.r, e.state, func(prev any) any {
			next, err := expr.Run(prog, map[string]any{"prev": prev})
			if err != nil {
				evalErr = err
				return prev
			}
			return next
		})
		if evalErr != nil {
			return errors.New("A108").
				WithDetailf("update of %q: %s", e.Name, step.Update.Expr).
				Wrap(evalErr)
		}
		return nil

	case step.Refresh != "":
		atom.Refresh(w.r, w.entries[step.Refresh].Handle())
		return nil

	case step.Wait != "":
		e := w.entries[step.Wait]
		res, err := atom.GetResult(w.r, e.async, atom.SuspendOnWaiting(true)).Wait(ctx)
		if err != nil {
			return err
		}
		p.printf("%s settled: %s", e.Name, describeResult(res))
		return nil

	case step.Sleep != nil:
		timer := time.NewTimer(step.Sleep.Duration())
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func describeResult(res result.Result[any]) string {
	switch {
	case res.IsFailure():
		return "failed: " + res.Cause().Squash().Error()
	case res.IsWaiting():
		v, _ := res.Value()
		return "= " + FormatValue(v) + " (refreshing)"
	default:
		v, _ := res.Value()
		return "= " + FormatValue(v)
	}
}

// FormatValue renders v for terminal output: strings quoted, composites
// as JSON.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case bool, int, int64, float64:
		return fmt.Sprint(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
