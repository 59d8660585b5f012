package scenario

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/bind"
	"github.com/vango-dev/atom/pkg/result"
)

// Kind is how an atom is defined.
type Kind string

const (
	KindState   Kind = "state"
	KindDerived Kind = "derived"
	KindAsync   Kind = "async"
)

// Entry is one declared atom bound to its atom definition.
type Entry struct {
	Name string
	Kind Kind
	Key  string

	state   *atom.State[any]
	derived atom.Atom[any]
	async   atom.Atom[result.Result[any]]
}

// Handle returns the atom behind the entry.
func (e *Entry) Handle() atom.Handle {
	switch e.Kind {
	case KindState:
		return e.state
	case KindAsync:
		return e.async
	default:
		return e.derived
	}
}

// read returns the entry's plain value for an expression: the value of a
// state or derived atom, or the last successful value of an async atom.
func (e *Entry) read(g atom.Getter) any {
	switch e.Kind {
	case KindState:
		return atom.Read[any](g, e.state)
	case KindAsync:
		v, _ := atom.Read(g, e.async).Value()
		return v
	default:
		return atom.Read(g, e.derived)
	}
}

// World is a built scenario: its atoms defined against one registry.
type World struct {
	file    *File
	r       *atom.Registry
	logger  *slog.Logger
	entries map[string]*Entry
	order   []*Entry
	updates map[int]*vm.Program
}

// Build defines the atoms of f for r and compiles every expression.
// Atoms may only depend on atoms declared before them.
func Build(f *File, r *atom.Registry) (*World, error) {
	w := &World{
		file:    f,
		r:       r,
		logger:  r.Logger().With("scenario", f.Name),
		entries: make(map[string]*Entry),
		updates: make(map[int]*vm.Program),
	}

	for _, spec := range f.Atoms {
		e, err := w.define(spec)
		if err != nil {
			return nil, err
		}
		w.entries[e.Name] = e
		w.order = append(w.order, e)
	}

	for _, name := range f.Watch {
		if _, ok := w.entries[name]; !ok {
			return nil, errors.New("A105").WithDetailf("watch lists unknown atom %q", name)
		}
	}

	for i, step := range f.Steps {
		if err := w.check(i, step); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *World) define(spec AtomSpec) (*Entry, error) {
	if spec.Name == "" {
		return nil, w.file.locate(errors.New("A102").WithDetail("atom has no name"), spec.Line, spec.Column)
	}
	if _, dup := w.entries[spec.Name]; dup {
		return nil, w.file.locate(errors.New("A102").WithDetailf("atom %q is declared twice", spec.Name), spec.Line, spec.Column)
	}

	forms := 0
	for _, set := range []bool{spec.HasValue, spec.Expr != "", spec.Async != nil} {
		if set {
			forms++
		}
	}
	if forms != 1 {
		return nil, w.file.locate(errors.New("A102").
			WithDetailf("atom %q must set exactly one of value, expr or async", spec.Name), spec.Line, spec.Column)
	}
	if spec.Key != "" && !spec.HasValue {
		return nil, w.file.locate(errors.New("A102").
			WithDetailf("atom %q has a key but only value atoms are snapshotted", spec.Name), spec.Line, spec.Column)
	}

	opts := []atom.Option{atom.WithLabel(spec.Name)}
	if spec.Key != "" {
		opts = append(opts, atom.WithKey(spec.Key))
	}
	if spec.KeepAlive {
		opts = append(opts, atom.KeepAlive())
	}

	e := &Entry{Name: spec.Name, Key: spec.Key}
	switch {
	case spec.HasValue:
		e.Kind = KindState
		e.state = atom.Make[any](spec.Value, opts...)

	case spec.Expr != "":
		deps, prog, err := w.compile(spec, spec.Expr, spec.Deps)
		if err != nil {
			return nil, err
		}
		e.Kind = KindDerived
		e.derived = atom.Readable(func(c *atom.Context) any {
			out, err := expr.Run(prog, env(c, deps))
			if err != nil {
				w.logger.Warn("derived atom evaluation failed", "atom", spec.Name, "error", err)
				return nil
			}
			return out
		}, opts...)

	default:
		as := *spec.Async
		if as.Expr == "" && as.Fail == "" {
			return nil, w.file.locate(errors.New("A102").
				WithDetailf("async atom %q needs expr or fail", spec.Name), spec.Line, spec.Column)
		}
		var (
			deps []*Entry
			prog *vm.Program
			err  error
		)
		if as.Expr != "" {
			deps, prog, err = w.compile(spec, as.Expr, as.Deps)
			if err != nil {
				return nil, err
			}
		}
		e.Kind = KindAsync
		e.async = atom.Async(func(ctx context.Context, c *atom.Context) (any, error) {
			vars := env(c, deps)
			if d := as.Delay.Duration(); d > 0 {
				timer := time.NewTimer(d)
				defer timer.Stop()
				select {
				case <-timer.C:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			if as.Fail != "" {
				return nil, stderrors.New(as.Fail)
			}
			return expr.Run(prog, vars)
		}, opts...)
	}
	return e, nil
}

// compile resolves deps against the atoms declared so far and compiles
// source with exactly those names in scope.
func (w *World) compile(spec AtomSpec, source string, names []string) ([]*Entry, *vm.Program, error) {
	deps := make([]*Entry, 0, len(names))
	scope := make(map[string]bool, len(names))
	for _, name := range names {
		dep, ok := w.entries[name]
		if !ok {
			return nil, nil, w.file.locate(errors.New("A103").
				WithDetailf("atom %q depends on %q, which is not declared before it", spec.Name, name).
				WithSuggestion(fmt.Sprintf("Declare %q above %q", name, spec.Name)), spec.Line, spec.Column)
		}
		deps = append(deps, dep)
		scope[name] = true
	}

	prog, err := compileIn(source, scope)
	if err != nil {
		return nil, nil, w.file.locate(errors.New("A104").
			WithDetailf("atom %q: %s", spec.Name, source).
			Wrap(err), spec.Line, spec.Column)
	}
	return deps, prog, nil
}

// compileIn compiles source leaving every variable untyped, then rejects
// any free name that is not in scope.
func compileIn(source string, scope map[string]bool) (*vm.Program, error) {
	prog, err := expr.Compile(source, expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	node := prog.Node()
	fv := &freeNames{bound: make(map[string]bool)}
	ast.Walk(&node, fv)
	for _, name := range fv.seen {
		if !scope[name] && !fv.bound[name] {
			return nil, fmt.Errorf("unknown name %s", name)
		}
	}
	return prog, nil
}

// freeNames collects identifiers and let-bound names of an expression.
type freeNames struct {
	bound map[string]bool
	seen  []string
}

func (f *freeNames) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.VariableDeclaratorNode:
		f.bound[n.Name] = true
	case *ast.IdentifierNode:
		if n.Value != "$env" {
			f.seen = append(f.seen, n.Value)
		}
	}
}

func (w *World) check(i int, step Step) error {
	if step.actions() != 1 {
		return w.file.locate(errors.New("A106").WithDetailf("step %d has %d actions", i+1, step.actions()), step.Line, step.Column)
	}

	switch {
	case step.Set != nil:
		_, err := w.writable(step.Set.Atom, step)
		return err

	case step.Update != nil:
		if _, err := w.writable(step.Update.Atom, step); err != nil {
			return err
		}
		prog, err := compileIn(step.Update.Expr, map[string]bool{"prev": true})
		if err != nil {
			return w.file.locate(errors.New("A104").
				WithDetailf("update of %q: %s", step.Update.Atom, step.Update.Expr).
				Wrap(err), step.Line, step.Column)
		}
		w.updates[i] = prog
		return nil

	case step.Refresh != "":
		_, err := w.lookupAt(step.Refresh, step)
		return err

	case step.Wait != "":
		e, err := w.lookupAt(step.Wait, step)
		if err != nil {
			return err
		}
		if e.Kind != KindAsync {
			return w.file.locate(errors.New("A109").WithDetailf("%q is a %s atom", e.Name, e.Kind), step.Line, step.Column)
		}
	}
	return nil
}

func (w *World) lookupAt(name string, step Step) (*Entry, error) {
	e, ok := w.entries[name]
	if !ok {
		return nil, w.file.locate(errors.New("A105").WithDetailf("no atom named %q", name), step.Line, step.Column)
	}
	return e, nil
}

func (w *World) writable(name string, step Step) (*Entry, error) {
	e, err := w.lookupAt(name, step)
	if err != nil {
		return nil, err
	}
	if e.Kind != KindState {
		return nil, w.file.locate(errors.New("A107").WithDetailf("%q is a %s atom", name, e.Kind), step.Line, step.Column)
	}
	return e, nil
}

func env(g atom.Getter, deps []*Entry) map[string]any {
	vars := make(map[string]any, len(deps))
	for _, dep := range deps {
		vars[dep.Name] = dep.read(g)
	}
	return vars
}

// Name returns the scenario name.
func (w *World) Name() string {
	return w.file.Name
}

// Registry returns the registry the world's atoms live in.
func (w *World) Registry() *atom.Registry {
	return w.r
}

// Entries returns the atoms in declaration order.
func (w *World) Entries() []*Entry {
	return append([]*Entry(nil), w.order...)
}

// Names returns the atom names, sorted.
func (w *World) Names() []string {
	names := make([]string, 0, len(w.entries))
	for name := range w.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the atom called name.
func (w *World) Lookup(name string) (*Entry, error) {
	e, ok := w.entries[name]
	if !ok {
		return nil, errors.New("A105").WithDetailf("no atom named %q", name)
	}
	return e, nil
}

// Value returns the current value of name. Async atoms report their
// result.Result.
func (w *World) Value(name string) (any, error) {
	e, err := w.Lookup(name)
	if err != nil {
		return nil, err
	}
	switch e.Kind {
	case KindState:
		return atom.Get[any](w.r, e.state), nil
	case KindAsync:
		return atom.Get(w.r, e.async), nil
	default:
		return atom.Get(w.r, e.derived), nil
	}
}

// Set writes v to the state atom name.
func (w *World) Set(name string, v any) error {
	e, err := w.Lookup(name)
	if err != nil {
		return err
	}
	if e.Kind != KindState {
		return errors.New("A107").WithDetailf("%q is a %s atom", name, e.Kind)
	}
	atom.Set[any, any](w.r, e.state, v)
	return nil
}

// Subscribe calls fn with every new value of name until the current
// reactive owner is disposed.
func (w *World) Subscribe(name string, fn func(any), opts ...atom.SubscribeOption) error {
	e, err := w.Lookup(name)
	if err != nil {
		return err
	}
	switch e.Kind {
	case KindState:
		bind.Subscribe[any](w.r, e.state, fn, opts...)
	case KindAsync:
		bind.Subscribe(w.r, e.async, func(res result.Result[any]) { fn(res) }, opts...)
	default:
		bind.Subscribe(w.r, e.derived, fn, opts...)
	}
	return nil
}
