package atom

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vango-dev/atom/internal/equal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrCycle is raised, as a panic, when an atom depends on itself.
var ErrCycle = errors.New("atom: dependency cycle")

// DefaultIdleTimeout is how long an unobserved derived or async node is
// kept before it is dropped.
const DefaultIdleTimeout = time.Second

const defaultTracerName = "github.com/vango-dev/atom"

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics records registry activity in m.
func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithTracer sets the tracer used for async evaluations.
// Default: the global otel tracer provider.
func WithTracer(tracer trace.Tracer) RegistryOption {
	return func(r *Registry) {
		r.tracer = tracer
	}
}

// WithInitialValues seeds keyed state atoms. A seed is used the first time
// the matching atom is read.
func WithInitialValues(values ...Dehydrated) RegistryOption {
	return func(r *Registry) {
		for _, v := range values {
			r.seeds[v.Key] = v.Value
		}
	}
}

// WithIdleTimeout sets how long unobserved nodes are kept. Zero drops them
// at the end of the operation that left them unobserved.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.idleTimeout = d
	}
}

// Registry holds atom values.
//
// Source (state) atoms keep their value for the life of the registry.
// Derived and async atoms are computed on first use and dropped once
// nothing subscribes to, mounts or depends on them, unless they were made
// with KeepAlive.
//
// A Registry is safe for concurrent use. Subscriber callbacks run outside
// the registry lock, one notification at a time, in the order changes were
// made.
type Registry struct {
	id          uuid.UUID
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	idleTimeout time.Duration

	mu         sync.Mutex
	nodes      map[*atomBase]*node
	seeds      map[string]json.RawMessage
	batchDepth int
	nextSub    uint64

	// dirty holds observed nodes to recompute, changed holds observed nodes
	// whose value changed and whose subscribers have not been queued yet.
	dirty   []*node
	changed []*node
	idle    []*node

	queue    []delivery
	flushing bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		id:          uuid.New(),
		logger:      slog.Default(),
		idleTimeout: DefaultIdleTimeout,
		nodes:       make(map[*atomBase]*node),
		seeds:       make(map[string]json.RawMessage),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(defaultTracerName)
	}
	r.logger = r.logger.With("registry", r.id.String())
	return r
}

// ID identifies the registry in logs and spans.
func (r *Registry) ID() uuid.UUID {
	return r.id
}

// Logger returns the registry logger.
func (r *Registry) Logger() *slog.Logger {
	return r.logger
}

// Metrics returns the metrics the registry records into, or nil.
func (r *Registry) Metrics() *Metrics {
	return r.metrics
}

// Has reports whether h currently has a node.
func (r *Registry) Has(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.nodes[h.base()]
	return ok
}

type node struct {
	base *atomBase

	value   any
	version uint64

	stale     bool
	forced    bool
	computing bool

	// deps maps each dependency to the version read.
	deps       map[*node]uint64
	dependents map[*node]struct{}

	subs   []*subscription
	mounts int

	queuedDirty   bool
	queuedChanged bool
	queuedIdle    bool

	// async
	gen    uint64
	cancel func()
}

func (n *node) observed() bool {
	return len(n.subs) > 0 || n.mounts > 0
}

func (n *node) removable() bool {
	return n.base.kind != kindState &&
		!n.base.keepAlive &&
		!n.observed() &&
		len(n.dependents) == 0
}

type subscription struct {
	id     uint64
	node   *node
	fn     func(any)
	active atomic.Bool
}

type delivery struct {
	sub   *subscription
	value any
}

// update runs fn under the lock, settles the graph unless a batch is open
// and then delivers queued notifications outside the lock.
func (r *Registry) update(fn func()) {
	func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		fn()
		if r.batchDepth == 0 {
			r.stabilize()
		}
	}()
	r.flush()
}

// current reports whether n is still the registry's node for its atom.
func (r *Registry) current(n *node) bool {
	return r.nodes[n.base] == n
}

// ensure returns the up-to-date node for b, creating it if needed.
func (r *Registry) ensure(b *atomBase) *node {
	n, ok := r.nodes[b]
	if !ok {
		n = r.create(b)
		if n.removable() {
			r.scheduleRemoval(n)
		}
		return n
	}
	if n.computing {
		panic(fmt.Errorf("%w: %s", ErrCycle, b.Label()))
	}
	r.freshen(n)
	return n
}

func (r *Registry) create(b *atomBase) *node {
	n := &node{
		base:       b,
		deps:       make(map[*node]uint64),
		dependents: make(map[*node]struct{}),
	}
	r.nodes[b] = n
	r.metrics.nodeAdded(b.kind)

	if b.kind == kindState {
		r.assign(n, r.seedValue(b))
		return n
	}

	// A read that panics leaves no node behind, so the next read runs it
	// again instead of returning a value that was never computed.
	defer func() {
		if p := recover(); p != nil {
			r.remove(n)
			panic(p)
		}
	}()
	r.compute(n)
	return n
}

func (r *Registry) seedValue(b *atomBase) any {
	if b.key == "" {
		return b.initial()
	}
	data, ok := r.seeds[b.key]
	if !ok {
		return b.initial()
	}
	delete(r.seeds, b.key)

	v, err := b.decode(data)
	if err != nil {
		r.logger.Warn("atom seed ignored", "atom", b.Label(), "key", b.key, "error", err)
		return b.initial()
	}
	return v
}

// freshen recomputes a stale node if one of its dependencies changed since
// it was last computed. Dependencies are brought up to date first, so a
// node never observes a mix of old and new upstream values.
func (r *Registry) freshen(n *node) {
	if !n.stale {
		return
	}
	for dep := range n.deps {
		r.freshen(dep)
	}
	needs := n.forced
	for dep, seen := range n.deps {
		if dep.version != seen {
			needs = true
			break
		}
	}
	n.stale = false
	n.forced = false
	if needs {
		r.compute(n)
	}
}

func (r *Registry) compute(n *node) {
	n.computing = true
	done := false
	defer func() {
		n.computing = false
		if !done {
			n.stale, n.forced = true, true
		}
	}()

	old := n.deps
	n.deps = make(map[*node]uint64, len(old))
	for dep := range old {
		delete(dep.dependents, n)
	}

	r.metrics.recomputed()

	var next any
	switch n.base.kind {
	case kindDerived:
		next = n.base.read(&Context{r: r, n: n})
	case kindAsync:
		next = r.startAsync(n)
	}

	for dep := range old {
		if _, still := n.deps[dep]; !still && dep.removable() {
			r.scheduleRemoval(dep)
		}
	}
	done = true
	r.assign(n, next)
}

func (r *Registry) link(n, dep *node) {
	if dep == n {
		panic(fmt.Errorf("%w: %s", ErrCycle, n.base.Label()))
	}
	n.deps[dep] = dep.version
	dep.dependents[n] = struct{}{}
}

// assign stores v if it differs from the current value and invalidates
// everything downstream. It reports whether the value changed.
func (r *Registry) assign(n *node, v any) bool {
	if n.version > 0 && equal.Default(n.value, v) {
		return false
	}
	n.value = v
	n.version++
	if len(n.subs) > 0 && !n.queuedChanged {
		n.queuedChanged = true
		r.changed = append(r.changed, n)
	}
	r.invalidate(n)
	return true
}

func (r *Registry) invalidate(n *node) {
	for d := range n.dependents {
		// A forced node is stale from a read that panicked and has not
		// been queued since.
		if d.stale && !d.forced {
			continue
		}
		d.stale = true
		if d.observed() && !d.queuedDirty {
			d.queuedDirty = true
			r.dirty = append(r.dirty, d)
		}
		r.invalidate(d)
	}
}

// stabilize recomputes observed stale nodes and queues their subscribers.
func (r *Registry) stabilize() {
	for len(r.dirty) > 0 {
		n := r.dirty[0]
		r.dirty = r.dirty[1:]
		n.queuedDirty = false
		if r.current(n) {
			r.freshen(n)
		}
	}

	for _, n := range r.changed {
		n.queuedChanged = false
		if !r.current(n) {
			continue
		}
		for _, sub := range n.subs {
			r.queue = append(r.queue, delivery{sub: sub, value: n.value})
		}
	}
	r.changed = r.changed[:0]

	if r.idleTimeout <= 0 {
		idle := r.idle
		r.idle = nil
		for _, n := range idle {
			n.queuedIdle = false
			if r.current(n) && n.removable() {
				r.remove(n)
			}
		}
	}
}

// flush delivers queued notifications. Only one goroutine drains at a time,
// which keeps deliveries in the order they were queued; a flush requested
// while another is draining is picked up by the drainer.
func (r *Registry) flush() {
	r.mu.Lock()
	if r.flushing {
		r.mu.Unlock()
		return
	}
	r.flushing = true
	r.mu.Unlock()

	done := false
	defer func() {
		if !done {
			r.mu.Lock()
			r.flushing = false
			r.mu.Unlock()
		}
	}()

	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		if len(batch) == 0 {
			r.flushing = false
			r.mu.Unlock()
			done = true
			return
		}
		r.mu.Unlock()

		for _, d := range batch {
			if !d.sub.active.Load() {
				continue
			}
			r.metrics.notified()
			d.sub.fn(d.value)
		}
	}
}

func (r *Registry) scheduleRemoval(n *node) {
	if n.queuedIdle {
		return
	}
	n.queuedIdle = true

	if r.idleTimeout <= 0 {
		r.idle = append(r.idle, n)
		return
	}
	time.AfterFunc(r.idleTimeout, func() {
		r.update(func() {
			n.queuedIdle = false
			if r.current(n) && n.removable() {
				r.remove(n)
			}
		})
	})
}

// remove drops n and any dependency that only n kept alive.
func (r *Registry) remove(n *node) {
	delete(r.nodes, n.base)
	n.gen++
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	r.metrics.nodeRemoved(n.base.kind)
	r.logger.Debug("atom dropped", "atom", n.base.Label())

	for dep := range n.deps {
		delete(dep.dependents, n)
		if r.current(dep) && dep.removable() {
			r.remove(dep)
		}
	}
}

func (r *Registry) write(b *atomBase, v any) {
	if b.kind == kindState {
		r.assign(r.ensure(b), v)
		return
	}
	if b.write == nil {
		panic(fmt.Errorf("atom: %s is not writable", b.Label()))
	}
	b.write(&WriteContext{r: r}, v)
}

func (r *Registry) refresh(b *atomBase) {
	n, ok := r.nodes[b]
	if !ok || b.kind == kindState {
		return
	}
	r.logger.Debug("atom refreshed", "atom", b.Label())
	n.stale = true
	n.forced = true
	r.freshen(n)
}

// Sweep drops every node that is no longer observed, depended on or kept
// alive, without waiting for the idle timeout.
func (r *Registry) Sweep() {
	r.update(func() {
		for {
			var victims []*node
			for _, n := range r.nodes {
				if n.removable() {
					victims = append(victims, n)
				}
			}
			if len(victims) == 0 {
				return
			}
			for _, n := range victims {
				if r.current(n) {
					r.remove(n)
				}
			}
		}
	})
}

// Reset drops every node, cancels async evaluations and detaches all
// subscriptions. Seeds given to the registry are not restored.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.nodes {
		n.gen++
		if n.cancel != nil {
			n.cancel()
			n.cancel = nil
		}
		for _, sub := range n.subs {
			if sub.active.Swap(false) {
				r.metrics.unsubscribed()
			}
		}
		if n.mounts > 0 {
			r.metrics.unmounted(n.mounts)
		}
		r.metrics.nodeRemoved(n.base.kind)
	}
	r.nodes = make(map[*atomBase]*node)
	r.dirty = nil
	r.changed = nil
	r.idle = nil
	r.queue = nil
	r.logger.Debug("registry reset")
}

// labels returns the labels of all live nodes, sorted. Used in tests and
// diagnostics.
func (r *Registry) labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.nodes))
	for b := range r.nodes {
		out = append(out, b.Label())
	}
	sort.Strings(out)
	return out
}
