package atom

import "context"

// Getter reads atoms. *Context reads track dependencies, *WriteContext
// reads do not.
type Getter interface {
	get(b *atomBase) any
}

// Read returns a's value through g.
func Read[A any](g Getter, a Atom[A]) A {
	return a.cast(g.get(a.base()))
}

// Context is passed to the read function of a derived atom and to the
// function of an async atom.
type Context struct {
	r   *Registry
	n   *node
	ctx context.Context

	// async contexts are used from the evaluation goroutine and take the
	// registry lock on every read.
	async bool
	gen   uint64
}

// Context returns the lifetime context of the evaluation. For async atoms
// it is cancelled when the atom is recomputed or dropped.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Registry returns the registry the atom is evaluated in.
func (c *Context) Registry() *Registry {
	return c.r
}

func (c *Context) get(b *atomBase) any {
	if !c.async {
		dep := c.r.ensure(b)
		c.r.link(c.n, dep)
		return dep.value
	}

	var v any
	c.r.update(func() {
		dep := c.r.ensure(b)
		if c.r.current(c.n) && c.n.gen == c.gen {
			c.r.link(c.n, dep)
		}
		v = dep.value
	})
	return v
}

// WriteContext is passed to the write function of a writable atom.
type WriteContext struct {
	r *Registry
}

func (w *WriteContext) get(b *atomBase) any {
	return w.r.ensure(b).value
}

// Refresh forces h to recompute.
func (w *WriteContext) Refresh(h Handle) {
	w.r.refresh(h.base())
}

// Write writes v to a from inside another atom's write function.
func Write[R, W any](w *WriteContext, a Writable[R, W], v W) {
	w.r.write(a.base(), v)
}
