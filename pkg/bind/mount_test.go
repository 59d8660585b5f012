package bind

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vango-dev/atom/pkg/atom"
	"github.com/vango-dev/atom/pkg/reactive"
)

func TestMountKeepsAtomAlive(t *testing.T) {
	r, promReg := newTestRegistry(t)
	base := atom.Make(2)
	squared := atom.Map(base, func(n int) int { return n * n })

	owner := reactive.NewOwner(nil)
	reactive.Run(owner, func() {
		Mount(r, squared)
	})
	assert.True(t, r.Has(squared))
	assert.Equal(t, 1.0, metricValue(t, promReg, "atom_registry_mounts"))

	owner.Dispose()
	owner.Dispose()
	assert.False(t, r.Has(squared))
	assert.Equal(t, 0.0, metricValue(t, promReg, "atom_registry_mounts"))
}

func TestRefreshRecomputes(t *testing.T) {
	r, _ := newTestRegistry(t)
	base := atom.Make(1)
	var runs atomic.Int32
	counted := atom.Readable(func(c *atom.Context) int {
		runs.Add(1)
		return atom.Read(c, base)
	})

	owner := reactive.NewOwner(nil)
	defer owner.Dispose()

	var refresh func()
	reactive.Run(owner, func() {
		refresh = Refresh(r, counted)
	})
	before := runs.Load()

	refresh()
	assert.Equal(t, before+1, runs.Load())
	assert.Equal(t, 1, atom.Get(r, counted))
}

func TestSubscribeAdapter(t *testing.T) {
	r, _ := newTestRegistry(t)
	count := atom.Make(0)

	var got []int
	owner := reactive.NewOwner(nil)
	reactive.Run(owner, func() {
		Subscribe(r, count, func(n int) { got = append(got, n) }, atom.Immediate())
	})
	assert.Equal(t, []int{0}, got)

	atom.Set(r, count, 1)
	assert.Equal(t, []int{0, 1}, got)

	owner.Dispose()
	atom.Set(r, count, 2)
	assert.Equal(t, []int{0, 1}, got)
}
