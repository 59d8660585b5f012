// Package bind connects atoms in an atom.Registry to the reactive runtime.
//
// Every binding is created inside a reactive owner and lives exactly as
// long as that owner: the store subscription or mount it opens is released
// when the owner is disposed, and disposing twice does nothing more.
//
//	reactive.CreateRoot(func(dispose func()) struct{} {
//	    count, setCount := bind.Atom(nil, countAtom)
//	    setCount.Set(5)
//	    setCount.Update(func(n int) int { return n + 1 })
//	    fmt.Println(count.Get()) // 6
//	    dispose()
//	    return struct{}{}
//	})
//
// A nil registry selects Default, the process-wide registry.
//
// # Cells
//
// Value and Atom create one reactive cell per call. The cell is seeded from
// the store, subscribed, and then synchronised once more so that a write
// landing between the seed and the subscription is not lost. Only the
// binding writes to its cell.
//
// # Suspension
//
// Suspense resolves async atoms. Resolve returns an explicit Resolution;
// Read turns a pending Resolution into a reactive suspension for a
// reactive.Boundary.
package bind
