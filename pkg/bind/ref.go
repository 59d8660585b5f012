package bind

import (
	"log/slog"
	"strings"

	"github.com/vango-dev/atom/pkg/atomref"
	"github.com/vango-dev/atom/pkg/reactive"
)

// Ref binds an external reference cell to a new reactive cell.
func Ref[A any](ref atomref.ReadonlyRef[A]) reactive.ReadSignal[A] {
	sig := reactive.NewSignal(ref.Value())

	unsubscribe := ref.Subscribe(func(v A) { sig.Set(v) })
	defer register(slog.Default(), refLabel(ref), unsubscribe)

	sig.Set(ref.Value())
	return sig.ReadOnly()
}

// RefProp projects ref onto the field selected by lens.
func RefProp[A, F any](ref atomref.Ref[A], lens atomref.Lens[A, F]) atomref.Ref[F] {
	return atomref.Prop(ref, lens)
}

// RefPropValue binds one field of ref to a new reactive cell.
func RefPropValue[A, F any](ref atomref.Ref[A], lens atomref.Lens[A, F]) reactive.ReadSignal[F] {
	return Ref[F](RefProp(ref, lens))
}

func refLabel[A any](ref atomref.ReadonlyRef[A]) string {
	if r, ok := ref.(atomref.Ref[A]); ok {
		if path := r.Path(); len(path) > 0 {
			return "ref:" + strings.Join(path, ".")
		}
	}
	return "ref"
}
