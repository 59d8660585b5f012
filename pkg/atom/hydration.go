package atom

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Dehydrated is the serialized value of a keyed state atom.
type Dehydrated struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Dehydrate returns the values of all keyed state atoms that have a node,
// sorted by key.
func Dehydrate(r *Registry) ([]Dehydrated, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Dehydrated, 0)
	for b, n := range r.nodes {
		if b.kind != kindState || b.key == "" {
			continue
		}
		data, err := json.Marshal(n.value)
		if err != nil {
			return nil, fmt.Errorf("atom: dehydrate %s: %w", b.key, err)
		}
		out = append(out, Dehydrated{Key: b.key, Value: data})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Hydrate applies values to keyed state atoms. Atoms that already have a
// node are written, and notify as usual; the rest are seeded for their
// first read. A value that does not decode leaves its atom unchanged and is
// reported after the others are applied.
func Hydrate(r *Registry, values []Dehydrated) error {
	var firstErr error
	r.update(func() {
		byKey := make(map[string]*node)
		for b, n := range r.nodes {
			if b.kind == kindState && b.key != "" {
				byKey[b.key] = n
			}
		}

		for _, v := range values {
			n, ok := byKey[v.Key]
			if !ok {
				r.seeds[v.Key] = v.Value
				continue
			}
			decoded, err := n.base.decode(v.Value)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("atom: hydrate %s: %w", v.Key, err)
				}
				continue
			}
			r.assign(n, decoded)
		}
	})
	return firstErr
}
