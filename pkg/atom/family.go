package atom

import "sync"

// Family memoises an atom constructor by key, so that every call with the
// same key returns the same handle.
//
//	userAtom := atom.Family(func(id string) atom.Atom[result.Result[User]] {
//	    return atom.Async(func(ctx context.Context, _ *atom.Context) (User, error) {
//	        return fetchUser(ctx, id)
//	    })
//	})
//
// Handles are retained for the life of the family.
func Family[K comparable, H Handle](fn func(K) H) func(K) H {
	var mu sync.Mutex
	members := make(map[K]H)

	return func(key K) H {
		mu.Lock()
		defer mu.Unlock()
		if h, ok := members[key]; ok {
			return h
		}
		h := fn(key)
		members[key] = h
		return h
	}
}
