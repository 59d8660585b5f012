package reactive

import "testing"

func TestOwnerHierarchy(t *testing.T) {
	root := NewOwner(nil)
	child := NewOwner(root)

	if child.Parent() != root {
		t.Error("child should point at its parent")
	}
	if root.Parent() != nil {
		t.Error("root should have no parent")
	}
	if root.ID() == child.ID() {
		t.Error("owners should have distinct IDs")
	}
}

func TestOwnerDisposeOrder(t *testing.T) {
	root := NewOwner(nil)
	first := NewOwner(root)
	second := NewOwner(root)

	var order []string
	root.OnCleanup(func() { order = append(order, "root-a") })
	root.OnCleanup(func() { order = append(order, "root-b") })
	first.OnCleanup(func() { order = append(order, "first") })
	second.OnCleanup(func() { order = append(order, "second") })

	root.Dispose()

	want := []string{"second", "first", "root-b", "root-a"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
	if !first.IsDisposed() || !second.IsDisposed() {
		t.Error("children should be disposed with their parent")
	}
}

func TestOwnerDisposeIdempotent(t *testing.T) {
	owner := NewOwner(nil)
	calls := 0
	owner.OnCleanup(func() { calls++ })

	owner.Dispose()
	owner.Dispose()

	if calls != 1 {
		t.Errorf("expected cleanup to run once, got %d", calls)
	}
}

func TestOwnerOnCleanupAfterDispose(t *testing.T) {
	owner := NewOwner(nil)
	owner.Dispose()

	ran := false
	owner.OnCleanup(func() { ran = true })
	if !ran {
		t.Error("cleanup registered on a disposed owner should run immediately")
	}
}

func TestChildDisposeDetaches(t *testing.T) {
	root := NewOwner(nil)
	child := NewOwner(root)
	calls := 0
	child.OnCleanup(func() { calls++ })

	child.Dispose()
	root.Dispose()

	if calls != 1 {
		t.Errorf("expected child cleanup once, got %d", calls)
	}
}

func TestPackageOnCleanup(t *testing.T) {
	if OnCleanup(func() {}) {
		t.Error("OnCleanup should report false without an owner")
	}

	owner := NewOwner(nil)
	ran := false
	WithOwner(owner, func() {
		if !OnCleanup(func() { ran = true }) {
			t.Error("OnCleanup should report true under an owner")
		}
	})

	if ran {
		t.Fatal("cleanup ran before dispose")
	}
	owner.Dispose()
	if !ran {
		t.Error("cleanup should run on dispose")
	}
}

func TestCreateRoot(t *testing.T) {
	var cleaned bool
	dispose := CreateRoot(func(dispose func()) func() {
		OnCleanup(func() { cleaned = true })
		return dispose
	})

	if cleaned {
		t.Fatal("root disposed too early")
	}
	dispose()
	if !cleaned {
		t.Error("dispose should run root cleanups")
	}
}

func TestCreateRootDisposesOnPanic(t *testing.T) {
	var cleaned bool
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		CreateRoot(func(func()) int {
			OnCleanup(func() { cleaned = true })
			panic("boom")
		})
	}()

	if !cleaned {
		t.Error("root should be disposed when setup panics")
	}
	if CurrentOwner() != nil {
		t.Error("owner should be restored after panic")
	}
}
