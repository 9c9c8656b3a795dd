package refs

import (
	"context"
	"testing"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/storage/memory"
)

func fixedClock(n int64) func() int64 {
	return func() int64 { return n }
}

func TestCreateGetRef(t *testing.T) {
	ctx := context.Background()
	m := New("repo1", memory.New(), fixedClock(1))

	head := objectid.Hash("Commit", []byte("c1"))
	if _, err := m.CreateRef(ctx, "main", KindBranch, head, false); err != nil {
		t.Fatalf("CreateRef: %v", err)
	}

	got, err := m.GetRef(ctx, "main")
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}
	if got.Head != head {
		t.Fatalf("unexpected head: %s", got.Head)
	}
}

func TestCreateRefAlreadyExists(t *testing.T) {
	ctx := context.Background()
	m := New("repo1", memory.New(), fixedClock(1))

	head := objectid.Hash("Commit", []byte("c1"))
	if _, err := m.CreateRef(ctx, "main", KindBranch, head, false); err != nil {
		t.Fatalf("first CreateRef: %v", err)
	}
	if _, err := m.CreateRef(ctx, "main", KindBranch, head, false); engerr.CodeOf(err) != engerr.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestUpdateRefCasMismatch(t *testing.T) {
	ctx := context.Background()
	m := New("repo1", memory.New(), fixedClock(1))

	h0 := objectid.Hash("Commit", []byte("c0"))
	h1 := objectid.Hash("Commit", []byte("c1"))
	h2 := objectid.Hash("Commit", []byte("c2"))

	if _, err := m.CreateRef(ctx, "main", KindBranch, h0, false); err != nil {
		t.Fatalf("CreateRef: %v", err)
	}
	if _, err := m.UpdateRef(ctx, "main", h0, h1); err != nil {
		t.Fatalf("UpdateRef: %v", err)
	}
	if _, err := m.UpdateRef(ctx, "main", h0, h2); engerr.CodeOf(err) != engerr.ReferenceConflict {
		t.Fatalf("expected ReferenceConflict on stale expectedHead, got %v", err)
	}
}

func TestUpdateImmutableTagRejected(t *testing.T) {
	ctx := context.Background()
	m := New("repo1", memory.New(), fixedClock(1))

	h0 := objectid.Hash("Commit", []byte("c0"))
	h1 := objectid.Hash("Commit", []byte("c1"))
	if _, err := m.CreateRef(ctx, "v1", KindTag, h0, true); err != nil {
		t.Fatalf("CreateRef: %v", err)
	}
	if _, err := m.UpdateRef(ctx, "v1", h0, h1); engerr.CodeOf(err) != engerr.InvalidArgument {
		t.Fatalf("expected InvalidArgument for immutable tag update, got %v", err)
	}
}

func TestDeleteRefCasMismatch(t *testing.T) {
	ctx := context.Background()
	m := New("repo1", memory.New(), fixedClock(1))

	h0 := objectid.Hash("Commit", []byte("c0"))
	h1 := objectid.Hash("Commit", []byte("c1"))
	if _, err := m.CreateRef(ctx, "main", KindBranch, h0, false); err != nil {
		t.Fatalf("CreateRef: %v", err)
	}
	if err := m.DeleteRef(ctx, "main", h1); engerr.CodeOf(err) != engerr.ReferenceConflict {
		t.Fatalf("expected ReferenceConflict, got %v", err)
	}
	if err := m.DeleteRef(ctx, "main", h0); err != nil {
		t.Fatalf("DeleteRef: %v", err)
	}
	if _, err := m.GetRef(ctx, "main"); engerr.CodeOf(err) != engerr.NotFound {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestListRefsPagination(t *testing.T) {
	ctx := context.Background()
	m := New("repo1", memory.New(), fixedClock(1))

	for _, name := range []string{"a", "b", "c"} {
		if _, err := m.CreateRef(ctx, name, KindBranch, objectid.Hash("x", []byte(name)), false); err != nil {
			t.Fatalf("CreateRef(%s): %v", name, err)
		}
	}

	page1, next, err := m.ListRefs(ctx, "", 2)
	if err != nil {
		t.Fatalf("ListRefs: %v", err)
	}
	if len(page1) != 2 || page1[0] != "a" || page1[1] != "b" {
		t.Fatalf("unexpected first page: %v", page1)
	}
	if next != "c" {
		t.Fatalf("expected next page token 'c', got %q", next)
	}

	page2, _, err := m.ListRefs(ctx, next, 10)
	if err != nil {
		t.Fatalf("ListRefs page2: %v", err)
	}
	if len(page2) != 1 || page2[0] != "c" {
		t.Fatalf("unexpected second page: %v", page2)
	}
}
