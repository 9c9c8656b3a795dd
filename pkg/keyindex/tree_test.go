package keyindex

import (
	"context"
	"testing"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/storage/memory"
)

func newStore() Store {
	return memory.New().KeyIndexSegments()
}

func TestBuildAndLookup(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	entries := []Entry{
		{Key: Key{"db", "t1"}, PayloadRef: objectid.Hash("x", []byte("1"))},
		{Key: Key{"db", "t2"}, PayloadRef: objectid.Hash("x", []byte("2"))},
		{Key: Key{"a"}, PayloadRef: objectid.Hash("x", []byte("3"))},
	}
	root, err := Build(ctx, store, "repo1", entries, DefaultSegmentBudget)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got, err := Lookup(ctx, store, "repo1", root, Key{"db", "t1"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.PayloadRef != entries[0].PayloadRef {
		t.Fatalf("wrong payload ref")
	}

	if _, err := Lookup(ctx, store, "repo1", root, Key{"missing"}); engerr.CodeOf(err) != engerr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestApplyPutThenDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	root, err := Apply(ctx, store, "repo1", objectid.Nil, []Operation{
		{Key: Key{"x"}, Kind: OpPut, PayloadRef: objectid.Hash("c", []byte("1"))},
	}, DefaultSegmentBudget)
	if err != nil {
		t.Fatalf("Apply put: %v", err)
	}
	if _, err := Lookup(ctx, store, "repo1", root, Key{"x"}); err != nil {
		t.Fatalf("expected key present after put: %v", err)
	}

	root2, err := Apply(ctx, store, "repo1", root, []Operation{
		{Key: Key{"x"}, Kind: OpDelete},
	}, DefaultSegmentBudget)
	if err != nil {
		t.Fatalf("Apply delete: %v", err)
	}
	if _, err := Lookup(ctx, store, "repo1", root2, Key{"x"}); engerr.CodeOf(err) != engerr.NotFound {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestApplyPutDiffsAsSingleAddedKey(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	root, err := Apply(ctx, store, "repo1", objectid.Nil, []Operation{
		{Key: Key{"a"}, Kind: OpPut, PayloadRef: objectid.Hash("c", []byte("1"))},
		{Key: Key{"b"}, Kind: OpPut, PayloadRef: objectid.Hash("c", []byte("2"))},
	}, DefaultSegmentBudget)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	root2, err := Apply(ctx, store, "repo1", root, []Operation{
		{Key: Key{"c"}, Kind: OpPut, PayloadRef: objectid.Hash("c", []byte("3"))},
	}, DefaultSegmentBudget)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	diffs, err := Diff(ctx, store, "repo1", root, root2)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs) != 1 || diffs[0].Kind != DiffAdded || !diffs[0].Key.Equal(Key{"c"}) {
		t.Fatalf("unexpected diff: %+v", diffs)
	}
}

func TestDiffEmptyForIdenticalRoots(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	root, err := Build(ctx, store, "repo1", []Entry{{Key: Key{"a"}, PayloadRef: objectid.Hash("x", []byte("1"))}}, DefaultSegmentBudget)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	diffs, err := Diff(ctx, store, "repo1", root, root)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs) != 0 {
		t.Fatalf("expected no diffs, got %+v", diffs)
	}
}

func TestScanPrefixAndResume(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	entries := []Entry{
		{Key: Key{"db", "a"}, PayloadRef: objectid.Hash("x", []byte("1"))},
		{Key: Key{"db", "b"}, PayloadRef: objectid.Hash("x", []byte("2"))},
		{Key: Key{"other", "c"}, PayloadRef: objectid.Hash("x", []byte("3"))},
	}
	root, err := Build(ctx, store, "repo1", entries, DefaultSegmentBudget)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	page1, cursor, err := Scan(ctx, store, "repo1", root, Key{"db"}, 1, Cursor{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(page1) != 1 || !page1[0].Key.Equal(Key{"db", "a"}) {
		t.Fatalf("unexpected first page: %+v", page1)
	}

	page2, _, err := Scan(ctx, store, "repo1", root, Key{"db"}, 10, cursor)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(page2) != 1 || !page2[0].Key.Equal(Key{"db", "b"}) {
		t.Fatalf("unexpected second page: %+v", page2)
	}
}

func TestCommitFinalizeDeterministic(t *testing.T) {
	c1 := &Commit{Author: "a", Message: "m", Operations: []Operation{{Key: Key{"x"}, Kind: OpPut}}}
	c2 := &Commit{Author: "a", Message: "m", Operations: []Operation{{Key: Key{"x"}, Kind: OpPut}}}
	if c1.ComputeID() != c2.ComputeID() {
		t.Fatal("identical commits should hash identically")
	}
	c2.Message = "different"
	if c1.ComputeID() == c2.ComputeID() {
		t.Fatal("different commits should hash differently")
	}
}
