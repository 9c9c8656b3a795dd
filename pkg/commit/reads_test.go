package commit

import (
	"context"
	"testing"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/refs"
)

func TestLogWalksAncestry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newHarness(t, "main")

	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{Branch: "main", Operations: []keyindex.Operation{putOp("a", "v1")}}); err != nil {
		t.Fatalf("c1: %v", err)
	}
	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{Branch: "main", Operations: []keyindex.Operation{putOp("b", "v1")}}); err != nil {
		t.Fatalf("c2: %v", err)
	}

	log, err := svc.Log(ctx, "main", 0)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("expected 2 commits in log, got %d", len(log))
	}
}

func TestDetachedRefRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newHarness(t, "main")

	c1, err := svc.CommitWithRequirements(ctx, CommitRequest{Branch: "main", Operations: []keyindex.Operation{putOp("a", "v1")}})
	if err != nil {
		t.Fatalf("c1: %v", err)
	}

	head, entries, err := svc.GetMultipleContents(ctx, c1.ID.String(), []keyindex.Key{{"a"}})
	if err != nil {
		t.Fatalf("GetMultipleContents by detached commit: %v", err)
	}
	if head != c1.ID {
		t.Fatalf("expected resolved head %s, got %s", c1.ID, head)
	}
	if !entries[0].Found {
		t.Fatalf("expected key found at detached commit")
	}
}

func TestFindMergeBase(t *testing.T) {
	ctx := context.Background()
	svc, refMgr := newHarness(t, "main")

	base, err := svc.CommitWithRequirements(ctx, CommitRequest{Branch: "main", Operations: []keyindex.Operation{putOp("a", "v1")}})
	if err != nil {
		t.Fatalf("base: %v", err)
	}
	if _, err := refMgr.CreateRef(ctx, "feature", refs.KindBranch, base.ID, false); err != nil {
		t.Fatalf("CreateRef feature: %v", err)
	}
	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{Branch: "feature", Operations: []keyindex.Operation{putOp("f", "v1")}}); err != nil {
		t.Fatalf("feature commit: %v", err)
	}

	mergeBase, err := svc.FindMergeBase(ctx, "feature", "main")
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if mergeBase != base.ID {
		t.Fatalf("expected merge base %s, got %s", base.ID, mergeBase)
	}
}

func TestUpdateRefFastForward(t *testing.T) {
	ctx := context.Background()
	svc, refMgr := newHarness(t, "main")

	c1, err := svc.CommitWithRequirements(ctx, CommitRequest{Branch: "main", Operations: []keyindex.Operation{putOp("a", "v1")}})
	if err != nil {
		t.Fatalf("c1: %v", err)
	}
	c2, err := svc.CommitWithRequirements(ctx, CommitRequest{Branch: "main", Operations: []keyindex.Operation{putOp("b", "v1")}})
	if err != nil {
		t.Fatalf("c2: %v", err)
	}

	if _, err := refMgr.CreateRef(ctx, "other", refs.KindBranch, c1.ID, false); err != nil {
		t.Fatalf("CreateRef other: %v", err)
	}
	if err := svc.UpdateRefFastForward(ctx, "other", c2.ID); err != nil {
		t.Fatalf("UpdateRefFastForward: %v", err)
	}

	if _, err := refMgr.CreateRef(ctx, "diverged", refs.KindBranch, c1.ID, false); err != nil {
		t.Fatalf("CreateRef diverged: %v", err)
	}
	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{Branch: "diverged", Operations: []keyindex.Operation{putOp("c", "v1")}}); err != nil {
		t.Fatalf("diverged commit: %v", err)
	}
	if err := svc.UpdateRefFastForward(ctx, "diverged", c2.ID); engerr.CodeOf(err) != engerr.ReferenceConflict {
		t.Fatalf("expected ReferenceConflict for non-fast-forward update, got %v", err)
	}
}
