package commit

import (
	"context"
	"testing"

	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/refs"
)

func TestTransplantOneCommitPerSource(t *testing.T) {
	ctx := context.Background()
	svc, refMgr := newHarness(t, "main")

	c1, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("a", "v1")},
	})
	if err != nil {
		t.Fatalf("c1: %v", err)
	}
	c2, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("b", "v1")},
	})
	if err != nil {
		t.Fatalf("c2: %v", err)
	}

	if _, err := refMgr.CreateRef(ctx, "target", refs.KindBranch, objectid.Nil, false); err != nil {
		t.Fatalf("CreateRef target: %v", err)
	}

	commits, err := svc.Transplant(ctx, TransplantRequest{
		Target:  "target",
		Sources: []objectid.ID{c1.ID, c2.ID},
		Author:  "bot",
		Message: "cherry-pick",
	})
	if err != nil {
		t.Fatalf("Transplant: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}

	_, entries, err := svc.GetMultipleContents(ctx, "target", []keyindex.Key{{"a"}, {"b"}})
	if err != nil {
		t.Fatalf("GetMultipleContents: %v", err)
	}
	if !entries[0].Found || !entries[1].Found {
		t.Fatalf("expected both keys transplanted, got %+v", entries)
	}
}

func TestTransplantSquash(t *testing.T) {
	ctx := context.Background()
	svc, refMgr := newHarness(t, "main")

	c1, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("a", "v1")},
	})
	if err != nil {
		t.Fatalf("c1: %v", err)
	}
	c2, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("b", "v1")},
	})
	if err != nil {
		t.Fatalf("c2: %v", err)
	}

	if _, err := refMgr.CreateRef(ctx, "target", refs.KindBranch, objectid.Nil, false); err != nil {
		t.Fatalf("CreateRef target: %v", err)
	}

	commits, err := svc.Transplant(ctx, TransplantRequest{
		Target:  "target",
		Sources: []objectid.ID{c1.ID, c2.ID},
		Squash:  true,
		Author:  "bot",
		Message: "squash cherry-pick",
	})
	if err != nil {
		t.Fatalf("Transplant squash: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("expected 1 squashed commit, got %d", len(commits))
	}
}
