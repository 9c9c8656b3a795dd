package commit

import (
	"context"
	"testing"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/refs"
)

func TestMergeNonConflictingChangesAutoMerge(t *testing.T) {
	ctx := context.Background()
	svc, refMgr := newHarness(t, "main")

	base, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("shared", "base")},
	})
	if err != nil {
		t.Fatalf("base commit: %v", err)
	}

	if _, err := refMgr.CreateRef(ctx, "feature", refs.KindBranch, base.ID, false); err != nil {
		t.Fatalf("CreateRef feature: %v", err)
	}

	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "feature",
		Operations: []keyindex.Operation{putOp("feature-only", "f1")},
	}); err != nil {
		t.Fatalf("feature commit: %v", err)
	}
	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("main-only", "m1")},
	}); err != nil {
		t.Fatalf("main commit: %v", err)
	}

	merged, err := svc.Merge(ctx, MergeRequest{
		Source:   "feature",
		Target:   "main",
		Strategy: MergeNormal,
		Author:   "bot",
		Message:  "merge feature",
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged.Parents) != 2 {
		t.Fatalf("expected a two-parent merge commit, got %d parents", len(merged.Parents))
	}

	_, entries, err := svc.GetMultipleContents(ctx, "main", []keyindex.Key{{"shared"}, {"feature-only"}, {"main-only"}})
	if err != nil {
		t.Fatalf("GetMultipleContents: %v", err)
	}
	for i, e := range entries {
		if !e.Found {
			t.Fatalf("entry %d not found after merge: %+v", i, e)
		}
	}
}

func TestMergeConflictingChangesSurfacesConflict(t *testing.T) {
	ctx := context.Background()
	svc, refMgr := newHarness(t, "main")

	base, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("contested", "base")},
	})
	if err != nil {
		t.Fatalf("base commit: %v", err)
	}
	if _, err := refMgr.CreateRef(ctx, "feature", refs.KindBranch, base.ID, false); err != nil {
		t.Fatalf("CreateRef feature: %v", err)
	}

	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "feature",
		Operations: []keyindex.Operation{putOp("contested", "from-feature")},
	}); err != nil {
		t.Fatalf("feature commit: %v", err)
	}
	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("contested", "from-main")},
	}); err != nil {
		t.Fatalf("main commit: %v", err)
	}

	_, err = svc.Merge(ctx, MergeRequest{
		Source:   "feature",
		Target:   "main",
		Strategy: MergeNormal,
	})
	if engerr.CodeOf(err) != engerr.ContentConflict {
		t.Fatalf("expected ContentConflict, got %v", err)
	}

	merged, err := svc.Merge(ctx, MergeRequest{
		Source:   "feature",
		Target:   "main",
		Strategy: MergePreferSource,
	})
	if err != nil {
		t.Fatalf("Merge with PreferSource: %v", err)
	}

	_, entries, err := svc.GetMultipleContents(ctx, "main", []keyindex.Key{{"contested"}})
	if err != nil {
		t.Fatalf("GetMultipleContents: %v", err)
	}
	wantPayload := putOp("contested", "from-feature").PayloadRef
	if entries[0].Entry.PayloadRef != wantPayload {
		t.Fatalf("expected merged value to come from source, got %v want %v", entries[0].Entry.PayloadRef, wantPayload)
	}
	if merged.ID.IsNil() {
		t.Fatalf("expected a valid merge commit")
	}
}
