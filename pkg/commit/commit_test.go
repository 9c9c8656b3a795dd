package commit

import (
	"context"
	"testing"
	"time"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/refs"
	"github.com/warpcatalog/warpcatalog/pkg/storage/memory"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time                  { c.t = c.t.Add(time.Second); return c.t }
func (c *fakeClock) Since(t time.Time) time.Duration { return c.t.Sub(t) }

func newHarness(t *testing.T, branch string) (*Service, *refs.Manager) {
	t.Helper()
	adapter := memory.New()
	clock := &fakeClock{t: time.Unix(1700000000, 0).UTC()}
	refMgr := refs.New("repo1", adapter, func() int64 { return clock.Now().UnixNano() })
	if _, err := refMgr.CreateRef(context.Background(), branch, refs.KindBranch, objectid.Nil, false); err != nil {
		t.Fatalf("CreateRef: %v", err)
	}
	svc := New("repo1", adapter, refMgr, clock, nil, DefaultConfig())
	return svc, refMgr
}

func putOp(key string, payload string) keyindex.Operation {
	return keyindex.Operation{
		Key:        keyindex.Key{key},
		Kind:       keyindex.OpPut,
		PayloadRef: objectid.Hash("TestPayload", []byte(payload)),
	}
}

func TestCommitWithRequirementsSuccess(t *testing.T) {
	ctx := context.Background()
	svc, refMgr := newHarness(t, "main")

	commit, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("a", "v1")},
		Author:     "alice",
		Committer:  "alice",
		Message:    "add a",
	})
	if err != nil {
		t.Fatalf("CommitWithRequirements: %v", err)
	}
	if commit.ID.IsNil() {
		t.Fatalf("expected a non-nil commit ID")
	}

	ref, err := refMgr.GetRef(ctx, "main")
	if err != nil {
		t.Fatalf("GetRef: %v", err)
	}
	if ref.Head != commit.ID {
		t.Fatalf("branch head %s doesn't match new commit %s", ref.Head, commit.ID)
	}
}

func TestCommitWithRequirementsStaleExpectedHead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newHarness(t, "main")

	stale := objectid.Hash("Commit", []byte("bogus"))
	_, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:       "main",
		ExpectedHead: &stale,
		Operations:   []keyindex.Operation{putOp("a", "v1")},
	})
	if engerr.CodeOf(err) != engerr.ReferenceConflict {
		t.Fatalf("expected ReferenceConflict, got %v", err)
	}
}

func TestCommitWithRequirementsMustNotExistViolation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newHarness(t, "main")

	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("a", "v1")},
	}); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	_, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("a", "v2")},
		Requirements: []KeyedRequirement{
			{Key: keyindex.Key{"a"}, Kind: RequireMustNotExist},
		},
	})
	if engerr.CodeOf(err) != engerr.ContentConflict {
		t.Fatalf("expected ContentConflict, got %v", err)
	}
	conflicts := engerr.ConflictsOf(err)
	if len(conflicts) != 1 || conflicts[0].Kind != engerr.KeyExists {
		t.Fatalf("unexpected conflicts: %+v", conflicts)
	}
}

func TestCommitWithRequirementsHeadMatches(t *testing.T) {
	ctx := context.Background()
	svc, _ := newHarness(t, "main")

	_, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("a", "v1")},
	})
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}

	wrongRef := objectid.Hash("TestPayload", []byte("wrong"))
	_, err = svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("a", "v2")},
		Requirements: []KeyedRequirement{
			{Key: keyindex.Key{"a"}, Kind: RequireHeadMatches, ExpectedPayloadRef: wrongRef},
		},
	})
	if engerr.CodeOf(err) != engerr.ContentConflict {
		t.Fatalf("expected ContentConflict, got %v", err)
	}
}

func TestCommitNoOpReturnsExistingHead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newHarness(t, "main")

	first, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("a", "v1")},
	})
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}

	second, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{{Key: keyindex.Key{"a"}, Kind: keyindex.OpUnchanged}},
	})
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected no-op commit to return existing head %s, got %s", first.ID, second.ID)
	}
}

func TestGetMultipleContents(t *testing.T) {
	ctx := context.Background()
	svc, _ := newHarness(t, "main")

	if _, err := svc.CommitWithRequirements(ctx, CommitRequest{
		Branch:     "main",
		Operations: []keyindex.Operation{putOp("a", "v1"), putOp("b", "v1")},
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	head, entries, err := svc.GetMultipleContents(ctx, "main", []keyindex.Key{{"a"}, {"missing"}})
	if err != nil {
		t.Fatalf("GetMultipleContents: %v", err)
	}
	if head.IsNil() {
		t.Fatalf("expected resolved commit ID")
	}
	if !entries[0].Found || entries[1].Found {
		t.Fatalf("unexpected results: %+v", entries)
	}
}
