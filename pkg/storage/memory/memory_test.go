package memory

import (
	"context"
	"testing"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/storage"
)

func TestGetMissingReturnsNotFound(t *testing.T) {
	a := New()
	_, err := a.KeyIndexSegments().Get(context.Background(), "repo1", objectid.Hash("x", []byte("y")))
	if engerr.CodeOf(err) != engerr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	a := New()
	ctx := context.Background()
	id := objectid.Hash("Content", []byte("payload"))
	if err := a.ContentAttachments().Put(ctx, "repo1", id, []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := a.ContentAttachments().Get(ctx, "repo1", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q", got)
	}
}

func TestPutIdempotentSameBytes(t *testing.T) {
	a := New()
	ctx := context.Background()
	id := objectid.Hash("Content", []byte("payload"))
	bkt := a.ContentAttachments()
	if err := bkt.Put(ctx, "repo1", id, []byte("payload")); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := bkt.Put(ctx, "repo1", id, []byte("payload")); err != nil {
		t.Fatalf("second Put with identical bytes should be a no-op, got: %v", err)
	}
}

func TestPutRejectsDifferentBytes(t *testing.T) {
	a := New()
	ctx := context.Background()
	id := objectid.Hash("Content", []byte("payload"))
	bkt := a.ContentAttachments()
	if err := bkt.Put(ctx, "repo1", id, []byte("payload")); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	err := bkt.Put(ctx, "repo1", id, []byte("other"))
	if engerr.CodeOf(err) != engerr.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestGetManyMissingSlotsAreNil(t *testing.T) {
	a := New()
	ctx := context.Background()
	present := objectid.Hash("Content", []byte("present"))
	absent := objectid.Hash("Content", []byte("absent"))
	if err := a.ContentAttachments().Put(ctx, "repo1", present, []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := a.ContentAttachments().GetMany(ctx, "repo1", []objectid.ID{present, absent})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 2 || got[0] == nil || got[1] != nil {
		t.Fatalf("unexpected result shape: %v", got)
	}
}

func TestCompareAndSwapCreateThenUpdate(t *testing.T) {
	a := New()
	ctx := context.Background()
	id := objectid.Hash("Ref", []byte("main"))
	cas := a.Refs()

	ok, err := cas.CompareAndSwap(ctx, "repo1", id, nil, []byte("v1"))
	if err != nil || !ok {
		t.Fatalf("expected create to succeed, ok=%v err=%v", ok, err)
	}

	ok, err = cas.CompareAndSwap(ctx, "repo1", id, nil, []byte("v2"))
	if err != nil || ok {
		t.Fatalf("expected a second create-from-nil to fail, ok=%v err=%v", ok, err)
	}

	ok, err = cas.CompareAndSwap(ctx, "repo1", id, []byte("wrong"), []byte("v2"))
	if err != nil || ok {
		t.Fatalf("expected mismatched expected value to fail, ok=%v err=%v", ok, err)
	}

	ok, err = cas.CompareAndSwap(ctx, "repo1", id, []byte("v1"), []byte("v2"))
	if err != nil || !ok {
		t.Fatalf("expected correct expected value to succeed, ok=%v err=%v", ok, err)
	}

	got, err := cas.Get(ctx, "repo1", id)
	if err != nil || string(got) != "v2" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestScanOrderingAndPagination(t *testing.T) {
	a := New()
	ctx := context.Background()
	commits := a.Commits()

	var ids []objectid.ID
	for i := 0; i < 5; i++ {
		id := objectid.Hash("Commit", []byte{byte(i)})
		ids = append(ids, id)
		if err := commits.Put(ctx, "repo1", id, []byte{byte(i)}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	var seen []objectid.ID
	var cursor storage.Cursor
	for {
		items, next, err := commits.Scan(ctx, "repo1", nil, 2, cursor)
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		for _, it := range items {
			seen = append(seen, it.ID)
		}
		if len(next) == 0 {
			break
		}
		cursor = next
	}

	if len(seen) != len(ids) {
		t.Fatalf("expected %d items total, got %d", len(ids), len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if !seen[i-1].Less(seen[i]) {
			t.Fatalf("scan not in increasing order at index %d", i)
		}
	}
}

func TestDeleteAbsentIsNotError(t *testing.T) {
	a := New()
	ctx := context.Background()
	id := objectid.Hash("x", []byte("y"))
	if err := a.ContentAttachments().Delete(ctx, "repo1", id); err != nil {
		t.Fatalf("expected nil error deleting an absent key, got %v", err)
	}
}
