package fileio

import (
	"context"
	"io"
	"testing"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := New(t.TempDir())

	uri := b.WarehouseURI() + "/db/t1/v0.json"
	w, err := b.WriteObject(ctx, uri)
	if err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if _, err := w.Write([]byte(`{"format-version":2}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := b.ReadObject(ctx, uri)
	if err != nil {
		t.Fatalf("ReadObject: %v", err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != `{"format-version":2}` {
		t.Fatalf("unexpected content: %s", got)
	}
}

func TestIsValidURIRejectsOutsideWarehouse(t *testing.T) {
	b := New(t.TempDir())
	if b.IsValidURI("file:///etc/passwd") {
		t.Fatalf("expected uri outside warehouse root to be invalid")
	}
	if b.IsValidURI(b.WarehouseURI() + "/../escape") {
		t.Fatalf("expected .. escape to be invalid")
	}
	if !b.IsValidURI(b.WarehouseURI() + "/db/t1/v0.json") {
		t.Fatalf("expected in-warehouse uri to be valid")
	}
}
