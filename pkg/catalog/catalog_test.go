package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/apache/iceberg-go"

	"github.com/warpcatalog/warpcatalog/pkg/commit"
	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/icebergcodec"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/objectio/fileio"
	"github.com/warpcatalog/warpcatalog/pkg/refs"
	"github.com/warpcatalog/warpcatalog/pkg/storage/memory"
	"github.com/warpcatalog/warpcatalog/pkg/taskcache"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *fakeClock) Since(t time.Time) time.Duration { return time.Since(t) }

func sampleSchema(id int) *iceberg.Schema {
	return iceberg.NewSchema(id,
		iceberg.NestedField{ID: 1, Name: "id", Type: iceberg.PrimitiveTypes.Int64, Required: true},
		iceberg.NestedField{ID: 2, Name: "name", Type: iceberg.PrimitiveTypes.String},
	)
}

func newHarness(t *testing.T, branch string) *Engine {
	t.Helper()
	adapter := memory.New()
	clock := &fakeClock{t: time.Unix(1700000000, 0).UTC()}
	refMgr := refs.New("repo1", adapter, func() int64 { return clock.Now().UnixNano() })
	if _, err := refMgr.CreateRef(context.Background(), branch, refs.KindBranch, objectid.Nil, false); err != nil {
		t.Fatalf("CreateRef: %v", err)
	}
	commits := commit.New("repo1", adapter, refMgr, clock, nil, commit.DefaultConfig())
	io := fileio.New(t.TempDir())
	return New("repo1", adapter, commits, io, icebergcodec.JSONCodec{}, WarehouseConfig{Root: io.WarehouseURI()}, clock, nil, taskcache.New(taskcache.DefaultConfig(), clock, nil, nil))
}

func createTableOp(key string, location string) CatalogOperation {
	return CatalogOperation{
		Key:          keyindex.Key{key},
		Type:         ContentIcebergTable,
		Requirements: []Requirement{{Kind: AssertCreate}},
		Updates: []Update{
			{Kind: SetLocation, Location: location},
			{Kind: AddSchema, SchemaID: 0, Schema: sampleSchema(0)},
			{Kind: SetCurrentSchema, SchemaID: 0},
			{Kind: AddSnapshot, Snapshot: icebergcodec.Snapshot{SnapshotID: 1, ManifestList: "s3://wh/db/t1/metadata/snap-1.avro"}},
		},
	}
}

func TestCatalogCommitCreateTableThenUpdateProducesDistinctSnapshots(t *testing.T) {
	e := newHarness(t, "main")
	ctx := context.Background()
	loc := e.io.(*fileio.Backend).WarehouseURI() + "/db/t1"

	_, snaps1, err := e.Commit(ctx, "main", nil, []CatalogOperation{createTableOp("db.t1", loc)}, "alice", "alice", "create t1")
	if err != nil {
		t.Fatalf("create commit: %v", err)
	}
	if len(snaps1) != 1 || snaps1[0].CurrentSnapshot != 1 {
		t.Fatalf("unexpected snapshot after create: %+v", snaps1)
	}

	update := CatalogOperation{
		Key:  keyindex.Key{"db.t1"},
		Type: ContentIcebergTable,
		Requirements: []Requirement{
			{Kind: AssertCurrentSnapshotID, IntValue: 1},
		},
		Updates: []Update{
			{Kind: AddSnapshot, Snapshot: icebergcodec.Snapshot{SnapshotID: 2, ManifestList: "s3://wh/db/t1/metadata/snap-2.avro"}},
		},
	}
	_, snaps2, err := e.Commit(ctx, "main", nil, []CatalogOperation{update}, "alice", "alice", "append t1")
	if err != nil {
		t.Fatalf("update commit: %v", err)
	}
	if snaps2[0].CurrentSnapshot != 2 {
		t.Fatalf("expected current snapshot 2, got %+v", snaps2[0])
	}
	if snaps1[0].ID == snaps2[0].ID {
		t.Fatalf("expected distinct derived snapshot ids across commits, got same id %s", snaps1[0].ID)
	}
	if snaps1[0].ContentID != snaps2[0].ContentID {
		t.Fatalf("expected stable content id across commits: %s vs %s", snaps1[0].ContentID, snaps2[0].ContentID)
	}
}

func TestCatalogCommitConcurrentConflictingUpdatesOneWins(t *testing.T) {
	e := newHarness(t, "main")
	ctx := context.Background()
	loc := e.io.(*fileio.Backend).WarehouseURI() + "/db/t2"

	if _, _, err := e.Commit(ctx, "main", nil, []CatalogOperation{createTableOp("db.t2", loc)}, "a", "a", "create t2"); err != nil {
		t.Fatalf("create commit: %v", err)
	}
	raceKey := keyindex.Key{"db.t2"}

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			op := CatalogOperation{
				Key:  raceKey,
				Type: ContentIcebergTable,
				Updates: []Update{
					{Kind: SetProperties, Properties: []string{"writer", fmtInt(i)}},
				},
			}
			_, _, err := e.Commit(ctx, "main", nil, []CatalogOperation{op}, "racer", "racer", "race")
			results[i] = err
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	if succeeded == 0 {
		t.Fatalf("expected at least one racing commit to succeed, got none (errors: %v)", results)
	}
}

func TestCatalogCommitRejectsLocationOutsideWarehouse(t *testing.T) {
	e := newHarness(t, "main")
	ctx := context.Background()

	op := createTableOp("db.t3", "file:///etc/escape/t3")
	_, _, err := e.Commit(ctx, "main", nil, []CatalogOperation{op}, "a", "a", "create t3")
	if engerr.CodeOf(err) != engerr.InvalidArgument {
		t.Fatalf("expected InvalidArgument for out-of-warehouse location, got %v", err)
	}

	// The branch must still have no entry for the key, and no metadata file
	// should have been written.
	if _, entries, err := e.commits.GetMultipleContents(ctx, "main", []keyindex.Key{{"db.t3"}}); err != nil {
		t.Fatalf("GetMultipleContents: %v", err)
	} else if entries[0].Found {
		t.Fatalf("expected key to remain absent after rejected commit")
	}
}

func TestRetrieveSnapshotRendersBothFormats(t *testing.T) {
	e := newHarness(t, "main")
	ctx := context.Background()
	loc := e.io.(*fileio.Backend).WarehouseURI() + "/db/t4"

	if _, _, err := e.Commit(ctx, "main", nil, []CatalogOperation{createTableOp("db.t4", loc)}, "a", "a", "create t4"); err != nil {
		t.Fatalf("create commit: %v", err)
	}

	native, err := e.RetrieveSnapshot(ctx, "main", keyindex.Key{"db.t4"}, FormatNative)
	if err != nil {
		t.Fatalf("RetrieveSnapshot native: %v", err)
	}
	if len(native.Data) == 0 {
		t.Fatalf("expected non-empty native rendering")
	}

	icebergResult, err := e.RetrieveSnapshot(ctx, "main", keyindex.Key{"db.t4"}, FormatIceberg)
	if err != nil {
		t.Fatalf("RetrieveSnapshot iceberg: %v", err)
	}
	if len(icebergResult.Data) == 0 {
		t.Fatalf("expected non-empty iceberg rendering")
	}
}

func fmtInt(i int) string {
	digits := "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	return string(digits[i/10]) + string(digits[i%10])
}
