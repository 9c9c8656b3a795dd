package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warpcatalog/warpcatalog/pkg/commit"
	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/engutil"
	"github.com/warpcatalog/warpcatalog/pkg/icebergcodec"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/objectio"
	"github.com/warpcatalog/warpcatalog/pkg/storage"
	"github.com/warpcatalog/warpcatalog/pkg/taskcache"
)

// WarehouseConfig names the root location new metadata files are written
// under. SetLocation updates are rejected unless they relativize cleanly
// against Root (spec.md §4.6's location-validation rule).
type WarehouseConfig struct {
	Root string
}

// Engine wraps a commit.Service to provide Iceberg-aware commits: the
// snapshot update state machine, metadata-file emission through ObjectIO,
// and derived-snapshot caching through taskcache — spec.md's catalog layer
// (C6), the only layer in the engine that knows what a Content blob or an
// Iceberg metadata file is.
type Engine struct {
	repoID  string
	adapter storage.Adapter
	commits *commit.Service
	io      objectio.ObjectIO
	codec   icebergcodec.Codec

	warehouse WarehouseConfig
	clock     engutil.Clock
	log       engutil.Logger
	cache     *taskcache.Cache

	concurrency int
}

// New builds an Engine. cache may be nil, in which case every snapshot read
// recomputes from the metadata file.
func New(repoID string, adapter storage.Adapter, commits *commit.Service, io objectio.ObjectIO, codec icebergcodec.Codec, warehouse WarehouseConfig, clock engutil.Clock, log engutil.Logger, cache *taskcache.Cache) *Engine {
	if log == nil {
		log = engutil.NopLogger{}
	}
	return &Engine{
		repoID: repoID, adapter: adapter, commits: commits, io: io, codec: codec,
		warehouse: warehouse, clock: clock, log: log, cache: cache,
		concurrency: 8,
	}
}

// CatalogOperation is one entity's requested change within a multi-table
// catalog commit: the requirements to check before mutating, and the
// updates to apply after they pass.
type CatalogOperation struct {
	Key          keyindex.Key
	Type         ContentType
	Requirements []Requirement
	Updates      []Update
}

// keyResult is the per-key outcome of running the snapshot update state
// machine, collected before any commit is attempted.
type keyResult struct {
	key         keyindex.Key
	content     Content
	requirement commit.KeyedRequirement
	snapshot    EntitySnapshot
	table       *icebergcodec.TableMetadataDraft
	view        *icebergcodec.ViewMetadataDraft
}

// Commit runs the snapshot update state machine for every operation, then
// issues a single C5 commit with one Put per key under one commit message —
// spec.md §4.6's "multi-table catalog commit". All per-key state-machine
// runs execute concurrently; the commit itself is still atomic across keys,
// since it is a single CommitWithRequirements call.
func (e *Engine) Commit(ctx context.Context, branch string, expectedHead *objectid.ID, ops []CatalogOperation, author, committer, message string) (*keyindex.Commit, []EntitySnapshot, error) {
	if len(ops) == 0 {
		return nil, nil, engerr.New(engerr.InvalidArgument, "catalog commit: no operations")
	}

	keys := make([]keyindex.Key, len(ops))
	for i, op := range ops {
		keys[i] = op.Key
	}
	_, entries, err := e.commits.GetMultipleContents(ctx, branch, keys)
	if err != nil {
		return nil, nil, err
	}

	results := make([]keyResult, len(ops))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, op := range ops {
		i, op, entry := i, op, entries[i]
		g.Go(func() error {
			r, err := e.runOne(gctx, op, entry)
			if err != nil {
				return fmt.Errorf("catalog commit: key %s: %w", op.Key, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	operations := make([]keyindex.Operation, len(results))
	requirements := make([]commit.KeyedRequirement, len(results))
	for i, r := range results {
		operations[i] = keyindex.Operation{Key: r.key, Kind: keyindex.OpPut, PayloadRef: r.content.PayloadRef()}
		requirements[i] = r.requirement
	}

	// Content blobs are written before the commit is attempted: they are
	// content-addressed, so a retried or abandoned attempt never corrupts
	// anything, and the commit's PayloadRef can only resolve once the blob
	// it names is already durable.
	for _, r := range results {
		if err := e.adapter.ContentAttachments().Put(ctx, e.repoID, r.content.PayloadRef(), r.content.Encode()); err != nil {
			return nil, nil, err
		}
	}

	c, err := e.commits.CommitWithRequirements(ctx, commit.CommitRequest{
		Branch:       branch,
		ExpectedHead: expectedHead,
		Operations:   operations,
		Requirements: requirements,
		Author:       author,
		Committer:    committer,
		Message:      message,
	})
	if err != nil {
		return nil, nil, err
	}

	snapshots := make([]EntitySnapshot, len(results))
	for i, r := range results {
		hasSnapshot := r.snapshot.Type == ContentIcebergTable || r.snapshot.Type == ContentIcebergView
		if e.cache != nil && hasSnapshot {
			e.cache.Put(r.snapshot.ID.String(), materialized{content: r.content, table: r.table, view: r.view, snap: r.snapshot})
		}
		snapshots[i] = r.snapshot
	}
	return c, snapshots, nil
}

// runOne executes checkRequirements -> applyUpdates -> emitMetadata for one
// key, translating the catalog-level requirement set into the single C5
// KeyedRequirement that protects this commit against a concurrent writer
// racing the same key.
func (e *Engine) runOne(ctx context.Context, op CatalogOperation, entry commit.ContentEntry) (keyResult, error) {
	var (
		draft       *Draft
		requirement commit.KeyedRequirement
	)

	if entry.Found {
		prior, table, view, err := e.loadPrior(ctx, entry.Entry.PayloadRef)
		if err != nil {
			return keyResult{}, err
		}
		draft = loadDraft(prior, table, view)
		requirement = commit.KeyedRequirement{Key: op.Key, Kind: commit.RequireHeadMatches, ExpectedPayloadRef: entry.Entry.PayloadRef}
	} else {
		contentID := e.newContentID(op.Key, e.clock.Now())
		draft = newCreateDraft(op.Type, contentID)
		requirement = commit.KeyedRequirement{Key: op.Key, Kind: commit.RequireMustNotExist}
	}

	if err := draft.checkRequirements(op.Requirements); err != nil {
		return keyResult{}, err
	}

	validateLocation := func(uri string) error {
		if !e.io.IsValidURI(uri) {
			return engerr.New(engerr.InvalidArgument, "location %q is not a valid URI for this object store", uri)
		}
		if _, ok := objectio.RelativizeUnderWarehouse(e.warehouse.Root, uri); !ok {
			return engerr.New(engerr.InvalidArgument, "location %q lies outside the configured warehouse root", uri)
		}
		return nil
	}
	if err := draft.applyUpdates(op.Updates, validateLocation); err != nil {
		return keyResult{}, err
	}

	content, snapshot, err := e.emitMetadata(ctx, draft)
	if err != nil {
		return keyResult{}, err
	}
	return keyResult{key: op.Key, content: content, requirement: requirement, snapshot: snapshot, table: draft.table, view: draft.view}, nil
}

// loadPrior fetches and decodes the Content blob at payloadRef, then (for
// table/view content) reads and decodes its metadata file.
func (e *Engine) loadPrior(ctx context.Context, payloadRef objectid.ID) (Content, *icebergcodec.TableMetadataDraft, *icebergcodec.ViewMetadataDraft, error) {
	raw, err := e.adapter.ContentAttachments().Get(ctx, e.repoID, payloadRef)
	if err != nil {
		return Content{}, nil, nil, err
	}
	content, err := DecodeContent(raw)
	if err != nil {
		return Content{}, nil, nil, engerr.Wrap(engerr.Internal, err, "decode content blob %s", payloadRef)
	}

	var table *icebergcodec.TableMetadataDraft
	var view *icebergcodec.ViewMetadataDraft
	switch content.Type {
	case ContentIcebergTable, ContentIcebergView:
		r, err := e.io.ReadObject(ctx, content.MetadataLocation)
		if err != nil {
			return Content{}, nil, nil, err
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return Content{}, nil, nil, objectio.WrapIOFailure(err, "read metadata file %s", content.MetadataLocation)
		}
		if content.Type == ContentIcebergTable {
			table, err = e.codec.DecodeTable(data)
		} else {
			view, err = e.codec.DecodeView(data)
		}
		if err != nil {
			return Content{}, nil, nil, engerr.Wrap(engerr.Internal, err, "decode metadata file %s", content.MetadataLocation)
		}
	}
	return content, table, view, nil
}

// emitMetadata serializes the draft, writes it to a derived path under the
// warehouse root, and builds the Content blob that points at it —
// spec.md §4.6's terminal state-machine step.
func (e *Engine) emitMetadata(ctx context.Context, d *Draft) (Content, EntitySnapshot, error) {
	content := Content{ContentID: d.contentID, Type: d.typ, Properties: d.propertiesSnapshot()}

	switch {
	case d.table != nil:
		d.table.LastUpdatedMs = e.clock.Now().UnixMilli()
		data, err := e.codec.EncodeTable(d.table)
		if err != nil {
			return Content{}, EntitySnapshot{}, engerr.Wrap(engerr.Internal, err, "encode table metadata")
		}
		loc := metadataPath(d.table.Location, d.contentID, d.table.CurrentSnapshot)
		if err := e.writeMetadata(ctx, loc, data); err != nil {
			return Content{}, EntitySnapshot{}, err
		}
		content.MetadataLocation = loc
		content.SnapshotID = d.table.CurrentSnapshot
		snap := buildEntitySnapshot(content, &icebergTableView{
			schemaIDs: d.table.Schemas.IDs(), currentSchemaID: d.table.CurrentSchemaID,
			partitionSpecIDs: specIDs(d.table.PartitionSpecs), defaultSpecID: d.table.DefaultSpecID,
			currentSnapshot: d.table.CurrentSnapshot,
		}, nil)
		d.state = StateFinalized
		return content, snap, nil

	case d.view != nil:
		data, err := e.codec.EncodeView(d.view)
		if err != nil {
			return Content{}, EntitySnapshot{}, engerr.Wrap(engerr.Internal, err, "encode view metadata")
		}
		loc := metadataPath(d.view.Location, d.contentID, int64(d.view.CurrentVersionID))
		if err := e.writeMetadata(ctx, loc, data); err != nil {
			return Content{}, EntitySnapshot{}, err
		}
		content.MetadataLocation = loc
		content.VersionID = int64(d.view.CurrentVersionID)
		snap := buildEntitySnapshot(content, nil, &icebergViewView{schemaIDs: d.view.Schemas.IDs(), currentSchemaID: d.view.CurrentVersionID})
		d.state = StateFinalized
		return content, snap, nil

	default:
		// Namespace/UDF content has no metadata file: the Content blob's
		// properties map is the entire entity.
		d.state = StateFinalized
		return content, EntitySnapshot{}, nil
	}
}

func (d *Draft) propertiesSnapshot() map[string]string {
	switch {
	case d.table != nil:
		return d.table.Properties
	case d.view != nil:
		return d.view.Properties
	default:
		return d.properties
	}
}

func (e *Engine) writeMetadata(ctx context.Context, location string, data []byte) error {
	w, err := e.io.WriteObject(ctx, location)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return objectio.WrapIOFailure(err, "write metadata file %s", location)
	}
	if err := w.Close(); err != nil {
		return objectio.WrapIOFailure(err, "commit metadata file %s", location)
	}
	return nil
}

// metadataPath derives a new metadata file location from a table/view's
// location, the snapshot/version it was just assigned, and the first eight
// hex characters of its content ID
// (<location>/metadata/<seq>-<content-id-prefix>.metadata.json). Built with plain string
// concatenation rather than path.Join, since location may carry a URI
// scheme (s3://, gs://) that path.Join would collapse.
func metadataPath(location string, contentID objectid.ID, seq int64) string {
	base := strings.TrimRight(location, "/")
	return fmt.Sprintf("%s/metadata/%d-%s.metadata.json", base, seq, contentID.String()[:8])
}

func specIDs(specs []icebergcodec.PartitionSpec) []int {
	out := make([]int, len(specs))
	for i, s := range specs {
		out[i] = s.SpecID
	}
	return out
}

// newContentID assigns a fresh ContentID on create. It is derived (not
// random) so it stays reproducible under a fixed Clock in tests, but varies
// with the repository, the key, and the wall-clock instant so two distinct
// creates of the same key never collide.
func (e *Engine) newContentID(key keyindex.Key, now time.Time) objectid.ID {
	var tsBuf [8]byte
	ts := now.UnixNano()
	for i := 0; i < 8; i++ {
		tsBuf[i] = byte(ts >> (56 - 8*i))
	}
	return objectid.DerivedHash("ContentID", []byte(e.repoID), []byte(key.String()), tsBuf[:])
}

