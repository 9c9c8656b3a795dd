// Package storage defines the narrow storage-adapter contract the engine
// commits through: typed key-value buckets with compare-and-swap on the
// two buckets that need it, plus a scan on commits. Concrete backends
// (MongoDB, JDBC, DynamoDB, BigTable, Cassandra, RocksDB, ...) are out of
// scope here — this package only defines the contract and ships an
// in-memory reference implementation (pkg/storage/memory) used by the
// engine's own tests.
package storage

import (
	"context"

	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

// Bucket names the typed buckets an Adapter exposes. Every stored object
// is addressed by the compound key (repoID, bucket, objectID).
type Bucket string

const (
	BucketCommits            Bucket = "commits"
	BucketKeyIndexSegments   Bucket = "keyIndexSegments"
	BucketRefs               Bucket = "refs"
	BucketRefNames           Bucket = "refNames"
	BucketRepoDesc           Bucket = "repoDesc"
	BucketContentAttachments Bucket = "contentAttachments"
)

// KV is the basic contract every bucket supports.
type KV interface {
	// Get returns engerr.NotFound if absent.
	Get(ctx context.Context, repoID string, id objectid.ID) ([]byte, error)

	// GetMany returns one slot per requested id, in the same order; a miss
	// is represented as a nil slice at that position rather than an error.
	GetMany(ctx context.Context, repoID string, ids []objectid.ID) ([][]byte, error)

	// Put writes id -> value. If id already exists with different bytes,
	// returns engerr.AlreadyExists. Writing identical bytes again is a
	// no-op success, since content-addressed writes are naturally
	// idempotent.
	Put(ctx context.Context, repoID string, id objectid.ID, value []byte) error

	// Delete removes id. Deleting an absent id is not an error.
	Delete(ctx context.Context, repoID string, id objectid.ID) error
}

// CAS adds compare-and-swap to a bucket, used by refs and repoDesc: the
// only coordination point in the whole engine. No in-process locking
// serializes concurrent writers — CAS on the backend is the sole
// arbiter of who wins a race.
type CAS interface {
	KV

	// CompareAndSwap stores newValue at id iff the bucket's current value
	// equals expected. expected == nil means "id must not currently
	// exist"; newValue == nil deletes id. Returns (true, nil) on success, (false, nil) on mismatch —
	// never an error for a plain mismatch, so callers can retry without
	// unwrapping an error first.
	CompareAndSwap(ctx context.Context, repoID string, id objectid.ID, expected, newValue []byte) (bool, error)
}

// ScanItem is one (id, value) pair yielded by Commits().Scan.
type ScanItem struct {
	ID    objectid.ID
	Value []byte
}

// Cursor opaquely resumes a Scan; nil/empty starts from the beginning.
type Cursor []byte

// CommitsBucket is the only bucket that needs a scan.
type CommitsBucket interface {
	KV

	// Scan streams commits in an adapter-defined stable order, honoring
	// prefix as an opaque adapter-specific filter hint (most adapters
	// ignore prefix since commit IDs are content hashes with no locality;
	// it exists so an adapter that does maintain a time/insertion index
	// can use it). Returns at most limit items and a cursor to resume.
	// An empty returned cursor means the scan is exhausted.
	Scan(ctx context.Context, repoID string, prefix []byte, limit int, cursor Cursor) ([]ScanItem, Cursor, error)
}

// Adapter is the full storage-adapter contract consumed by the key-index,
// reference, commit, and catalog layers.
type Adapter interface {
	Commits() CommitsBucket
	KeyIndexSegments() KV
	Refs() CAS
	RefNames() KV
	RepoDesc() CAS
	ContentAttachments() KV
}
