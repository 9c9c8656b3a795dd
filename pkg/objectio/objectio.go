// Package objectio defines the ObjectIO collaborator the catalog layer
// writes Iceberg metadata files through. The engine never talks to a
// concrete object store directly: it depends on this interface, and a
// concrete backend (pkg/objectio/s3io, pkg/objectio/gcsio) is wired in at
// construction time by the caller, the same way a StorageAdapter is.
package objectio

import (
	"context"
	"io"
	"strings"
)

// Writer is the destination of a metadata-file write. Close commits the
// object; an error from Close means the write did not land.
type Writer interface {
	io.WriteCloser
}

// Reader is the source of a metadata-file read.
type Reader interface {
	io.ReadCloser
}

// ObjectIO is the storage-agnostic object I/O contract. Backends pass
// their object-store read/write failures through WrapIOFailure in this
// package (engerr.NotFound for an error matching fs.ErrNotExist,
// engerr.Unavailable otherwise). A URI outside the warehouse, and
// fileio's local mkdir/create failures, are returned as plain errors
// with no engerr code.
type ObjectIO interface {
	// WriteObject opens uri for writing. The object becomes visible to
	// readers only once the returned Writer is closed without error.
	WriteObject(ctx context.Context, uri string) (Writer, error)

	// ReadObject opens uri for reading. A missing file is reported as
	// engerr.NotFound by fileio; s3io and gcsio report a missing object
	// as engerr.Unavailable, since their client errors do not match
	// fs.ErrNotExist.
	ReadObject(ctx context.Context, uri string) (Reader, error)

	// IsValidURI reports whether uri is a well-formed location this
	// backend can address, independent of whether the object exists.
	IsValidURI(uri string) bool

	// WarehouseURI is the backend's own root location, in the URI form
	// its IsValidURI/WriteObject/ReadObject methods expect.
	WarehouseURI() string
}

// RelativizeUnderWarehouse reports whether uri lies inside warehouseRoot,
// returning the path relative to the root. It rejects absolute escapes
// (".." segments reaching outside the root) and scheme/host mismatches.
// Shared by every backend so "outside the warehouse" is judged the same
// way regardless of which ObjectIO is configured.
func RelativizeUnderWarehouse(warehouseRoot, uri string) (rel string, ok bool) {
	root := strings.TrimRight(warehouseRoot, "/")
	if root == "" || !strings.HasPrefix(uri, root+"/") {
		return "", false
	}
	rel = strings.TrimPrefix(uri, root+"/")
	if rel == "" || strings.Contains(rel, "..") {
		return "", false
	}
	return rel, true
}
