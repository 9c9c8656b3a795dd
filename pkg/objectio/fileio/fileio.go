// Package fileio is an ObjectIO backend over the local filesystem, used by
// the engine's own tests and as a warehouse backend for local development —
// the same role the teacher's pkg/iceberg/tpcds.go local cache directory
// plays for downloaded benchmark data.
package fileio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warpcatalog/warpcatalog/pkg/objectio"
)

// Backend addresses objects under file://<root>/... URIs.
type Backend struct {
	root string
}

// New returns a Backend rooted at root, which must be an absolute
// directory path. It is created on first write if absent.
func New(root string) *Backend {
	return &Backend{root: strings.TrimRight(root, "/")}
}

func (b *Backend) WarehouseURI() string {
	return "file://" + b.root
}

func (b *Backend) pathFor(uri string) (string, bool) {
	const prefix = "file://"
	if !strings.HasPrefix(uri, prefix) {
		return "", false
	}
	rel, ok := objectio.RelativizeUnderWarehouse(b.WarehouseURI(), uri)
	if !ok {
		return "", false
	}
	return filepath.Join(b.root, filepath.FromSlash(rel)), true
}

func (b *Backend) IsValidURI(uri string) bool {
	_, ok := b.pathFor(uri)
	return ok
}

func (b *Backend) WriteObject(ctx context.Context, uri string) (objectio.Writer, error) {
	path, ok := b.pathFor(uri)
	if !ok {
		return nil, fmt.Errorf("fileio: uri %q is outside warehouse root %q", uri, b.root)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("fileio: mkdir for %q: %w", uri, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("fileio: create %q: %w", uri, err)
	}
	return f, nil
}

func (b *Backend) ReadObject(ctx context.Context, uri string) (objectio.Reader, error) {
	path, ok := b.pathFor(uri)
	if !ok {
		return nil, fmt.Errorf("fileio: uri %q is outside warehouse root %q", uri, b.root)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, objectio.WrapIOFailure(err, "fileio: read %q", uri)
	}
	return f, nil
}
