// Package gcsio is a second ObjectIO backend, over Google Cloud Storage,
// grounded on the teacher's pkg/iceberg/tpcds.go (cloud.google.com/go/storage
// + google.golang.org/api/iterator, used there to list and download TPC-DS
// fixture files from a public GCS bucket). It exists to prove the
// warehouse-location validation in pkg/catalog against a second URI scheme
// beyond s3://.
package gcsio

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/warpcatalog/warpcatalog/pkg/objectio"
)

// Config configures a Backend addressing a single GCS bucket.
type Config struct {
	Bucket          string
	WithoutAuth     bool // for public buckets, mirrors tpcds.go's anonymous client
	CredentialsJSON []byte
}

// Backend addresses objects under gs://<bucket>/... URIs.
type Backend struct {
	cfg    Config
	client *storage.Client
	bucket *storage.BucketHandle
}

// New constructs a Backend. When cfg.WithoutAuth is set the client is
// anonymous, the same as the teacher's DownloadTPCDS against a public
// fixture bucket; otherwise it authenticates from cfg.CredentialsJSON, or
// application-default credentials if that is empty.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var opts []option.ClientOption
	switch {
	case cfg.WithoutAuth:
		opts = append(opts, option.WithoutAuthentication())
	case len(cfg.CredentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcsio: create client: %w", err)
	}
	return &Backend{cfg: cfg, client: client, bucket: client.Bucket(cfg.Bucket)}, nil
}

// Close releases the underlying GCS client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) WarehouseURI() string {
	return fmt.Sprintf("gs://%s", b.cfg.Bucket)
}

func (b *Backend) keyFor(uri string) (string, bool) {
	return objectio.RelativizeUnderWarehouse(b.WarehouseURI(), uri)
}

func (b *Backend) IsValidURI(uri string) bool {
	_, ok := b.keyFor(uri)
	return ok
}

func (b *Backend) ReadObject(ctx context.Context, uri string) (objectio.Reader, error) {
	key, ok := b.keyFor(uri)
	if !ok {
		return nil, fmt.Errorf("gcsio: uri %q is outside warehouse %q", uri, b.WarehouseURI())
	}
	r, err := b.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, objectio.WrapIOFailure(err, "gcsio: read %q", uri)
	}
	return r, nil
}

func (b *Backend) WriteObject(ctx context.Context, uri string) (objectio.Writer, error) {
	key, ok := b.keyFor(uri)
	if !ok {
		return nil, fmt.Errorf("gcsio: uri %q is outside warehouse %q", uri, b.WarehouseURI())
	}
	w := b.bucket.Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	return &writeCloser{w: w, uri: uri}, nil
}

// writeCloser translates a GCS write error into the engine's taxonomy on
// Close, matching how s3io's writer normalizes its own upload error.
type writeCloser struct {
	w   *storage.Writer
	uri string
}

func (wc *writeCloser) Write(p []byte) (int, error) { return wc.w.Write(p) }

func (wc *writeCloser) Close() error {
	if err := wc.w.Close(); err != nil {
		return objectio.WrapIOFailure(err, "gcsio: write %q", wc.uri)
	}
	return nil
}
