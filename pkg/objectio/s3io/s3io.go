// Package s3io is an ObjectIO backend over S3-compatible object storage,
// grounded on the teacher's own client construction in cli/client.go
// (minio-go/v7 against MinIO-compatible endpoints) and on
// aws-sdk-go-v2/config for the "real AWS" credential-chain path, the same
// split the teacher's pkg/iceberg/catalog.go draws between a direct client
// and a credential-resolving one.
package s3io

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/warpcatalog/warpcatalog/pkg/objectio"
)

// Config configures a Backend. Endpoint is a MinIO-compatible host:port
// (e.g. "s3.amazonaws.com" or a self-hosted MinIO); when AccessKey is
// empty the AWS SDK's default credential chain is resolved once at
// New-time and mirrored into the minio-go client, so the same Backend
// works unmodified against AWS or a MinIO-compatible endpoint.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Secure    bool
	Region    string

	// Insecure skips TLS certificate verification, for self-signed or
	// otherwise untrusted endpoint certificates.
	Insecure bool
}

// Backend addresses objects under s3://<bucket>/... URIs against a single
// configured endpoint/bucket pair.
type Backend struct {
	cfg    Config
	client *minio.Client
}

// New resolves credentials (explicit, or via the AWS SDK default chain
// when cfg.AccessKey is empty) and constructs the minio-go client used for
// every subsequent operation.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	var awsProvider aws.CredentialsProvider
	if cfg.AccessKey != "" {
		awsProvider = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("s3io: resolve default AWS credentials: %w", err)
		}
		awsProvider = awsCfg.Credentials
	}
	val, err := awsProvider.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3io: retrieve AWS credentials: %w", err)
	}
	creds := miniocreds.NewStaticV4(val.AccessKeyID, val.SecretAccessKey, val.SessionToken)

	opts := &minio.Options{
		Creds:  creds,
		Secure: cfg.Secure,
		Region: cfg.Region,
	}
	if cfg.Insecure {
		transport, err := minio.DefaultTransport(cfg.Secure)
		if err != nil {
			return nil, fmt.Errorf("s3io: build transport for %q: %w", cfg.Endpoint, err)
		}
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
		opts.Transport = transport
	}

	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("s3io: construct client for %q: %w", cfg.Endpoint, err)
	}
	return &Backend{cfg: cfg, client: client}, nil
}

func (b *Backend) WarehouseURI() string {
	return fmt.Sprintf("s3://%s", b.cfg.Bucket)
}

func (b *Backend) keyFor(uri string) (string, bool) {
	rel, ok := objectio.RelativizeUnderWarehouse(b.WarehouseURI(), uri)
	if !ok {
		return "", false
	}
	return rel, true
}

func (b *Backend) IsValidURI(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" {
		return false
	}
	_, ok := b.keyFor(uri)
	return ok
}

func (b *Backend) ReadObject(ctx context.Context, uri string) (objectio.Reader, error) {
	key, ok := b.keyFor(uri)
	if !ok {
		return nil, fmt.Errorf("s3io: uri %q is outside warehouse %q", uri, b.WarehouseURI())
	}
	obj, err := b.client.GetObject(ctx, b.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectio.WrapIOFailure(err, "s3io: read %q", uri)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, objectio.WrapIOFailure(err, "s3io: stat %q", uri)
	}
	return obj, nil
}

// writer buffers the object in memory and uploads on Close, since
// minio-go's PutObject wants a io.Reader with a known or streamed length
// rather than incremental Write calls.
type writer struct {
	ctx    context.Context
	client *minio.Client
	bucket string
	key    string
	uri    string
	buf    []byte
}

func (w *writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *writer) Close() error {
	r := strings.NewReader(string(w.buf))
	_, err := w.client.PutObject(w.ctx, w.bucket, w.key, r, int64(len(w.buf)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return objectio.WrapIOFailure(err, "s3io: write %q", w.uri)
	}
	return nil
}

func (b *Backend) WriteObject(ctx context.Context, uri string) (objectio.Writer, error) {
	key, ok := b.keyFor(uri)
	if !ok {
		return nil, fmt.Errorf("s3io: uri %q is outside warehouse %q", uri, b.WarehouseURI())
	}
	return &writer{ctx: ctx, client: b.client, bucket: b.cfg.Bucket, key: key, uri: uri}, nil
}

var _ io.WriteCloser = (*writer)(nil)
