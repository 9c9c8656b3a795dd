/*
 * Warp (C) 2019-2024 MinIO, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/cli"
	"github.com/minio/pkg/v3/console"

	"github.com/warpcatalog/warpcatalog/pkg/catalog"
	"github.com/warpcatalog/warpcatalog/pkg/commit"
	"github.com/warpcatalog/warpcatalog/pkg/engutil"
	"github.com/warpcatalog/warpcatalog/pkg/icebergcodec"
	"github.com/warpcatalog/warpcatalog/pkg/objectio"
	"github.com/warpcatalog/warpcatalog/pkg/objectio/fileio"
	"github.com/warpcatalog/warpcatalog/pkg/objectio/gcsio"
	"github.com/warpcatalog/warpcatalog/pkg/objectio/s3io"
	"github.com/warpcatalog/warpcatalog/pkg/refs"
	"github.com/warpcatalog/warpcatalog/pkg/storage/memory"
	"github.com/warpcatalog/warpcatalog/pkg/taskcache"
)

// engineFlags are shared by every command that touches the engine: which
// repository to operate on, and where its state lives between invocations.
// The in-memory storage.Adapter has no durable backend of its own (spec.md
// names only an in-memory reference implementation), so cli/ round-trips it
// to --state as a JSON snapshot on every command instead — a fresh,
// empty repository otherwise.
var engineFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "state",
		Usage: "Path to a JSON repository snapshot, read before and written after the command runs",
		Value: "." + string(os.PathSeparator) + appName + "-state.json",
	},
	cli.StringFlag{
		Name:  "repo",
		Usage: "Repository ID to operate on within the state file",
		Value: "default",
	},
	cli.StringFlag{
		Name:  "warehouse",
		Usage: "Warehouse location Iceberg metadata files are written under: a local directory, or an s3:// / gs:// bucket URI",
		Value: "." + string(os.PathSeparator) + appName + "-warehouse",
	},
	cli.StringFlag{
		Name:  "s3-endpoint",
		Usage: "MinIO-compatible endpoint host:port, when --warehouse is an s3:// URI",
	},
	cli.BoolFlag{
		Name:  "tls",
		Usage: "Use TLS against --s3-endpoint (defaults on for s3.amazonaws.com, off for a self-hosted endpoint)",
	},
	cli.StringFlag{
		Name:  "access-key",
		Usage: "Access key, when --warehouse is an s3:// URI (defaults to the AWS SDK credential chain)",
	},
	cli.StringFlag{
		Name:  "secret-key",
		Usage: "Secret key, when --warehouse is an s3:// URI",
	},
	cli.StringFlag{
		Name:  "region",
		Usage: "Region, when --warehouse is an s3:// URI",
	},
}

// warehouseBackend dispatches on --warehouse's URI scheme to the matching
// objectio.ObjectIO backend: s3:// and gs:// address a remote bucket,
// anything else is a local directory path.
func warehouseBackend(ctx *cli.Context) (objectio.ObjectIO, error) {
	warehouse := ctx.String("warehouse")
	switch {
	case strings.HasPrefix(warehouse, "s3://"):
		bucket := strings.TrimPrefix(warehouse, "s3://")
		endpoint := ctx.String("s3-endpoint")
		secure := ctx.Bool("tls")
		if endpoint == "" {
			endpoint = "s3.amazonaws.com"
			secure = true
		}
		backend, err := s3io.New(context.Background(), s3io.Config{
			Endpoint:  endpoint,
			Bucket:    bucket,
			AccessKey: ctx.String("access-key"),
			SecretKey: ctx.String("secret-key"),
			Secure:    secure,
			Region:    ctx.String("region"),
			Insecure:  ctx.Bool("insecure"),
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 warehouse %q: %w", warehouse, err)
		}
		return backend, nil
	case strings.HasPrefix(warehouse, "gs://"):
		bucket := strings.TrimPrefix(warehouse, "gs://")
		backend, err := gcsio.New(context.Background(), gcsio.Config{Bucket: bucket})
		if err != nil {
			return nil, fmt.Errorf("open gcs warehouse %q: %w", warehouse, err)
		}
		return backend, nil
	default:
		return fileio.New(warehouse), nil
	}
}

// bundle holds every collaborator a catalog command needs, built fresh for
// one CLI invocation.
type bundle struct {
	adapter *memory.Adapter
	refs    *refs.Manager
	commits *commit.Service
	catalog *catalog.Engine
	clock   engutil.Clock
}

func consoleLogger() engutil.Logger {
	return engutil.PrintLogger{Printf: func(format string, args ...any) {
		console.Printf(format+"\n", args...)
	}}
}

// openBundle loads the snapshot named by --state (if it exists) into a
// fresh in-memory adapter and wires every engine layer on top of it.
func openBundle(ctx *cli.Context) (*bundle, error) {
	adapter := memory.New()
	data, err := os.ReadFile(ctx.String("state"))
	if err == nil {
		if err := adapter.Load(data); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	repoID := ctx.String("repo")
	clock := engutil.SystemClock{}
	log := consoleLogger()

	refMgr := refs.New(repoID, adapter, func() int64 { return clock.Now().UnixNano() })
	commits := commit.New(repoID, adapter, refMgr, clock, log, commit.DefaultConfig())

	io, err := warehouseBackend(ctx)
	if err != nil {
		return nil, err
	}
	cache := taskcache.New(taskcache.DefaultConfig(), clock, log, nil)
	cat := catalog.New(repoID, adapter, commits, io, icebergcodec.JSONCodec{}, catalog.WarehouseConfig{Root: io.WarehouseURI()}, clock, log, cache)

	return &bundle{adapter: adapter, refs: refMgr, commits: commits, catalog: cat, clock: clock}, nil
}

// saveBundle persists the adapter's contents back to --state so the next
// invocation sees this command's effects.
func saveBundle(ctx *cli.Context, b *bundle) error {
	data, err := b.adapter.Dump()
	if err != nil {
		return err
	}

	statePath := ctx.String("state")
	tmp, err := os.CreateTemp(filepath.Dir(statePath), filepath.Base(statePath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, statePath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
