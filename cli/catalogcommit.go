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
	"strings"

	"github.com/minio/cli"
	"github.com/minio/mc/pkg/probe"
	"github.com/minio/pkg/v3/console"

	"github.com/warpcatalog/warpcatalog/pkg/catalog"
)

var catalogCommitFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "branch",
		Usage: "Branch to commit to",
		Value: "main",
	},
	cli.StringFlag{
		Name:  "key",
		Usage: "Dot-separated entity key, e.g. db.t1",
	},
	cli.StringFlag{
		Name:  "type",
		Usage: "Entity type when creating: table, view, namespace, udf",
		Value: "table",
	},
	cli.BoolFlag{
		Name:  "create",
		Usage: "Assert the entity does not already exist",
	},
	cli.StringFlag{
		Name:  "location",
		Usage: "Metadata-file location update (SetLocation)",
	},
	cli.StringSliceFlag{
		Name:  "set",
		Usage: "KEY=VALUE property to set (repeatable)",
	},
	cli.StringSliceFlag{
		Name:  "unset",
		Usage: "Property key to remove (repeatable)",
	},
	cli.StringFlag{
		Name:  "author",
		Usage: "Author recorded on the commit",
		Value: "cli",
	},
	cli.StringFlag{
		Name:  "message, m",
		Usage: "Commit message",
	},
}

var catalogCommitCmd = cli.Command{
	Name:   "catalog-commit",
	Usage:  "create or update one Iceberg table/view/namespace entry in a single catalog commit",
	Action: mainCatalogCommit,
	Before: setGlobalsFromContext,
	Flags:  combineFlags(globalFlags, engineFlags, catalogCommitFlags),
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS]

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}

EXAMPLES:
  # Create a table
  {{.HelpName}} --key db.t1 --create --location s3://warehouse/db/t1 -m "create t1"

  # Update its properties
  {{.HelpName}} --key db.t1 --set owner=alice --unset scratch -m "update t1"
`,
}

func catalogContentType(s string) catalog.ContentType {
	switch s {
	case "view":
		return catalog.ContentIcebergView
	case "namespace":
		return catalog.ContentNamespace
	case "udf":
		return catalog.ContentUDF
	default:
		return catalog.ContentIcebergTable
	}
}

func mainCatalogCommit(ctx *cli.Context) error {
	key := ctx.String("key")
	if key == "" {
		console.Fatal("--key is required")
	}

	var requirements []catalog.Requirement
	if ctx.Bool("create") {
		requirements = append(requirements, catalog.Requirement{Kind: catalog.AssertCreate})
	}

	var updates []catalog.Update
	if loc := ctx.String("location"); loc != "" {
		updates = append(updates, catalog.Update{Kind: catalog.SetLocation, Location: loc})
	}
	if sets := ctx.StringSlice("set"); len(sets) > 0 {
		pairs := make([]string, 0, len(sets)*2)
		for _, kv := range sets {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				console.Fatal("--set expects KEY=VALUE, got " + kv)
			}
			pairs = append(pairs, k, v)
		}
		updates = append(updates, catalog.Update{Kind: catalog.SetProperties, Properties: pairs})
	}
	if unsets := ctx.StringSlice("unset"); len(unsets) > 0 {
		updates = append(updates, catalog.Update{Kind: catalog.RemoveProperties, Properties: unsets})
	}
	if len(updates) == 0 {
		console.Fatal("at least one of --location, --set, --unset is required")
	}

	op := catalog.CatalogOperation{
		Key:          splitKey(key),
		Type:         catalogContentType(ctx.String("type")),
		Requirements: requirements,
		Updates:      updates,
	}

	b, err := openBundle(ctx)
	fatalIf(probe.NewError(err), "Unable to open repository state")

	c, snaps, err := b.catalog.Commit(context.Background(), ctx.String("branch"), nil, []catalog.CatalogOperation{op}, ctx.String("author"), ctx.String("author"), ctx.String("message"))
	fatalIf(probe.NewError(err), "Unable to commit")
	fatalIf(probe.NewError(saveBundle(ctx, b)), "Unable to persist repository state")

	console.Infof("Committed %s\n", c.ID)
	for _, s := range snaps {
		console.Infof("  %s snapshot %s (content %s)\n", s.Type, s.ID, s.ContentID)
	}
	return nil
}
