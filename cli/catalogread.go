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

	"github.com/minio/cli"
	"github.com/minio/mc/pkg/probe"
	"github.com/minio/pkg/v3/console"

	"github.com/warpcatalog/warpcatalog/pkg/catalog"
)

var catalogReadFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "ref",
		Usage: "Branch, tag, or commit to read from",
		Value: "main",
	},
	cli.StringFlag{
		Name:  "key",
		Usage: "Dot-separated entity key, e.g. db.t1",
	},
	cli.StringFlag{
		Name:  "format",
		Usage: "Output format: native or iceberg",
		Value: "native",
	},
}

var catalogReadCmd = cli.Command{
	Name:   "catalog-read",
	Usage:  "retrieve a table/view's derived snapshot as of a ref",
	Action: mainCatalogRead,
	Before: setGlobalsFromContext,
	Flags:  combineFlags(globalFlags, engineFlags, catalogReadFlags),
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS]

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}

EXAMPLES:
  # Read t1's native snapshot as of main
  {{.HelpName}} --key db.t1

  # Read its Iceberg metadata JSON as of a tag
  {{.HelpName}} --key db.t1 --ref v1 --format iceberg
`,
}

func mainCatalogRead(ctx *cli.Context) error {
	key := ctx.String("key")
	if key == "" {
		console.Fatal("--key is required")
	}

	format := catalog.FormatNative
	if ctx.String("format") == "iceberg" {
		format = catalog.FormatIceberg
	}

	b, err := openBundle(ctx)
	fatalIf(probe.NewError(err), "Unable to open repository state")

	result, err := b.catalog.RetrieveSnapshot(context.Background(), ctx.String("ref"), splitKey(key), format)
	fatalIf(probe.NewError(err), "Unable to retrieve snapshot")

	console.Println(string(result.Data))
	return nil
}
