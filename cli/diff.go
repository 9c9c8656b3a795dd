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

	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
)

var diffCmd = cli.Command{
	Name:   "diff",
	Usage:  "show key-level differences between two branches, tags, or commits",
	Action: mainDiff,
	Before: setGlobalsFromContext,
	Flags:  combineFlags(globalFlags, engineFlags),
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS] A B

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}

EXAMPLES:
  # Show what changed between main and feature
  {{.HelpName}} main feature
`,
}

func mainDiff(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		console.Fatal("A and B reference names are required")
	}
	a, bRef := ctx.Args().Get(0), ctx.Args().Get(1)

	b, err := openBundle(ctx)
	fatalIf(probe.NewError(err), "Unable to open repository state")

	entries, err := b.commits.Diff(context.Background(), a, bRef)
	fatalIf(probe.NewError(err), "Unable to diff")

	for _, e := range entries {
		console.Printf("%s  %s\n", diffKindSymbol(e.Kind), e.Key)
	}
	return nil
}

func diffKindSymbol(k keyindex.DiffKind) string {
	switch k {
	case keyindex.DiffAdded:
		return "+"
	case keyindex.DiffRemoved:
		return "-"
	case keyindex.DiffChanged:
		return "~"
	default:
		return "?"
	}
}
