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

	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/refs"
)

var branchFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "tag",
		Usage: "Create a tag instead of a branch",
	},
	cli.BoolFlag{
		Name:  "immutable",
		Usage: "Reject future updates to this reference (tags only)",
	},
	cli.StringFlag{
		Name:  "from",
		Usage: "Existing branch/tag/commit-id the new reference starts at; empty starts at no commits",
	},
	cli.BoolFlag{
		Name:  "delete",
		Usage: "Delete the named reference instead of creating one",
	},
	cli.BoolFlag{
		Name:  "list",
		Usage: "List every branch and tag instead of creating one",
	},
}

var branchCmd = cli.Command{
	Name:   "branch",
	Usage:  "create, delete, or list branches and tags",
	Action: mainBranch,
	Before: setGlobalsFromContext,
	Flags:  combineFlags(globalFlags, engineFlags, branchFlags),
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS] NAME

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}

EXAMPLES:
  # Create a branch named "main" with no history
  {{.HelpName}} main

  # Branch "feature" off "main"
  {{.HelpName}} --from main feature

  # Tag the current head of "main" immutably
  {{.HelpName}} --tag --immutable --from main v1

  # List every reference
  {{.HelpName}} --list

  # Delete a branch
  {{.HelpName}} --delete feature
`,
}

func mainBranch(ctx *cli.Context) error {
	b, err := openBundle(ctx)
	fatalIf(probe.NewError(err), "Unable to open repository state")

	if ctx.Bool("list") {
		return listRefs(ctx, b)
	}

	if ctx.NArg() != 1 {
		console.Fatal("a single reference NAME is required")
	}
	name := ctx.Args().First()

	if ctx.Bool("delete") {
		cur, err := b.refs.GetRef(context.Background(), name)
		fatalIf(probe.NewError(err), "Unable to resolve reference")
		fatalIf(probe.NewError(b.refs.DeleteRef(context.Background(), name, cur.Head)), "Unable to delete reference")
		fatalIf(probe.NewError(saveBundle(ctx, b)), "Unable to persist repository state")
		console.Infof("Deleted %s %q\n", cur.Kind, name)
		return nil
	}

	kind := refs.KindBranch
	if ctx.Bool("tag") {
		kind = refs.KindTag
	}

	startFrom := objectid.Nil
	if from := ctx.String("from"); from != "" {
		head, err := b.commits.Log(context.Background(), from, 1)
		fatalIf(probe.NewError(err), "Unable to resolve --from reference")
		if len(head) > 0 {
			startFrom = head[0].ID
		}
	}

	created, err := b.refs.CreateRef(context.Background(), name, kind, startFrom, ctx.Bool("immutable"))
	fatalIf(probe.NewError(err), "Unable to create reference")
	fatalIf(probe.NewError(saveBundle(ctx, b)), "Unable to persist repository state")
	console.Infof("Created %s %q at %s\n", created.Kind, created.Name, created.Head)
	return nil
}

func listRefs(ctx *cli.Context, b *bundle) error {
	var names []string
	token := ""
	for {
		page, next, err := b.refs.ListRefs(context.Background(), token, 100)
		fatalIf(probe.NewError(err), "Unable to list references")
		names = append(names, page...)
		if next == "" {
			break
		}
		token = next
	}
	for _, name := range names {
		ref, err := b.refs.GetRef(context.Background(), name)
		fatalIf(probe.NewError(err), "Unable to resolve reference")
		console.Printf("%-10s %-30s %s\n", ref.Kind, ref.Name, ref.Head)
	}
	return nil
}
