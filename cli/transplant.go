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

	"github.com/warpcatalog/warpcatalog/pkg/commit"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

var transplantFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "target",
		Usage: "Branch to replay the source commits onto",
	},
	cli.BoolFlag{
		Name:  "squash",
		Usage: "Combine every source commit into a single new commit",
	},
	cli.StringFlag{
		Name:  "author",
		Usage: "Author recorded on the replayed commit(s)",
		Value: "cli",
	},
	cli.StringFlag{
		Name:  "message, m",
		Usage: "Commit message (in per-step mode, used for every replayed commit)",
	},
}

var transplantCmd = cli.Command{
	Name:   "transplant",
	Usage:  "replay (cherry-pick) one or more commits onto a target branch",
	Action: mainTransplant,
	Before: setGlobalsFromContext,
	Flags:  combineFlags(globalFlags, engineFlags, transplantFlags),
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} --target TARGET [FLAGS] COMMIT [COMMIT...]

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}

EXAMPLES:
  # Replay two commits onto main as two new commits
  {{.HelpName}} --target main deadbeef... cafef00d...

  # Replay them as a single squashed commit
  {{.HelpName}} --target main --squash -m "backport fixes" deadbeef... cafef00d...
`,
}

func mainTransplant(ctx *cli.Context) error {
	target := ctx.String("target")
	if target == "" {
		console.Fatal("--target is required")
	}
	if ctx.NArg() == 0 {
		console.Fatal("at least one source COMMIT is required")
	}

	sources := make([]objectid.ID, ctx.NArg())
	for i, arg := range ctx.Args() {
		id, err := objectid.Parse(arg)
		fatalIf(probe.NewError(err), "Unable to parse commit id %q", arg)
		sources[i] = id
	}

	b, err := openBundle(ctx)
	fatalIf(probe.NewError(err), "Unable to open repository state")

	req := commit.TransplantRequest{
		Target:    target,
		Sources:   sources,
		Squash:    ctx.Bool("squash"),
		Author:    ctx.String("author"),
		Committer: ctx.String("author"),
		Message:   ctx.String("message"),
	}
	commits, err := b.commits.Transplant(context.Background(), req)
	fatalIf(probe.NewError(err), "Unable to transplant")
	fatalIf(probe.NewError(saveBundle(ctx, b)), "Unable to persist repository state")
	for _, c := range commits {
		console.Infof("Replayed onto %s: new commit %s\n", target, c.ID)
	}
	return nil
}
