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
)

var logFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "limit",
		Usage: "Maximum number of commits to show",
		Value: 20,
	},
}

var logCmd = cli.Command{
	Name:   "log",
	Usage:  "show commit history reachable from a branch, tag, or commit",
	Action: mainLog,
	Before: setGlobalsFromContext,
	Flags:  combineFlags(globalFlags, engineFlags, logFlags),
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS] REF

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}

EXAMPLES:
  # Show the last 20 commits on main
  {{.HelpName}} main
`,
}

func mainLog(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		console.Fatal("a single REF is required")
	}
	ref := ctx.Args().First()

	b, err := openBundle(ctx)
	fatalIf(probe.NewError(err), "Unable to open repository state")

	commits, err := b.commits.Log(context.Background(), ref, ctx.Int("limit"))
	fatalIf(probe.NewError(err), "Unable to read commit log")

	for _, c := range commits {
		console.Printf("%s  %s  %s\n", c.ID, c.CommitTime.Format("2006-01-02T15:04:05Z07:00"), c.Message)
		console.Printf("    author: %s  committer: %s  ops: %d\n", c.Author, c.Committer, len(c.Operations))
	}
	return nil
}
