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

	"github.com/warpcatalog/warpcatalog/pkg/commit"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

const domainTagCLIValue = "CLIValue"

var commitFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "branch",
		Usage: "Branch to commit to",
		Value: "main",
	},
	cli.StringSliceFlag{
		Name:  "put",
		Usage: "KEY=VALUE pair to set, dot-separated key segments (repeatable)",
	},
	cli.StringSliceFlag{
		Name:  "delete",
		Usage: "Dot-separated KEY to remove (repeatable)",
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

var commitCmd = cli.Command{
	Name:   "commit",
	Usage:  "write key/value operations to a branch in a single commit",
	Action: mainCommit,
	Before: setGlobalsFromContext,
	Flags:  combineFlags(globalFlags, engineFlags, commitFlags),
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS]

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}

EXAMPLES:
  # Set two keys and remove one in a single commit
  {{.HelpName}} --put db.t1=v1 --put db.t2=v2 --delete db.t3 -m "add t1, t2"
`,
}

func mainCommit(ctx *cli.Context) error {
	puts := ctx.StringSlice("put")
	deletes := ctx.StringSlice("delete")
	if len(puts) == 0 && len(deletes) == 0 {
		console.Fatal("at least one --put or --delete is required")
	}

	b, err := openBundle(ctx)
	fatalIf(probe.NewError(err), "Unable to open repository state")

	var ops []keyindex.Operation
	for _, kv := range puts {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			console.Fatal("--put expects KEY=VALUE, got " + kv)
		}
		payloadRef := objectid.DerivedHash(domainTagCLIValue, []byte(value))
		if err := b.adapter.ContentAttachments().Put(context.Background(), ctx.String("repo"), payloadRef, []byte(value)); err != nil {
			fatalIf(probe.NewError(err), "Unable to store value for %q", key)
		}
		ops = append(ops, keyindex.Operation{Key: splitKey(key), Kind: keyindex.OpPut, PayloadRef: payloadRef})
	}
	for _, key := range deletes {
		ops = append(ops, keyindex.Operation{Key: splitKey(key), Kind: keyindex.OpDelete})
	}

	req := commit.CommitRequest{
		Branch:     ctx.String("branch"),
		Operations: ops,
		Author:     ctx.String("author"),
		Committer:  ctx.String("author"),
		Message:    ctx.String("message"),
	}
	c, err := b.commits.CommitWithRequirements(context.Background(), req)
	fatalIf(probe.NewError(err), "Unable to commit")
	fatalIf(probe.NewError(saveBundle(ctx, b)), "Unable to persist repository state")
	console.Infof("Committed %s: %d operation(s)\n", c.ID, len(ops))
	return nil
}

func splitKey(s string) keyindex.Key {
	return keyindex.Key(strings.Split(s, "."))
}
