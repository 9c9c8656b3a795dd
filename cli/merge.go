/*
 * Warp (C) 2019- MinIO, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"context"

	"github.com/minio/cli"
	"github.com/minio/mc/pkg/probe"
	"github.com/minio/pkg/v3/console"

	"github.com/warpcatalog/warpcatalog/pkg/commit"
)

var mergeFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "strategy",
		Usage: "Conflict strategy when a key changed on both sides: normal, force, drop, prefer-source, prefer-target",
		Value: "normal",
	},
	cli.StringFlag{
		Name:  "author",
		Usage: "Author recorded on the merge commit",
		Value: "cli",
	},
	cli.StringFlag{
		Name:  "message, m",
		Usage: "Merge commit message",
	},
}

var mergeCmd = cli.Command{
	Name:   "merge",
	Usage:  "three-way merge a source branch/tag/commit into a target branch",
	Action: mainMerge,
	Before: setGlobalsFromContext,
	Flags:  combineFlags(globalFlags, engineFlags, mergeFlags),
	CustomHelpTemplate: `NAME:
  {{.HelpName}} - {{.Usage}}

USAGE:
  {{.HelpName}} [FLAGS] SOURCE TARGET

FLAGS:
  {{range .VisibleFlags}}{{.}}
  {{end}}

EXAMPLES:
  # Merge feature into main, source wins on conflict
  {{.HelpName}} --strategy prefer-source feature main
`,
}

func mergeStrategyFromFlag(s string) commit.MergeStrategy {
	switch s {
	case "force":
		return commit.MergeForce
	case "drop":
		return commit.MergeDropOnConflict
	case "prefer-source":
		return commit.MergePreferSource
	case "prefer-target":
		return commit.MergePreferTarget
	default:
		return commit.MergeNormal
	}
}

func mainMerge(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		console.Fatal("SOURCE and TARGET reference names are required")
	}
	source, target := ctx.Args().Get(0), ctx.Args().Get(1)

	b, err := openBundle(ctx)
	fatalIf(probe.NewError(err), "Unable to open repository state")

	req := commit.MergeRequest{
		Source:    source,
		Target:    target,
		Strategy:  mergeStrategyFromFlag(ctx.String("strategy")),
		Author:    ctx.String("author"),
		Committer: ctx.String("author"),
		Message:   ctx.String("message"),
	}
	c, err := b.commits.Merge(context.Background(), req)
	fatalIf(probe.NewError(err), "Unable to merge")
	fatalIf(probe.NewError(saveBundle(ctx, b)), "Unable to persist repository state")
	console.Infof("Merged %s into %s: new head %s\n", source, target, c.ID)
	return nil
}
