package commit

import (
	"context"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

// MergeRequest describes a three-way merge of Source into Target.
type MergeRequest struct {
	// Source is a branch/tag name or a detached commit hex ID.
	Source string
	// Target must be a branch name (merges always land on a branch head).
	Target string
	// Strategy resolves any key modified on both sides that isn't listed
	// in KeyStrategy.
	Strategy MergeStrategy
	// KeyStrategy overrides Strategy for specific keys, keyed by
	// keyindex.Key.String().
	KeyStrategy map[string]MergeStrategy
	Author      string
	Committer   string
	Message     string
}

// Merge computes the lowest common ancestor of Source and Target, derives
// each side's changes since that ancestor, resolves keys changed on both
// sides per the configured MergeStrategy, and CAS-advances Target to a
// new merge commit with parents [target-head, source-head]. A CAS
// mismatch on the final ref update recomputes the whole merge against the
// fresh target head and retries, up to cfg.Backoff.MaxAttempts.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (*keyindex.Commit, error) {
	sourceHead, err := s.resolveRef(ctx, req.Source)
	if err != nil {
		return nil, err
	}

	maxAttempts := s.cfg.Backoff.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if !s.cfg.Backoff.Sleep(ctx, attempt) {
				return nil, engerr.Wrap(engerr.DeadlineExceeded, ctx.Err(), "merge into %q canceled during retry", req.Target)
			}
		}

		commit, retry, err := s.tryMergeOnce(ctx, req, sourceHead)
		if !retry {
			return commit, err
		}
		lastErr = err
	}
	return nil, engerr.Wrap(engerr.ReferenceConflict, lastErr, "merge into %q: exhausted %d attempts", req.Target, maxAttempts)
}

func (s *Service) tryMergeOnce(ctx context.Context, req MergeRequest, sourceHead objectid.ID) (commit *keyindex.Commit, retry bool, err error) {
	targetRef, err := s.refs.GetRef(ctx, req.Target)
	if err != nil {
		return nil, false, err
	}
	targetHead := targetRef.Head

	lcaID, err := keyindex.LowestCommonAncestor(ctx, s.adapter.Commits(), s.repoID, sourceHead, targetHead, s.cfg.MaxMergeDepth)
	if err != nil {
		return nil, false, err
	}

	lcaRoot := objectid.Nil
	if !lcaID.IsNil() {
		lcaCommit, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, lcaID)
		if err != nil {
			return nil, false, err
		}
		lcaRoot = lcaCommit.KeyIndexRoot
	}

	sourceRoot := objectid.Nil
	if !sourceHead.IsNil() {
		sourceCommit, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, sourceHead)
		if err != nil {
			return nil, false, err
		}
		sourceRoot = sourceCommit.KeyIndexRoot
	}
	targetRoot := objectid.Nil
	if !targetHead.IsNil() {
		targetCommit, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, targetHead)
		if err != nil {
			return nil, false, err
		}
		targetRoot = targetCommit.KeyIndexRoot
	}

	changesToSource, err := keyindex.Diff(ctx, s.adapter.KeyIndexSegments(), s.repoID, lcaRoot, sourceRoot)
	if err != nil {
		return nil, false, err
	}
	changesToTarget, err := keyindex.Diff(ctx, s.adapter.KeyIndexSegments(), s.repoID, lcaRoot, targetRoot)
	if err != nil {
		return nil, false, err
	}

	ops, conflicts := resolveMerge(req, changesToSource, changesToTarget)
	if len(conflicts) > 0 {
		return nil, false, engerr.WithConflicts(engerr.ContentConflict, conflicts, "merge %q into %q has unresolved conflicts", req.Source, req.Target)
	}

	newRoot, err := keyindex.Apply(ctx, s.adapter.KeyIndexSegments(), s.repoID, targetRoot, ops, s.cfg.SegmentBudget)
	if err != nil {
		return nil, false, err
	}

	if newRoot == targetRoot && len(ops) == 0 {
		existing, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, targetHead)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	c := &keyindex.Commit{
		Parents:      []objectid.ID{targetHead, sourceHead},
		Author:       req.Author,
		Committer:    req.Committer,
		CommitTime:   s.clock.Now(),
		Message:      req.Message,
		Operations:   ops,
		KeyIndexRoot: newRoot,
	}
	newID, err := keyindex.WriteCommit(ctx, s.adapter.Commits(), s.repoID, c)
	if err != nil {
		return nil, false, err
	}

	if _, err := s.refs.UpdateRef(ctx, req.Target, targetHead, newID); err != nil {
		if engerr.CodeOf(err) == engerr.ReferenceConflict {
			return nil, true, err
		}
		return nil, false, err
	}
	return c, false, nil
}

// resolveMerge folds the two per-side diffs into one operation list, per
// key: modified on one side only is taken as-is; modified on both sides
// to the same resulting payload is a no-op; modified on both sides to
// different payloads is resolved by the key's override strategy, falling
// back to req.Strategy, and MergeNormal without an override is collected
// as a conflict rather than guessed at.
func resolveMerge(req MergeRequest, toSource, toTarget []keyindex.DiffEntry) ([]keyindex.Operation, []engerr.Conflict) {
	sourceByKey := make(map[string]keyindex.DiffEntry, len(toSource))
	for _, d := range toSource {
		sourceByKey[d.Key.String()] = d
	}
	targetByKey := make(map[string]keyindex.DiffEntry, len(toTarget))
	for _, d := range toTarget {
		targetByKey[d.Key.String()] = d
	}

	var ops []keyindex.Operation
	var conflicts []engerr.Conflict

	for keyStr, sd := range sourceByKey {
		td, onBoth := targetByKey[keyStr]
		if !onBoth {
			ops = append(ops, diffToOp(sd))
			continue
		}
		if sameResult(sd, td) {
			continue
		}

		strategy := req.Strategy
		if override, ok := req.KeyStrategy[keyStr]; ok {
			strategy = override
		}
		switch strategy {
		case MergeForce, MergePreferSource:
			ops = append(ops, diffToOp(sd))
		case MergePreferTarget:
			// target's own change already stands; no op needed.
		case MergeDropOnConflict:
			ops = append(ops, keyindex.Operation{Key: sd.Key, Kind: keyindex.OpDelete})
		default: // MergeNormal
			conflicts = append(conflicts, engerr.Conflict{Key: []string(sd.Key), Kind: engerr.PayloadDiffers, Message: "key modified on both branches"})
		}
	}
	return ops, conflicts
}

// sameResult reports whether two diff entries for the same key resolved
// to an identical payload on both sides, in which case there is nothing
// to actually merge.
func sameResult(a, b keyindex.DiffEntry) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == keyindex.DiffRemoved {
		return true
	}
	return a.After != nil && b.After != nil && a.After.PayloadRef == b.After.PayloadRef
}

func diffToOp(d keyindex.DiffEntry) keyindex.Operation {
	if d.Kind == keyindex.DiffRemoved {
		return keyindex.Operation{Key: d.Key, Kind: keyindex.OpDelete}
	}
	return keyindex.Operation{Key: d.Key, Kind: keyindex.OpPut, PayloadRef: d.After.PayloadRef}
}
