package commit

import (
	"context"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

// resolveRef resolves nameOrCommit to a commit ID: first as a branch/tag
// name against the reference manager, falling back to a detached read —
// a bare commit hex ID that never touches the refs bucket at all. A
// detached reference is still required to name a commit that actually
// exists.
func (s *Service) resolveRef(ctx context.Context, nameOrCommit string) (objectid.ID, error) {
	ref, err := s.refs.GetRef(ctx, nameOrCommit)
	if err == nil {
		return ref.Head, nil
	}
	if engerr.CodeOf(err) != engerr.NotFound {
		return objectid.Nil, err
	}

	id, parseErr := objectid.Parse(nameOrCommit)
	if parseErr != nil {
		return objectid.Nil, err // the original NotFound is the more useful error
	}
	if _, fetchErr := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, id); fetchErr != nil {
		return objectid.Nil, fetchErr
	}
	return id, nil
}

// ContentEntry pairs a key with its resolved entry at a fixed commit.
type ContentEntry struct {
	Key   keyindex.Key
	Entry keyindex.Entry
	Found bool
}

// GetMultipleContents resolves ref exactly once to a commit ID (so every
// key is read against the same fixed point in history even if the
// reference moves mid-call), then looks up each key against that
// commit's key-index root. It returns the resolved commit ID alongside
// the per-key results so a caller can report "as of" that commit.
func (s *Service) GetMultipleContents(ctx context.Context, ref string, keys []keyindex.Key) (objectid.ID, []ContentEntry, error) {
	head, err := s.resolveRef(ctx, ref)
	if err != nil {
		return objectid.Nil, nil, err
	}

	root := objectid.Nil
	if !head.IsNil() {
		c, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, head)
		if err != nil {
			return objectid.Nil, nil, err
		}
		root = c.KeyIndexRoot
	}

	out := make([]ContentEntry, len(keys))
	for i, k := range keys {
		entry, err := keyindex.Lookup(ctx, s.adapter.KeyIndexSegments(), s.repoID, root, k)
		if err == nil {
			out[i] = ContentEntry{Key: k, Entry: entry, Found: true}
			continue
		}
		if engerr.CodeOf(err) != engerr.NotFound {
			return objectid.Nil, nil, err
		}
		out[i] = ContentEntry{Key: k, Found: false}
	}
	return head, out, nil
}

// Log returns up to limit commits reachable from ref via primary-parent
// ancestry, newest first — a git-log-style inspection built on the same
// Ancestors walk the merge/transplant algorithms use internally.
func (s *Service) Log(ctx context.Context, ref string, limit int) ([]*keyindex.Commit, error) {
	head, err := s.resolveRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	return keyindex.Ancestors(ctx, s.adapter.Commits(), s.repoID, head, limit)
}

// Diff resolves a and b (branch, tag, or detached commit) and returns
// their key-level differences, per spec.md §4.4: diff(A, B) descends both
// key-index trees in lockstep, short-circuiting whenever the same segment
// ID appears on both sides.
func (s *Service) Diff(ctx context.Context, a, b string) ([]keyindex.DiffEntry, error) {
	aHead, err := s.resolveRef(ctx, a)
	if err != nil {
		return nil, err
	}
	bHead, err := s.resolveRef(ctx, b)
	if err != nil {
		return nil, err
	}

	aRoot, err := s.rootOf(ctx, aHead)
	if err != nil {
		return nil, err
	}
	bRoot, err := s.rootOf(ctx, bHead)
	if err != nil {
		return nil, err
	}
	return keyindex.Diff(ctx, s.adapter.KeyIndexSegments(), s.repoID, aRoot, bRoot)
}

// rootOf returns the key-index root of the commit named id, or
// objectid.Nil if id itself is nil (an empty branch with no commits yet).
func (s *Service) rootOf(ctx context.Context, id objectid.ID) (objectid.ID, error) {
	if id.IsNil() {
		return objectid.Nil, nil
	}
	c, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, id)
	if err != nil {
		return objectid.Nil, err
	}
	return c.KeyIndexRoot, nil
}

// FindMergeBase resolves a and b (branch, tag, or detached commit) and
// returns their lowest common ancestor.
func (s *Service) FindMergeBase(ctx context.Context, a, b string) (objectid.ID, error) {
	aHead, err := s.resolveRef(ctx, a)
	if err != nil {
		return objectid.Nil, err
	}
	bHead, err := s.resolveRef(ctx, b)
	if err != nil {
		return objectid.Nil, err
	}
	return keyindex.LowestCommonAncestor(ctx, s.adapter.Commits(), s.repoID, aHead, bHead, s.cfg.MaxMergeDepth)
}

// UpdateRefFastForward advances branch to newHead only if the branch's
// current head is an ancestor of newHead (or the branch has no commits
// yet) — the read side of the fast-forward invariant the merge/transplant
// algorithms enforce when building new history; it fails ReferenceConflict
// if the branch has diverged instead of silently creating a merge.
func (s *Service) UpdateRefFastForward(ctx context.Context, branch string, newHead objectid.ID) error {
	ref, err := s.refs.GetRef(ctx, branch)
	if err != nil {
		return err
	}
	if !ref.Head.IsNil() {
		ancestors, err := keyindex.Ancestors(ctx, s.adapter.Commits(), s.repoID, newHead, s.cfg.MaxMergeDepth)
		if err != nil {
			return err
		}
		isAncestor := false
		for _, c := range ancestors {
			if c.ID == ref.Head {
				isAncestor = true
				break
			}
		}
		if !isAncestor {
			return engerr.New(engerr.ReferenceConflict, "branch %q has diverged: %s is not an ancestor of %s", branch, ref.Head, newHead)
		}
	}
	_, err = s.refs.UpdateRef(ctx, branch, ref.Head, newHead)
	return err
}
