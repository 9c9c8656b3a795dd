package keyindex

import (
	"context"

	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/storage"
)

// WriteCommit finalizes c's ID and writes it to the commits bucket. An
// AlreadyExists with byte-identical content is treated as success, since
// a commit's ID is a pure function of its fields: writing the same
// commit twice is idempotent, not a conflict.
func WriteCommit(ctx context.Context, bucket storage.CommitsBucket, repoID string, c *Commit) (objectid.ID, error) {
	c.Finalize()
	if err := bucket.Put(ctx, repoID, c.ID, c.canonicalBytes()); err != nil {
		return objectid.Nil, err
	}
	return c.ID, nil
}

// FetchCommit loads and decodes a single commit.
func FetchCommit(ctx context.Context, bucket storage.CommitsBucket, repoID string, id objectid.ID) (*Commit, error) {
	raw, err := bucket.Get(ctx, repoID, id)
	if err != nil {
		return nil, err
	}
	return DecodeCommit(raw)
}

// FetchMany loads a batch of commits in the requested order; a miss keeps
// its slot nil rather than erroring the whole batch.
func FetchMany(ctx context.Context, bucket storage.CommitsBucket, repoID string, ids []objectid.ID) ([]*Commit, error) {
	raws, err := bucket.GetMany(ctx, repoID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*Commit, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		c, err := DecodeCommit(raw)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Ancestors walks the parent chain (following parents[0], the logical
// predecessor) from head backward, up to limit commits, newest first.
// limit <= 0 means no limit.
func Ancestors(ctx context.Context, bucket storage.CommitsBucket, repoID string, head objectid.ID, limit int) ([]*Commit, error) {
	var out []*Commit
	cur := head
	for !cur.IsNil() {
		if limit > 0 && len(out) >= limit {
			break
		}
		c, err := FetchCommit(ctx, bucket, repoID, cur)
		if err != nil {
			return out, err
		}
		out = append(out, c)
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	return out, nil
}

// LowestCommonAncestor walks both ancestry chains (primary-parent only)
// and returns the first commit ID present in both, or objectid.Nil if the
// histories never converge within maxDepth commits each.
func LowestCommonAncestor(ctx context.Context, bucket storage.CommitsBucket, repoID string, a, b objectid.ID, maxDepth int) (objectid.ID, error) {
	aChain, err := Ancestors(ctx, bucket, repoID, a, maxDepth)
	if err != nil {
		return objectid.Nil, err
	}
	bChain, err := Ancestors(ctx, bucket, repoID, b, maxDepth)
	if err != nil {
		return objectid.Nil, err
	}

	bSet := make(map[objectid.ID]bool, len(bChain))
	for _, c := range bChain {
		bSet[c.ID] = true
	}
	for _, c := range aChain {
		if bSet[c.ID] {
			return c.ID, nil
		}
	}
	return objectid.Nil, nil
}
