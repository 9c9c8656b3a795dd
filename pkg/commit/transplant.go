package commit

import (
	"context"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

// TransplantRequest replays a sequence of source commits' operations onto
// Target in order.
type TransplantRequest struct {
	Target    string
	Sources   []objectid.ID
	Squash    bool // one combined commit instead of one per source commit
	Author    string
	Committer string
	Message   string
}

// Transplant (cherry-pick) applies each source commit's operations to
// Target in order, synthesizing either one new commit per source step or
// a single squashed commit carrying the concatenated operation list. Each
// step is CAS-retried against Target independently of the others, the
// same bounded-retry-then-ReferenceConflict rule as CommitWithRequirements
// and Merge.
func (s *Service) Transplant(ctx context.Context, req TransplantRequest) ([]*keyindex.Commit, error) {
	if req.Squash {
		var ops []keyindex.Operation
		for _, src := range req.Sources {
			c, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, src)
			if err != nil {
				return nil, err
			}
			ops = append(ops, c.Operations...)
		}
		commit, err := s.CommitWithRequirements(ctx, CommitRequest{
			Branch:     req.Target,
			Operations: ops,
			Author:     req.Author,
			Committer:  req.Committer,
			Message:    req.Message,
		})
		if err != nil {
			return nil, err
		}
		return []*keyindex.Commit{commit}, nil
	}

	out := make([]*keyindex.Commit, 0, len(req.Sources))
	for _, src := range req.Sources {
		c, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, src)
		if err != nil {
			return out, err
		}
		commit, err := s.CommitWithRequirements(ctx, CommitRequest{
			Branch:     req.Target,
			Operations: c.Operations,
			Author:     req.Author,
			Committer:  req.Committer,
			Message:    req.Message,
		})
		if err != nil {
			return out, engerr.Wrap(engerr.CodeOf(err), err, "transplanting %s onto %q", src, req.Target)
		}
		out = append(out, commit)
	}
	return out, nil
}
