// Package commit implements the commit service: requirement-checked
// commits against a branch head, three-way merge, transplant
// (cherry-pick), and reference-consistent multi-key reads. It sits on
// top of pkg/keyindex (the commit/key-index primitives) and pkg/refs
// (the CAS-backed branch/tag pointers), and is the only layer that
// coordinates the two — keyindex and refs never reference each other
// directly.
package commit

import (
	"context"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/engutil"
	"github.com/warpcatalog/warpcatalog/pkg/keyindex"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/refs"
	"github.com/warpcatalog/warpcatalog/pkg/storage"
)

// RequirementKind names a per-key precondition checked before a commit is
// allowed to proceed.
type RequirementKind uint8

const (
	// RequireMustNotExist fails the commit if the key currently resolves
	// to an entry.
	RequireMustNotExist RequirementKind = iota + 1
	// RequireMustExist fails the commit if the key currently has no entry.
	RequireMustExist
	// RequireHeadMatches fails the commit if the key's current
	// PayloadRef isn't ExpectedPayloadRef.
	RequireHeadMatches
)

// KeyedRequirement is one precondition evaluated against the branch head
// before a commit's operations are applied.
type KeyedRequirement struct {
	Key                keyindex.Key
	Kind               RequirementKind
	ExpectedPayloadRef objectid.ID
}

// MergeStrategy picks how a key modified on both sides of a merge is
// resolved, absent a per-key override.
type MergeStrategy uint8

const (
	// MergeNormal surfaces divergent modifications as a Conflict unless a
	// per-key override is supplied.
	MergeNormal MergeStrategy = iota + 1
	// MergeForce always takes the source side on conflict.
	MergeForce
	// MergeDropOnConflict drops (neither side wins) a conflicting key.
	MergeDropOnConflict
	// MergePreferSource takes the source side on conflict, same as
	// MergeForce but named for per-key override clarity.
	MergePreferSource
	// MergePreferTarget takes the target side on conflict.
	MergePreferTarget
)

// Config tunes the retry and tree-building behavior of a Service.
type Config struct {
	SegmentBudget int
	Backoff       engutil.BackoffConfig
	MaxMergeDepth int
}

// DefaultConfig returns sensible defaults: the key-index engine's default
// segment budget, the standard capped-exponential backoff, and a merge
// ancestry search depth generous enough for realistic branch divergence.
func DefaultConfig() Config {
	return Config{
		SegmentBudget: keyindex.DefaultSegmentBudget,
		Backoff:       engutil.DefaultBackoff(),
		MaxMergeDepth: 10000,
	}
}

// Service is the commit service for one repository.
type Service struct {
	repoID  string
	adapter storage.Adapter
	refs    *refs.Manager
	clock   engutil.Clock
	log     engutil.Logger
	cfg     Config
}

// New builds a Service. refMgr must be scoped to the same repoID.
func New(repoID string, adapter storage.Adapter, refMgr *refs.Manager, clock engutil.Clock, log engutil.Logger, cfg Config) *Service {
	if cfg.SegmentBudget <= 0 {
		cfg.SegmentBudget = keyindex.DefaultSegmentBudget
	}
	if log == nil {
		log = engutil.NopLogger{}
	}
	return &Service{repoID: repoID, adapter: adapter, refs: refMgr, clock: clock, log: log, cfg: cfg}
}

// CommitRequest is one requirement-checked write against a branch.
type CommitRequest struct {
	Branch       string
	ExpectedHead *objectid.ID // nil means "whatever the branch currently points at"
	Operations   []keyindex.Operation
	Requirements []KeyedRequirement
	Author       string
	Committer    string
	Message      string
	Metadata     map[string]string
}

// CommitWithRequirements loads the branch head, checks every keyed
// requirement against it, builds a new commit from the operation list,
// and CAS-advances the branch. A CAS mismatch reloads the head and
// restarts the whole sequence (requirements are re-checked against the
// fresh head) up to cfg.Backoff.MaxAttempts times, after which
// ReferenceConflict is surfaced to the caller.
func (s *Service) CommitWithRequirements(ctx context.Context, req CommitRequest) (*keyindex.Commit, error) {
	maxAttempts := s.cfg.Backoff.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if !s.cfg.Backoff.Sleep(ctx, attempt) {
				return nil, engerr.Wrap(engerr.DeadlineExceeded, ctx.Err(), "commit to %q canceled during retry", req.Branch)
			}
		}

		commit, retry, err := s.tryCommitOnce(ctx, req)
		if !retry {
			return commit, err
		}
		lastErr = err
	}
	return nil, engerr.Wrap(engerr.ReferenceConflict, lastErr, "commit to %q: exhausted %d attempts", req.Branch, maxAttempts)
}

// tryCommitOnce runs one attempt of CommitWithRequirements. retry is true
// only for a CAS mismatch on the final UpdateRef, which the caller should
// back off and reattempt; every other error (including a requirement
// violation or a head mismatch against an explicit ExpectedHead) is
// terminal and returned directly.
func (s *Service) tryCommitOnce(ctx context.Context, req CommitRequest) (commit *keyindex.Commit, retry bool, err error) {
	ref, err := s.refs.GetRef(ctx, req.Branch)
	if err != nil {
		return nil, false, err
	}
	head := ref.Head

	if req.ExpectedHead != nil && head != *req.ExpectedHead {
		return nil, false, engerr.New(engerr.ReferenceConflict, "branch %q head is %s, expected %s", req.Branch, head, *req.ExpectedHead)
	}

	prevRoot := objectid.Nil
	if !head.IsNil() {
		headCommit, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, head)
		if err != nil {
			return nil, false, err
		}
		prevRoot = headCommit.KeyIndexRoot
	}

	if err := s.checkRequirements(ctx, prevRoot, req.Requirements); err != nil {
		return nil, false, err
	}

	newRoot, err := keyindex.Apply(ctx, s.adapter.KeyIndexSegments(), s.repoID, prevRoot, req.Operations, s.cfg.SegmentBudget)
	if err != nil {
		return nil, false, err
	}

	if newRoot == prevRoot && !head.IsNil() {
		// No-op commit: the operation list produced no actual change.
		// Per the engine's idempotency rule, return the existing head
		// rather than writing an identical-content commit.
		existing, err := keyindex.FetchCommit(ctx, s.adapter.Commits(), s.repoID, head)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	var parents []objectid.ID
	if !head.IsNil() {
		parents = []objectid.ID{head}
	}
	c := &keyindex.Commit{
		Parents:      parents,
		Author:       req.Author,
		Committer:    req.Committer,
		CommitTime:   s.clock.Now(),
		Message:      req.Message,
		Operations:   req.Operations,
		KeyIndexRoot: newRoot,
		Metadata:     req.Metadata,
	}
	newID, err := keyindex.WriteCommit(ctx, s.adapter.Commits(), s.repoID, c)
	if err != nil {
		return nil, false, err
	}

	if _, err := s.refs.UpdateRef(ctx, req.Branch, head, newID); err != nil {
		if engerr.CodeOf(err) == engerr.ReferenceConflict {
			return nil, true, err
		}
		return nil, false, err
	}
	return c, false, nil
}

// checkRequirements evaluates every KeyedRequirement against the tree
// rooted at prevRoot, aggregating every violation into a single error so
// a caller sees all conflicts in one round trip instead of one at a time.
func (s *Service) checkRequirements(ctx context.Context, prevRoot objectid.ID, reqs []KeyedRequirement) error {
	var conflicts []engerr.Conflict
	for _, r := range reqs {
		entry, err := keyindex.Lookup(ctx, s.adapter.KeyIndexSegments(), s.repoID, prevRoot, r.Key)
		exists := true
		if engerr.CodeOf(err) == engerr.NotFound {
			exists = false
			err = nil
		}
		if err != nil {
			return err
		}

		switch r.Kind {
		case RequireMustNotExist:
			if exists {
				conflicts = append(conflicts, engerr.Conflict{Key: []string(r.Key), Kind: engerr.KeyExists, Message: "key already has an entry"})
			}
		case RequireMustExist:
			if !exists {
				conflicts = append(conflicts, engerr.Conflict{Key: []string(r.Key), Kind: engerr.KeyDoesNotExist, Message: "key has no entry"})
			}
		case RequireHeadMatches:
			if !exists {
				conflicts = append(conflicts, engerr.Conflict{Key: []string(r.Key), Kind: engerr.KeyDoesNotExist, Message: "key has no entry"})
			} else if entry.PayloadRef != r.ExpectedPayloadRef {
				conflicts = append(conflicts, engerr.Conflict{Key: []string(r.Key), Kind: engerr.PayloadDiffers, Message: "key's current payload doesn't match the expected one"})
			}
		}
	}
	if len(conflicts) > 0 {
		return engerr.WithConflicts(engerr.ContentConflict, conflicts, "commit requirements violated")
	}
	return nil
}
