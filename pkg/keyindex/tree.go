// Package keyindex implements the commit-log and key-index engine: the
// immutable Commit record, the content-addressed key -> entry segment
// tree reachable from it, and the operations (apply, lookup, scan, diff)
// that walk that tree without ever mutating a previously written segment.
//
// Structural sharing falls out of content addressing rather than an
// explicit copy-on-write bookkeeping pass: rebuilding a subtree that
// happens to be byte-identical to one already in storage reproduces the
// same segment ID, and the storage adapter's idempotent Put treats that
// as a no-op. Segments that do change get new IDs and new storage rows;
// everything else is referenced by an ID that was already there.
package keyindex

import (
	"context"
	"fmt"
	"sort"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/storage"
)

// Store is the subset of storage.KV the tree operates over; satisfied by
// storage.Adapter.KeyIndexSegments().
type Store = storage.KV

func loadSegment(ctx context.Context, store Store, repoID string, id objectid.ID) (any, error) {
	wire, err := store.Get(ctx, repoID, id)
	if err != nil {
		return nil, err
	}
	raw, err := decompressWire(wire)
	if err != nil {
		return nil, fmt.Errorf("keyindex: decompressing segment %s: %w", id, err)
	}
	kind, body, err := unwrapSegment(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case segmentKindLeaf:
		return decodeLeafSegment(body)
	case segmentKindInternal:
		return decodeInternalSegment(body)
	default:
		return nil, fmt.Errorf("keyindex: unknown segment kind %d", kind)
	}
}

func putLeaf(ctx context.Context, store Store, repoID string, s *leafSegment) (objectid.ID, error) {
	id := s.id()
	wire := compressWire(wrapSegment(segmentKindLeaf, s.encode()))
	if err := store.Put(ctx, repoID, id, wire); err != nil {
		return objectid.Nil, err
	}
	return id, nil
}

func putInternal(ctx context.Context, store Store, repoID string, s *internalSegment) (objectid.ID, error) {
	id := s.id()
	wire := compressWire(wrapSegment(segmentKindInternal, s.encode()))
	if err := store.Put(ctx, repoID, id, wire); err != nil {
		return objectid.Nil, err
	}
	return id, nil
}

// chunkEntries splits a sorted entry list into leaf-sized chunks honoring
// budget, always producing at least one chunk (possibly empty) so an
// empty tree still has a well-defined single empty leaf.
func chunkEntries(entries []Entry, budget int) [][]Entry {
	if len(entries) == 0 {
		return [][]Entry{{}}
	}
	var chunks [][]Entry
	var cur []Entry
	size := 0
	for _, e := range entries {
		es := e.approxSize()
		if size+es > budget && len(cur) > 0 {
			chunks = append(chunks, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, e)
		size += es
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// buildLeaves writes one leaf segment per chunk and returns the resulting
// internalEntry describing each (key range + child ID).
func buildLeaves(ctx context.Context, store Store, repoID string, chunks [][]Entry) ([]internalEntry, error) {
	out := make([]internalEntry, 0, len(chunks))
	for _, chunk := range chunks {
		id, err := putLeaf(ctx, store, repoID, &leafSegment{Entries: chunk})
		if err != nil {
			return nil, err
		}
		var first, last Key
		if len(chunk) > 0 {
			first, last = chunk[0].Key, chunk[len(chunk)-1].Key
		}
		out = append(out, internalEntry{FirstKey: first, LastKey: last, ChildID: id})
	}
	return out, nil
}

// buildRoot folds a list of internalEntry describing the tree's bottom
// level into however many additional internal levels are needed so the
// top-level segment itself fits within budget. In practice, given
// realistic fan-out, this rarely exceeds one extra level.
func buildRoot(ctx context.Context, store Store, repoID string, entries []internalEntry, budget int) (objectid.ID, error) {
	seg := &internalSegment{Entries: entries}
	if len(seg.encode()) <= budget || len(entries) <= 1 {
		return putInternal(ctx, store, repoID, seg)
	}

	// Re-chunk by approximate per-entry size and recurse one level up.
	approx := func(e internalEntry) int {
		n := 4
		for _, k := range e.FirstKey {
			n += 4 + len(k)
		}
		for _, k := range e.LastKey {
			n += 4 + len(k)
		}
		return n + objectid.Size
	}
	var chunks [][]internalEntry
	var cur []internalEntry
	size := 0
	for _, e := range entries {
		es := approx(e)
		if size+es > budget && len(cur) > 0 {
			chunks = append(chunks, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, e)
		size += es
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}

	next := make([]internalEntry, 0, len(chunks))
	for _, chunk := range chunks {
		id, err := putInternal(ctx, store, repoID, &internalSegment{Entries: chunk})
		if err != nil {
			return objectid.Nil, err
		}
		next = append(next, internalEntry{FirstKey: chunk[0].FirstKey, LastKey: chunk[len(chunk)-1].LastKey, ChildID: id})
	}
	return buildRoot(ctx, store, repoID, next, budget)
}

// Build writes a brand new tree from a fully-sorted, deduplicated entry
// list. Used by Apply when starting from an empty parent.
func Build(ctx context.Context, store Store, repoID string, entries []Entry, budget int) (objectid.ID, error) {
	if budget <= 0 {
		budget = DefaultSegmentBudget
	}
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key.Less(sorted[j].Key) })

	chunks := chunkEntries(sorted, budget)
	leafEntries, err := buildLeaves(ctx, store, repoID, chunks)
	if err != nil {
		return objectid.Nil, err
	}
	return buildRoot(ctx, store, repoID, leafEntries, budget)
}

// collectAll walks the full tree rooted at id (or returns nil for an
// empty/Nil root) and returns every leaf entry in key order. Used by
// Apply, which rebuilds the whole entry list and re-chunks it — see the
// package doc for why this still achieves structural sharing.
func collectAll(ctx context.Context, store Store, repoID string, id objectid.ID) ([]Entry, error) {
	if id.IsNil() {
		return nil, nil
	}
	node, err := loadSegment(ctx, store, repoID, id)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *leafSegment:
		return append([]Entry(nil), n.Entries...), nil
	case *internalSegment:
		var out []Entry
		for _, e := range n.Entries {
			if e.ChildID.IsNil() {
				continue
			}
			sub, err := collectAll(ctx, store, repoID, e.ChildID)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("keyindex: unknown node type %T", node)
	}
}

// Apply loads the entry set reachable from root, applies ops in order
// (Put upserts, Delete removes, Unchanged is a no-op marker kept only for
// the commit log), and writes a new tree, returning its root ID.
func Apply(ctx context.Context, store Store, repoID string, root objectid.ID, ops []Operation, budget int) (objectid.ID, error) {
	entries, err := collectAll(ctx, store, repoID, root)
	if err != nil {
		return objectid.Nil, err
	}

	byKey := make(map[string]Entry, len(entries))
	order := make([]string, 0, len(entries))
	keyOf := func(k Key) string { return k.String() + "\x00" + fmt.Sprint(len(k)) }
	for _, e := range entries {
		k := keyOf(e.Key)
		byKey[k] = e
		order = append(order, k)
	}

	for _, op := range ops {
		k := keyOf(op.Key)
		switch op.Kind {
		case OpPut:
			if _, existed := byKey[k]; !existed {
				order = append(order, k)
			}
			byKey[k] = Entry{Key: op.Key, PayloadRef: op.PayloadRef}
		case OpDelete:
			if _, existed := byKey[k]; existed {
				delete(byKey, k)
			}
		case OpUnchanged:
			// no-op: present in the commit log, absent from the index delta.
		}
	}

	out := make([]Entry, 0, len(byKey))
	seen := make(map[string]bool, len(byKey))
	for _, k := range order {
		if seen[k] {
			continue
		}
		seen[k] = true
		if e, ok := byKey[k]; ok {
			out = append(out, e)
		}
	}
	return Build(ctx, store, repoID, out, budget)
}

// Lookup resolves a single key against root in O(tree-depth) segment
// fetches, returning engerr.NotFound if the key is absent.
func Lookup(ctx context.Context, store Store, repoID string, root objectid.ID, key Key) (Entry, error) {
	if root.IsNil() {
		return Entry{}, engerr.New(engerr.NotFound, "key %s not found", key)
	}
	node, err := loadSegment(ctx, store, repoID, root)
	if err != nil {
		return Entry{}, err
	}
	switch n := node.(type) {
	case *leafSegment:
		idx := sort.Search(len(n.Entries), func(i int) bool { return !n.Entries[i].Key.Less(key) })
		if idx < len(n.Entries) && n.Entries[idx].Key.Equal(key) {
			return n.Entries[idx], nil
		}
		return Entry{}, engerr.New(engerr.NotFound, "key %s not found", key)
	case *internalSegment:
		idx := sort.Search(len(n.Entries), func(i int) bool { return !Key(n.Entries[i].LastKey).Less(key) })
		if idx >= len(n.Entries) {
			return Entry{}, engerr.New(engerr.NotFound, "key %s not found", key)
		}
		return Lookup(ctx, store, repoID, n.Entries[idx].ChildID, key)
	default:
		return Entry{}, fmt.Errorf("keyindex: unknown node type %T", node)
	}
}

// Cursor resumes a Scan; the empty cursor starts from the beginning.
type Cursor struct {
	LastKey Key
}

// Scan streams entries in key order starting after cursor.LastKey (if
// any), optionally restricted to keys with the given prefix, yielding at
// most limit entries plus a cursor to resume.
func Scan(ctx context.Context, store Store, repoID string, root objectid.ID, prefix Key, limit int, cursor Cursor) ([]Entry, Cursor, error) {
	all, err := collectAll(ctx, store, repoID, root)
	if err != nil {
		return nil, Cursor{}, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Key.Less(all[j].Key) })

	var out []Entry
	for _, e := range all {
		if cursor.LastKey != nil && !cursor.LastKey.Less(e.Key) {
			continue
		}
		if len(prefix) > 0 && !hasPrefix(e.Key, prefix) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			return out, Cursor{LastKey: e.Key}, nil
		}
	}
	return out, Cursor{}, nil
}

func hasPrefix(k, prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

// DiffKind describes how a key's entry differs between two roots.
type DiffKind uint8

const (
	DiffAdded DiffKind = iota + 1
	DiffRemoved
	DiffChanged
)

// DiffEntry is one key-level difference surfaced by Diff.
type DiffEntry struct {
	Key    Key
	Kind   DiffKind
	Before *Entry
	After  *Entry
}

// Diff compares the trees rooted at a and b by descending both in
// lockstep. Whenever the same segment ID appears on both sides the whole
// subtree is skipped without being loaded; only subtrees that actually
// differ are ever flattened and compared key by key.
func Diff(ctx context.Context, store Store, repoID string, a, b objectid.ID) ([]DiffEntry, error) {
	out, err := diffNode(ctx, store, repoID, a, b)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}

func diffNode(ctx context.Context, store Store, repoID string, a, b objectid.ID) ([]DiffEntry, error) {
	if a == b {
		return nil, nil
	}

	aInternal, err := internalNodeOf(ctx, store, repoID, a)
	if err != nil {
		return nil, err
	}
	bInternal, err := internalNodeOf(ctx, store, repoID, b)
	if err != nil {
		return nil, err
	}

	// Only two internal nodes get the cheap path: compare their child
	// entries, recursing into (and thereby short-circuiting on) children
	// whose IDs already match, and flattening only the children that
	// genuinely differ or whose key ranges don't line up one-to-one.
	if aInternal != nil && bInternal != nil {
		return diffInternal(ctx, store, repoID, aInternal, bInternal)
	}

	aEntries, err := collectAll(ctx, store, repoID, a)
	if err != nil {
		return nil, err
	}
	bEntries, err := collectAll(ctx, store, repoID, b)
	if err != nil {
		return nil, err
	}
	return diffEntryLists(aEntries, bEntries), nil
}

// internalNodeOf returns the loaded internalSegment at id, or nil if id is
// absent or names a leaf.
func internalNodeOf(ctx context.Context, store Store, repoID string, id objectid.ID) (*internalSegment, error) {
	if id.IsNil() {
		return nil, nil
	}
	node, err := loadSegment(ctx, store, repoID, id)
	if err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *leafSegment:
		return nil, nil
	case *internalSegment:
		return n, nil
	default:
		return nil, fmt.Errorf("keyindex: unknown node type %T", node)
	}
}

// diffInternal aligns two internal nodes' child entries by key range.
// Identical (range, childID) pairs are dropped without recursing; ranges
// that match but whose child IDs differ recurse (and may short-circuit
// further down); everything else falls back to a flattened compare of
// the mismatched region.
func diffInternal(ctx context.Context, store Store, repoID string, a, b *internalSegment) ([]DiffEntry, error) {
	aligned := alignByRange(a.Entries, b.Entries)
	var out []DiffEntry
	for _, pair := range aligned {
		switch {
		case pair.a != nil && pair.b != nil && pair.a.ChildID == pair.b.ChildID:
			continue
		case pair.a != nil && pair.b != nil:
			sub, err := diffNode(ctx, store, repoID, pair.a.ChildID, pair.b.ChildID)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		case pair.a != nil:
			entries, err := collectAll(ctx, store, repoID, pair.a.ChildID)
			if err != nil {
				return nil, err
			}
			out = append(out, diffEntryLists(entries, nil)...)
		case pair.b != nil:
			entries, err := collectAll(ctx, store, repoID, pair.b.ChildID)
			if err != nil {
				return nil, err
			}
			out = append(out, diffEntryLists(nil, entries)...)
		}
	}
	return out, nil
}

type rangePair struct {
	a, b *internalEntry
}

// alignByRange pairs entries from two internal-node entry lists whenever
// their key ranges are identical, which is the common case for sibling
// subtrees untouched by an edit; mismatched ranges are emitted as
// one-sided pairs so the caller falls back to flattening them.
func alignByRange(a, b []internalEntry) []rangePair {
	var out []rangePair
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ae, be := a[i], b[j]
		switch {
		case Key(ae.LastKey).Equal(be.LastKey) && Key(ae.FirstKey).Equal(be.FirstKey):
			out = append(out, rangePair{a: &a[i], b: &b[j]})
			i++
			j++
		case Key(ae.LastKey).Less(be.FirstKey):
			out = append(out, rangePair{a: &a[i]})
			i++
		default:
			out = append(out, rangePair{b: &b[j]})
			j++
		}
	}
	for ; i < len(a); i++ {
		out = append(out, rangePair{a: &a[i]})
	}
	for ; j < len(b); j++ {
		out = append(out, rangePair{b: &b[j]})
	}
	return out
}

func diffEntryLists(aEntries, bEntries []Entry) []DiffEntry {
	aMap := make(map[string]Entry, len(aEntries))
	for _, e := range aEntries {
		aMap[e.Key.String()] = e
	}
	bMap := make(map[string]Entry, len(bEntries))
	for _, e := range bEntries {
		bMap[e.Key.String()] = e
	}

	var out []DiffEntry
	for k, ae := range aMap {
		if be, ok := bMap[k]; ok {
			if ae.PayloadRef != be.PayloadRef {
				aCopy, bCopy := ae, be
				out = append(out, DiffEntry{Key: ae.Key, Kind: DiffChanged, Before: &aCopy, After: &bCopy})
			}
		} else {
			aCopy := ae
			out = append(out, DiffEntry{Key: ae.Key, Kind: DiffRemoved, Before: &aCopy})
		}
	}
	for k, be := range bMap {
		if _, ok := aMap[k]; !ok {
			bCopy := be
			out = append(out, DiffEntry{Key: be.Key, Kind: DiffAdded, After: &bCopy})
		}
	}
	return out
}
