// Package refs implements the reference manager: named, CAS-updated
// pointers to commits. The refs bucket is always authoritative; the
// refNames bucket is an eventually-consistent listing index that readers
// tolerate being stale in (a listing hit is re-verified with getRef).
package refs

import (
	"context"
	"sort"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/storage"
)

// Kind discriminates what a Reference names.
type Kind uint8

const (
	KindBranch Kind = iota + 1
	KindTag
	KindDetached
)

func (k Kind) String() string {
	switch k {
	case KindBranch:
		return "Branch"
	case KindTag:
		return "Tag"
	case KindDetached:
		return "Detached"
	default:
		return "Unknown"
	}
}

// Reference is a named pointer to a commit.
type Reference struct {
	Name      string
	Kind      Kind
	Head      objectid.ID
	CreatedAt int64 // Unix nanos
	Immutable bool  // tags created with immutability enabled reject UpdateRef
}

const domainTagRefName = "RefName"

// refID derives the storage ID for a reference's CAS slot from its name,
// so two managers never need to agree on anything but the name string.
func refID(name string) objectid.ID {
	return objectid.Hash(domainTagRefName, []byte(name))
}

func (r *Reference) encode() []byte {
	return objectid.NewEncoder().
		String(r.Name).
		Uint8(uint8(r.Kind)).
		ID(r.Head).
		Int64(r.CreatedAt).
		Bool(r.Immutable).
		Finish()
}

func decodeReference(b []byte) (*Reference, error) {
	dec := objectid.NewDecoder(b)
	r := &Reference{}
	var err error
	if r.Name, err = dec.String(); err != nil {
		return nil, err
	}
	kind, err := dec.Uint8()
	if err != nil {
		return nil, err
	}
	r.Kind = Kind(kind)
	if r.Head, err = dec.ID(); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = dec.Int64(); err != nil {
		return nil, err
	}
	if r.Immutable, err = dec.Bool(); err != nil {
		return nil, err
	}
	return r, nil
}

// Manager is the reference manager over one repository's refs/refNames
// buckets.
type Manager struct {
	repoID   string
	refs     storage.CAS
	names    storage.KV
	nowNanos func() int64
}

// New builds a Manager. nowNanos supplies the creation timestamp (tests
// inject a fixed clock; callers otherwise wire engutil.Clock.Now).
func New(repoID string, adapter storage.Adapter, nowNanos func() int64) *Manager {
	return &Manager{repoID: repoID, refs: adapter.Refs(), names: adapter.RefNames(), nowNanos: nowNanos}
}

// CreateRef inserts a new reference pointing at startFrom. Fails
// AlreadyExists if the name is already taken.
func (m *Manager) CreateRef(ctx context.Context, name string, kind Kind, startFrom objectid.ID, immutable bool) (*Reference, error) {
	r := &Reference{Name: name, Kind: kind, Head: startFrom, CreatedAt: m.nowNanos(), Immutable: immutable}
	ok, err := m.refs.CompareAndSwap(ctx, m.repoID, refID(name), nil, r.encode())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, engerr.New(engerr.AlreadyExists, "reference %q already exists", name)
	}
	if err := m.appendName(ctx, name); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRef looks up a reference by name, returning engerr.NotFound if
// absent.
func (m *Manager) GetRef(ctx context.Context, name string) (*Reference, error) {
	raw, err := m.refs.Get(ctx, m.repoID, refID(name))
	if err != nil {
		return nil, err
	}
	return decodeReference(raw)
}

// UpdateRef CAS-advances name's head from expectedHead to newHead. Fails
// ReferenceConflict if the current head doesn't match, or InvalidArgument
// if the reference is an immutable tag.
func (m *Manager) UpdateRef(ctx context.Context, name string, expectedHead, newHead objectid.ID) (*Reference, error) {
	cur, err := m.GetRef(ctx, name)
	if err != nil {
		return nil, err
	}
	if cur.Immutable {
		return nil, engerr.New(engerr.InvalidArgument, "reference %q is an immutable tag", name)
	}
	if cur.Head != expectedHead {
		return nil, engerr.New(engerr.ReferenceConflict, "reference %q head moved: expected %s, found %s", name, expectedHead, cur.Head)
	}

	next := &Reference{Name: cur.Name, Kind: cur.Kind, Head: newHead, CreatedAt: cur.CreatedAt, Immutable: cur.Immutable}
	ok, err := m.refs.CompareAndSwap(ctx, m.repoID, refID(name), cur.encode(), next.encode())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, engerr.New(engerr.ReferenceConflict, "reference %q changed concurrently", name)
	}
	return next, nil
}

// DeleteRef CAS-deletes name, failing ReferenceConflict if the observed
// head has moved since the caller last read it.
func (m *Manager) DeleteRef(ctx context.Context, name string, expectedHead objectid.ID) error {
	cur, err := m.GetRef(ctx, name)
	if err != nil {
		return err
	}
	if cur.Head != expectedHead {
		return engerr.New(engerr.ReferenceConflict, "reference %q head moved: expected %s, found %s", name, expectedHead, cur.Head)
	}
	ok, err := m.refs.CompareAndSwap(ctx, m.repoID, refID(name), cur.encode(), nil)
	if err != nil {
		return err
	}
	if !ok {
		return engerr.New(engerr.ReferenceConflict, "reference %q changed concurrently", name)
	}
	return m.removeName(ctx, name)
}

const nameIndexID = "index"

var nameIndexObjectID = objectid.Hash("RefNameIndex", []byte(nameIndexID))

func (m *Manager) loadNames(ctx context.Context) ([]string, error) {
	raw, err := m.names.Get(ctx, m.repoID, nameIndexObjectID)
	if engerr.CodeOf(err) == engerr.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	dec := objectid.NewDecoder(raw)
	n, err := dec.Len()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = dec.String(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// appendName and removeName accept a best-effort, non-atomic update to
// the name listing index: concurrent writers may race here, but
// GetRef/CreateRef on the refs bucket remain the source of truth, so a
// lost update only ever costs a transient listing omission or stale hit.
func (m *Manager) appendName(ctx context.Context, name string) error {
	names, err := m.loadNames(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	names = append(names, name)
	sort.Strings(names)
	return m.putNames(ctx, names)
}

func (m *Manager) removeName(ctx context.Context, name string) error {
	names, err := m.loadNames(ctx)
	if err != nil {
		return err
	}
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return m.putNames(ctx, out)
}

func (m *Manager) putNames(ctx context.Context, names []string) error {
	enc := objectid.NewEncoder().Len(len(names))
	for _, n := range names {
		enc.String(n)
	}
	if err := m.names.Delete(ctx, m.repoID, nameIndexObjectID); err != nil {
		return err
	}
	return m.names.Put(ctx, m.repoID, nameIndexObjectID, enc.Finish())
}

// ListRefs returns names from the eventually-consistent index that are
// >= pageToken, up to limit, alphabetically. Callers that need
// authoritative head values should follow up with GetRef per name.
func (m *Manager) ListRefs(ctx context.Context, pageToken string, limit int) (names []string, nextPageToken string, err error) {
	all, err := m.loadNames(ctx)
	if err != nil {
		return nil, "", err
	}
	start := sort.SearchStrings(all, pageToken)
	end := start + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	page := append([]string(nil), all[start:end]...)
	if end < len(all) {
		nextPageToken = all[end]
	}
	return page, nextPageToken, nil
}
