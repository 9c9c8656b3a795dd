// Package memory implements the storage.Adapter contract entirely in
// process memory. It exists for the engine's own test suite and for
// library callers that want to exercise the engine without wiring a real
// backend; it is not a production adapter.
package memory

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"sort"
	"sync"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
	"github.com/warpcatalog/warpcatalog/pkg/storage"
)

// Adapter is a goroutine-safe, in-memory storage.Adapter. Scope is a
// single process; nothing is persisted across restarts.
type Adapter struct {
	mu    sync.RWMutex
	repos map[string]*repoData
}

type repoData struct {
	buckets map[storage.Bucket]map[objectid.ID][]byte
}

// New returns an empty Adapter.
func New() *Adapter {
	return &Adapter{repos: make(map[string]*repoData)}
}

func (a *Adapter) repo(repoID string) *repoData {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.repos[repoID]
	if !ok {
		r = &repoData{buckets: make(map[storage.Bucket]map[objectid.ID][]byte)}
		a.repos[repoID] = r
	}
	return r
}

func (r *repoData) bucket(b storage.Bucket) map[objectid.ID][]byte {
	m, ok := r.buckets[b]
	if !ok {
		m = make(map[objectid.ID][]byte)
		r.buckets[b] = m
	}
	return m
}

type kvBucket struct {
	a    *Adapter
	name storage.Bucket
}

func (k kvBucket) Get(_ context.Context, repoID string, id objectid.ID) ([]byte, error) {
	k.a.mu.RLock()
	defer k.a.mu.RUnlock()
	r, ok := k.a.repos[repoID]
	if !ok {
		return nil, engerr.New(engerr.NotFound, "repository %q not found", repoID)
	}
	v, ok := r.bucket(k.name)[id]
	if !ok {
		return nil, engerr.New(engerr.NotFound, "%s/%s not found", k.name, id)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (k kvBucket) GetMany(_ context.Context, repoID string, ids []objectid.ID) ([][]byte, error) {
	k.a.mu.RLock()
	defer k.a.mu.RUnlock()
	out := make([][]byte, len(ids))
	r, ok := k.a.repos[repoID]
	if !ok {
		return out, nil
	}
	bkt := r.bucket(k.name)
	for i, id := range ids {
		if v, ok := bkt[id]; ok {
			cp := make([]byte, len(v))
			copy(cp, v)
			out[i] = cp
		}
	}
	return out, nil
}

func (k kvBucket) Put(_ context.Context, repoID string, id objectid.ID, value []byte) error {
	r := k.a.repo(repoID)
	k.a.mu.Lock()
	defer k.a.mu.Unlock()
	bkt := r.bucket(k.name)
	if existing, ok := bkt[id]; ok {
		if !bytes.Equal(existing, value) {
			return engerr.New(engerr.AlreadyExists, "%s/%s already exists with different bytes", k.name, id)
		}
		return nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	bkt[id] = cp
	return nil
}

func (k kvBucket) Delete(_ context.Context, repoID string, id objectid.ID) error {
	k.a.mu.Lock()
	defer k.a.mu.Unlock()
	if r, ok := k.a.repos[repoID]; ok {
		delete(r.bucket(k.name), id)
	}
	return nil
}

type casBucket struct {
	kvBucket
}

func (c casBucket) CompareAndSwap(_ context.Context, repoID string, id objectid.ID, expected, newValue []byte) (bool, error) {
	r := c.a.repo(repoID)
	c.a.mu.Lock()
	defer c.a.mu.Unlock()
	bkt := r.bucket(c.name)
	current, exists := bkt[id]

	if expected == nil {
		if exists {
			return false, nil
		}
	} else {
		if !exists || !bytes.Equal(current, expected) {
			return false, nil
		}
	}

	if newValue == nil {
		delete(bkt, id)
		return true, nil
	}
	cp := make([]byte, len(newValue))
	copy(cp, newValue)
	bkt[id] = cp
	return true, nil
}

type commitsBucket struct {
	kvBucket
}

func (c commitsBucket) Scan(_ context.Context, repoID string, _ []byte, limit int, cursor storage.Cursor) ([]storage.ScanItem, storage.Cursor, error) {
	c.a.mu.RLock()
	defer c.a.mu.RUnlock()

	r, ok := c.a.repos[repoID]
	if !ok {
		return nil, nil, nil
	}
	bkt := r.bucket(c.name)

	ids := make([]objectid.ID, 0, len(bkt))
	for id := range bkt {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })

	start := 0
	if len(cursor) > 0 {
		var after objectid.ID
		copy(after[:], cursor)
		for i, id := range ids {
			if after.Less(id) {
				start = i
				break
			}
			start = i + 1
		}
	}

	end := start + limit
	if limit <= 0 || end > len(ids) {
		end = len(ids)
	}

	items := make([]storage.ScanItem, 0, end-start)
	for _, id := range ids[start:end] {
		v := bkt[id]
		cp := make([]byte, len(v))
		copy(cp, v)
		items = append(items, storage.ScanItem{ID: id, Value: cp})
	}

	var next storage.Cursor
	if end < len(ids) {
		next = storage.Cursor(append([]byte(nil), ids[end-1].Bytes()...))
	}
	return items, next, nil
}

func (a *Adapter) Commits() storage.CommitsBucket {
	return commitsBucket{kvBucket{a: a, name: storage.BucketCommits}}
}

func (a *Adapter) KeyIndexSegments() storage.KV {
	return kvBucket{a: a, name: storage.BucketKeyIndexSegments}
}

func (a *Adapter) Refs() storage.CAS {
	return casBucket{kvBucket{a: a, name: storage.BucketRefs}}
}

func (a *Adapter) RefNames() storage.KV {
	return kvBucket{a: a, name: storage.BucketRefNames}
}

func (a *Adapter) RepoDesc() storage.CAS {
	return casBucket{kvBucket{a: a, name: storage.BucketRepoDesc}}
}

func (a *Adapter) ContentAttachments() storage.KV {
	return kvBucket{a: a, name: storage.BucketContentAttachments}
}

// dumpFile is the on-disk shape Dump/Load round-trip: repoID -> bucket ->
// object ID (hex) -> value (base64). It exists so a process-local Adapter
// can survive across separate CLI invocations without a real persistent
// backend, the way cli/ commands share one repository between runs.
type dumpFile struct {
	Repos map[string]map[storage.Bucket]map[string]string `json:"repos"`
}

// Dump serializes every repository's buckets to JSON.
func (a *Adapter) Dump() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := dumpFile{Repos: make(map[string]map[storage.Bucket]map[string]string, len(a.repos))}
	for repoID, r := range a.repos {
		buckets := make(map[storage.Bucket]map[string]string, len(r.buckets))
		for name, entries := range r.buckets {
			m := make(map[string]string, len(entries))
			for id, v := range entries {
				m[id.String()] = base64.StdEncoding.EncodeToString(v)
			}
			buckets[name] = m
		}
		out.Repos[repoID] = buckets
	}
	return json.MarshalIndent(out, "", "  ")
}

// Load replaces the Adapter's contents with a previously Dump-ed snapshot.
func (a *Adapter) Load(data []byte) error {
	var in dumpFile
	if err := json.Unmarshal(data, &in); err != nil {
		return engerr.Wrap(engerr.Internal, err, "decode storage snapshot")
	}

	repos := make(map[string]*repoData, len(in.Repos))
	for repoID, buckets := range in.Repos {
		r := &repoData{buckets: make(map[storage.Bucket]map[objectid.ID][]byte, len(buckets))}
		for name, entries := range buckets {
			m := make(map[objectid.ID][]byte, len(entries))
			for idStr, b64 := range entries {
				id, err := objectid.Parse(idStr)
				if err != nil {
					return engerr.Wrap(engerr.Internal, err, "decode storage snapshot: bad object id %q", idStr)
				}
				v, err := base64.StdEncoding.DecodeString(b64)
				if err != nil {
					return engerr.Wrap(engerr.Internal, err, "decode storage snapshot: bad value for %q", idStr)
				}
				m[id] = v
			}
			r.buckets[name] = m
		}
		repos[repoID] = r
	}

	a.mu.Lock()
	a.repos = repos
	a.mu.Unlock()
	return nil
}

var _ storage.Adapter = (*Adapter)(nil)
