package keyindex

import (
	"sort"
	"time"

	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

// OpKind discriminates what a single key-scoped Operation does.
type OpKind uint8

const (
	OpPut OpKind = iota + 1
	OpDelete
	OpUnchanged
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "Put"
	case OpDelete:
		return "Delete"
	case OpUnchanged:
		return "Unchanged"
	default:
		return "Unknown"
	}
}

// Operation is one keyed change inside a commit. PayloadRef is the ID of a
// Content blob and is only meaningful for OpPut.
type Operation struct {
	Key        Key
	Kind       OpKind
	PayloadRef objectid.ID
}

// Commit is the engine's immutable DAG node. Parents[0] is the logical
// predecessor; additional entries encode merges. Once written, a commit's
// ID is fixed as the hash of its canonical bytes — nothing about a commit
// is ever mutated in place.
type Commit struct {
	ID           objectid.ID
	Parents      []objectid.ID
	Author       string
	Committer    string
	CommitTime   time.Time
	Message      string
	Operations   []Operation
	KeyIndexRoot objectid.ID
	Metadata     map[string]string
}

const domainTagCommit = "Commit"

// canonicalBytes renders c in the fixed field order the hash is taken
// over: parents, author, committer, commit time, message, operations
// (in listed order, never re-sorted), key-index root, then metadata
// sorted by key so map iteration order never leaks into the hash.
func (c *Commit) canonicalBytes() []byte {
	enc := objectid.NewEncoder().
		Len(len(c.Parents))
	for _, p := range c.Parents {
		enc.ID(p)
	}
	enc.String(c.Author).
		String(c.Committer).
		Int64(c.CommitTime.UnixNano()).
		String(c.Message).
		Len(len(c.Operations))
	for _, op := range c.Operations {
		enc.Len(len(op.Key))
		for _, elem := range op.Key {
			enc.String(elem)
		}
		enc.Uint8(uint8(op.Kind)).ID(op.PayloadRef)
	}
	enc.ID(c.KeyIndexRoot)

	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	enc.Len(len(keys))
	for _, k := range keys {
		enc.String(k).String(c.Metadata[k])
	}
	return enc.Finish()
}

// ComputeID returns the content hash of c's canonical bytes, independent
// of whatever is currently stored in c.ID.
func (c *Commit) ComputeID() objectid.ID {
	return objectid.Hash(domainTagCommit, c.canonicalBytes())
}

// Finalize computes and stores c.ID from the current field values. Call
// this exactly once, after every other field is set, immediately before
// writing the commit to storage.
func (c *Commit) Finalize() objectid.ID {
	c.ID = c.ComputeID()
	return c.ID
}

// HasParent reports whether id appears anywhere in c.Parents.
func (c *Commit) HasParent(id objectid.ID) bool {
	for _, p := range c.Parents {
		if p == id {
			return true
		}
	}
	return false
}

// DecodeCommit reconstructs a Commit from the bytes written by
// canonicalBytes, then finalizes its ID.
func DecodeCommit(b []byte) (*Commit, error) {
	dec := objectid.NewDecoder(b)
	c := &Commit{}

	n, err := dec.Len()
	if err != nil {
		return nil, err
	}
	c.Parents = make([]objectid.ID, n)
	for i := range c.Parents {
		if c.Parents[i], err = dec.ID(); err != nil {
			return nil, err
		}
	}

	if c.Author, err = dec.String(); err != nil {
		return nil, err
	}
	if c.Committer, err = dec.String(); err != nil {
		return nil, err
	}
	nanos, err := dec.Int64()
	if err != nil {
		return nil, err
	}
	c.CommitTime = time.Unix(0, nanos).UTC()
	if c.Message, err = dec.String(); err != nil {
		return nil, err
	}

	opCount, err := dec.Len()
	if err != nil {
		return nil, err
	}
	c.Operations = make([]Operation, opCount)
	for i := range c.Operations {
		keyLen, err := dec.Len()
		if err != nil {
			return nil, err
		}
		key := make(Key, keyLen)
		for j := range key {
			if key[j], err = dec.String(); err != nil {
				return nil, err
			}
		}
		kindByte, err := dec.Uint8()
		if err != nil {
			return nil, err
		}
		payloadRef, err := dec.ID()
		if err != nil {
			return nil, err
		}
		c.Operations[i] = Operation{Key: key, Kind: OpKind(kindByte), PayloadRef: payloadRef}
	}

	if c.KeyIndexRoot, err = dec.ID(); err != nil {
		return nil, err
	}

	metaCount, err := dec.Len()
	if err != nil {
		return nil, err
	}
	if metaCount > 0 {
		c.Metadata = make(map[string]string, metaCount)
		for i := 0; i < metaCount; i++ {
			k, err := dec.String()
			if err != nil {
				return nil, err
			}
			v, err := dec.String()
			if err != nil {
				return nil, err
			}
			c.Metadata[k] = v
		}
	}

	c.ID = c.ComputeID()
	return c, nil
}
