package keyindex

import (
	"fmt"

	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

// DefaultSegmentBudget is the target byte size of a serialized segment
// before the tree builder starts a new one.
const DefaultSegmentBudget = 64 * 1024

const (
	domainTagLeafSegment     = "KeyIndexLeaf"
	domainTagInternalSegment = "KeyIndexNode"
)

// Entry is one key's resolved slot in the index: the stable content
// identity of the logical entity at that key, the payload this commit's
// lineage last wrote, and a type tag for quick filtering without a
// payload fetch. Apply fills only Key and PayloadRef: entries it writes
// carry a nil ContentID and an empty ContentType, and those two fields
// are set only when a caller passes them to Build directly.
type Entry struct {
	Key         Key
	ContentID   objectid.ID
	PayloadRef  objectid.ID
	ContentType string
}

func (e Entry) encode(enc *objectid.Encoder) {
	enc.Len(len(e.Key))
	for _, elem := range e.Key {
		enc.String(elem)
	}
	enc.ID(e.ContentID).ID(e.PayloadRef).String(e.ContentType)
}

func decodeEntry(dec *objectid.Decoder) (Entry, error) {
	var e Entry
	n, err := dec.Len()
	if err != nil {
		return e, err
	}
	e.Key = make(Key, n)
	for i := range e.Key {
		s, err := dec.String()
		if err != nil {
			return e, err
		}
		e.Key[i] = s
	}
	if e.ContentID, err = dec.ID(); err != nil {
		return e, err
	}
	if e.PayloadRef, err = dec.ID(); err != nil {
		return e, err
	}
	if e.ContentType, err = dec.String(); err != nil {
		return e, err
	}
	return e, nil
}

// approxSize estimates the serialized footprint of a leaf entry, used by
// the segment builder to decide when to start a new segment.
func (e Entry) approxSize() int {
	n := 4
	for _, elem := range e.Key {
		n += 4 + len(elem)
	}
	n += objectid.Size*2 + 4 + len(e.ContentType)
	return n
}

// leafSegment is a sorted, content-addressed page of the key -> entry map.
type leafSegment struct {
	Entries []Entry
}

func (s *leafSegment) encode() []byte {
	enc := objectid.NewEncoder().Len(len(s.Entries))
	for _, e := range s.Entries {
		e.encode(enc)
	}
	return enc.Finish()
}

func decodeLeafSegment(b []byte) (*leafSegment, error) {
	dec := objectid.NewDecoder(b)
	n, err := dec.Len()
	if err != nil {
		return nil, err
	}
	s := &leafSegment{Entries: make([]Entry, n)}
	for i := range s.Entries {
		e, err := decodeEntry(dec)
		if err != nil {
			return nil, err
		}
		s.Entries[i] = e
	}
	return s, nil
}

func (s *leafSegment) id() objectid.ID {
	return objectid.Hash(domainTagLeafSegment, s.encode())
}

// internalEntry points at one child segment and the inclusive key range
// it covers, so a lookup can binary-search the entry list instead of
// loading every child.
type internalEntry struct {
	FirstKey Key
	LastKey  Key
	ChildID  objectid.ID
}

// internalSegment is one level of the shallow tree indexing leaf (or
// lower internal) segments by key range.
type internalSegment struct {
	Entries []internalEntry
}

func (s *internalSegment) encode() []byte {
	enc := objectid.NewEncoder().Len(len(s.Entries))
	for _, e := range s.Entries {
		enc.Len(len(e.FirstKey))
		for _, elem := range e.FirstKey {
			enc.String(elem)
		}
		enc.Len(len(e.LastKey))
		for _, elem := range e.LastKey {
			enc.String(elem)
		}
		enc.ID(e.ChildID)
	}
	return enc.Finish()
}

func decodeInternalSegment(b []byte) (*internalSegment, error) {
	dec := objectid.NewDecoder(b)
	n, err := dec.Len()
	if err != nil {
		return nil, err
	}
	s := &internalSegment{Entries: make([]internalEntry, n)}
	for i := range s.Entries {
		var e internalEntry
		fn, err := dec.Len()
		if err != nil {
			return nil, err
		}
		e.FirstKey = make(Key, fn)
		for j := range e.FirstKey {
			if e.FirstKey[j], err = dec.String(); err != nil {
				return nil, err
			}
		}
		ln, err := dec.Len()
		if err != nil {
			return nil, err
		}
		e.LastKey = make(Key, ln)
		for j := range e.LastKey {
			if e.LastKey[j], err = dec.String(); err != nil {
				return nil, err
			}
		}
		if e.ChildID, err = dec.ID(); err != nil {
			return nil, err
		}
		s.Entries[i] = e
	}
	return s, nil
}

func (s *internalSegment) id() objectid.ID {
	return objectid.Hash(domainTagInternalSegment, s.encode())
}

// segmentKind tags which of the two wire formats a raw stored segment is,
// since both leaf and internal segments share the keyIndexSegments bucket.
type segmentKind uint8

const (
	segmentKindLeaf     segmentKind = 1
	segmentKindInternal segmentKind = 2
)

func wrapSegment(kind segmentKind, body []byte) []byte {
	return append([]byte{byte(kind)}, body...)
}

func unwrapSegment(raw []byte) (segmentKind, []byte, error) {
	if len(raw) < 1 {
		return 0, nil, fmt.Errorf("keyindex: empty segment bytes")
	}
	return segmentKind(raw[0]), raw[1:], nil
}
