// Package objectid implements content-addressed identifiers for the
// catalog engine: a 256-bit hash of an object's canonical serialized
// bytes, plus the canonical encoding primitives every object type
// (commit, content blob, key-index segment) serializes through.
package objectid

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Size is the length in bytes of an ID.
const Size = sha256.Size

// ID is a 256-bit content hash. The zero value is not a valid ID for any
// object; it is only used to represent "no parent" / "no prior content".
type ID [Size]byte

// Nil is the zero ID, used as a sentinel for "absent" (e.g. a commit with
// no parent).
var Nil ID

// IsNil reports whether id is the zero value.
func (id ID) IsNil() bool {
	return id == Nil
}

// String renders the ID as lower-case hex, the external-facing encoding.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 32 bytes.
func (id ID) Bytes() []byte {
	return id[:]
}

// Compare orders IDs lexicographically on their raw bytes.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports id < other under Compare.
func (id ID) Less(other ID) bool {
	return id.Compare(other) < 0
}

// Parse decodes a lower-case hex string produced by String.
func Parse(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("objectid: parse %q: %w", s, err)
	}
	if len(b) != Size {
		return id, fmt.Errorf("objectid: parse %q: want %d bytes, got %d", s, Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// MustParse is Parse but panics on error; for tests and constant-like IDs.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Hash computes ID = SHA-256(domainTag || canonicalBytes). domainTag
// distinguishes object kinds (e.g. "Commit", "KeyIndexLeaf", "Content")
// so that two different object types can never collide even given
// identical payload bytes.
func Hash(domainTag string, canonicalBytes []byte) ID {
	h := sha256.New()
	writeLenPrefixed(h, []byte(domainTag))
	h.Write(canonicalBytes)
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// DerivedHash computes an ID from a domain tag plus an ordered list of
// opaque field byte-strings, without requiring the caller to build a full
// canonical-bytes encoding first. Used by the catalog layer to derive a
// snapshot ID directly from a content blob's fields, e.g.
// hash("ContentSnapshot" || metadataLoc || snapshotId), without reading
// the blob body.
func DerivedHash(domainTag string, fields ...[]byte) ID {
	h := sha256.New()
	writeLenPrefixed(h, []byte(domainTag))
	for _, f := range fields {
		writeLenPrefixed(h, f)
	}
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

func writeLenPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}
