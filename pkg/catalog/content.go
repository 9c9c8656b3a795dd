// Package catalog implements the catalog layer (C6): the Iceberg-aware
// snapshot update state machine, multi-table catalog commit, and derived
// snapshot materialization that sit on top of pkg/commit. pkg/commit
// itself knows nothing about Content blobs or Iceberg metadata — this
// package is where those semantics live.
package catalog

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

// ContentType discriminates the closed set of entity kinds a key can hold,
// per spec.md §3's "polymorphic Content" design note — a tagged variant,
// not an open inheritance hierarchy.
type ContentType string

const (
	ContentIcebergTable ContentType = "IcebergTable"
	ContentIcebergView  ContentType = "IcebergView"
	ContentNamespace    ContentType = "Namespace"
	ContentUDF          ContentType = "UDF"
)

// Content is the opaque, typed payload stored at a key by a commit.
// ContentID is assigned once, at the first Put of a logical entity, and
// is carried forward unchanged by every successor update — it is how two
// commits recognize "the same table" even though its metadata pointer has
// moved.
type Content struct {
	ContentID        objectid.ID
	Type             ContentType
	MetadataLocation string
	SnapshotID       int64 // IcebergTable: the snapshot-id this commit points at
	VersionID        int64 // IcebergView: the version-id this commit points at
	Properties       map[string]string
}

const domainTagContent = "Content"

func (c Content) encode() []byte {
	enc := objectid.NewEncoder().
		ID(c.ContentID).
		String(string(c.Type)).
		String(c.MetadataLocation).
		Int64(c.SnapshotID).
		Int64(c.VersionID)

	keys := make([]string, 0, len(c.Properties))
	for k := range c.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	enc.Len(len(keys))
	for _, k := range keys {
		enc.String(k).String(c.Properties[k])
	}
	return enc.Finish()
}

// PayloadRef returns the content-addressed ID this blob is stored and
// referenced under (a commit operation's PayloadRef).
func (c Content) PayloadRef() objectid.ID {
	return objectid.Hash(domainTagContent, c.encode())
}

// Encode serializes c for storage in the contentAttachments bucket under
// c.PayloadRef().
func (c Content) Encode() []byte {
	return c.encode()
}

// DecodeContent reconstructs a Content from bytes written by Encode.
func DecodeContent(b []byte) (Content, error) {
	dec := objectid.NewDecoder(b)
	var c Content
	var err error
	if c.ContentID, err = dec.ID(); err != nil {
		return c, fmt.Errorf("catalog: decode content id: %w", err)
	}
	typ, err := dec.String()
	if err != nil {
		return c, fmt.Errorf("catalog: decode content type: %w", err)
	}
	c.Type = ContentType(typ)
	if c.MetadataLocation, err = dec.String(); err != nil {
		return c, fmt.Errorf("catalog: decode metadata location: %w", err)
	}
	if c.SnapshotID, err = dec.Int64(); err != nil {
		return c, fmt.Errorf("catalog: decode snapshot id: %w", err)
	}
	if c.VersionID, err = dec.Int64(); err != nil {
		return c, fmt.Errorf("catalog: decode version id: %w", err)
	}
	n, err := dec.Len()
	if err != nil {
		return c, fmt.Errorf("catalog: decode properties length: %w", err)
	}
	if n > 0 {
		c.Properties = make(map[string]string, n)
		for i := 0; i < n; i++ {
			k, err := dec.String()
			if err != nil {
				return c, fmt.Errorf("catalog: decode property key: %w", err)
			}
			v, err := dec.String()
			if err != nil {
				return c, fmt.Errorf("catalog: decode property value: %w", err)
			}
			c.Properties[k] = v
		}
	}
	return c, nil
}

// DeriveSnapshotID computes the derived snapshot ID for a Content blob:
// hash("ContentSnapshot", metadataLocation, snapshotOrVersionID), per
// spec.md §4.1/§4.6 — a pure function of those two fields, computable
// without reading the metadata file body.
func DeriveSnapshotID(metadataLocation string, snapshotOrVersionID int64) objectid.ID {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], uint64(snapshotOrVersionID))
	return objectid.DerivedHash("ContentSnapshot", []byte(metadataLocation), idBuf[:])
}
