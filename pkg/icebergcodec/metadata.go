// Package icebergcodec is the boundary between the versioned storage
// engine and Iceberg's table/view metadata formats. Per spec.md's design
// note ("keep Iceberg serialization in a separate module behind
// IcebergCodec"), pkg/catalog never touches Iceberg JSON directly — it
// builds and mutates the draft types here, and asks a Codec to turn a
// draft into metadata-file bytes (or back).
//
// Schema definitions are the one piece borrowed directly from
// github.com/apache/iceberg-go (iceberg.Schema/NestedField), the same way
// the teacher's pkg/iceberg/schema.go builds schemas for its benchmark
// tables. The surrounding table/view metadata envelope — the JSON shape
// published by the Iceberg table spec (format-version, table-uuid,
// schemas, partition-specs, snapshots, ...) — is modeled directly here,
// since the teacher only ever consumes that envelope through a REST
// catalog client and never constructs one itself.
package icebergcodec

import "github.com/apache/iceberg-go"

// TableMetadataDraft is the in-memory, mutable form of an Iceberg table
// metadata file. pkg/catalog's applyUpdates mutates a draft in place;
// emitMetadata hands the finished draft to a Codec for serialization.
type TableMetadataDraft struct {
	FormatVersion   int               `json:"format-version"`
	TableUUID       string            `json:"table-uuid"`
	Location        string            `json:"location"`
	LastUpdatedMs   int64             `json:"last-updated-ms"`
	LastColumnID    int               `json:"last-column-id"`
	Schemas         *SchemaSet        `json:"-"`
	CurrentSchemaID int               `json:"current-schema-id"`
	PartitionSpecs  []PartitionSpec   `json:"partition-specs"`
	DefaultSpecID   int               `json:"default-spec-id"`
	LastPartitionID int               `json:"last-partition-id"`
	SortOrders      []SortOrder       `json:"sort-orders"`
	DefaultOrderID  int               `json:"default-sort-order-id"`
	Properties      map[string]string `json:"properties,omitempty"`
	Snapshots       []Snapshot        `json:"snapshots,omitempty"`
	CurrentSnapshot int64             `json:"current-snapshot-id,omitempty"`
}

// PartitionSpec is one named partitioning scheme over a table's schema.
type PartitionSpec struct {
	SpecID int              `json:"spec-id"`
	Fields []PartitionField `json:"fields"`
}

// PartitionField derives one partition column from a source schema field.
type PartitionField struct {
	SourceID  int    `json:"source-id"`
	FieldID   int    `json:"field-id"`
	Name      string `json:"name"`
	Transform string `json:"transform"`
}

// SortOrder is a named row-ordering applied to a table's data files.
type SortOrder struct {
	OrderID int         `json:"order-id"`
	Fields  []SortField `json:"fields"`
}

// SortField orders rows by one source column.
type SortField struct {
	SourceID  int    `json:"source-id"`
	Transform string `json:"transform"`
	Direction string `json:"direction"`
	NullOrder string `json:"null-order"`
}

// Snapshot records one point-in-time view of a table's data files.
type Snapshot struct {
	SnapshotID       int64             `json:"snapshot-id"`
	ParentSnapshotID *int64            `json:"parent-snapshot-id,omitempty"`
	SequenceNumber   int64             `json:"sequence-number"`
	TimestampMs      int64             `json:"timestamp-ms"`
	ManifestList     string            `json:"manifest-list"`
	SchemaID         *int              `json:"schema-id,omitempty"`
	Summary          map[string]string `json:"summary,omitempty"`
}

// ViewMetadataDraft is the in-memory form of an Iceberg view metadata
// file, mirroring TableMetadataDraft's role for views.
type ViewMetadataDraft struct {
	FormatVersion    int               `json:"format-version"`
	ViewUUID         string            `json:"view-uuid"`
	Location         string            `json:"location"`
	Schemas          *SchemaSet        `json:"-"`
	CurrentVersionID int               `json:"current-version-id"`
	Versions         []ViewVersion     `json:"versions"`
	Properties       map[string]string `json:"properties,omitempty"`
}

// ViewVersion is one named, schema-bound SQL definition of a view.
type ViewVersion struct {
	VersionID       int                  `json:"version-id"`
	SchemaID        int                  `json:"schema-id"`
	TimestampMs     int64                `json:"timestamp-ms"`
	Summary         map[string]string    `json:"summary,omitempty"`
	Representations []ViewRepresentation `json:"representations"`
	DefaultNS       []string             `json:"default-namespace,omitempty"`
}

// ViewRepresentation is one dialect-specific SQL body for a view version.
type ViewRepresentation struct {
	Type    string `json:"type"`
	SQL     string `json:"sql"`
	Dialect string `json:"dialect"`
}

// SchemaSet is an append-only, ID-keyed collection of schema versions. It
// sits alongside TableMetadataDraft.Schemas/ViewMetadataDraft.Schemas so
// callers can look a schema up by the ID pkg/catalog assigns it without
// depending on how iceberg.Schema tracks its own identity internally.
type SchemaSet struct {
	order []int
	byID  map[int]*iceberg.Schema
}

// NewSchemaSet returns an empty SchemaSet.
func NewSchemaSet() *SchemaSet {
	return &SchemaSet{byID: make(map[int]*iceberg.Schema)}
}

// Add registers schema under id, replacing any prior schema at that ID.
func (s *SchemaSet) Add(id int, schema *iceberg.Schema) {
	if _, exists := s.byID[id]; !exists {
		s.order = append(s.order, id)
	}
	s.byID[id] = schema
}

// Get returns the schema at id, or nil if unregistered.
func (s *SchemaSet) Get(id int) *iceberg.Schema {
	return s.byID[id]
}

// IDs returns registered schema IDs in insertion order.
func (s *SchemaSet) IDs() []int {
	return append([]int(nil), s.order...)
}

// Ordered returns the registered schemas in insertion order, for
// serialization into the metadata file's "schemas" array.
func (s *SchemaSet) Ordered() []*iceberg.Schema {
	out := make([]*iceberg.Schema, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
