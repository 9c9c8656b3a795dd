package catalog

import "github.com/warpcatalog/warpcatalog/pkg/objectid"

// EntitySnapshot is the derived, cacheable view of one Content blob at the
// commit that produced it: the materialized Iceberg state a reader actually
// wants, rather than the opaque Content pointer. Its ID is
// DeriveSnapshotID(metadataLocation, snapshotOrVersionID) (spec.md §4.1), so
// the task cache can key on it without decoding the metadata file first.
type EntitySnapshot struct {
	ID              objectid.ID
	ContentID       objectid.ID
	Type            ContentType
	IcebergLocation string
	SchemaIDs       []int
	CurrentSchemaID int
	PartitionSpecs  []int // spec IDs
	DefaultSpecID   int
	CurrentSnapshot int64
	Properties      map[string]string
}

func buildEntitySnapshot(content Content, table *icebergTableView, view *icebergViewView) EntitySnapshot {
	var snapshotOrVersion int64
	switch content.Type {
	case ContentIcebergTable:
		snapshotOrVersion = content.SnapshotID
	case ContentIcebergView:
		snapshotOrVersion = content.VersionID
	}

	snap := EntitySnapshot{
		ID:              DeriveSnapshotID(content.MetadataLocation, snapshotOrVersion),
		ContentID:       content.ContentID,
		Type:            content.Type,
		IcebergLocation: content.MetadataLocation,
		Properties:      content.Properties,
	}
	if table != nil {
		snap.SchemaIDs = table.schemaIDs
		snap.CurrentSchemaID = table.currentSchemaID
		snap.PartitionSpecs = table.partitionSpecIDs
		snap.DefaultSpecID = table.defaultSpecID
		snap.CurrentSnapshot = table.currentSnapshot
	}
	if view != nil {
		snap.SchemaIDs = view.schemaIDs
		snap.CurrentSchemaID = view.currentSchemaID
	}
	return snap
}

// icebergTableView and icebergViewView carry only the fields
// buildEntitySnapshot needs, so callers don't have to hand a full
// icebergcodec draft (and its *iceberg.Schema values) into the cache value.
type icebergTableView struct {
	schemaIDs        []int
	currentSchemaID  int
	partitionSpecIDs []int
	defaultSpecID    int
	currentSnapshot  int64
}

type icebergViewView struct {
	schemaIDs       []int
	currentSchemaID int
}
