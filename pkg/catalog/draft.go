package catalog

import (
	"fmt"

	"github.com/apache/iceberg-go"

	"github.com/warpcatalog/warpcatalog/pkg/engerr"
	"github.com/warpcatalog/warpcatalog/pkg/icebergcodec"
	"github.com/warpcatalog/warpcatalog/pkg/objectid"
)

// DraftState names the snapshot update state machine's states, per
// spec.md §4.6: Initial -> (checkRequirements) -> Requirements-OK ->
// (applyUpdates) -> Draft -> (emitMetadata) -> Finalized.
type DraftState uint8

const (
	StateInitial DraftState = iota
	StateRequirementsOK
	StateDraft
	StateFinalized
)

// RequirementKind names one Iceberg commit-time assertion, checked
// against the draft loaded from the prior Content blob before any update
// is applied.
type RequirementKind uint8

const (
	// AssertCreate fails unless this is a brand new entity (no prior
	// Content blob at the key).
	AssertCreate RequirementKind = iota + 1
	// AssertTableUUID fails unless the draft's UUID matches.
	AssertTableUUID
	// AssertCurrentSchemaID fails unless the draft's current schema ID
	// matches (for views: unless a schema with that ID is registered).
	AssertCurrentSchemaID
	// AssertLastAssignedFieldID fails unless the draft's last column ID
	// matches (tables only).
	AssertLastAssignedFieldID
	// AssertCurrentSnapshotID fails unless the draft's current snapshot
	// ID matches (tables only; it always fails for other content).
	AssertCurrentSnapshotID
)

// Requirement is one client-supplied assertion, evaluated in order
// against the loaded draft before any Update is applied.
type Requirement struct {
	Kind     RequirementKind
	UUID     string
	IntValue int64
}

// UpdateKind names one Iceberg metadata mutation applyUpdates can apply.
type UpdateKind uint8

const (
	SetLocation UpdateKind = iota + 1
	AddSchema
	SetCurrentSchema
	AddPartitionSpec
	SetDefaultSpec
	AddSnapshot
	SetProperties
	RemoveProperties
)

// Update is one mutation to apply to a draft, in listed order. Only the
// fields relevant to Kind are read.
type Update struct {
	Kind UpdateKind

	Location string // SetLocation

	SchemaID int             // AddSchema, SetCurrentSchema
	Schema   *iceberg.Schema // AddSchema

	PartitionSpec icebergcodec.PartitionSpec // AddPartitionSpec

	Snapshot icebergcodec.Snapshot // AddSnapshot

	Properties []string // SetProperties (pairs: k0,v0,k1,v1,...), RemoveProperties (keys)
}

// Draft is the mutable working state of one catalog entity across one
// snapshot update state machine run. A Draft is single-use: build one per
// CatalogOperation, drive it through checkRequirements -> applyUpdates ->
// emitMetadata, then discard it.
type Draft struct {
	state     DraftState
	isCreate  bool
	typ       ContentType
	contentID objectid.ID

	table *icebergcodec.TableMetadataDraft
	view  *icebergcodec.ViewMetadataDraft

	// namespace/UDF content carries only properties, no metadata file.
	properties map[string]string

	nextSnapshotSeq int64
}

// newCreateDraft builds the fresh, empty draft used when a CatalogOperation
// targets a key with no prior Content blob.
func newCreateDraft(typ ContentType, contentID objectid.ID) *Draft {
	d := &Draft{state: StateInitial, isCreate: true, typ: typ, contentID: contentID}
	switch typ {
	case ContentIcebergTable:
		d.table = &icebergcodec.TableMetadataDraft{FormatVersion: 2, Schemas: icebergcodec.NewSchemaSet(), Properties: map[string]string{}}
	case ContentIcebergView:
		d.view = &icebergcodec.ViewMetadataDraft{FormatVersion: 1, Schemas: icebergcodec.NewSchemaSet(), Properties: map[string]string{}}
	default:
		d.properties = map[string]string{}
	}
	return d
}

// loadDraft rebuilds a Draft from a previously committed Content blob and
// (for table/view content) its decoded metadata file.
func loadDraft(prior Content, table *icebergcodec.TableMetadataDraft, view *icebergcodec.ViewMetadataDraft) *Draft {
	d := &Draft{state: StateInitial, isCreate: false, typ: prior.Type, contentID: prior.ContentID}
	switch prior.Type {
	case ContentIcebergTable:
		d.table = table
		d.nextSnapshotSeq = maxSnapshotSequence(table) + 1
	case ContentIcebergView:
		d.view = view
	default:
		props := prior.Properties
		if props == nil {
			props = map[string]string{}
		} else {
			props = copyProperties(props)
		}
		d.properties = props
	}
	return d
}

func maxSnapshotSequence(table *icebergcodec.TableMetadataDraft) int64 {
	var max int64
	for _, s := range table.Snapshots {
		if s.SequenceNumber > max {
			max = s.SequenceNumber
		}
	}
	return max
}

func copyProperties(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// checkRequirements validates every Requirement against the draft's current
// state, aggregating every violation into a single ContentConflict error
// rather than failing on the first one — spec.md's checkRequirements step.
func (d *Draft) checkRequirements(reqs []Requirement) error {
	var conflicts []engerr.Conflict
	for _, r := range reqs {
		switch r.Kind {
		case AssertCreate:
			if !d.isCreate {
				conflicts = append(conflicts, engerr.Conflict{Kind: engerr.KeyExists, Message: "assert-create: entity already exists"})
			}
		case AssertTableUUID:
			if d.isCreate || d.table == nil || d.table.TableUUID != r.UUID {
				conflicts = append(conflicts, engerr.Conflict{Kind: engerr.PayloadDiffers, Message: "assert-uuid: table uuid does not match"})
			}
		case AssertCurrentSchemaID:
			if d.isCreate || !d.hasCurrentSchemaID(int(r.IntValue)) {
				conflicts = append(conflicts, engerr.Conflict{Kind: engerr.PayloadDiffers, Message: "assert-current-schema-id: current schema id does not match"})
			}
		case AssertLastAssignedFieldID:
			if d.isCreate || d.table == nil || int64(d.table.LastColumnID) != r.IntValue {
				conflicts = append(conflicts, engerr.Conflict{Kind: engerr.PayloadDiffers, Message: "assert-last-assigned-field-id: last assigned field id does not match"})
			}
		case AssertCurrentSnapshotID:
			if d.isCreate || !d.hasCurrentSnapshotID(r.IntValue) {
				conflicts = append(conflicts, engerr.Conflict{Kind: engerr.PayloadDiffers, Message: "assert-current-snapshot-id: current snapshot id does not match"})
			}
		default:
			conflicts = append(conflicts, engerr.Conflict{Kind: engerr.PayloadDiffers, Message: fmt.Sprintf("unknown requirement kind %d", r.Kind)})
		}
	}
	if len(conflicts) > 0 {
		return engerr.WithConflicts(engerr.ContentConflict, conflicts, "catalog requirements violated")
	}
	d.state = StateRequirementsOK
	return nil
}

func (d *Draft) hasCurrentSchemaID(id int) bool {
	switch {
	case d.table != nil:
		return d.table.CurrentSchemaID == id
	case d.view != nil:
		return d.view.Schemas.Get(id) != nil
	default:
		return false
	}
}

func (d *Draft) hasCurrentSnapshotID(id int64) bool {
	if d.table == nil {
		return false
	}
	return d.table.CurrentSnapshot == id
}

// applyUpdates mutates the draft with each Update in listed order. validateLocation
// is called only for SetLocation and encapsulates the ObjectIO/warehouse-root
// checks the catalog engine owns, keeping this package free of an ObjectIO
// dependency of its own.
func (d *Draft) applyUpdates(updates []Update, validateLocation func(uri string) error) error {
	if d.state != StateRequirementsOK && !d.isCreate {
		return engerr.New(engerr.Internal, "applyUpdates called before checkRequirements")
	}
	for _, u := range updates {
		if err := d.applyOne(u, validateLocation); err != nil {
			return err
		}
	}
	d.state = StateDraft
	return nil
}

func (d *Draft) applyOne(u Update, validateLocation func(uri string) error) error {
	switch u.Kind {
	case SetLocation:
		if validateLocation != nil {
			if err := validateLocation(u.Location); err != nil {
				return err
			}
		}
		switch {
		case d.table != nil:
			d.table.Location = u.Location
		case d.view != nil:
			d.view.Location = u.Location
		default:
			return engerr.New(engerr.InvalidArgument, "update rejected: SetLocation on content with no metadata file")
		}
	case AddSchema:
		switch {
		case d.table != nil:
			d.table.Schemas.Add(u.SchemaID, u.Schema)
		case d.view != nil:
			d.view.Schemas.Add(u.SchemaID, u.Schema)
		default:
			return engerr.New(engerr.InvalidArgument, "update rejected: AddSchema on non-table/view content")
		}
	case SetCurrentSchema:
		switch {
		case d.table != nil:
			if d.table.Schemas.Get(u.SchemaID) == nil {
				return engerr.New(engerr.InvalidArgument, "update rejected: SetCurrentSchema references unknown schema id %d", u.SchemaID)
			}
			d.table.CurrentSchemaID = u.SchemaID
		case d.view != nil:
			if d.view.Schemas.Get(u.SchemaID) == nil {
				return engerr.New(engerr.InvalidArgument, "update rejected: SetCurrentSchema references unknown schema id %d", u.SchemaID)
			}
		default:
			return engerr.New(engerr.InvalidArgument, "update rejected: SetCurrentSchema on non-table/view content")
		}
	case AddPartitionSpec:
		if d.table == nil {
			return engerr.New(engerr.InvalidArgument, "update rejected: AddPartitionSpec is table-only")
		}
		d.table.PartitionSpecs = append(d.table.PartitionSpecs, u.PartitionSpec)
		for _, f := range u.PartitionSpec.Fields {
			if f.FieldID > d.table.LastPartitionID {
				d.table.LastPartitionID = f.FieldID
			}
		}
	case SetDefaultSpec:
		if d.table == nil {
			return engerr.New(engerr.InvalidArgument, "update rejected: SetDefaultSpec is table-only")
		}
		found := false
		for _, s := range d.table.PartitionSpecs {
			if s.SpecID == u.SchemaID {
				found = true
				break
			}
		}
		if !found {
			return engerr.New(engerr.InvalidArgument, "update rejected: SetDefaultSpec references unknown spec id %d", u.SchemaID)
		}
		d.table.DefaultSpecID = u.SchemaID
	case AddSnapshot:
		if d.table == nil {
			return engerr.New(engerr.InvalidArgument, "update rejected: AddSnapshot is table-only")
		}
		snap := u.Snapshot
		snap.SequenceNumber = d.nextSnapshotSeq
		d.nextSnapshotSeq++
		d.table.Snapshots = append(d.table.Snapshots, snap)
		d.table.CurrentSnapshot = snap.SnapshotID
	case SetProperties:
		if len(u.Properties)%2 != 0 {
			return engerr.New(engerr.InvalidArgument, "update rejected: SetProperties requires an even number of key/value entries")
		}
		props := d.propertiesMap()
		for i := 0; i+1 < len(u.Properties); i += 2 {
			props[u.Properties[i]] = u.Properties[i+1]
		}
	case RemoveProperties:
		props := d.propertiesMap()
		for _, k := range u.Properties {
			delete(props, k)
		}
	default:
		return engerr.New(engerr.InvalidArgument, "update rejected: unknown update kind %d", u.Kind)
	}
	return nil
}

// propertiesMap returns the live properties map for whichever content shape
// this draft holds, initializing it on first use.
func (d *Draft) propertiesMap() map[string]string {
	switch {
	case d.table != nil:
		if d.table.Properties == nil {
			d.table.Properties = map[string]string{}
		}
		return d.table.Properties
	case d.view != nil:
		if d.view.Properties == nil {
			d.view.Properties = map[string]string{}
		}
		return d.view.Properties
	default:
		if d.properties == nil {
			d.properties = map[string]string{}
		}
		return d.properties
	}
}
