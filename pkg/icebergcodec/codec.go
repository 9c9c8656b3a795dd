package icebergcodec

import (
	"encoding/json"
	"fmt"

	"github.com/apache/iceberg-go"
)

// Codec serializes and deserializes table/view metadata drafts to/from
// the Iceberg metadata JSON format. spec.md's design notes keep this
// behind an interface so another table format could be added later
// without pkg/catalog depending on Iceberg internals directly.
type Codec interface {
	EncodeTable(draft *TableMetadataDraft) ([]byte, error)
	DecodeTable(data []byte) (*TableMetadataDraft, error)
	EncodeView(draft *ViewMetadataDraft) ([]byte, error)
	DecodeView(data []byte) (*ViewMetadataDraft, error)
}

// JSONCodec is the default Codec, built directly on encoding/json and
// iceberg-go's own iceberg.Schema marshaling.
type JSONCodec struct{}

// tableWire is TableMetadataDraft's JSON shape with schemas flattened to
// a plain array, matching the published Iceberg metadata format.
type tableWire struct {
	TableMetadataDraft
	Schemas []*iceberg.Schema `json:"schemas"`
}

func (JSONCodec) EncodeTable(draft *TableMetadataDraft) ([]byte, error) {
	if draft == nil {
		return nil, fmt.Errorf("icebergcodec: nil table draft")
	}
	wire := tableWire{TableMetadataDraft: *draft}
	if draft.Schemas != nil {
		wire.Schemas = draft.Schemas.Ordered()
	}
	return json.MarshalIndent(wire, "", "  ")
}

func (JSONCodec) DecodeTable(data []byte) (*TableMetadataDraft, error) {
	var wire tableWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("icebergcodec: decode table metadata: %w", err)
	}
	draft := wire.TableMetadataDraft
	draft.Schemas = NewSchemaSet()
	for _, s := range wire.Schemas {
		if s != nil {
			draft.Schemas.Add(s.ID, s)
		}
	}
	return &draft, nil
}

type viewWire struct {
	ViewMetadataDraft
	Schemas []*iceberg.Schema `json:"schemas"`
}

func (JSONCodec) EncodeView(draft *ViewMetadataDraft) ([]byte, error) {
	if draft == nil {
		return nil, fmt.Errorf("icebergcodec: nil view draft")
	}
	wire := viewWire{ViewMetadataDraft: *draft}
	if draft.Schemas != nil {
		wire.Schemas = draft.Schemas.Ordered()
	}
	return json.MarshalIndent(wire, "", "  ")
}

func (JSONCodec) DecodeView(data []byte) (*ViewMetadataDraft, error) {
	var wire viewWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("icebergcodec: decode view metadata: %w", err)
	}
	draft := wire.ViewMetadataDraft
	draft.Schemas = NewSchemaSet()
	for _, s := range wire.Schemas {
		if s != nil {
			draft.Schemas.Add(s.ID, s)
		}
	}
	return &draft, nil
}

var _ Codec = JSONCodec{}
