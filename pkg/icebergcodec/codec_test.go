package icebergcodec

import (
	"testing"

	"github.com/apache/iceberg-go"
)

func sampleSchema(id int) *iceberg.Schema {
	return iceberg.NewSchema(id,
		iceberg.NestedField{ID: 1, Name: "id", Type: iceberg.PrimitiveTypes.Int64, Required: true},
		iceberg.NestedField{ID: 2, Name: "name", Type: iceberg.PrimitiveTypes.String},
	)
}

func TestEncodeDecodeTableRoundTrip(t *testing.T) {
	schemas := NewSchemaSet()
	schemas.Add(0, sampleSchema(0))

	draft := &TableMetadataDraft{
		FormatVersion:   2,
		TableUUID:       "11111111-1111-1111-1111-111111111111",
		Location:        "s3://wh/db/t1",
		Schemas:         schemas,
		CurrentSchemaID: 0,
		DefaultSpecID:   0,
		Properties:      map[string]string{"nessie.catalog.content-id": "abc"},
	}

	var codec JSONCodec
	data, err := codec.EncodeTable(draft)
	if err != nil {
		t.Fatalf("EncodeTable: %v", err)
	}

	decoded, err := codec.DecodeTable(data)
	if err != nil {
		t.Fatalf("DecodeTable: %v", err)
	}
	if decoded.Location != draft.Location || decoded.TableUUID != draft.TableUUID {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if decoded.Schemas.Get(0) == nil {
		t.Fatalf("expected schema 0 to survive round trip")
	}
	if decoded.Properties["nessie.catalog.content-id"] != "abc" {
		t.Fatalf("expected properties to survive round trip, got %+v", decoded.Properties)
	}
}

func TestEncodeDecodeViewRoundTrip(t *testing.T) {
	schemas := NewSchemaSet()
	schemas.Add(0, sampleSchema(0))

	draft := &ViewMetadataDraft{
		FormatVersion:    1,
		ViewUUID:         "22222222-2222-2222-2222-222222222222",
		Location:         "s3://wh/db/v1",
		Schemas:          schemas,
		CurrentVersionID: 1,
		Versions: []ViewVersion{
			{
				VersionID: 1,
				SchemaID:  0,
				Representations: []ViewRepresentation{
					{Type: "sql", SQL: "SELECT 1", Dialect: "spark"},
				},
			},
		},
	}

	var codec JSONCodec
	data, err := codec.EncodeView(draft)
	if err != nil {
		t.Fatalf("EncodeView: %v", err)
	}
	decoded, err := codec.DecodeView(data)
	if err != nil {
		t.Fatalf("DecodeView: %v", err)
	}
	if len(decoded.Versions) != 1 || decoded.Versions[0].Representations[0].SQL != "SELECT 1" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}
