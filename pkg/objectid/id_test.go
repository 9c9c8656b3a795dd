package objectid

import "testing"

func TestHashDeterministic(t *testing.T) {
	a := Hash("Commit", []byte("payload"))
	b := Hash("Commit", []byte("payload"))
	if a != b {
		t.Fatalf("Hash is not deterministic: %s != %s", a, b)
	}
}

func TestHashDomainTagSeparation(t *testing.T) {
	a := Hash("Commit", []byte("payload"))
	b := Hash("Content", []byte("payload"))
	if a == b {
		t.Fatal("different domain tags produced the same ID for identical payload bytes")
	}
}

func TestDerivedHashPureFunction(t *testing.T) {
	// Same (metadataLocation, snapshotId|versionId) pair must always derive the same ID.
	a := DerivedHash("ContentSnapshot", []byte("warehouse://db/t1/v0.json"), []byte("42"))
	b := DerivedHash("ContentSnapshot", []byte("warehouse://db/t1/v0.json"), []byte("42"))
	if a != b {
		t.Fatal("DerivedHash is not a pure function of its fields")
	}

	c := DerivedHash("ContentSnapshot", []byte("warehouse://db/t1/v1.json"), []byte("42"))
	if a == c {
		t.Fatal("DerivedHash collided across distinct metadata locations")
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	id := Hash("Commit", []byte("hello"))
	s := id.String()
	got, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != id {
		t.Fatalf("round trip mismatch: %s != %s", got, id)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("not-hex!!"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
	if _, err := Parse("ab"); err == nil {
		t.Fatal("expected error for short input")
	}
}

func TestCompareOrdering(t *testing.T) {
	var a, b ID
	a[0] = 1
	b[0] = 2
	if !a.Less(b) {
		t.Fatal("expected a < b")
	}
	if b.Less(a) {
		t.Fatal("expected b !< a")
	}
	if a.Compare(a) != 0 {
		t.Fatal("expected equal IDs to compare 0")
	}
}

func TestIsNil(t *testing.T) {
	var id ID
	if !id.IsNil() {
		t.Fatal("zero ID should be nil")
	}
	id2 := Hash("x", []byte("y"))
	if id2.IsNil() {
		t.Fatal("hashed ID should not be nil")
	}
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	id := Hash("Commit", []byte("p"))
	enc := NewEncoder().
		String("db.t1").
		Uint8(2).
		Uint64(1234567890).
		ID(id).
		Bool(true).
		Len(3)
	b := enc.Finish()

	dec := NewDecoder(b)
	s, err := dec.String()
	if err != nil || s != "db.t1" {
		t.Fatalf("String: %q, %v", s, err)
	}
	tag, err := dec.Uint8()
	if err != nil || tag != 2 {
		t.Fatalf("Uint8: %d, %v", tag, err)
	}
	ts, err := dec.Uint64()
	if err != nil || ts != 1234567890 {
		t.Fatalf("Uint64: %d, %v", ts, err)
	}
	gotID, err := dec.ID()
	if err != nil || gotID != id {
		t.Fatalf("ID: %v, %v", gotID, err)
	}
	flag, err := dec.Bool()
	if err != nil || !flag {
		t.Fatalf("Bool: %v, %v", flag, err)
	}
	n, err := dec.Len()
	if err != nil || n != 3 {
		t.Fatalf("Len: %d, %v", n, err)
	}
	if !dec.Done() {
		t.Fatal("expected decoder to be exhausted")
	}
}

func TestDecoderTruncated(t *testing.T) {
	enc := NewEncoder().String("hello")
	b := enc.Finish()
	dec := NewDecoder(b[:2])
	if _, err := dec.String(); err == nil {
		t.Fatal("expected error decoding truncated input")
	}
}
