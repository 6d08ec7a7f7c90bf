package wire

import (
	"bytes"
	"testing"
)

func TestValueRoundTrip(t *testing.T) {
	payload := []byte(`{"id":"1"}`)
	enc := EncodeValue(payload)
	got, err := DecodeValue(enc)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %q vs %q", got, payload)
	}
}

func TestValueEmptyPayload(t *testing.T) {
	enc := EncodeValue(nil)
	got, err := DecodeValue(enc)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %q", got)
	}
}

// DecodeValue must reject trailing bytes (strict framing).
func TestValueRejectsTrailing(t *testing.T) {
	b := EncodeValue([]byte("x"))
	b = append(b, 0xDE, 0xAD)
	if _, err := DecodeValue(b); err == nil {
		t.Fatalf("DecodeValue should reject trailing bytes")
	}
}

func TestValueRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("short"),
		[]byte("not-wire-format-at-all"),
		append([]byte{'C', 'G', 'R', 'D', 99, 1}, make([]byte, 4)...),  // bad version
		append([]byte{'C', 'G', 'R', 'D', 1, 42}, make([]byte, 4)...),  // bad kind
		append([]byte{'X', 'X', 'X', 'X', 1, 1}, make([]byte, 4)...),   // bad magic
	}
	for i, b := range cases {
		if _, err := DecodeValue(b); err == nil {
			t.Fatalf("case %d: DecodeValue should fail on %q", i, b)
		}
	}
}

func TestValueRejectsTruncated(t *testing.T) {
	enc := EncodeValue([]byte("payload-bytes"))
	if _, err := DecodeValue(enc[:len(enc)-3]); err == nil {
		t.Fatalf("DecodeValue should reject truncated frame")
	}
}
