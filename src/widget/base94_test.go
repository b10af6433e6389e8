package widget

import (
	"bytes"
	"testing"
)

// TestBase94RoundTripAllBytes covers I5: every byte 0x00-0xFF round-trips
// through Encode/Decode, and the encoded length is always 2x the input.
func TestBase94RoundTripAllBytes(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}

	encoded := Encode(data)
	if len(encoded) != 2*len(data) {
		t.Fatalf("Encode length = %d, want %d", len(encoded), 2*len(data))
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("round trip mismatch: got %v, want %v", decoded, data)
	}
}

func TestBase94EmptyPayload(t *testing.T) {
	if Encode(nil) != "" {
		t.Errorf("Encode(nil) should be empty string")
	}
	decoded, err := Decode("")
	if err != nil || len(decoded) != 0 {
		t.Errorf("Decode(\"\") = %v, %v; want empty, nil", decoded, err)
	}
}

func TestBase94DecodeRejectsOddLength(t *testing.T) {
	if _, err := Decode("!!!"); err == nil {
		t.Errorf("Decode should reject odd-length input")
	}
}

func TestBase94DecodeRejectsOutOfRangeByte(t *testing.T) {
	if _, err := Decode("\x00!"); err == nil {
		t.Errorf("Decode should reject bytes outside '!'..'~'")
	}
}
