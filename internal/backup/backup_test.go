package backup

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	export := []byte("[\n  " + strings.Repeat(`{"locationKey":"40.71,-74.01","temp":12.5},`, 200) + "{}\n]")

	packed := Compress(export)
	if !IsCompressed(packed) {
		t.Fatal("Compress output lacks zstd magic")
	}
	if len(packed) >= len(export) {
		t.Errorf("compressed size %d not smaller than %d", len(packed), len(export))
	}

	got, err := Decompress(packed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, export) {
		t.Error("round trip mismatch")
	}
}

func TestDecompressPlainPassthrough(t *testing.T) {
	plain := []byte(`[{"locationKey":"1.00,2.00"}]`)

	got, err := Decompress(plain)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("Decompress = %q, want input unchanged", got)
	}
}

func TestDecompressCorrupt(t *testing.T) {
	corrupt := append([]byte{0x28, 0xb5, 0x2f, 0xfd}, []byte("garbage")...)
	if _, err := Decompress(corrupt); err == nil {
		t.Error("expected error for corrupt frame")
	}
}
