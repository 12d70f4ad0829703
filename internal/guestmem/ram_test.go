package guestmem

import (
	"bytes"
	"testing"
)

func TestReadableRegionRoundTrip(t *testing.T) {
	ram := New(0x1000, 4096)
	pattern := bytes.Repeat([]byte{0xAB}, 256)
	if err := ram.WriteAt(0x1100, pattern); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	mapping, ok := ram.ReadableRegion(0x1100, 256)
	if !ok {
		t.Fatal("ReadableRegion reported the region invalid")
	}
	got := make([]byte, 256)
	if err := mapping.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, pattern) {
		t.Fatal("round-tripped data mismatch")
	}
}

func TestReadableRegionRejectsOutOfBounds(t *testing.T) {
	ram := New(0x1000, 128)
	if _, ok := ram.ReadableRegion(0x1000, 256); ok {
		t.Fatal("expected region beyond buffer end to be invalid")
	}
	if _, ok := ram.ReadableRegion(0, 16); ok {
		t.Fatal("expected address below base to be invalid")
	}
}

func TestWriteAtRejectsOutOfBounds(t *testing.T) {
	ram := New(0x1000, 16)
	if err := ram.WriteAt(0x1000, make([]byte, 32)); err == nil {
		t.Fatal("expected error writing past end of buffer")
	}
}
