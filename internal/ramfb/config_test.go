package ramfb

import (
	"encoding/binary"
	"testing"
)

func TestAccessWriteAndReadBack(t *testing.T) {
	var r RegisterFile

	var widthBuf [4]byte
	binary.BigEndian.PutUint32(widthBuf[:], 800)
	if err := r.Access(16, 4, Write, widthBuf[:]); err != nil {
		t.Fatalf("write width: %v", err)
	}

	var out [4]byte
	if err := r.Access(16, 4, Read, out[:]); err != nil {
		t.Fatalf("read width: %v", err)
	}
	if got := binary.BigEndian.Uint32(out[:]); got != 800 {
		t.Fatalf("width = %d, want 800", got)
	}
	if r.Config().Width != 800 {
		t.Fatalf("Config().Width = %d, want 800", r.Config().Width)
	}
}

func TestAccessOutOfBounds(t *testing.T) {
	var r RegisterFile
	buf := make([]byte, 4)

	if err := r.Access(EntrySize, 1, Write, buf); err == nil {
		t.Fatal("expected error for offset == EntrySize")
	}
	if err := r.Access(EntrySize-2, 4, Write, buf); err == nil {
		t.Fatal("expected error for offset+len > EntrySize")
	}
	if err := r.Access(0, EntrySize, Read, make([]byte, EntrySize)); err != nil {
		t.Fatalf("full-width read should succeed: %v", err)
	}
}

func TestAccessPartialFieldWritePreservesOtherBytes(t *testing.T) {
	var r RegisterFile

	full := make([]byte, 8)
	binary.BigEndian.PutUint64(full, 0x0102030405060708)
	if err := r.Access(0, 8, Write, full); err != nil {
		t.Fatalf("seed addr: %v", err)
	}

	// Overwrite only the low byte of addr.
	if err := r.Access(7, 1, Write, []byte{0xff}); err != nil {
		t.Fatalf("partial write: %v", err)
	}

	want := uint64(0x01020304050607ff)
	if got := r.Config().Addr; got != want {
		t.Fatalf("Addr = 0x%x, want 0x%x", got, want)
	}
}

func TestAccessStraddlesRegisterBoundary(t *testing.T) {
	var r RegisterFile

	// Bytes [6,14) straddle addr (offset 0-8), fourcc (offset 8-12) and the
	// first two bytes of flags (offset 12-16).
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = byte(i + 1)
	}
	if err := r.Access(6, 8, Write, buf); err != nil {
		t.Fatalf("straddling write: %v", err)
	}

	cfg := r.Config()
	if lo := cfg.Addr & 0xffff; lo != 0x0102 {
		t.Fatalf("addr low bytes = 0x%x, want 0x0102", lo)
	}
	if hi := cfg.FourCC >> 16; hi != 0x0304 {
		t.Fatalf("fourcc high bytes = 0x%x, want 0x0304", hi)
	}
}

func TestDefaultConfigIsZero(t *testing.T) {
	var r RegisterFile
	c := r.Config()
	if c != (Config{}) {
		t.Fatalf("default config = %+v, want zero value", c)
	}
}
