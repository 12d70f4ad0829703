package rfb

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestFramebufferUpdateWriteToSingleRectangle(t *testing.T) {
	data := bytes.Repeat([]byte{0xAA, 0xBB, 0xCC, 0xDD}, 4)
	rect := RectangleFromFrame(2, 2, data)
	update := FramebufferUpdate{Rectangles: []Rectangle{rect}}

	var buf bytes.Buffer
	if err := update.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got := buf.Bytes()
	if got[0] != msgFramebufferUpdate {
		t.Fatalf("got message type %d, want FramebufferUpdate", got[0])
	}
	if count := binary.BigEndian.Uint16(got[2:4]); count != 1 {
		t.Fatalf("got rectangle count %d, want 1", count)
	}

	header := got[4:16]
	if x := binary.BigEndian.Uint16(header[0:2]); x != 0 {
		t.Fatalf("got x %d, want 0", x)
	}
	if w := binary.BigEndian.Uint16(header[4:6]); w != 2 {
		t.Fatalf("got width %d, want 2", w)
	}
	if enc := int32(binary.BigEndian.Uint32(header[8:12])); EncodingType(enc) != EncodingRaw {
		t.Fatalf("got encoding %d, want Raw", enc)
	}

	payload := got[16:]
	if !bytes.Equal(payload, data) {
		t.Fatal("rectangle payload does not match source data")
	}
}

func TestFramebufferUpdateWriteToMultipleRectangles(t *testing.T) {
	update := FramebufferUpdate{Rectangles: []Rectangle{
		RectangleFromFrame(1, 1, []byte{1, 2, 3, 4}),
		RectangleFromFrame(1, 1, []byte{5, 6, 7, 8}),
	}}

	var buf bytes.Buffer
	if err := update.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if count := binary.BigEndian.Uint16(buf.Bytes()[2:4]); count != 2 {
		t.Fatalf("got rectangle count %d, want 2", count)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, bytes.ErrTooLarge }

func TestFramebufferUpdateWriteToPropagatesWriteError(t *testing.T) {
	update := FramebufferUpdate{Rectangles: []Rectangle{RectangleFromFrame(1, 1, []byte{0, 0, 0, 0})}}
	if err := update.WriteTo(failingWriter{}); err == nil {
		t.Fatal("expected write failure to propagate")
	}
}
