package rfb

import (
	"encoding/binary"
	"io"
)

// msgFramebufferUpdate is the message-type byte of FramebufferUpdate (RFB
// §7.6), the only server-to-client message this server emits (spec §6: no
// Bell, ServerCutText, or color-map updates).
const msgFramebufferUpdate uint8 = 0

// Rectangle is one rectangle of a FramebufferUpdate, always Raw-encoded by
// this server regardless of what the client advertised in SetEncodings
// (spec §4.4.6).
type Rectangle struct {
	Position   Position
	Resolution Resolution
	Data       []byte
}

// FramebufferUpdate is a complete server-to-client update message: this
// server always sends exactly one rectangle (spec §4.4.6).
type FramebufferUpdate struct {
	Rectangles []Rectangle
}

// WriteTo encodes and writes the update to w. Callers are responsible for
// flushing/committing the write; a write failure here terminates the
// calling session (spec §4.4.6, §7).
func (u FramebufferUpdate) WriteTo(w io.Writer) error {
	header := make([]byte, 4)
	header[0] = msgFramebufferUpdate
	// header[1] is padding.
	binary.BigEndian.PutUint16(header[2:4], uint16(len(u.Rectangles)))
	if _, err := w.Write(header); err != nil {
		return wrapProtocol("writing FramebufferUpdate header: %v", err)
	}

	for _, rect := range u.Rectangles {
		if err := rect.writeTo(w); err != nil {
			return err
		}
	}
	return nil
}

func (r Rectangle) writeTo(w io.Writer) error {
	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[0:2], r.Position.X)
	binary.BigEndian.PutUint16(header[2:4], r.Position.Y)
	binary.BigEndian.PutUint16(header[4:6], r.Resolution.Width)
	binary.BigEndian.PutUint16(header[6:8], r.Resolution.Height)
	binary.BigEndian.PutUint32(header[8:12], uint32(EncodingRaw))
	if _, err := w.Write(header); err != nil {
		return wrapProtocol("writing rectangle header: %v", err)
	}
	if _, err := w.Write(r.Data); err != nil {
		return wrapProtocol("writing rectangle data: %v", err)
	}
	return nil
}

// RectangleFromFrame builds the single full-framebuffer Raw rectangle this
// server sends for every FramebufferUpdate (spec §4.4.6).
func RectangleFromFrame(width, height uint16, data []byte) Rectangle {
	return Rectangle{
		Position:   Position{X: 0, Y: 0},
		Resolution: Resolution{Width: width, Height: height},
		Data:       data,
	}
}
