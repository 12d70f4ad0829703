package rfb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestDecodeKeyEvent(t *testing.T) {
	buf := []byte{byte(MsgKeyEvent), 1, 0, 0, 0, 0, 0, 0x41}
	msg, err := DecodeClientMessage(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if msg.Type != MsgKeyEvent {
		t.Fatalf("got type %d, want KeyEvent", msg.Type)
	}
	if !msg.KeyEvent.Down || msg.KeyEvent.Key != 0x41 {
		t.Fatalf("got %+v, want Down=true Key=0x41", msg.KeyEvent)
	}
}

func TestDecodePointerEvent(t *testing.T) {
	buf := []byte{byte(MsgPointerEvent), 0x07, 0x00, 0x64, 0x00, 0xC8}
	msg, err := DecodeClientMessage(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if msg.PointerEvent.ButtonMask != 0x07 {
		t.Fatalf("got button mask %d, want 7", msg.PointerEvent.ButtonMask)
	}
	if msg.PointerEvent.Position != (Position{X: 0x64, Y: 0xC8}) {
		t.Fatalf("got position %+v", msg.PointerEvent.Position)
	}
}

func TestDecodeFramebufferUpdateRequest(t *testing.T) {
	buf := []byte{byte(MsgFramebufferUpdateRequest), 1, 0, 0, 0, 0, 0x03, 0x20, 0x02, 0x58}
	msg, err := DecodeClientMessage(bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	req := msg.FramebufferUpdateRequest
	if !req.Incremental {
		t.Fatal("expected incremental flag set")
	}
	if req.Resolution != (Resolution{Width: 800, Height: 600}) {
		t.Fatalf("got resolution %+v, want 800x600", req.Resolution)
	}
}

func TestDecodeSetEncodings(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(MsgSetEncodings))
	buf.WriteByte(0) // padding
	binary.Write(&buf, binary.BigEndian, uint16(2))
	binary.Write(&buf, binary.BigEndian, int32(0))
	binary.Write(&buf, binary.BigEndian, int32(-239)) // some tag this server won't recognize

	msg, err := DecodeClientMessage(&buf)
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if len(msg.SetEncodings) != 2 || msg.SetEncodings[0] != EncodingRaw {
		t.Fatalf("got %+v", msg.SetEncodings)
	}
}

func TestDecodeClientCutText(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(MsgClientCutText))
	buf.Write([]byte{0, 0, 0})
	binary.Write(&buf, binary.BigEndian, uint32(5))
	buf.WriteString("hello")

	msg, err := DecodeClientMessage(&buf)
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if string(msg.ClientCutText) != "hello" {
		t.Fatalf("got %q, want %q", msg.ClientCutText, "hello")
	}
}

func TestDecodeClientCutTextRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(MsgClientCutText))
	buf.Write([]byte{0, 0, 0})
	binary.Write(&buf, binary.BigEndian, uint32(maxCutText+1))

	if _, err := DecodeClientMessage(&buf); err == nil {
		t.Fatal("expected oversized ClientCutText length to be rejected")
	}
}

func TestDecodeSetPixelFormat(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(byte(MsgSetPixelFormat))
	buf.Write([]byte{0, 0, 0})
	pf := make([]byte, 16)
	encodePixelFormat(pf, XR24PixelFormat)
	buf.Write(pf)

	msg, err := DecodeClientMessage(&buf)
	if err != nil {
		t.Fatalf("DecodeClientMessage: %v", err)
	}
	if msg.SetPixelFormat != XR24PixelFormat {
		t.Fatalf("got %+v, want %+v", msg.SetPixelFormat, XR24PixelFormat)
	}
}

func TestDecodeClientMessageEOFOnCleanDisconnect(t *testing.T) {
	_, err := DecodeClientMessage(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestDecodeClientMessageRejectsUnknownType(t *testing.T) {
	_, err := DecodeClientMessage(bytes.NewReader([]byte{0xFF}))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("got %v, want ErrProtocol", err)
	}
}

func TestDecodeClientMessageWrapsTruncatedReadAsProtocolError(t *testing.T) {
	// A KeyEvent header promises 7 more bytes but only 1 is present.
	_, err := DecodeClientMessage(bytes.NewReader([]byte{byte(MsgKeyEvent), 1}))
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("got %v, want ErrProtocol", err)
	}
}
