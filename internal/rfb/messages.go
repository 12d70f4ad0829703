package rfb

import (
	"encoding/binary"
	"io"
)

// ClientMessageType is the first byte of every client-to-server message
// (RFB §7.5), exported so callers can dispatch on ClientMessage.Type.
type ClientMessageType uint8

const (
	MsgSetPixelFormat           ClientMessageType = 0
	MsgSetEncodings             ClientMessageType = 2
	MsgFramebufferUpdateRequest ClientMessageType = 3
	MsgKeyEvent                 ClientMessageType = 4
	MsgPointerEvent             ClientMessageType = 5
	MsgClientCutText            ClientMessageType = 6
)

// ClientMessage is the decoded form of one client-to-server RFB message;
// exactly one of the typed fields below is meaningful, selected by Type.
type ClientMessage struct {
	Type ClientMessageType

	SetPixelFormat           PixelFormat
	SetEncodings             []EncodingType
	FramebufferUpdateRequest FramebufferUpdateRequest
	KeyEvent                 KeyEvent
	PointerEvent             PointerEvent
	ClientCutText            []byte
}

// FramebufferUpdateRequest is the client's request for a single update
// (spec §4.4.4; incremental vs. full is not distinguished by this server).
type FramebufferUpdateRequest struct {
	Incremental bool
	Position    Position
	Resolution  Resolution
}

// KeyEvent is a decoded key transition, forwarded to the keyboard
// collaborator verbatim (spec §4.4.4).
type KeyEvent struct {
	Down bool
	Key  uint32
}

// PointerEvent is a decoded pointer message; this server accepts, logs, and
// discards it (spec §4.4.4, Non-goals: pointer/tablet input).
type PointerEvent struct {
	ButtonMask uint8
	Position   Position
}

// maxCutText bounds ClientCutText payloads this server will read before
// giving up; the message is ignored regardless, but an unbounded length
// prefix from a hostile or corrupt client must not be trusted.
const maxCutText = 1 << 20

// DecodeClientMessage reads exactly one client-to-server message from r.
// io.EOF is returned verbatim so callers can distinguish a clean
// disconnect from a mid-message read failure.
func DecodeClientMessage(r io.Reader) (ClientMessage, error) {
	var typeByte [1]byte
	if _, err := io.ReadFull(r, typeByte[:]); err != nil {
		if err == io.EOF {
			return ClientMessage{}, io.EOF
		}
		return ClientMessage{}, wrapProtocol("reading message type: %v", err)
	}

	switch ClientMessageType(typeByte[0]) {
	case MsgSetPixelFormat:
		return decodeSetPixelFormat(r)
	case MsgSetEncodings:
		return decodeSetEncodings(r)
	case MsgFramebufferUpdateRequest:
		return decodeFramebufferUpdateRequest(r)
	case MsgKeyEvent:
		return decodeKeyEvent(r)
	case MsgPointerEvent:
		return decodePointerEvent(r)
	case MsgClientCutText:
		return decodeClientCutText(r)
	default:
		return ClientMessage{}, wrapProtocol("unrecognized client message type %d", typeByte[0])
	}
}

func decodeSetPixelFormat(r io.Reader) (ClientMessage, error) {
	var body [19]byte // 3 padding + 16-byte PIXEL_FORMAT
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return ClientMessage{}, wrapProtocol("reading SetPixelFormat: %v", err)
	}
	pf := decodePixelFormat(body[3:])
	return ClientMessage{Type: MsgSetPixelFormat, SetPixelFormat: pf}, nil
}

func decodeSetEncodings(r io.Reader) (ClientMessage, error) {
	var header [3]byte // 1 padding + u16 count
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return ClientMessage{}, wrapProtocol("reading SetEncodings header: %v", err)
	}
	count := binary.BigEndian.Uint16(header[1:3])

	encodings := make([]EncodingType, count)
	var raw [4]byte
	for i := range encodings {
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return ClientMessage{}, wrapProtocol("reading SetEncodings entry %d: %v", i, err)
		}
		encodings[i] = EncodingType(binary.BigEndian.Uint32(raw[:]))
	}
	return ClientMessage{Type: MsgSetEncodings, SetEncodings: encodings}, nil
}

func decodeFramebufferUpdateRequest(r io.Reader) (ClientMessage, error) {
	var body [9]byte // incremental + x + y + w + h
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return ClientMessage{}, wrapProtocol("reading FramebufferUpdateRequest: %v", err)
	}
	req := FramebufferUpdateRequest{
		Incremental: body[0] != 0,
		Position: Position{
			X: binary.BigEndian.Uint16(body[1:3]),
			Y: binary.BigEndian.Uint16(body[3:5]),
		},
		Resolution: Resolution{
			Width:  binary.BigEndian.Uint16(body[5:7]),
			Height: binary.BigEndian.Uint16(body[7:9]),
		},
	}
	return ClientMessage{Type: MsgFramebufferUpdateRequest, FramebufferUpdateRequest: req}, nil
}

func decodeKeyEvent(r io.Reader) (ClientMessage, error) {
	var body [7]byte // down-flag + 2 padding + u32 key
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return ClientMessage{}, wrapProtocol("reading KeyEvent: %v", err)
	}
	ev := KeyEvent{
		Down: body[0] != 0,
		Key:  binary.BigEndian.Uint32(body[3:7]),
	}
	return ClientMessage{Type: MsgKeyEvent, KeyEvent: ev}, nil
}

func decodePointerEvent(r io.Reader) (ClientMessage, error) {
	var body [5]byte // button-mask + x + y
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return ClientMessage{}, wrapProtocol("reading PointerEvent: %v", err)
	}
	ev := PointerEvent{
		ButtonMask: body[0],
		Position: Position{
			X: binary.BigEndian.Uint16(body[1:3]),
			Y: binary.BigEndian.Uint16(body[3:5]),
		},
	}
	return ClientMessage{Type: MsgPointerEvent, PointerEvent: ev}, nil
}

func decodeClientCutText(r io.Reader) (ClientMessage, error) {
	var header [7]byte // 3 padding + u32 length
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return ClientMessage{}, wrapProtocol("reading ClientCutText header: %v", err)
	}
	length := binary.BigEndian.Uint32(header[3:7])
	if length > maxCutText {
		return ClientMessage{}, wrapProtocol("ClientCutText length %d exceeds limit", length)
	}
	text := make([]byte, length)
	if _, err := io.ReadFull(r, text); err != nil {
		return ClientMessage{}, wrapProtocol("reading ClientCutText body: %v", err)
	}
	return ClientMessage{Type: MsgClientCutText, ClientCutText: text}, nil
}

func decodePixelFormat(b []byte) PixelFormat {
	_ = b[12] // bounds check hint; only the first 13 bytes of the 16-byte PIXEL_FORMAT are read, the last 3 are padding
	return PixelFormat{
		BitsPerPixel: b[0],
		Depth:        b[1],
		BigEndian:    b[2] != 0,
		TrueColor:    b[3] != 0,
		RedMax:       binary.BigEndian.Uint16(b[4:6]),
		GreenMax:     binary.BigEndian.Uint16(b[6:8]),
		BlueMax:      binary.BigEndian.Uint16(b[8:10]),
		RedShift:     b[10],
		GreenShift:   b[11],
		BlueShift:    b[12],
	}
}
