// Package rfb implements the subset of the RFB (Remote Framebuffer, "VNC")
// protocol, version 3.8, that this server needs: the initial handshake, the
// client-to-server message set, and Raw-encoded FramebufferUpdate replies.
//
// This is the wire-format codec the rest of the module treats as an external
// collaborator (spec §1); it is implemented here because nothing else in the
// surrounding corpus supplies one.
package rfb

import "fmt"

// ProtoVersion identifies the RFB protocol version line exchanged at the
// start of the handshake.
type ProtoVersion string

// Rfb38 is the only version this server speaks.
const Rfb38 ProtoVersion = "RFB 003.008\n"

// SecurityType is a security handshake type code (RFB §7.1.2).
type SecurityType uint8

const (
	SecurityTypeNone              SecurityType = 1
	SecurityTypeVncAuthentication SecurityType = 2
)

// EncodingType names an RFB rectangle encoding.
type EncodingType int32

const (
	EncodingRaw EncodingType = 0
)

// Resolution is a framebuffer width/height pair, as carried in ServerInit and
// Rectangle headers.
type Resolution struct {
	Width  uint16
	Height uint16
}

// Position is an (x, y) rectangle origin.
type Position struct {
	X uint16
	Y uint16
}

// PixelFormat mirrors the 16-byte RFB PIXEL_FORMAT structure.
type PixelFormat struct {
	BitsPerPixel uint8
	Depth        uint8
	BigEndian    bool
	TrueColor    bool
	RedMax       uint16
	GreenMax     uint16
	BlueMax      uint16
	RedShift     uint8
	GreenShift   uint8
	BlueShift    uint8
}

// XR24PixelFormat is the PixelFormat for FourCC XR24: little-endian 32bpp
// xRGB, depth 24 (spec §6).
var XR24PixelFormat = PixelFormat{
	BitsPerPixel: 32,
	Depth:        24,
	BigEndian:    false,
	TrueColor:    true,
	RedMax:       255,
	GreenMax:     255,
	BlueMax:      255,
	RedShift:     16,
	GreenShift:   8,
	BlueShift:    0,
}

// FourCCToPixelFormat maps a DRM-style FourCC code to its RFB PixelFormat.
// Only XR24 is supported by this server (spec §6); anything else is
// reported as unsupported.
func FourCCToPixelFormat(fourcc uint32) (PixelFormat, error) {
	const xr24 = 0x34325258
	if fourcc != xr24 {
		return PixelFormat{}, fmt.Errorf("rfb: unsupported FourCC 0x%08x", fourcc)
	}
	return XR24PixelFormat, nil
}
