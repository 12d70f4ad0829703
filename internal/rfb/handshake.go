package rfb

import (
	"encoding/binary"
	"io"
)

// InitParams is everything the server side of the handshake needs to
// advertise (spec §4.4.1, §6).
type InitParams struct {
	Version      ProtoVersion
	SecurityTypes []SecurityType
	Name         string
	Resolution   Resolution
	Format       PixelFormat
}

// Initialize runs the server side of the RFB 3.8 handshake to completion:
// protocol version exchange, security negotiation, and ServerInit/ClientInit.
//
// Per the open question in spec §9, a client that selects VncAuthentication
// is disconnected with ErrInit: this server advertises the type (some
// clients refuse to proceed without seeing it offered) but never implements
// it.
func Initialize(conn io.ReadWriter, params InitParams) error {
	if _, err := conn.Write([]byte(params.Version)); err != nil {
		return wrapInit("writing protocol version: %v", err)
	}

	var clientVersion [12]byte
	if _, err := io.ReadFull(conn, clientVersion[:]); err != nil {
		return wrapInit("reading client protocol version: %v", err)
	}

	secHeader := make([]byte, 1+len(params.SecurityTypes))
	secHeader[0] = byte(len(params.SecurityTypes))
	for i, t := range params.SecurityTypes {
		secHeader[1+i] = byte(t)
	}
	if _, err := conn.Write(secHeader); err != nil {
		return wrapInit("writing security types: %v", err)
	}

	var chosen [1]byte
	if _, err := io.ReadFull(conn, chosen[:]); err != nil {
		return wrapInit("reading chosen security type: %v", err)
	}

	switch SecurityType(chosen[0]) {
	case SecurityTypeNone:
		if err := writeSecurityResultOK(conn); err != nil {
			return err
		}
	case SecurityTypeVncAuthentication:
		return wrapInit("client selected VncAuthentication, which this server does not implement")
	default:
		return wrapInit("client selected unsupported security type %d", chosen[0])
	}

	if err := writeServerInit(conn, params); err != nil {
		return err
	}

	var clientInit [1]byte
	if _, err := io.ReadFull(conn, clientInit[:]); err != nil {
		return wrapInit("reading ClientInit: %v", err)
	}

	return nil
}

func writeSecurityResultOK(w io.Writer) error {
	var result [4]byte // all-zero: OK
	if _, err := w.Write(result[:]); err != nil {
		return wrapInit("writing SecurityResult: %v", err)
	}
	return nil
}

func writeServerInit(w io.Writer, params InitParams) error {
	buf := make([]byte, 2+2+16+4)
	binary.BigEndian.PutUint16(buf[0:2], params.Resolution.Width)
	binary.BigEndian.PutUint16(buf[2:4], params.Resolution.Height)
	encodePixelFormat(buf[4:20], params.Format)
	binary.BigEndian.PutUint32(buf[20:24], uint32(len(params.Name)))
	buf = append(buf, []byte(params.Name)...)

	if _, err := w.Write(buf); err != nil {
		return wrapInit("writing ServerInit: %v", err)
	}
	return nil
}

// encodePixelFormat packs a PixelFormat into the 16-byte wire form (3 bytes
// of trailing padding included).
func encodePixelFormat(b []byte, pf PixelFormat) {
	_ = b[15]
	b[0] = pf.BitsPerPixel
	b[1] = pf.Depth
	b[2] = boolByte(pf.BigEndian)
	b[3] = boolByte(pf.TrueColor)
	binary.BigEndian.PutUint16(b[4:6], pf.RedMax)
	binary.BigEndian.PutUint16(b[6:8], pf.GreenMax)
	binary.BigEndian.PutUint16(b[8:10], pf.BlueMax)
	b[10] = pf.RedShift
	b[11] = pf.GreenShift
	b[12] = pf.BlueShift
	b[13], b[14], b[15] = 0, 0, 0
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
