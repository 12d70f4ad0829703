// Package ramfb implements a RAM-based framebuffer device in the style of
// QEMU's "ramfb": guest firmware describes a linear framebuffer by writing a
// small configuration block through an fw_cfg-style entry, and the host
// extracts frames from the guest memory region the block describes.
package ramfb

import (
	"encoding/binary"
	"fmt"
)

// EntrySize is the size in bytes of the packed fw_cfg "etc/ramfb" entry.
const EntrySize = 28

// Direction selects whether an Access is a read or a write.
type Direction int

const (
	// Read copies the current register value into buf.
	Read Direction = iota
	// Write applies buf to the covered register(s).
	Write
)

// reg identifies one of the six packed fields backing the fw_cfg entry.
type reg struct {
	name string
	off  int
	size int
}

// regLayout mirrors the wire layout from spec §6: six fields, addr first,
// packed with no padding, all big-endian on the wire.
var regLayout = []reg{
	{"addr", 0, 8},
	{"fourcc", 8, 4},
	{"flags", 12, 4},
	{"width", 16, 4},
	{"height", 20, 4},
	{"stride", 24, 4},
}

// Config is the host-endian projection of the 28-byte packed register block.
type Config struct {
	Addr   uint64
	FourCC uint32
	Flags  uint32
	Width  uint32
	Height uint32
	Stride uint32
}

// RegisterFile is the packed big-endian register bank mirroring the
// fw_cfg "etc/ramfb" entry (component C1). It is not safe for concurrent use;
// callers serialize access (see Device, which wraps it with a mutex).
type RegisterFile struct {
	config Config
}

// Access performs a single read or write against the packed register block.
// Write rule: offset/len out of [0, EntrySize) is rejected; writes that
// straddle register boundaries are applied as a sequence of per-register
// sub-writes. Read rule: any in-range read returns the live field value,
// big-endian, regardless of how the read is split across registers.
func (r *RegisterFile) Access(offset, length int, dir Direction, buf []byte) error {
	if offset < 0 || length < 0 || len(buf) < length {
		return fmt.Errorf("ramfb: invalid access buffer for offset=%d len=%d", offset, length)
	}
	if offset >= EntrySize || offset+length > EntrySize {
		return fmt.Errorf("ramfb: access out of bounds: offset=%d len=%d entry=%d", offset, length, EntrySize)
	}

	end := offset + length
	for _, f := range regLayout {
		regEnd := f.off + f.size
		// Does this sub-write/read overlap the register?
		lo := max(offset, f.off)
		hi := min(end, regEnd)
		if lo >= hi {
			continue
		}
		r.accessField(f, lo, hi, dir, buf[lo-offset:hi-offset])
	}
	return nil
}

// accessField applies a (possibly partial) access to a single register. lo/hi
// are absolute offsets into the 28-byte block, sub is the slice of buf
// covering [lo,hi).
func (r *RegisterFile) accessField(f reg, lo, hi int, dir Direction, sub []byte) {
	var full [8]byte
	fieldBytes := full[:f.size]
	r.readField(f, fieldBytes)

	fieldLo := lo - f.off
	fieldHi := hi - f.off

	switch dir {
	case Read:
		copy(sub, fieldBytes[fieldLo:fieldHi])
	case Write:
		copy(fieldBytes[fieldLo:fieldHi], sub)
		r.writeField(f, fieldBytes)
	}
}

// readField copies the current big-endian value of field f into dst.
func (r *RegisterFile) readField(f reg, dst []byte) {
	switch f.name {
	case "addr":
		binary.BigEndian.PutUint64(dst, r.config.Addr)
	case "fourcc":
		binary.BigEndian.PutUint32(dst, r.config.FourCC)
	case "flags":
		binary.BigEndian.PutUint32(dst, r.config.Flags)
	case "width":
		binary.BigEndian.PutUint32(dst, r.config.Width)
	case "height":
		binary.BigEndian.PutUint32(dst, r.config.Height)
	case "stride":
		binary.BigEndian.PutUint32(dst, r.config.Stride)
	}
}

// writeField stores a full big-endian register value from src back into the
// config, for whichever field f names.
func (r *RegisterFile) writeField(f reg, src []byte) {
	switch f.name {
	case "addr":
		r.config.Addr = binary.BigEndian.Uint64(src)
	case "fourcc":
		r.config.FourCC = binary.BigEndian.Uint32(src)
	case "flags":
		r.config.Flags = binary.BigEndian.Uint32(src)
	case "width":
		r.config.Width = binary.BigEndian.Uint32(src)
	case "height":
		r.config.Height = binary.BigEndian.Uint32(src)
	case "stride":
		r.config.Stride = binary.BigEndian.Uint32(src)
	}
}

// Config returns a copy of the current host-endian configuration.
func (r *RegisterFile) Config() Config {
	return r.config
}

// SetConfig overwrites the register bank wholesale, used by migration import.
func (r *RegisterFile) SetConfig(c Config) {
	r.config = c
}
