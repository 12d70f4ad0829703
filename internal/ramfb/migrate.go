package ramfb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// SchemaName and SchemaVersion identify the migration payload format (spec
// §6): schema id ("qemu-ramfb", 1).
const (
	SchemaName    = "qemu-ramfb"
	SchemaVersion = 1
)

// payloadLen is SchemaName (length-prefixed) + version + six config fields.
func payloadLen() int {
	return 1 + len(SchemaName) + 4 + 8 + 4 + 4 + 4 + 4 + 4
}

// Export serializes the six Config fields, in declaration order, little-endian
// on the wire, prefixed with the schema id (spec §4.3, §6).
func (d *Device) Export() []byte {
	d.mu.Lock()
	c := d.regs.Config()
	d.mu.Unlock()

	buf := bytes.NewBuffer(make([]byte, 0, payloadLen()))
	buf.WriteByte(byte(len(SchemaName)))
	buf.WriteString(SchemaName)
	binary.Write(buf, binary.LittleEndian, uint32(SchemaVersion))
	binary.Write(buf, binary.LittleEndian, c.Addr)
	binary.Write(buf, binary.LittleEndian, c.FourCC)
	binary.Write(buf, binary.LittleEndian, c.Flags)
	binary.Write(buf, binary.LittleEndian, c.Width)
	binary.Write(buf, binary.LittleEndian, c.Height)
	binary.Write(buf, binary.LittleEndian, c.Stride)
	return buf.Bytes()
}

// Import restores all six fields verbatim from a payload produced by Export,
// and bumps last_update so any UpdatedSince waiters re-poll (spec §4.3).
func (d *Device) Import(payload []byte) error {
	if len(payload) < 1 {
		return fmt.Errorf("ramfb: empty migration payload")
	}
	nameLen := int(payload[0])
	if len(payload) < 1+nameLen+4 {
		return fmt.Errorf("ramfb: truncated migration payload")
	}
	name := string(payload[1 : 1+nameLen])
	if name != SchemaName {
		return fmt.Errorf("ramfb: unexpected migration schema %q, want %q", name, SchemaName)
	}

	r := bytes.NewReader(payload[1+nameLen:])
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("ramfb: reading schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("ramfb: unsupported migration schema version %d, want %d", version, SchemaVersion)
	}

	var c Config
	for _, field := range []any{&c.Addr, &c.FourCC, &c.Flags, &c.Width, &c.Height, &c.Stride} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("ramfb: reading migration payload: %w", err)
		}
	}

	d.mu.Lock()
	d.regs.SetConfig(c)
	d.lastUpdate = time.Now()
	close(d.notify)
	d.notify = make(chan struct{})
	d.mu.Unlock()

	return nil
}
