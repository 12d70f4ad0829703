// Package guestmem provides a flat in-process buffer implementing
// ramfb.MemAccessor, standing in for the real guest-physical-memory mapping
// primitive a hypervisor would otherwise supply.
package guestmem

import (
	"fmt"
	"sync"

	"github.com/tinyrange/bhyve-vnc/internal/ramfb"
)

// RAM is a contiguous byte buffer addressed starting at the base address given
// to New. It implements
// ramfb.MemAccessor by bounds-checking requests against that buffer.
type RAM struct {
	mu   sync.RWMutex
	base uint64
	data []byte
}

// New allocates a zeroed RAM region of size bytes starting at base.
func New(base uint64, size int) *RAM {
	return &RAM{base: base, data: make([]byte, size)}
}

// ReadableRegion implements ramfb.MemAccessor.
func (r *RAM) ReadableRegion(addr uint64, length int) (ramfb.Mapping, bool) {
	if length < 0 {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if addr < r.base {
		return nil, false
	}
	start := addr - r.base
	if start > uint64(len(r.data)) {
		return nil, false
	}
	end := start + uint64(length)
	if end > uint64(len(r.data)) {
		return nil, false
	}
	// Copy out now: RAM may be mutated by WriteAt concurrently with the
	// extractor's later ReadAt calls, and the extractor is documented to
	// tolerate tearing within a frame but not a data race across goroutines.
	view := make([]byte, length)
	copy(view, r.data[start:end])
	return &mapping{data: view}, true
}

// WriteAt writes guest-visible bytes into the region, as firmware/guest code
// would. It exists for tests and the demo CLI mode to simulate guest writes.
func (r *RAM) WriteAt(addr uint64, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if addr < r.base {
		return fmt.Errorf("guestmem: address 0x%x below base 0x%x", addr, r.base)
	}
	start := addr - r.base
	end := start + uint64(len(p))
	if end > uint64(len(r.data)) {
		return fmt.Errorf("guestmem: write [0x%x,0x%x) out of range", addr, addr+uint64(len(p)))
	}
	copy(r.data[start:end], p)
	return nil
}

// Size returns the region size in bytes.
func (r *RAM) Size() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.data))
}

type mapping struct {
	data []byte
}

func (m *mapping) Len() int { return len(m.data) }

func (m *mapping) ReadAt(p []byte, off int) error {
	if off < 0 || off+len(p) > len(m.data) {
		return fmt.Errorf("guestmem: mapping read [%d,%d) out of range [0,%d)", off, off+len(p), len(m.data))
	}
	copy(p, m.data[off:off+len(p)])
	return nil
}
