package ramfb

// MemAccessor is the guest-memory-mapping collaborator the frame extractor
// relies on. Given a guest physical address and a length, it returns a
// bounded read-only view over that region, or reports the region as
// unreadable. Implementations must not retain any state the caller can
// observe after the call returns; the extractor never retains the mapping
// either (spec §4.2).
type MemAccessor interface {
	// ReadableRegion returns a Mapping covering [addr, addr+length) or ok=false
	// if no such readable region exists.
	ReadableRegion(addr uint64, length int) (mapping Mapping, ok bool)
}

// Mapping is a bounded, read-only view of guest memory. Its lifetime must not
// outlive the call that produced it.
type Mapping interface {
	// Len returns the number of bytes in the mapping.
	Len() int
	// ReadAt copies len(p) bytes starting at byte offset off within the
	// mapping into p. off+len(p) must not exceed Len().
	ReadAt(p []byte, off int) error
}
