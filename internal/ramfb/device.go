package ramfb

import (
	"sync"
	"time"
)

// Device owns the register file, publishes the framebuffer spec, fires
// change notifications, and provides migration hooks (component C3).
type Device struct {
	mu         sync.Mutex
	regs       RegisterFile
	lastUpdate time.Time
	notify     chan struct{}

	mem MemAccessor
}

// New creates a Device with zeroed configuration.
func New() *Device {
	return &Device{
		lastUpdate: time.Now(),
		notify:     make(chan struct{}),
	}
}

// Attach binds the guest-memory accessor. Must precede any ReadFramebuffer
// call that is expected to succeed.
func (d *Device) Attach(mem MemAccessor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mem = mem
}

// ReadSpec returns a projection of the current configuration. Never blocks,
// never fails.
func (d *Device) ReadSpec() FramebufferSpec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return SpecOf(d.regs.Config())
}

// ValidateBpp decides, given a spec, whether a frame should be fetched and at
// what bits-per-pixel. It is passed to ReadFramebuffer by callers (e.g. the
// VNC session) so the device itself stays agnostic of pixel-format policy.
type ValidateBpp func(FramebufferSpec) (bpp int, ok bool)

// ReadFramebuffer takes a spec snapshot under the device lock, asks
// validateBpp whether (and at what bpp) to proceed, and if so attempts
// extraction via the frame extractor. The lock is held only across the
// snapshot, never across the copy (spec §4.3).
func (d *Device) ReadFramebuffer(validateBpp ValidateBpp) (*Frame, bool) {
	d.mu.Lock()
	config := d.regs.Config()
	mem := d.mem
	d.mu.Unlock()

	if mem == nil {
		return nil, false
	}

	bpp, ok := validateBpp(SpecOf(config))
	if !ok {
		return nil, false
	}

	return readFrame(config, bpp, mem)
}

// UpdatedSince blocks until last_update advances past t, returning true, or
// until done is closed, returning false. It reads last_update and takes the
// current notification channel under the same lock that writers hold while
// advancing last_update and closing that channel, and it loops on spurious
// wakeups, so no write landing between check and wait is ever missed (spec §9).
func (d *Device) UpdatedSince(done <-chan struct{}, t time.Time) bool {
	for {
		d.mu.Lock()
		if d.lastUpdate.After(t) {
			d.mu.Unlock()
			return true
		}
		ch := d.notify
		d.mu.Unlock()

		select {
		case <-ch:
			// Wake and recheck; this may have been a different write than
			// the one we care about (spurious from our point of view).
			continue
		case <-done:
			return false
		}
	}
}

// FwcfgRW is the C1 pass-through bound to the fw_cfg entry (spec §4.1): a
// successful write updates last_update and fires the change notification
// exactly once per call, regardless of how many registers it touched.
func (d *Device) FwcfgRW(offset, length int, dir Direction, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.regs.Access(offset, length, dir, buf); err != nil {
		return err
	}

	if dir == Write {
		d.lastUpdate = time.Now()
		close(d.notify)
		d.notify = make(chan struct{})
	}
	return nil
}
