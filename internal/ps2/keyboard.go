// Package ps2 is a minimal stand-in for the real PS/2 keyboard controller
// (out of scope per spec §1): it accepts opaque key events and does nothing
// with them beyond recording the most recent ones, which is all the VNC
// session's KeyEvent dispatch needs from its keyboard collaborator.
package ps2

import (
	"log/slog"
	"sync"
)

// KeyEvent is an opaque key transition forwarded verbatim from the RFB
// client; this package does not interpret the keysym.
type KeyEvent struct {
	Keysym uint32
	Down   bool
}

// Controller is the keyboard collaborator the VNC session forwards decoded
// KeyEvent client messages to.
type Controller interface {
	KeyEvent(ev KeyEvent)
}

const historyLimit = 64

// ctrl is the default Controller: it logs each event and keeps a bounded
// ring of recent events for inspection/debugging.
type ctrl struct {
	mu      sync.Mutex
	log     *slog.Logger
	history []KeyEvent
}

// New returns a Controller that logs and buffers events it receives.
func New(log *slog.Logger) Controller {
	if log == nil {
		log = slog.Default()
	}
	return &ctrl{log: log}
}

// KeyEvent implements Controller.
func (c *ctrl) KeyEvent(ev KeyEvent) {
	c.mu.Lock()
	c.history = append(c.history, ev)
	if len(c.history) > historyLimit {
		c.history = c.history[len(c.history)-historyLimit:]
	}
	c.mu.Unlock()

	c.log.Debug("ps2 key event", "keysym", ev.Keysym, "down", ev.Down)
}

// History returns a copy of the most recently received events, oldest first.
func (c *ctrl) History() []KeyEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]KeyEvent, len(c.history))
	copy(out, c.history)
	return out
}
