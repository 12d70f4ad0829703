// Package vncserver implements the single-viewer RFB session core (C4) and
// its TCP/WebSocket acceptor (C5): admission, single-viewer eviction, the
// client-message dispatch loop, frame pacing, and clean shutdown.
package vncserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyrange/bhyve-vnc/internal/ps2"
	"github.com/tinyrange/bhyve-vnc/internal/ramfb"
	"github.com/tinyrange/bhyve-vnc/internal/rfb"
)

// ServerName is advertised to every client during the handshake.
const ServerName = "propolis-vnc"

// UninitWidth and UninitHeight are the resolution used when the device is
// unconfigured or its spec is invalid (spec §4.4).
const (
	UninitWidth  = 1024
	UninitHeight = 768
)

// MinFrameInterval caps delivery to 10 fps (spec §4.4).
const MinFrameInterval = 100 * time.Millisecond

var (
	// ErrServerStopped is returned by Connect once Stop has completed.
	ErrServerStopped = errors.New("vncserver: server stopped")
	// ErrInvalidFourCC is returned when the device advertises a pixel
	// format this server cannot render.
	ErrInvalidFourCC = errors.New("vncserver: unsupported FourCC")
)

// Devices bundles the collaborators a session reaches into beyond the RFB
// wire itself (spec §1 external collaborators).
type Devices struct {
	Display  *ramfb.Device
	Keyboard ps2.Controller
}

// hangup is a one-shot, idempotent cancellation signal.
type hangup struct {
	once sync.Once
	ch   chan struct{}
}

func newHangup() *hangup { return &hangup{ch: make(chan struct{})} }

func (h *hangup) fire() { h.once.Do(func() { close(h.ch) }) }

func (h *hangup) fired() bool {
	select {
	case <-h.ch:
		return true
	default:
		return false
	}
}

type activeClient struct {
	id     string
	hangup *hangup
}

// Server is the single-viewer RFB session core (component C4).
type Server struct {
	log *slog.Logger

	mu      sync.Mutex
	devices *Devices
	stopped bool
	active  *activeClient
	changed chan struct{} // closed-and-replaced by clearClient on every session exit (spec §9)
}

// New constructs a Server bound to devices. A nil Keyboard is legal:
// KeyEvent messages are then dropped silently (spec §4.4.4).
func New(devices *Devices, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:     log,
		devices: devices,
		changed: make(chan struct{}),
	}
}

func (s *Server) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Server) devicesSnapshot() *Devices {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devices
}

// Connect admits one connection (spec §4.4.1): it snapshots the device spec,
// runs the RFB handshake, evicts any existing viewer, and spawns the session
// loop in its own goroutine. It returns once admission has concluded, not
// once the session has ended.
func (s *Server) Connect(conn io.ReadWriteCloser, clientID string) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrServerStopped
	}
	resolution, format, err := s.initialFormatLocked()
	s.mu.Unlock()
	if err != nil {
		conn.Close()
		return err
	}

	params := rfb.InitParams{
		Version:       rfb.Rfb38,
		SecurityTypes: []rfb.SecurityType{rfb.SecurityTypeNone, rfb.SecurityTypeVncAuthentication},
		Name:          ServerName,
		Resolution:    resolution,
		Format:        format,
	}
	if err := rfb.Initialize(conn, params); err != nil {
		conn.Close()
		return fmt.Errorf("vncserver: handshake with %s: %w", clientID, err)
	}

	h, err := s.replaceClient(clientID)
	if err != nil {
		conn.Close()
		return err
	}

	sess := &session{
		server:   s,
		conn:     conn,
		clientID: clientID,
		hangup:   h,
		log:      s.log.With("client", clientID),
	}
	go sess.run()

	return nil
}

// initialFormatLocked must be called with s.mu held.
func (s *Server) initialFormatLocked() (rfb.Resolution, rfb.PixelFormat, error) {
	if s.devices == nil {
		return rfb.Resolution{Width: UninitWidth, Height: UninitHeight}, rfb.XR24PixelFormat, nil
	}
	spec := s.devices.Display.ReadSpec()
	if !spec.Valid() {
		return rfb.Resolution{Width: UninitWidth, Height: UninitHeight}, rfb.XR24PixelFormat, nil
	}
	pf, err := rfb.FourCCToPixelFormat(spec.FourCC)
	if err != nil {
		return rfb.Resolution{}, rfb.PixelFormat{}, fmt.Errorf("%w: %v", ErrInvalidFourCC, err)
	}
	return rfb.Resolution{Width: uint16(spec.Width), Height: uint16(spec.Height)}, pf, nil
}

// replaceClient implements single-viewer eviction (spec §4.4.2): it fires
// the current client's hangup signal and waits for the slot to drain before
// installing the new client, looping in case another replacer wins the
// race.
func (s *Server) replaceClient(id string) (*hangup, error) {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return nil, ErrServerStopped
		}
		if s.active != nil {
			prev := s.active.hangup
			wait := s.changed
			s.mu.Unlock()

			prev.fire()
			<-wait
			continue
		}

		h := newHangup()
		s.active = &activeClient{id: id, hangup: h}
		s.mu.Unlock()
		return h, nil
	}
}

// clearClient removes id from the active slot, if it is still there, and
// wakes anything waiting in replaceClient or Stop.
func (s *Server) clearClient(id string) {
	s.mu.Lock()
	if s.active != nil && s.active.id == id {
		s.active = nil
	}
	s.broadcastLocked()
	s.mu.Unlock()
}

// Stop shuts the server down (spec §4.4.7): it marks the server stopped,
// detaches the devices, and evicts any active client, returning only after
// that client's session loop has exited. Subsequent Connect calls fail with
// ErrServerStopped.
func (s *Server) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.devices = nil
	active := s.active
	wait := s.changed
	s.mu.Unlock()

	for active != nil {
		active.hangup.fire()
		<-wait

		s.mu.Lock()
		active = s.active
		wait = s.changed
		s.mu.Unlock()
	}
}

// validateXR24 is the bpp validator every session uses: only the XR24
// format this device understands is ever extracted (spec §4.4.5).
func validateXR24(spec ramfb.FramebufferSpec) (int, bool) {
	if !spec.Valid() {
		return 0, false
	}
	return 32, true
}
