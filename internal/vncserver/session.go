package vncserver

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/tinyrange/bhyve-vnc/internal/ps2"
	"github.com/tinyrange/bhyve-vnc/internal/ramfb"
	"github.com/tinyrange/bhyve-vnc/internal/rfb"
)

// frameKind tags last_frame so pacing can tell a genuine extraction from the
// synthesized filler (spec §3, §9 "black filler as a state").
type frameKind int

const (
	frameNone frameKind = iota
	frameGenerated
	frameValid
)

type cachedFrame struct {
	frame *ramfb.Frame
	kind  frameKind
}

// session is one client's RFB loop: handshake has already completed by the
// time run() is called (spec §4.4.3).
type session struct {
	server   *Server
	conn     io.ReadWriteCloser
	clientID string
	hangup   *hangup
	log      *slog.Logger

	pendingReq *rfb.FramebufferUpdateRequest
	encodings  map[rfb.EncodingType]struct{}
	last       cachedFrame
}

// run is the session loop (spec §4.4.3). Each turn first checks the hangup
// signal without blocking and returns if it has fired. If an update request
// is pending and pacing has a frame ready, the frame is sent at once;
// otherwise the turn waits on the hangup signal, the next client message and
// the pacing timer together. When more than one of those is ready at the same
// moment, the order in which they are taken is not defined.
func (s *session) run() {
	defer s.server.clearClient(s.clientID)
	defer s.conn.Close()

	msgCh := make(chan rfb.ClientMessage)
	errCh := make(chan error, 1)
	go s.readLoop(msgCh, errCh)

	for {
		select {
		case <-s.hangup.ch:
			return
		default:
		}

		var timerCh <-chan time.Time
		var timer *time.Timer
		if s.pendingReq != nil {
			ready, delay := s.pacingStep()
			if ready {
				if err := s.sendUpdate(); err != nil {
					s.log.Info("framebuffer update write failed", "error", err)
					return
				}
				continue
			}
			timer = time.NewTimer(delay)
			timerCh = timer.C
		}

		select {
		case <-s.hangup.ch:
			stopTimer(timer)
			return

		case msg, ok := <-msgCh:
			stopTimer(timer)
			if !ok {
				// readLoop leaves an error on errCh when the stream ended;
				// after a hangup it closes msgCh without one.
				select {
				case err := <-errCh:
					if err != nil && !errors.Is(err, io.EOF) {
						s.log.Info("session read failed", "error", err)
					}
				default:
				}
				return
			}
			s.dispatch(msg)

		case <-timerCh:
			if ready, _ := s.pacingStep(); ready {
				if err := s.sendUpdate(); err != nil {
					s.log.Info("framebuffer update write failed", "error", err)
					return
				}
			}
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// readLoop decodes client messages off conn and forwards them to msgCh,
// closing it (and recording the terminal error on errCh) when the stream
// ends. It runs for the life of the session, independent of pacing.
func (s *session) readLoop(msgCh chan<- rfb.ClientMessage, errCh chan<- error) {
	defer close(msgCh)
	for {
		msg, err := rfb.DecodeClientMessage(s.conn)
		if err != nil {
			errCh <- err
			return
		}
		select {
		case msgCh <- msg:
		case <-s.hangup.ch:
			return
		}
	}
}

// dispatch applies one decoded client message (spec §4.4.4).
func (s *session) dispatch(msg rfb.ClientMessage) {
	switch msg.Type {
	case rfb.MsgKeyEvent:
		if kb := s.keyboard(); kb != nil {
			kb.KeyEvent(ps2.KeyEvent{Keysym: msg.KeyEvent.Key, Down: msg.KeyEvent.Down})
		}
	case rfb.MsgPointerEvent:
		s.log.Debug("pointer event discarded", "buttons", msg.PointerEvent.ButtonMask)
	case rfb.MsgClientCutText:
		// Ignored (spec §4.4.4, Non-goals: clipboard).
	case rfb.MsgFramebufferUpdateRequest:
		req := msg.FramebufferUpdateRequest
		s.pendingReq = &req
	case rfb.MsgSetPixelFormat:
		s.log.Debug("SetPixelFormat received; pixel format is not renegotiated", "format", msg.SetPixelFormat)
	case rfb.MsgSetEncodings:
		s.recordEncodings(msg.SetEncodings)
	}
}

func (s *session) recordEncodings(encodings []rfb.EncodingType) {
	if s.encodings == nil {
		s.encodings = make(map[rfb.EncodingType]struct{}, len(encodings))
	}
	for _, enc := range encodings {
		s.encodings[enc] = struct{}{}
		if enc != rfb.EncodingRaw {
			s.log.Debug("client requested an unsupported encoding", "encoding", enc)
		}
	}
}

func (s *session) keyboard() ps2.Controller {
	devices := s.server.devicesSnapshot()
	if devices == nil {
		return nil
	}
	return devices.Keyboard
}

// pacingStep advances the frame-pacing state machine by one step (spec
// §4.4.5). ready=true means a frame is available now and the caller should
// send it; ready=false means the caller should wait retryAfter and call
// pacingStep again.
func (s *session) pacingStep() (ready bool, retryAfter time.Duration) {
	switch s.last.kind {
	case frameValid:
		age := time.Since(s.last.frame.When)
		if age < MinFrameInterval {
			return false, MinFrameInterval - age
		}
		s.updateFrame()
		return true, 0
	default: // frameNone, frameGenerated
		if s.updateFrame() {
			return true, 0
		}
		return false, MinFrameInterval
	}
}

// updateFrame attempts to extract a fresh Valid frame, falling back to the
// Generated black filler (spec §4.4.5). It returns whether last changed in
// a way worth sending.
func (s *session) updateFrame() bool {
	devices := s.server.devicesSnapshot()
	if devices == nil {
		return s.installGeneratedIfAbsent()
	}

	frame, ok := devices.Display.ReadFramebuffer(validateXR24)
	if ok {
		s.last = cachedFrame{frame: frame, kind: frameValid}
		return true
	}
	return s.installGeneratedIfAbsent()
}

func (s *session) installGeneratedIfAbsent() bool {
	if s.last.kind == frameGenerated {
		return false
	}
	s.last = cachedFrame{
		frame: ramfb.BlankFrame(UninitWidth, UninitHeight),
		kind:  frameGenerated,
	}
	return true
}

// sendUpdate writes the cached frame as a single full-framebuffer Raw
// rectangle and clears pendingReq (spec §4.4.6).
func (s *session) sendUpdate() error {
	frame := s.last.frame
	rect := rfb.RectangleFromFrame(uint16(frame.Spec.Width), uint16(frame.Spec.Height), frame.Data)
	update := rfb.FramebufferUpdate{Rectangles: []rfb.Rectangle{rect}}

	if err := update.WriteTo(s.conn); err != nil {
		return err
	}
	s.pendingReq = nil
	return nil
}
