package vncserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/websocket"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// Acceptor listens on a plain-TCP transport and, optionally, a WebSocket
// binary upgrade transport, handing every accepted connection to a Server's
// Connect (component C5, spec §4.5).
type Acceptor struct {
	log    *slog.Logger
	server *Server

	tcpListener net.Listener
	wsListener  net.Listener
	wsServer    *http.Server

	hangup *hangup
	wg     sync.WaitGroup

	// acceptErrLimiter rate-limits "accept error" log lines: accept errors
	// are transient and non-fatal (spec §4.5), but a misbehaving network
	// stack could otherwise flood the log.
	acceptErrLimiter *rate.Limiter
}

// NewAcceptor constructs an Acceptor bound to server. Call ListenTCP and/or
// ListenWebSocket to start accepting.
func NewAcceptor(server *Server, log *slog.Logger) *Acceptor {
	if log == nil {
		log = slog.Default()
	}
	return &Acceptor{
		log:              log,
		server:           server,
		hangup:           newHangup(),
		acceptErrLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// ListenTCP binds addr as the plain-RFB transport and starts its accept
// loop in the background.
func (a *Acceptor) ListenTCP(addr string) error {
	lc := net.ListenConfig{Control: setReuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("vncserver: listen tcp %s: %w", addr, err)
	}
	a.tcpListener = ln

	a.wg.Add(1)
	go a.acceptLoop(ln, wrapTCPConn)
	return nil
}

// ListenWebSocket binds addr as the WebSocket binary-upgrade transport
// (spec §6 "Listening transports"). Both transports reach Server.Connect.
func (a *Acceptor) ListenWebSocket(addr string) error {
	lc := net.ListenConfig{Control: setReuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("vncserver: listen ws %s: %w", addr, err)
	}
	a.wsListener = ln

	mux := http.NewServeMux()
	mux.Handle("/", websocket.Handler(a.handleWebSocket))
	a.wsServer = &http.Server{Handler: mux}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.wsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Info("websocket listener stopped", "error", err)
		}
	}()
	return nil
}

func (a *Acceptor) handleWebSocket(ws *websocket.Conn) {
	ws.PayloadType = websocket.BinaryFrame
	peer := ws.Request().RemoteAddr
	if err := a.server.Connect(ws, peer); err != nil {
		a.log.Info("connection rejected", "peer", peer, "error", err)
	}
}

type connWrapper func(net.Conn) io.ReadWriteCloser

func wrapTCPConn(c net.Conn) io.ReadWriteCloser {
	setNoDelay(c)
	return c
}

// acceptLoop runs a two-arm select biased toward the hangup signal (spec
// §4.5): on hangup it returns; on accept it hands the connection off to
// Server.Connect in its own goroutine and continues.
func (a *Acceptor) acceptLoop(ln net.Listener, wrap connWrapper) {
	defer a.wg.Done()

	type acceptResult struct {
		conn net.Conn
		err  error
	}

	for {
		resultCh := make(chan acceptResult, 1)
		go func() {
			conn, err := ln.Accept()
			resultCh <- acceptResult{conn, err}
		}()

		select {
		case <-a.hangup.ch:
			return
		case res := <-resultCh:
			if a.hangupFired() {
				if res.conn != nil {
					res.conn.Close()
				}
				return
			}
			if res.err != nil {
				if a.acceptErrLimiter.Allow() {
					a.log.Info("accept error", "error", res.err)
				}
				continue
			}

			peer := res.conn.RemoteAddr().String()
			conn := wrap(res.conn)
			a.wg.Add(1)
			go func() {
				defer a.wg.Done()
				if err := a.server.Connect(conn, peer); err != nil {
					a.log.Info("connection rejected", "peer", peer, "error", err)
				}
			}()
		}
	}
}

func (a *Acceptor) hangupFired() bool {
	select {
	case <-a.hangup.ch:
		return true
	default:
		return false
	}
}

// Halt fires the hangup signal, closes both listeners to unblock any
// pending Accept call, and waits for every spawned goroutine (accept loops
// and in-flight Connect calls) to finish.
func (a *Acceptor) Halt() {
	a.hangup.fire()
	if a.tcpListener != nil {
		a.tcpListener.Close()
	}
	if a.wsListener != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.wsServer.Shutdown(ctx)
	}
	a.wg.Wait()
}

// setReuseAddr is a net.ListenConfig.Control callback that sets
// SO_REUSEADDR on the listening socket so a restart doesn't have to wait
// out TIME_WAIT on the old listener.
func setReuseAddr(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// setNoDelay sets TCP_NODELAY on an accepted connection so small RFB
// messages (key/pointer events) aren't held up by Nagle's algorithm.
func setNoDelay(c net.Conn) {
	tcpConn, ok := c.(*net.TCPConn)
	if !ok {
		return
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return
	}
	rawConn.Control(func(fd uintptr) {
		unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}
