package rfb

import (
	"errors"
	"fmt"
)

// ErrInit reports a failure during the RFB handshake: a malformed client,
// a truncated stream, or a client selecting a security type this server
// advertises but does not implement (spec §4.4.1, §9 Open Question).
var ErrInit = errors.New("rfb: handshake failed")

// ErrProtocol reports a decode or write failure mid-session.
var ErrProtocol = errors.New("rfb: protocol error")

// wrapInit/wrapProtocol attach context to the sentinel errors above while
// keeping them matchable with errors.Is.
func wrapInit(format string, args ...any) error {
	return &wrappedError{sentinel: ErrInit, msg: fmt.Sprintf(format, args...)}
}

func wrapProtocol(format string, args ...any) error {
	return &wrappedError{sentinel: ErrProtocol, msg: fmt.Sprintf(format, args...)}
}

type wrappedError struct {
	sentinel error
	msg      string
}

func (e *wrappedError) Error() string { return e.msg }
func (e *wrappedError) Unwrap() error { return e.sentinel }
