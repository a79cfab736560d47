package session

import (
	"errors"
	"io"
	"net"
	"sync"
)

// Conn wraps an established connection with HAP framing. Read returns
// decrypted plaintext and Write seals everything written.
//
// A framing error (tag mismatch, oversize frame, counter exhaustion) closes
// the underlying connection and is returned by every later call.
type Conn struct {
	net.Conn

	session      *Session
	controllerID string

	readMu  sync.Mutex
	pending []byte
	readErr error

	writeMu  sync.Mutex
	writeErr error

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// NewConn wraps conn with session. controllerID names the verified
// controller; it is used to find connections when a pairing is removed.
func NewConn(conn net.Conn, session *Session, controllerID string) *Conn {
	return &Conn{
		Conn:         conn,
		session:      session,
		controllerID: controllerID,
		closed:       make(chan struct{}),
	}
}

// ControllerID returns the verified controller identifier.
func (c *Conn) ControllerID() string {
	return c.controllerID
}

// Session returns the underlying session.
func (c *Conn) Session() *Session {
	return c.session
}

// Read reads decrypted plaintext. Surplus plaintext from a frame is kept
// for the next call.
func (c *Conn) Read(b []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.pending) == 0 {
		if c.readErr != nil {
			return 0, c.readErr
		}
		plaintext, err := c.session.ReadFrame(c.Conn)
		if err != nil {
			c.readErr = err
			if isFramingError(err) {
				c.Close()
			}
			return 0, err
		}
		c.pending = plaintext
	}

	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write seals b and writes the resulting frames.
func (c *Conn) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeErr != nil {
		return 0, c.writeErr
	}
	frames, err := c.session.Seal(b)
	if err != nil {
		c.writeErr = err
		if isFramingError(err) {
			c.Close()
		}
		return 0, err
	}
	if _, err := c.Conn.Write(frames); err != nil {
		c.writeErr = err
		return 0, err
	}
	return len(b), nil
}

// Close closes the underlying connection and destroys the session keys.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
		c.session.Zeroize()
		close(c.closed)
	})
	return c.closeErr
}

// Done is closed once the connection has been closed.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

func isFramingError(err error) bool {
	return errors.Is(err, ErrTagMismatch) ||
		errors.Is(err, ErrFrameTooLarge) ||
		errors.Is(err, ErrMalformedFrame) ||
		errors.Is(err, ErrNonceExhausted) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
