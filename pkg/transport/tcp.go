// Package transport serves HAP over TCP.
//
// Each connection starts as plain HTTP/1.1. The pairing endpoints are
// handled by a securechannel.Channel; once Pair Verify succeeds the M4
// response is written in plaintext and every following byte in either
// direction is framed by the session layer. Requests other than the pairing
// endpoints are refused with status 470 until the connection is verified,
// and are then passed to the application http.Handler.
package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/backkem/hap/pkg/securechannel"
	"github.com/backkem/hap/pkg/securechannel/messages"
	"github.com/backkem/hap/pkg/session"
	"github.com/pion/logging"
)

// ChannelFactory creates the pairing channel of a new connection.
// *securechannel.Manager implements it.
type ChannelFactory interface {
	NewChannel(remote net.Addr) *securechannel.Channel
}

// TCP accepts HAP connections.
type TCP struct {
	listener net.Listener
	channels ChannelFactory
	handler  http.Handler
	sessions *session.Table
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	// Connection tracking
	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

// TCPConfig configures the TCP transport.
type TCPConfig struct {
	// Listener is an optional pre-existing Listener to use.
	// If nil, a new listener will be created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":51826").
	// Ignored if Listener is provided.
	ListenAddr string

	// Channels creates the pairing channel of each connection.
	// Required.
	Channels ChannelFactory

	// Handler serves requests on verified connections. The verified
	// controller is available through ControllerIDFromContext.
	// Default: http.NotFoundHandler.
	Handler http.Handler

	// Sessions tracks upgraded connections. Default: a new table.
	Sessions *session.Table

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewTCP creates a new TCP transport with the given configuration.
func NewTCP(config TCPConfig) (*TCP, error) {
	if config.Channels == nil {
		return nil, ErrNoHandler
	}

	t := &TCP{
		listener: config.Listener,
		channels: config.Channels,
		handler:  config.Handler,
		sessions: config.Sessions,
		closeCh:  make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	if t.handler == nil {
		t.handler = http.NotFoundHandler()
	}
	if t.sessions == nil {
		t.sessions = session.NewTable()
	}

	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("transport-tcp")
	}

	if t.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0" // Use ephemeral port
		}

		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		t.listener = listener
	}

	return t, nil
}

// Start begins accepting connections.
func (t *TCP) Start() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Infof("starting HAP transport on %s", t.listener.Addr())
	}

	t.wg.Add(1)
	go t.acceptLoop()

	return nil
}

// Stop closes the listener and all connections, and waits for the
// connection goroutines to finish.
func (t *TCP) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Info("stopping HAP transport")
	}

	close(t.closeCh)
	t.listener.Close()

	t.connsMu.Lock()
	for conn := range t.conns {
		conn.Close()
	}
	t.conns = make(map[net.Conn]struct{})
	t.connsMu.Unlock()
	t.sessions.CloseAll()

	t.wg.Wait()
	return nil
}

// LocalAddr returns the local address the transport is listening on.
func (t *TCP) LocalAddr() net.Addr {
	return t.listener.Addr()
}

// Sessions returns the table of verified connections.
func (t *TCP) Sessions() *session.Table {
	return t.sessions
}

// acceptLoop accepts incoming connections.
func (t *TCP) acceptLoop() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if t.log != nil {
				t.log.Warnf("accept: %v", err)
			}
			continue
		}

		if !t.track(conn) {
			conn.Close()
			return
		}
		t.wg.Add(1)
		go t.handleConn(conn)
	}
}

// track registers conn unless the transport is stopping.
func (t *TCP) track(conn net.Conn) bool {
	t.connsMu.Lock()
	defer t.connsMu.Unlock()
	select {
	case <-t.closeCh:
		return false
	default:
	}
	t.conns[conn] = struct{}{}
	return true
}

func (t *TCP) untrack(conn net.Conn) {
	t.connsMu.Lock()
	delete(t.conns, conn)
	t.connsMu.Unlock()
}

// handleConn serves HTTP requests on a single connection until it closes.
func (t *TCP) handleConn(conn net.Conn) {
	defer t.wg.Done()

	remote := conn.RemoteAddr()
	channel := t.channels.NewChannel(remote)

	var (
		rw  net.Conn = conn
		br           = bufio.NewReader(conn)
		sec *session.Conn
	)
	defer func() {
		channel.Close()
		if sec != nil {
			sec.Close()
		} else {
			conn.Close()
		}
		t.untrack(conn)
	}()
	defer func() {
		if r := recover(); r != nil && t.log != nil {
			t.log.Errorf("connection from %s: panic: %v", remote, r)
		}
	}()

	if t.log != nil {
		t.log.Debugf("connection from %s", remote)
	}

	for {
		req, err := http.ReadRequest(br)
		if err != nil {
			if t.log != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				t.log.Debugf("read request from %s: %v", remote, err)
			}
			return
		}

		resp, result := t.serve(channel, sec, req)
		if _, err := rw.Write(resp.encode()); err != nil {
			if t.log != nil {
				t.log.Debugf("write response to %s: %v", remote, err)
			}
			return
		}
		if result != nil && result.AfterWrite != nil {
			result.AfterWrite()
		}

		if result != nil && result.Session != nil {
			// Plaintext pipelined behind the verify request cannot be
			// reinterpreted as frames.
			if br.Buffered() > 0 {
				if t.log != nil {
					t.log.Warnf("connection from %s sent %d bytes past pair-verify M3, closing", remote, br.Buffered())
				}
				result.Session.Zeroize()
				return
			}
			sec = session.NewConn(conn, result.Session, result.ControllerID)
			t.sessions.Add(sec)
			rw = sec
			br = bufio.NewReader(sec)
			if t.log != nil {
				t.log.Infof("connection from %s verified as %s", remote, result.ControllerID)
			}
		}
		if req.Close || (result != nil && result.Close) {
			return
		}
	}
}

// serve routes one request. The pairing result is returned alongside the
// HTTP response so the caller can upgrade or close the connection.
func (t *TCP) serve(channel *securechannel.Channel, sec *session.Conn, req *http.Request) (*response, *securechannel.Response) {
	body, err := readBody(req)
	if err != nil {
		return newResponse(http.StatusBadRequest, "", nil), &securechannel.Response{Close: true}
	}

	var handle func([]byte) (*securechannel.Response, error)
	switch req.URL.Path {
	case PathPairSetup:
		handle = channel.HandlePairSetup
	case PathPairVerify:
		handle = channel.HandlePairVerify
	case PathPairings:
		if sec == nil {
			return unauthorizedResponse(), nil
		}
		handle = channel.HandlePairings
	default:
		if sec == nil {
			return unauthorizedResponse(), nil
		}
		return t.serveApplication(sec, req, body), nil
	}

	if req.Method != http.MethodPost {
		resp := newResponse(http.StatusMethodNotAllowed, "", nil)
		resp.header.Set("Allow", http.MethodPost)
		return resp, nil
	}
	result, err := handle(body)
	if err != nil {
		if t.log != nil {
			t.log.Debugf("%s from %s: %v", req.URL.Path, channel.RemoteAddr(), err)
		}
		closeConn := errors.Is(err, securechannel.ErrClosed) || req.URL.Path == PathPairVerify
		return newResponse(http.StatusBadRequest, "", nil), &securechannel.Response{Close: closeConn}
	}
	return newResponse(http.StatusOK, messages.ContentType, result.Body), result
}

// serveApplication passes a request on a verified connection to the
// application handler.
func (t *TCP) serveApplication(sec *session.Conn, req *http.Request, body []byte) *response {
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.RemoteAddr = sec.RemoteAddr().String()
	req = req.WithContext(WithControllerID(req.Context(), sec.ControllerID()))

	w := newResponseWriter()
	t.handler.ServeHTTP(w, req)
	return w.result()
}
