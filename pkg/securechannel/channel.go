package securechannel

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/pairing"
	"github.com/backkem/hap/pkg/securechannel/messages"
	"github.com/backkem/hap/pkg/securechannel/setup"
	"github.com/backkem/hap/pkg/securechannel/verify"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/tlv8"
)

// Response is the outcome of one pairing request.
type Response struct {
	// Body is the TLV8 response body.
	Body []byte

	// Session is set when Pair Verify completed. The transport must write
	// Body in plaintext and then switch the connection to Session.
	Session *session.Session

	// ControllerID is the verified controller when Session is set.
	ControllerID string

	// Close asks the transport to close the connection after writing Body.
	Close bool

	// AfterWrite, if set, is called once Body has been written.
	AfterWrite func()
}

// Channel is the pairing state of a single connection.
//
// Requests on one connection are processed in order; the methods are
// nevertheless safe for concurrent use.
type Channel struct {
	m      *Manager
	remote net.Addr

	mu           sync.Mutex
	setup        *setup.Session
	verify       *verify.Session
	verifyFatal  bool // a Pair Verify failed; the connection must not retry
	verified     bool
	controllerID string
	closed       bool
}

// RemoteAddr returns the remote address of the connection.
func (c *Channel) RemoteAddr() net.Addr {
	return c.remote
}

// Verified reports whether Pair Verify completed on this connection.
func (c *Channel) Verified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verified
}

// ControllerID returns the verified controller, or "" before Pair Verify.
func (c *Channel) ControllerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controllerID
}

// Close discards handshake state and releases the Pair Setup slot.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.resetSetup()
	if c.verify != nil {
		c.verify.Zeroize()
		c.verify = nil
	}
}

// HandlePairSetup processes a /pair-setup request body. The error return
// is reserved for bodies that are not valid TLV8 or carry no State item.
func (c *Channel) HandlePairSetup(body []byte) (*Response, error) {
	req, state, err := decodeRequest(body)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	log := c.m.log
	switch state {
	case messages.M1:
		if c.m.IsPaired() {
			return errorResponse(state, ErrAlreadyPaired), nil
		}
		if err := c.m.acquireSetup(c); err != nil {
			if log != nil {
				log.Infof("pair-setup M1 from %s refused: %v", c.remote, err)
			}
			return errorResponse(state, err), nil
		}
		c.abortSetup()
		s, err := setup.NewSession(setup.Config{
			Identity:  c.m.config.Identity,
			Store:     c.m.config.Store,
			SetupCode: c.m.config.SetupCode,
			Rand:      c.m.config.Rand,
		})
		if err != nil {
			c.resetSetup()
			return nil, err
		}
		resp, err := s.HandleM1(req)
		if err != nil {
			c.resetSetup()
			return c.setupFailed(state, err)
		}
		c.setup = s
		return &Response{Body: encode(resp)}, nil

	case messages.M3:
		if c.setup == nil || !c.m.ownsSetup(c) {
			c.resetSetup()
			return errorResponse(state, ErrUnknownState), nil
		}
		resp, err := c.setup.HandleM3(req)
		if err != nil {
			if errors.Is(err, setup.ErrAuthenticationFailed) {
				c.m.recordFailure()
			}
			c.resetSetup()
			return c.setupFailed(state, err)
		}
		return &Response{Body: encode(resp)}, nil

	case messages.M5:
		if c.setup == nil || !c.m.ownsSetup(c) {
			c.resetSetup()
			return errorResponse(state, ErrUnknownState), nil
		}
		resp, err := c.setup.HandleM5(req)
		if err != nil {
			c.resetSetup()
			return c.setupFailed(state, err)
		}
		p := c.setup.Pairing()
		c.resetSetup()
		c.m.recordSuccess()
		if log != nil {
			log.Infof("paired controller %s from %s", p.Identifier, c.remote)
		}
		return &Response{
			Body:       encode(resp),
			AfterWrite: func() { c.m.onPaired(p) },
		}, nil

	default:
		return errorResponse(state, ErrUnknownState), nil
	}
}

// HandlePairVerify processes a /pair-verify request body. A successful M3
// yields a Response carrying the new session.
func (c *Channel) HandlePairVerify(body []byte) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	req, state, err := decodeRequest(body)
	if err != nil {
		c.abortVerify()
		if c.m.log != nil {
			c.m.log.Infof("pair-verify from %s failed: %v", c.remote, err)
		}
		return nil, err
	}
	if c.verifyFatal {
		return c.verifyFailed(state, ErrUnknownState)
	}

	switch state {
	case messages.M1:
		if c.verified {
			return errorResponse(state, ErrUnknownState), nil
		}
		if c.verify != nil {
			c.verify.Zeroize()
		}
		s, err := verify.NewSession(verify.Config{
			Identity: c.m.config.Identity,
			Store:    c.m.config.Store,
			Rand:     c.m.config.Rand,
		})
		if err != nil {
			return nil, err
		}
		c.verify = s
		resp, err := s.HandleM1(req)
		if err != nil {
			return c.verifyFailed(state, err)
		}
		return &Response{Body: encode(resp)}, nil

	case messages.M3:
		if c.verify == nil || c.verified {
			return c.verifyFailed(state, ErrUnknownState)
		}
		resp, err := c.verify.HandleM3(req)
		if err != nil {
			return c.verifyFailed(state, err)
		}
		secret, err := c.verify.SharedSecret()
		if err != nil {
			return c.verifyFailed(state, err)
		}
		sess, err := session.NewSession(secret, session.RoleAccessory)
		crypto.Zeroize(secret)
		if err != nil {
			return c.verifyFailed(state, err)
		}
		id := c.verify.ControllerID()
		c.verify.Zeroize()
		c.verify = nil
		c.verified = true
		c.controllerID = id

		if c.m.log != nil {
			c.m.log.Debugf("pair-verify complete for %s from %s", id, c.remote)
		}
		remote := c.remote
		return &Response{
			Body:         encode(resp),
			Session:      sess,
			ControllerID: id,
			AfterWrite:   func() { c.m.onVerified(id, remote) },
		}, nil

	default:
		return c.verifyFailed(state, ErrUnknownState)
	}
}

// HandlePairings processes a /pairings request. Only a verified admin
// controller may add, remove or list pairings.
func (c *Channel) HandlePairings(body []byte) (*Response, error) {
	req, state, err := decodeRequest(body)
	if err != nil {
		return nil, err
	}
	if state != messages.M1 {
		return errorResponse(state, ErrUnknownState), nil
	}

	c.mu.Lock()
	verified, requester, closed := c.verified, c.controllerID, c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if !verified {
		return errorResponse(state, ErrNotVerified), nil
	}

	m := c.m
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	self, err := m.config.Store.Lookup(requester)
	if err != nil || !self.IsAdmin() {
		return errorResponse(state, ErrNotAdmin), nil
	}

	method, err := req.GetByte(tlv8.TypeMethod)
	if err != nil {
		return nil, err
	}
	switch messages.Method(method) {
	case messages.MethodAddPairing:
		return c.addPairing(req)
	case messages.MethodRemovePairing:
		return c.removePairing(req, requester)
	case messages.MethodListPairings:
		return c.listPairings()
	default:
		return errorResponse(state, fmt.Errorf("%w: %s", ErrUnknownMethod, messages.Method(method))), nil
	}
}

// addPairing handles Add Pairing. Caller must hold m.storeMu.
func (c *Channel) addPairing(req tlv8.Container) (*Response, error) {
	id, err := req.GetString(tlv8.TypeIdentifier)
	if err != nil {
		return nil, err
	}
	key, err := req.MustGet(tlv8.TypePublicKey)
	if err != nil {
		return nil, err
	}
	perm, err := req.GetByte(tlv8.TypePermissions)
	if err != nil {
		return nil, err
	}
	if pairing.Permissions(perm) > pairing.PermissionAdmin {
		return errorResponse(messages.M1, fmt.Errorf("%w: permissions %d", pairing.ErrInvalidPairing, perm)), nil
	}

	store := c.m.config.Store
	existing, err := store.Lookup(id)
	switch {
	case err == nil:
		if !existing.HasKey(key) {
			return errorResponse(messages.M1, ErrKeyMismatch), nil
		}
		err = store.Update(id, func(p *pairing.Pairing) error {
			p.Permissions = pairing.Permissions(perm)
			return nil
		})
	case errors.Is(err, pairing.ErrNotFound):
		err = store.Insert(&pairing.Pairing{
			Identifier:  id,
			PublicKey:   append(ed25519.PublicKey(nil), key...),
			Permissions: pairing.Permissions(perm),
		})
	}
	if err != nil {
		if c.m.log != nil {
			c.m.log.Warnf("add pairing %s: %v", id, err)
		}
		return errorResponse(messages.M1, err), nil
	}

	p, err := store.Lookup(id)
	if err != nil {
		return errorResponse(messages.M1, err), nil
	}
	if c.m.log != nil {
		c.m.log.Infof("added pairing %s (%s)", id, p.Permissions)
	}
	return &Response{
		Body:       encode(messages.NewResponse(messages.M2)),
		AfterWrite: func() { c.m.onPaired(p) },
	}, nil
}

// removePairing handles Remove Pairing. Removing the last admin removes
// every pairing. Caller must hold m.storeMu.
func (c *Channel) removePairing(req tlv8.Container, requester string) (*Response, error) {
	id, err := req.GetString(tlv8.TypeIdentifier)
	if err != nil {
		return nil, err
	}

	store := c.m.config.Store
	if err := store.Remove(id); err != nil {
		return errorResponse(messages.M1, err), nil
	}
	removed := []string{id}

	remaining, err := store.List()
	if err != nil {
		return errorResponse(messages.M1, err), nil
	}
	if !hasAdmin(remaining) && len(remaining) > 0 {
		if err := store.RemoveAll(); err != nil {
			return errorResponse(messages.M1, err), nil
		}
		for _, p := range remaining {
			removed = append(removed, p.Identifier)
		}
	}
	if c.m.log != nil {
		c.m.log.Infof("removed pairings %v", removed)
	}

	closeSelf := false
	for _, r := range removed {
		if r == requester {
			closeSelf = true
		}
	}
	return &Response{
		Body:  encode(messages.NewResponse(messages.M2)),
		Close: closeSelf,
		AfterWrite: func() {
			for _, r := range removed {
				c.m.onUnpaired(r)
			}
		},
	}, nil
}

// listPairings handles List Pairings. Caller must hold m.storeMu.
func (c *Channel) listPairings() (*Response, error) {
	list, err := c.m.config.Store.List()
	if err != nil {
		return errorResponse(messages.M1, err), nil
	}
	resp := messages.NewResponse(messages.M2)
	for i, p := range list {
		if i > 0 {
			resp.AddSeparator()
		}
		resp.AddString(tlv8.TypeIdentifier, p.Identifier)
		resp.Add(tlv8.TypePublicKey, p.PublicKey)
		resp.AddByte(tlv8.TypePermissions, byte(p.Permissions))
	}
	return &Response{Body: encode(resp)}, nil
}

// setupFailed logs a Pair Setup failure and releases the slot.
// Caller must hold c.mu.
func (c *Channel) setupFailed(state byte, err error) (*Response, error) {
	if c.m.log != nil {
		c.m.log.Infof("pair-setup M%d from %s failed: %v", state, c.remote, err)
	}
	return errorResponse(state, err), nil
}

// verifyFailed drops the verify state and asks the transport to close the
// connection. Caller must hold c.mu.
func (c *Channel) verifyFailed(state byte, err error) (*Response, error) {
	if c.m.log != nil {
		c.m.log.Infof("pair-verify M%d from %s failed: %v", state, c.remote, err)
	}
	c.abortVerify()
	resp := errorResponse(state, err)
	resp.Close = true
	return resp, nil
}

// abortVerify discards the Pair Verify session and refuses further
// attempts on this channel. Caller must hold c.mu.
func (c *Channel) abortVerify() {
	if c.verify != nil {
		c.verify.Zeroize()
		c.verify = nil
	}
	if !c.verified {
		c.verifyFatal = true
	}
}

// abortSetup discards the in-progress setup session, keeping the slot.
// Caller must hold c.mu.
func (c *Channel) abortSetup() {
	if c.setup != nil {
		c.setup.Abort()
		c.setup = nil
	}
}

// resetSetup discards the setup session and releases the slot.
// Caller must hold c.mu.
func (c *Channel) resetSetup() {
	c.abortSetup()
	c.m.releaseSetup(c)
}

func hasAdmin(list []*pairing.Pairing) bool {
	for _, p := range list {
		if p.IsAdmin() {
			return true
		}
	}
	return false
}

func decodeRequest(body []byte) (tlv8.Container, byte, error) {
	req, err := tlv8.Decode(body)
	if err != nil {
		return nil, 0, err
	}
	state, err := messages.State(req)
	if err != nil {
		return nil, 0, err
	}
	return req, state, nil
}

func encode(c tlv8.Container) []byte {
	return tlv8.Encode(c)
}
