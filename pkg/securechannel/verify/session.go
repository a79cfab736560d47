package verify

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/pairing"
	"github.com/backkem/hap/pkg/securechannel/messages"
	"github.com/backkem/hap/pkg/tlv8"
)

// Config configures a Pair Verify responder.
type Config struct {
	// Identity is the accessory long-term identity. Required.
	Identity *pairing.Identity

	// Store is consulted for the controller's long-term key. Required.
	Store pairing.Store

	// Rand is the random source for the ephemeral key.
	// Default: crypto/rand.Reader.
	Rand io.Reader
}

// Session is one Pair Verify handshake on the accessory side.
//
// Usage:
//
//	s, _ := verify.NewSession(cfg)
//	m2, _ := s.HandleM1(m1)
//	m4, _ := s.HandleM3(m3)
//	secret, _ := s.SharedSecret()
//	s.Zeroize()
//
// A failed handshake is not retried on the same connection.
type Session struct {
	identity *pairing.Identity
	store    pairing.Store
	rand     io.Reader

	state         State
	ephemeral     *crypto.X25519KeyPair
	controllerPub []byte
	shared        []byte
	encKey        [crypto.KeySize]byte
	controller    *pairing.Pairing

	mu sync.Mutex
}

// NewSession creates a responder in StateAwaitingM1.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Identity == nil {
		return nil, errors.New("verify: identity is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("verify: store is required")
	}
	r := cfg.Rand
	if r == nil {
		r = rand.Reader
	}
	return &Session{
		identity: cfg.Identity,
		store:    cfg.Store,
		rand:     r,
		state:    StateAwaitingM1,
	}, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleM1 performs the key agreement and returns M2.
func (s *Session) HandleM1(req tlv8.Container) (tlv8.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingM1 {
		s.fail()
		return nil, ErrInvalidState
	}
	if err := messages.ExpectState(req, messages.M1); err != nil {
		s.fail()
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	controllerPub, err := req.MustGet(tlv8.TypePublicKey)
	if err != nil {
		s.fail()
		return nil, err
	}

	kp, err := crypto.GenerateX25519(s.rand)
	if err != nil {
		s.fail()
		return nil, err
	}
	s.ephemeral = kp
	if s.shared, err = kp.SharedSecret(controllerPub); err != nil {
		s.fail()
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if s.encKey, err = crypto.DeriveKey(s.shared, encryptSalt, encryptInfo); err != nil {
		s.fail()
		return nil, err
	}
	s.controllerPub = append([]byte(nil), controllerPub...)

	accessoryID := []byte(s.identity.DeviceID)
	accessoryInfo := concat(kp.Public[:], accessoryID, controllerPub)

	var sub tlv8.Container
	sub.Add(tlv8.TypeIdentifier, accessoryID)
	sub.Add(tlv8.TypeSignature, s.identity.Sign(accessoryInfo))
	sealed, err := crypto.SealLabeled(s.encKey, nonceM2, tlv8.Encode(sub))
	if err != nil {
		s.fail()
		return nil, err
	}

	resp := messages.NewResponse(messages.M2)
	resp.Add(tlv8.TypePublicKey, kp.Public[:])
	resp.Add(tlv8.TypeEncryptedData, sealed)

	s.state = StateAwaitingM3
	return resp, nil
}

// HandleM3 authenticates the controller and returns M4.
func (s *Session) HandleM3(req tlv8.Container) (tlv8.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingM3 {
		s.fail()
		return nil, ErrInvalidState
	}
	if err := messages.ExpectState(req, messages.M3); err != nil {
		s.fail()
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	encrypted, err := req.MustGet(tlv8.TypeEncryptedData)
	if err != nil {
		s.fail()
		return nil, err
	}
	plaintext, err := crypto.OpenLabeled(s.encKey, nonceM3, encrypted)
	if err != nil {
		s.fail()
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	sub, err := tlv8.Decode(plaintext)
	if err != nil {
		s.fail()
		return nil, err
	}
	controllerID, err := sub.MustGet(tlv8.TypeIdentifier)
	if err != nil {
		s.fail()
		return nil, err
	}
	signature, err := sub.MustGet(tlv8.TypeSignature)
	if err != nil {
		s.fail()
		return nil, err
	}

	p, err := s.store.Lookup(string(controllerID))
	if errors.Is(err, pairing.ErrNotFound) {
		s.fail()
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeer, controllerID)
	}
	if err != nil {
		s.fail()
		return nil, err
	}

	controllerInfo := concat(s.controllerPub, controllerID, s.ephemeral.Public[:])
	if !ed25519.Verify(p.PublicKey, controllerInfo, signature) {
		s.fail()
		return nil, fmt.Errorf("%w: controller signature", ErrAuthenticationFailed)
	}

	s.controller = p
	s.state = StateEstablished
	s.ephemeral.Zeroize()
	crypto.Zeroize(s.encKey[:])
	return messages.NewResponse(messages.M4), nil
}

// SharedSecret returns a copy of the X25519 shared secret once the
// handshake is established.
func (s *Session) SharedSecret() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateEstablished || s.shared == nil {
		return nil, ErrInvalidState
	}
	return append([]byte(nil), s.shared...), nil
}

// Controller returns the verified controller pairing.
func (s *Session) Controller() *pairing.Pairing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controller.Clone()
}

// ControllerID returns the verified controller identifier.
func (s *Session) ControllerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controller == nil {
		return ""
	}
	return s.controller.Identifier
}

// Zeroize clears the ephemeral key and the shared secret. Call it after the
// shared secret has been handed to the session layer.
func (s *Session) Zeroize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zeroize()
}

// fail marks the session failed. Caller must hold s.mu.
func (s *Session) fail() {
	s.state = StateFailed
	s.zeroize()
}

// zeroize caller must hold s.mu.
func (s *Session) zeroize() {
	if s.ephemeral != nil {
		s.ephemeral.Zeroize()
	}
	crypto.Zeroize(s.shared)
	s.shared = nil
	crypto.Zeroize(s.encKey[:])
}
