package setup

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/crypto/srp"
	"github.com/backkem/hap/pkg/pairing"
	"github.com/backkem/hap/pkg/securechannel/messages"
	"github.com/backkem/hap/pkg/tlv8"
)

// Config configures a Pair Setup responder.
type Config struct {
	// Identity is the accessory long-term identity. Required.
	Identity *pairing.Identity

	// Store receives the new controller pairing. Required.
	Store pairing.Store

	// SetupCode is the "XXX-XX-XXX" code shown to the user. Required.
	SetupCode string

	// Rand is the random source for the salt and SRP secret.
	// Default: crypto/rand.Reader.
	Rand io.Reader
}

// Session is one Pair Setup attempt on the accessory side.
//
// Usage:
//
//	s, _ := setup.NewSession(cfg)
//	m2, _ := s.HandleM1(m1)
//	m4, _ := s.HandleM3(m3)
//	m6, _ := s.HandleM5(m5)
//	p := s.Pairing()
//
// Any error moves the session to StateFailed; a fresh attempt needs a new
// Session.
type Session struct {
	identity  *pairing.Identity
	store     pairing.Store
	setupCode string
	rand      io.Reader

	state   State
	method  messages.Method
	flags   uint64
	srp     *srp.Server
	key     []byte
	encKey  [crypto.KeySize]byte
	pairing *pairing.Pairing

	mu sync.Mutex
}

// NewSession creates a responder in StateAwaitingM1.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Identity == nil {
		return nil, errors.New("setup: identity is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("setup: store is required")
	}
	if err := ValidateSetupCode(cfg.SetupCode); err != nil {
		return nil, err
	}
	r := cfg.Rand
	if r == nil {
		r = rand.Reader
	}
	return &Session{
		identity:  cfg.Identity,
		store:     cfg.Store,
		setupCode: cfg.SetupCode,
		rand:      r,
		state:     StateAwaitingM1,
	}, nil
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Method returns the method requested in M1.
func (s *Session) Method() messages.Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// Flags returns the pairing type flags sent in M1, if any. Transient and
// split pairing are not supported; the flags are informational.
func (s *Session) Flags() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// Pairing returns the stored controller pairing once established.
func (s *Session) Pairing() *pairing.Pairing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairing.Clone()
}

// Abort discards all ephemeral state and marks the session failed.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail()
}

// HandleM1 processes the start request and returns M2.
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

	method, err := req.GetByte(tlv8.TypeMethod)
	if err != nil {
		s.fail()
		return nil, err
	}
	s.method = messages.Method(method)
	if s.method != messages.MethodPairSetup && s.method != messages.MethodPairSetupWithAuth {
		s.fail()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, s.method)
	}
	if req.Has(tlv8.TypeFlags) {
		if s.flags, err = req.GetUint(tlv8.TypeFlags); err != nil {
			s.fail()
			return nil, err
		}
	}

	salt := make([]byte, srp.SaltSizeBytes)
	if err := crypto.ReadRandom(s.rand, salt); err != nil {
		s.fail()
		return nil, err
	}
	verifier := srp.ComputeVerifier(salt, srp.Username, s.setupCode)
	server, err := srp.NewServer(srp.Username, salt, verifier)
	if err != nil {
		s.fail()
		return nil, err
	}
	server.SetRandom(s.rand)
	B, err := server.PublicKey()
	if err != nil {
		s.fail()
		return nil, err
	}
	s.srp = server

	resp := messages.NewResponse(messages.M2)
	resp.Add(tlv8.TypePublicKey, B)
	resp.Add(tlv8.TypeSalt, salt)

	s.state = StateAwaitingM3
	return resp, nil
}

// HandleM3 verifies the controller proof and returns M4.
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

	A, err := req.MustGet(tlv8.TypePublicKey)
	if err != nil {
		s.fail()
		return nil, err
	}
	proof, err := req.MustGet(tlv8.TypeProof)
	if err != nil {
		s.fail()
		return nil, err
	}

	if err := s.srp.ProcessClientKey(A); err != nil {
		s.fail()
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if err := s.srp.VerifyClientProof(proof); err != nil {
		s.fail()
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	serverProof, err := s.srp.ServerProof()
	if err != nil {
		s.fail()
		return nil, err
	}
	if s.key, err = s.srp.SessionKey(); err != nil {
		s.fail()
		return nil, err
	}
	if s.encKey, err = crypto.DeriveKey(s.key, encryptSalt, encryptInfo); err != nil {
		s.fail()
		return nil, err
	}

	resp := messages.NewResponse(messages.M4)
	resp.Add(tlv8.TypeProof, serverProof)

	s.state = StateAwaitingM5
	return resp, nil
}

// HandleM5 verifies the controller's long-term key, stores the pairing and
// returns M6.
func (s *Session) HandleM5(req tlv8.Container) (tlv8.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingM5 {
		s.fail()
		return nil, ErrInvalidState
	}
	if err := messages.ExpectState(req, messages.M5); err != nil {
		s.fail()
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	encrypted, err := req.MustGet(tlv8.TypeEncryptedData)
	if err != nil {
		s.fail()
		return nil, err
	}
	plaintext, err := crypto.OpenLabeled(s.encKey, nonceM5, encrypted)
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
	controllerLTPK, err := sub.MustGet(tlv8.TypePublicKey)
	if err != nil {
		s.fail()
		return nil, err
	}
	signature, err := sub.MustGet(tlv8.TypeSignature)
	if err != nil {
		s.fail()
		return nil, err
	}
	if len(controllerLTPK) != ed25519.PublicKeySize {
		s.fail()
		return nil, fmt.Errorf("%w: controller key is %d bytes", ErrAuthenticationFailed, len(controllerLTPK))
	}

	controllerX, err := crypto.DeriveKey(s.key, controllerSignSalt, controllerSignInfo)
	if err != nil {
		s.fail()
		return nil, err
	}
	deviceInfo := concat(controllerX[:], controllerID, controllerLTPK)
	if !ed25519.Verify(ed25519.PublicKey(controllerLTPK), deviceInfo, signature) {
		s.fail()
		return nil, fmt.Errorf("%w: controller signature", ErrAuthenticationFailed)
	}

	accessoryX, err := crypto.DeriveKey(s.key, accessorySignSalt, accessorySignInfo)
	if err != nil {
		s.fail()
		return nil, err
	}
	accessoryID := []byte(s.identity.DeviceID)
	accessoryLTPK := s.identity.PublicKey()
	accessoryInfo := concat(accessoryX[:], accessoryID, accessoryLTPK)

	var out tlv8.Container
	out.Add(tlv8.TypeIdentifier, accessoryID)
	out.Add(tlv8.TypePublicKey, accessoryLTPK)
	out.Add(tlv8.TypeSignature, s.identity.Sign(accessoryInfo))

	sealed, err := crypto.SealLabeled(s.encKey, nonceM6, tlv8.Encode(out))
	if err != nil {
		s.fail()
		return nil, err
	}

	resp := messages.NewResponse(messages.M6)
	resp.Add(tlv8.TypeEncryptedData, sealed)

	// The pairing is committed only once M6 is ready to send.
	p := &pairing.Pairing{
		Identifier:  string(controllerID),
		PublicKey:   ed25519.PublicKey(controllerLTPK),
		Permissions: pairing.PermissionAdmin,
	}
	if err := s.store.Insert(p); err != nil {
		s.fail()
		return nil, err
	}

	s.pairing = p
	s.state = StateEstablished
	s.zeroize()
	return resp, nil
}

// fail marks the session failed and drops all ephemeral state.
// Caller must hold s.mu.
func (s *Session) fail() {
	s.state = StateFailed
	s.zeroize()
}

// zeroize clears the SRP state and derived keys. Caller must hold s.mu.
func (s *Session) zeroize() {
	if s.srp != nil {
		s.srp.Zeroize()
		s.srp = nil
	}
	crypto.Zeroize(s.key)
	s.key = nil
	crypto.Zeroize(s.encKey[:])
}
