package srp

import (
	"io"
	"math/big"

	"github.com/backkem/hap/pkg/crypto"
)

type serverState int

const (
	serverInit serverState = iota
	serverChallengeSent
	serverKeyComputed
	serverVerified
)

// Server is the accessory side of an SRP exchange. A Server is used for one
// pairing attempt; a retry requires a new Server with a fresh salt.
type Server struct {
	grp      *Group
	username string
	salt     []byte
	v        *big.Int

	b  *big.Int
	B  *big.Int
	A  *big.Int
	K  []byte
	m1 []byte

	state serverState
	rand  io.Reader
}

// NewServer creates a server for the given identity, salt and verifier
// (as returned by ComputeVerifier).
func NewServer(username string, salt, verifier []byte) (*Server, error) {
	if len(salt) == 0 {
		return nil, ErrInvalidSaltLength
	}
	return &Server{
		grp:      Group3072,
		username: username,
		salt:     copyBytes(salt),
		v:        new(big.Int).SetBytes(verifier),
		rand:     defaultRand,
	}, nil
}

// SetRandom sets the random source for testing.
func (s *Server) SetRandom(r io.Reader) {
	s.rand = r
}

// Salt returns the salt bound to this server.
func (s *Server) Salt() []byte {
	return copyBytes(s.salt)
}

// PublicKey generates the ephemeral secret b and returns
// B = (k*v + g^b) mod N, padded to KeySizeBytes.
func (s *Server) PublicKey() ([]byte, error) {
	if s.state != serverInit {
		return nil, ErrInvalidState
	}
	b, err := generateSecret(s.rand)
	if err != nil {
		return nil, err
	}
	k := s.grp.multiplier()
	kv := new(big.Int).Mul(k, s.v)
	gb := new(big.Int).Exp(s.grp.G, b, s.grp.N)
	B := kv.Add(kv, gb)
	B.Mod(B, s.grp.N)

	s.b = b
	s.B = B
	s.state = serverChallengeSent
	return s.grp.pad(B), nil
}

// ProcessClientKey consumes the client public key A and derives the session
// key K = H(PAD(S)) with S = (A * v^u)^b mod N.
func (s *Server) ProcessClientKey(clientPub []byte) error {
	if s.state != serverChallengeSent {
		return ErrInvalidState
	}
	A := new(big.Int).SetBytes(clientPub)
	if s.grp.isZeroMod(A) {
		return ErrInvalidPublicKey
	}

	u := computeU(s.grp, A, s.B)
	vu := new(big.Int).Exp(s.v, u, s.grp.N)
	base := vu.Mul(A, vu)
	base.Mod(base, s.grp.N)
	S := new(big.Int).Exp(base, s.b, s.grp.N)

	premaster := s.grp.pad(S)
	s.K = crypto.SHA512(premaster)
	crypto.Zeroize(premaster)

	s.A = A
	s.m1 = clientProof(s.grp, s.username, s.salt, A, s.B, s.K)
	s.state = serverKeyComputed
	return nil
}

// VerifyClientProof checks M1 from the client in constant time.
func (s *Server) VerifyClientProof(m1 []byte) error {
	if s.state != serverKeyComputed {
		return ErrInvalidState
	}
	if len(m1) != ProofSizeBytes {
		return ErrInvalidProofSize
	}
	if !proofsEqual(s.m1, m1) {
		return ErrProofMismatch
	}
	s.state = serverVerified
	return nil
}

// ServerProof returns M2 = H(PAD(A) | M1 | K). Only valid after the
// client proof verified.
func (s *Server) ServerProof() ([]byte, error) {
	if s.state != serverVerified {
		return nil, ErrInvalidState
	}
	return serverProof(s.grp, s.A, s.m1, s.K), nil
}

// SessionKey returns K. Only valid after the client proof verified.
func (s *Server) SessionKey() ([]byte, error) {
	if s.state != serverVerified {
		return nil, ErrInvalidState
	}
	return copyBytes(s.K), nil
}

// Zeroize clears the ephemeral secret and the session key.
func (s *Server) Zeroize() {
	if s.b != nil {
		s.b.SetInt64(0)
	}
	crypto.Zeroize(s.K)
}
