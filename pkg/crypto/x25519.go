package crypto

import (
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// X25519 sizes.
const (
	X25519KeySize = curve25519.ScalarSize
)

// ErrInvalidPublicKey is returned for a malformed or low-order X25519 point.
var ErrInvalidPublicKey = errors.New("x25519: invalid public key")

// X25519KeyPair is an ephemeral Curve25519 key pair. It is scoped to one
// handshake; call Zeroize when the handshake ends.
type X25519KeyPair struct {
	Private [X25519KeySize]byte
	Public  [X25519KeySize]byte
}

// GenerateX25519 creates a new ephemeral key pair from rand.
func GenerateX25519(rand io.Reader) (*X25519KeyPair, error) {
	kp := &X25519KeyPair{}
	if err := ReadRandom(rand, kp.Private[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret computes X25519(private, peer). Low-order peer points, which
// produce an all-zero secret, are rejected.
func (kp *X25519KeyPair) SharedSecret(peer []byte) ([]byte, error) {
	if len(peer) != X25519KeySize {
		return nil, ErrInvalidPublicKey
	}
	secret, err := curve25519.X25519(kp.Private[:], peer)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}
	return secret, nil
}

// Zeroize clears the private scalar.
func (kp *X25519KeyPair) Zeroize() {
	Zeroize(kp.Private[:])
}
