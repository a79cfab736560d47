// Package crypto provides the cryptographic primitives used by HAP pairing
// and session security: HKDF-SHA-512 key derivation, ChaCha20-Poly1305 AEAD
// with HAP nonce layouts, and X25519 key agreement.
package crypto

import (
	"crypto/sha512"
	"errors"
	"hash"
	"io"
)

// SHA-512 constants.
const (
	// SHA512LenBytes is the SHA-512 output length in bytes.
	SHA512LenBytes = 64
)

// ErrRandomSource is returned when the random source fails to deliver
// bytes. Callers treat it as fatal for the whole process.
var ErrRandomSource = errors.New("crypto: random source failure")

// SHA512 computes the SHA-512 hash over the concatenation of parts.
func SHA512(parts ...[]byte) []byte {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// NewSHA512 returns a new hash.Hash computing SHA-512.
func NewSHA512() hash.Hash {
	return sha512.New()
}

// ReadRandom fills b from r, wrapping any failure in ErrRandomSource.
func ReadRandom(r io.Reader, b []byte) error {
	if _, err := io.ReadFull(r, b); err != nil {
		return errors.Join(ErrRandomSource, err)
	}
	return nil
}

// Zeroize overwrites b with zeros.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
