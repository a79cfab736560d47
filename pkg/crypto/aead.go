package crypto

import (
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// TagSize is the Poly1305 authentication tag length.
const TagSize = chacha20poly1305.Overhead

// ErrDecrypt is returned when an AEAD tag does not verify.
var ErrDecrypt = errors.New("aead: message authentication failed")

// NewAEAD returns a ChaCha20-Poly1305 cipher for key.
func NewAEAD(key [KeySize]byte) (cipher.AEAD, error) {
	return chacha20poly1305.New(key[:])
}

// SealLabeled encrypts a pairing sub-message under key with a label nonce.
// The result is ciphertext || tag.
func SealLabeled(key [KeySize]byte, label string, plaintext []byte) ([]byte, error) {
	aead, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, err := LabelNonce(label)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce[:], plaintext, nil), nil
}

// OpenLabeled decrypts a pairing sub-message produced by SealLabeled.
// No plaintext is returned when authentication fails.
func OpenLabeled(key [KeySize]byte, label string, sealed []byte) ([]byte, error) {
	aead, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, err := LabelNonce(label)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce[:], sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
