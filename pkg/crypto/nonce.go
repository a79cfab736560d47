package crypto

import (
	"encoding/binary"
	"errors"
)

// NonceSize is the ChaCha20-Poly1305 nonce length (12 bytes).
//
// HAP nonces are 8 bytes wide and left padded with 4 zero bytes.
const NonceSize = 12

// hapNonceSize is the significant part of a HAP nonce.
const hapNonceSize = 8

// ErrInvalidLabel is returned when a nonce label is not exactly 8 bytes.
var ErrInvalidLabel = errors.New("nonce: label must be 8 bytes")

// LabelNonce builds the nonce for a pairing sub-message, e.g. "PS-Msg05".
// Format: 0x00000000 || label.
func LabelNonce(label string) ([NonceSize]byte, error) {
	var nonce [NonceSize]byte
	if len(label) != hapNonceSize {
		return nonce, ErrInvalidLabel
	}
	copy(nonce[NonceSize-hapNonceSize:], label)
	return nonce, nil
}

// CounterNonce builds the nonce for frame number counter of a session.
// Format: 0x00000000 || counter (8 bytes, little-endian).
func CounterNonce(counter uint64) [NonceSize]byte {
	var nonce [NonceSize]byte
	binary.LittleEndian.PutUint64(nonce[NonceSize-hapNonceSize:], counter)
	return nonce
}
