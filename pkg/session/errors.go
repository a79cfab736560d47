package session

import "errors"

// Session package errors.
var (
	// ErrInvalidRole is returned when the role is not Accessory or Controller.
	ErrInvalidRole = errors.New("session: invalid session role")

	// ErrNonceExhausted is returned when a direction's frame counter reached
	// its maximum. A fresh Pair Verify is required.
	ErrNonceExhausted = errors.New("session: nonce counter exhausted")

	// ErrTagMismatch is returned when a frame fails authentication. No
	// plaintext is returned and the session is unusable afterwards.
	ErrTagMismatch = errors.New("session: frame authentication failed")

	// ErrFrameTooLarge is returned when a frame announces more than
	// MaxFrameLength plaintext bytes.
	ErrFrameTooLarge = errors.New("session: frame too large")

	// ErrMalformedFrame is returned when a frame is shorter than its header
	// and tag or its length field does not match.
	ErrMalformedFrame = errors.New("session: malformed frame")

	// ErrClosed is returned after the session keys were destroyed.
	ErrClosed = errors.New("session: closed")
)
