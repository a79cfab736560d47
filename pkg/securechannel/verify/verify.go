// Package verify implements HAP Pair Verify (M1 to M4).
//
// Pair Verify authenticates a paired controller on every new connection
// with an ephemeral X25519 exchange and long-term Ed25519 signatures, and
// yields the shared secret from which the session traffic keys are derived.
//
// Protocol flow:
//
//	Controller                              Accessory (Session)
//	----------                              -------------------
//	M1 {State, PublicKey} ------------>     HandleM1: X25519, sign
//	               <---------------------   M2 {State, PublicKey, EncryptedData}
//	M3 {State, EncryptedData} -------->     HandleM3: lookup, verify
//	               <---------------------   M4 {State}
package verify

import (
	"errors"
	"fmt"
)

const (
	encryptSalt = "Pair-Verify-Encrypt-Salt"
	encryptInfo = "Pair-Verify-Encrypt-Info"

	nonceM2 = "PV-Msg02"
	nonceM3 = "PV-Msg03"
)

// Errors
var (
	// ErrInvalidState is returned when a message arrives out of order.
	ErrInvalidState = errors.New("verify: invalid state for this message")
	// ErrAuthenticationFailed is returned on a tag or signature mismatch.
	ErrAuthenticationFailed = errors.New("verify: authentication failed")
	// ErrUnknownPeer is returned when the controller is not paired.
	ErrUnknownPeer = errors.New("verify: unknown peer")
)

// State is the Pair Verify responder state.
type State int

const (
	StateAwaitingM1 State = iota
	StateAwaitingM3
	StateEstablished
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAwaitingM1:
		return "AwaitingM1"
	case StateAwaitingM3:
		return "AwaitingM3"
	case StateEstablished:
		return "Established"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
