// Package setup implements HAP Pair Setup (M1 to M6).
//
// Pair Setup authenticates the setup code with SRP-6a, exchanges long-term
// Ed25519 public keys inside an encrypted sub-TLV and stores the controller
// as an admin pairing.
//
// Protocol flow:
//
//	Controller                              Accessory (Session)
//	----------                              -------------------
//	M1 {State, Method} --------------->     HandleM1: salt, B
//	               <---------------------   M2 {State, PublicKey=B, Salt}
//	M3 {State, PublicKey=A, Proof=M1} ->    HandleM3: verify M1
//	               <---------------------   M4 {State, Proof=M2}
//	M5 {State, EncryptedData} -------->     HandleM5: verify, store pairing
//	               <---------------------   M6 {State, EncryptedData}
package setup

import (
	"errors"
	"fmt"
)

// Key derivation strings and nonce labels.
const (
	encryptSalt = "Pair-Setup-Encrypt-Salt"
	encryptInfo = "Pair-Setup-Encrypt-Info"

	controllerSignSalt = "Pair-Setup-Controller-Sign-Salt"
	controllerSignInfo = "Pair-Setup-Controller-Sign-Info"

	accessorySignSalt = "Pair-Setup-Accessory-Sign-Salt"
	accessorySignInfo = "Pair-Setup-Accessory-Sign-Info"

	nonceM5 = "PS-Msg05"
	nonceM6 = "PS-Msg06"
)

// Errors
var (
	// ErrInvalidState is returned when a message arrives out of order.
	ErrInvalidState = errors.New("setup: invalid state for this message")
	// ErrAuthenticationFailed is returned on a proof, tag or signature mismatch.
	ErrAuthenticationFailed = errors.New("setup: authentication failed")
	// ErrUnsupportedMethod is returned for an M1 method other than Pair Setup.
	ErrUnsupportedMethod = errors.New("setup: unsupported pairing method")
	// ErrInvalidSetupCode is returned for a setup code not of the form XXX-XX-XXX.
	ErrInvalidSetupCode = errors.New("setup: invalid setup code")
)

// State is the Pair Setup responder state.
type State int

const (
	StateAwaitingM1 State = iota
	StateAwaitingM3
	StateAwaitingM5
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
	case StateAwaitingM5:
		return "AwaitingM5"
	case StateEstablished:
		return "Established"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ValidateSetupCode checks the "XXX-XX-XXX" form used as the SRP password.
func ValidateSetupCode(code string) error {
	if len(code) != 10 || code[3] != '-' || code[6] != '-' {
		return fmt.Errorf("%w: %q", ErrInvalidSetupCode, code)
	}
	for i, c := range code {
		if i == 3 || i == 6 {
			continue
		}
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidSetupCode, code)
		}
	}
	return nil
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
