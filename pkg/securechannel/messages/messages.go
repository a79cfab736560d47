// Package messages defines the values shared by the HAP pairing exchanges:
// pairing methods, state numbers and TLV error codes, plus helpers to build
// and inspect error responses.
package messages

import (
	"errors"
	"fmt"

	"github.com/backkem/hap/pkg/tlv8"
)

// ContentType is the HTTP content type of every pairing request and response.
const ContentType = "application/pairing+tlv8"

// Method is the value of the Method item (0x00).
type Method uint8

const (
	MethodPairSetup         Method = 0
	MethodPairSetupWithAuth Method = 1
	MethodPairVerify        Method = 2
	MethodAddPairing        Method = 3
	MethodRemovePairing     Method = 4
	MethodListPairings      Method = 5
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodPairSetup:
		return "PairSetup"
	case MethodPairSetupWithAuth:
		return "PairSetupWithAuth"
	case MethodPairVerify:
		return "PairVerify"
	case MethodAddPairing:
		return "AddPairing"
	case MethodRemovePairing:
		return "RemovePairing"
	case MethodListPairings:
		return "ListPairings"
	default:
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
}

// Message numbers carried in the State item (0x06).
const (
	M1 byte = 1
	M2 byte = 2
	M3 byte = 3
	M4 byte = 4
	M5 byte = 5
	M6 byte = 6
)

// ErrorCode is the value of the Error item (0x07).
type ErrorCode uint8

const (
	ErrorCodeUnknown        ErrorCode = 0x01
	ErrorCodeAuthentication ErrorCode = 0x02
	ErrorCodeBackoff        ErrorCode = 0x03
	ErrorCodeMaxPeers       ErrorCode = 0x04
	ErrorCodeMaxTries       ErrorCode = 0x05
	ErrorCodeUnavailable    ErrorCode = 0x06
	ErrorCodeBusy           ErrorCode = 0x07
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeUnknown:
		return "Unknown"
	case ErrorCodeAuthentication:
		return "Authentication"
	case ErrorCodeBackoff:
		return "Backoff"
	case ErrorCodeMaxPeers:
		return "MaxPeers"
	case ErrorCodeMaxTries:
		return "MaxTries"
	case ErrorCodeUnavailable:
		return "Unavailable"
	case ErrorCodeBusy:
		return "Busy"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// ErrInvalidStateItem is returned when the State item is missing or not
// the expected message number.
var ErrInvalidStateItem = errors.New("messages: unexpected state item")

// RemoteError is an error response received from the peer.
type RemoteError struct {
	State byte
	Code  ErrorCode
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("messages: peer returned %s in M%d", e.Code, e.State)
}

// NewResponse starts a response container for message number state.
func NewResponse(state byte) tlv8.Container {
	c := tlv8.Container{}
	c.AddByte(tlv8.TypeState, state)
	return c
}

// NewErrorResponse builds the error response for message number state.
func NewErrorResponse(state byte, code ErrorCode) tlv8.Container {
	c := NewResponse(state)
	c.AddByte(tlv8.TypeError, byte(code))
	return c
}

// State returns the message number of c.
func State(c tlv8.Container) (byte, error) {
	return c.GetByte(tlv8.TypeState)
}

// ExpectState checks that c carries message number want and no Error item.
// An Error item is returned as *RemoteError.
func ExpectState(c tlv8.Container, want byte) error {
	got, err := State(c)
	if err != nil {
		return err
	}
	if code, ok := c.Get(tlv8.TypeError); ok && len(code) == 1 {
		return &RemoteError{State: got, Code: ErrorCode(code[0])}
	}
	if got != want {
		return fmt.Errorf("%w: got M%d, want M%d", ErrInvalidStateItem, got, want)
	}
	return nil
}
