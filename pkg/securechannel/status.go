package securechannel

import (
	"errors"

	"github.com/backkem/hap/pkg/pairing"
	"github.com/backkem/hap/pkg/securechannel/messages"
	"github.com/backkem/hap/pkg/securechannel/setup"
	"github.com/backkem/hap/pkg/securechannel/verify"
)

// ErrorCodeFor maps a handshake error to the TLV error code sent to the
// controller.
func ErrorCodeFor(err error) messages.ErrorCode {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, setup.ErrAuthenticationFailed),
		errors.Is(err, verify.ErrAuthenticationFailed),
		errors.Is(err, verify.ErrUnknownPeer),
		errors.Is(err, ErrNotAdmin),
		errors.Is(err, ErrNotVerified):
		return messages.ErrorCodeAuthentication
	case errors.Is(err, ErrBusy):
		return messages.ErrorCodeBusy
	case errors.Is(err, pairing.ErrStoreFull):
		return messages.ErrorCodeMaxPeers
	case errors.Is(err, ErrMaxTries):
		return messages.ErrorCodeMaxTries
	case errors.Is(err, ErrAlreadyPaired),
		errors.Is(err, setup.ErrUnsupportedMethod):
		return messages.ErrorCodeUnavailable
	default:
		return messages.ErrorCodeUnknown
	}
}

// errorResponse builds the TLV error response for a failed request with
// message number state.
func errorResponse(state byte, err error) *Response {
	return &Response{Body: encode(messages.NewErrorResponse(state+1, ErrorCodeFor(err)))}
}
