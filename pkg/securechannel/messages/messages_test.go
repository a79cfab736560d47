package messages

import (
	"errors"
	"testing"

	"github.com/backkem/hap/pkg/tlv8"
)

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(M4, ErrorCodeAuthentication)
	want := []byte{0x06, 0x01, 0x04, 0x07, 0x01, 0x02}
	if got := tlv8.Encode(resp); string(got) != string(want) {
		t.Errorf("Encode() = %x, want %x", got, want)
	}
}

func TestExpectState(t *testing.T) {
	if err := ExpectState(NewResponse(M2), M2); err != nil {
		t.Errorf("ExpectState(M2) error = %v", err)
	}
	if err := ExpectState(NewResponse(M4), M2); !errors.Is(err, ErrInvalidStateItem) {
		t.Errorf("ExpectState(wrong) error = %v, want ErrInvalidStateItem", err)
	}
	if err := ExpectState(tlv8.Container{}, M2); !errors.Is(err, tlv8.ErrMissingItem) {
		t.Errorf("ExpectState(empty) error = %v, want ErrMissingItem", err)
	}

	err := ExpectState(NewErrorResponse(M2, ErrorCodeBusy), M2)
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("ExpectState(error) = %v, want *RemoteError", err)
	}
	if remote.Code != ErrorCodeBusy || remote.State != M2 {
		t.Errorf("RemoteError = %+v", remote)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{MethodPairSetup.String(), "PairSetup"},
		{MethodListPairings.String(), "ListPairings"},
		{Method(9).String(), "Method(9)"},
		{ErrorCodeMaxTries.String(), "MaxTries"},
		{ErrorCode(0).String(), "ErrorCode(0)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %s, want %s", tt.got, tt.want)
		}
	}
}
