package accessory

import (
	"fmt"
	"strconv"
	"strings"
)

// SetupCode is a normalized "XXX-XX-XXX" pairing code.
type SetupCode string

// trivialSetupCodes cannot be used as pairing codes.
var trivialSetupCodes = map[string]bool{
	"00000000": true,
	"11111111": true,
	"22222222": true,
	"33333333": true,
	"44444444": true,
	"55555555": true,
	"66666666": true,
	"77777777": true,
	"88888888": true,
	"99999999": true,
	"12345678": true,
	"87654321": true,
}

// ParseSetupCode accepts "XXX-XX-XXX" or 8 digits.
func ParseSetupCode(s string) (SetupCode, error) {
	digits := s
	if len(s) == 10 {
		if s[3] != '-' || s[6] != '-' {
			return "", fmt.Errorf("%w: %q", ErrInvalidSetupCode, s)
		}
		digits = s[:3] + s[4:6] + s[7:]
	}
	if len(digits) != 8 {
		return "", fmt.Errorf("%w: %q", ErrInvalidSetupCode, s)
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidSetupCode, s)
		}
	}
	if trivialSetupCodes[digits] {
		return "", fmt.Errorf("%w: %q is too simple", ErrInvalidSetupCode, s)
	}
	return SetupCode(digits[:3] + "-" + digits[3:5] + "-" + digits[5:]), nil
}

// String returns the "XXX-XX-XXX" form.
func (c SetupCode) String() string {
	return string(c)
}

// Number returns the code as an integer, as used in the setup payload.
func (c SetupCode) Number() uint32 {
	n, _ := strconv.ParseUint(strings.ReplaceAll(string(c), "-", ""), 10, 32)
	return uint32(n)
}

// validSetupID reports whether id is 4 characters of [0-9A-Z].
func validSetupID(id string) bool {
	if len(id) != 4 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

// Setup payload flag for IP accessories.
const setupFlagIP = 2

// SetupURI returns the X-HM:// payload encoded in accessory QR codes.
// setupID must be 4 characters of [0-9A-Z].
func SetupURI(code SetupCode, category uint16, setupID string) string {
	payload := uint64(code.Number()) | uint64(setupFlagIP)<<27 | uint64(category)<<31
	enc := strings.ToUpper(strconv.FormatUint(payload, 36))
	if len(enc) < 9 {
		enc = strings.Repeat("0", 9-len(enc)) + enc
	}
	return "X-HM://" + enc + setupID
}
