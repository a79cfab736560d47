package tlv8

import "errors"

var (
	// ErrMalformed is returned when the input is truncated or an item header
	// announces more bytes than are available.
	ErrMalformed = errors.New("tlv8: malformed input")

	// ErrMissingItem is returned when a required item is absent.
	ErrMissingItem = errors.New("tlv8: missing item")

	// ErrInvalidLength is returned when an item has the wrong length for the
	// requested accessor (e.g. GetByte on a multi-byte value).
	ErrInvalidLength = errors.New("tlv8: invalid item length")
)
