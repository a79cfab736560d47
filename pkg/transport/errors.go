package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when no pairing channel factory is configured.
	ErrNoHandler = errors.New("transport: no channel factory configured")

	// ErrAlreadyStarted is returned when Start is called on an already running transport.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrBodyTooLarge is returned when a request body exceeds MaxBodySize.
	ErrBodyTooLarge = errors.New("transport: request body too large")
)
