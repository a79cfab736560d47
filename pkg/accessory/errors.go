package accessory

import "errors"

// Package-level errors.
var (
	// ErrAlreadyStarted is returned when Start() is called on a running accessory.
	ErrAlreadyStarted = errors.New("accessory: already started")

	// ErrNotStarted is returned when an operation requires a running accessory.
	ErrNotStarted = errors.New("accessory: not started")

	// ErrAlreadyStopped is returned when Stop() is called on a stopped accessory.
	ErrAlreadyStopped = errors.New("accessory: already stopped")

	// ErrInvalidName is returned when Name is empty.
	ErrInvalidName = errors.New("accessory: name is required")

	// ErrInvalidSetupCode is returned for malformed or trivial setup codes.
	ErrInvalidSetupCode = errors.New("accessory: invalid setup code")

	// ErrInvalidSetupID is returned when SetupID is not 4 characters of [0-9A-Z].
	ErrInvalidSetupID = errors.New("accessory: setup id must be 4 characters 0-9 or A-Z")

	// ErrInvalidPort is returned when Port is out of range.
	ErrInvalidPort = errors.New("accessory: port must be 0-65535")
)
