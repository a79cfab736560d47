// Package session implements the HAP session layer: the encrypted framing
// used on a connection after Pair Verify succeeds.
//
// Each direction has its own ChaCha20-Poly1305 key and a 64-bit frame
// counter used as the nonce. A frame on the wire is
//
//	length (2 bytes, little-endian) || ciphertext || tag (16 bytes)
//
// where length is the plaintext length (at most 1024) and also the AAD.
// A frame that fails authentication is fatal for the connection.
package session

// Role identifies which end of the connection the local side is. It selects
// which derived key encrypts and which decrypts.
type Role int

const (
	// RoleUnknown indicates an uninitialized or invalid role.
	RoleUnknown Role = iota

	// RoleAccessory decrypts with the Control-Write key and encrypts with
	// the Control-Read key.
	RoleAccessory

	// RoleController encrypts with the Control-Write key and decrypts with
	// the Control-Read key.
	RoleController
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleAccessory:
		return "Accessory"
	case RoleController:
		return "Controller"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the role is a defined value.
func (r Role) IsValid() bool {
	return r == RoleAccessory || r == RoleController
}
