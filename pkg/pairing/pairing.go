// Package pairing holds the accessory's long-term identity and the store of
// paired controllers.
//
// A controller pairing binds a controller identifier to its long-term
// Ed25519 public key. Pairings are created by Pair Setup or Pair Add, looked
// up by Pair Verify and removed by Pair Remove. Identifiers are unique within
// a store.
package pairing

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
)

// Store errors.
var (
	// ErrNotFound is returned when no pairing exists for an identifier.
	ErrNotFound = errors.New("pairing: not found")
	// ErrDuplicateIdentifier is returned when inserting an identifier that is already paired.
	ErrDuplicateIdentifier = errors.New("pairing: duplicate identifier")
	// ErrStoreFull is returned when the store is at capacity.
	ErrStoreFull = errors.New("pairing: store full")
	// ErrInvalidPairing is returned for a pairing with an empty identifier or a bad key.
	ErrInvalidPairing = errors.New("pairing: invalid pairing")
)

// Permissions is the controller permission level carried in TLV item 0x0B.
type Permissions uint8

const (
	// PermissionUser may control the accessory but not manage pairings.
	PermissionUser Permissions = 0x00
	// PermissionAdmin may additionally add, remove and list pairings.
	PermissionAdmin Permissions = 0x01
)

// String returns the permission name.
func (p Permissions) String() string {
	switch p {
	case PermissionUser:
		return "User"
	case PermissionAdmin:
		return "Admin"
	default:
		return fmt.Sprintf("Permissions(%d)", uint8(p))
	}
}

// Pairing is a ControllerPairing record.
type Pairing struct {
	// Identifier is the controller's pairing identifier (typically a UUID string).
	Identifier string

	// PublicKey is the controller's long-term Ed25519 public key.
	PublicKey ed25519.PublicKey

	// Permissions is the controller's permission level.
	Permissions Permissions
}

// IsAdmin reports whether the controller has admin permissions.
func (p *Pairing) IsAdmin() bool {
	return p.Permissions == PermissionAdmin
}

// Validate checks that the pairing can be stored.
func (p *Pairing) Validate() error {
	if p.Identifier == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidPairing)
	}
	if len(p.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key must be %d bytes", ErrInvalidPairing, ed25519.PublicKeySize)
	}
	return nil
}

// HasKey reports whether key equals the stored long-term public key.
func (p *Pairing) HasKey(key []byte) bool {
	return bytes.Equal(p.PublicKey, key)
}

// Clone returns a deep copy.
func (p *Pairing) Clone() *Pairing {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PublicKey != nil {
		clone.PublicKey = make(ed25519.PublicKey, len(p.PublicKey))
		copy(clone.PublicKey, p.PublicKey)
	}
	return &clone
}
