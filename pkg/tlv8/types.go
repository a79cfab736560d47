// Package tlv8 implements the TLV8 encoding used by HAP pairing messages.
//
// Every item is a one byte type, a one byte length and up to 255 bytes of
// value. Longer values are carried as consecutive fragments sharing the same
// type; Decode joins them back together.
package tlv8

import "fmt"

// Type is a TLV8 item type from the HAP pairing registry.
type Type uint8

// Pairing item types.
const (
	TypeMethod        Type = 0x00
	TypeIdentifier    Type = 0x01
	TypeSalt          Type = 0x02
	TypePublicKey     Type = 0x03
	TypeProof         Type = 0x04
	TypeEncryptedData Type = 0x05
	TypeState         Type = 0x06
	TypeError         Type = 0x07
	TypeRetryDelay    Type = 0x08
	TypeCertificate   Type = 0x09
	TypeSignature     Type = 0x0A
	TypePermissions   Type = 0x0B
	TypeFragmentData  Type = 0x0C
	TypeFragmentLast  Type = 0x0D
	TypeFlags         Type = 0x13
	TypeSeparator     Type = 0xFF
)

// MaxFragmentSize is the largest value a single item can carry.
const MaxFragmentSize = 255

// String returns the registry name of the type.
func (t Type) String() string {
	switch t {
	case TypeMethod:
		return "Method"
	case TypeIdentifier:
		return "Identifier"
	case TypeSalt:
		return "Salt"
	case TypePublicKey:
		return "PublicKey"
	case TypeProof:
		return "Proof"
	case TypeEncryptedData:
		return "EncryptedData"
	case TypeState:
		return "State"
	case TypeError:
		return "Error"
	case TypeRetryDelay:
		return "RetryDelay"
	case TypeCertificate:
		return "Certificate"
	case TypeSignature:
		return "Signature"
	case TypePermissions:
		return "Permissions"
	case TypeFragmentData:
		return "FragmentData"
	case TypeFragmentLast:
		return "FragmentLast"
	case TypeFlags:
		return "Flags"
	case TypeSeparator:
		return "Separator"
	default:
		return fmt.Sprintf("Type(0x%02x)", uint8(t))
	}
}
