package pairing

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Default keyring location for the accessory identity.
const (
	DefaultKeyringService = "hap-accessory"
	DefaultKeyringUser    = "identity"
)

// KeyringKeyStore stores the accessory identity in the OS keyring
// (Secret Service, macOS Keychain or Windows Credential Manager).
type KeyringKeyStore struct {
	Service string
	User    string
}

// NewKeyringKeyStore creates a KeyringKeyStore. Empty arguments select the
// defaults.
func NewKeyringKeyStore(service, user string) *KeyringKeyStore {
	if service == "" {
		service = DefaultKeyringService
	}
	if user == "" {
		user = DefaultKeyringUser
	}
	return &KeyringKeyStore{Service: service, User: user}
}

// LoadIdentity reads the identity from the keyring.
func (k *KeyringKeyStore) LoadIdentity() (*Identity, error) {
	secret, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNoIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("pairing: keyring get: %w", err)
	}

	var rec identityRecord
	if err := json.UnmarshalFromString(secret, &rec); err != nil {
		return nil, fmt.Errorf("pairing: decode keyring identity: %w", err)
	}
	return rec.identity()
}

// SaveIdentity writes the identity to the keyring.
func (k *KeyringKeyStore) SaveIdentity(id *Identity) error {
	secret, err := json.MarshalToString(newIdentityRecord(id))
	if err != nil {
		return err
	}
	if err := keyring.Set(k.Service, k.User, secret); err != nil {
		return fmt.Errorf("pairing: keyring set: %w", err)
	}
	return nil
}

// Delete removes the identity from the keyring.
func (k *KeyringKeyStore) Delete() error {
	err := keyring.Delete(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

var _ KeyStore = (*KeyringKeyStore)(nil)
