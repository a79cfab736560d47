package pairing

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/backkem/hap/pkg/crypto"
)

// ErrNoIdentity is returned by a KeyStore that has no identity saved yet.
var ErrNoIdentity = errors.New("pairing: no accessory identity")

// Identity is the accessory's long-term identity: its device ID (the
// AccessoryPairingID) and its Ed25519 long-term key pair (LTSK/LTPK).
type Identity struct {
	DeviceID   string
	PrivateKey ed25519.PrivateKey
}

// GenerateIdentity creates a new identity with a random device ID of the
// form "XX:XX:XX:XX:XX:XX" and a fresh Ed25519 key pair.
func GenerateIdentity(rand io.Reader) (*Identity, error) {
	id := make([]byte, 6)
	if err := crypto.ReadRandom(rand, id); err != nil {
		return nil, err
	}
	seed := make([]byte, ed25519.SeedSize)
	if err := crypto.ReadRandom(rand, seed); err != nil {
		return nil, err
	}
	defer crypto.Zeroize(seed)

	return &Identity{
		DeviceID:   formatDeviceID(id),
		PrivateKey: ed25519.NewKeyFromSeed(seed),
	}, nil
}

// NewIdentity rebuilds an identity from a device ID and an Ed25519 seed.
func NewIdentity(deviceID string, seed []byte) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("pairing: seed must be %d bytes", ed25519.SeedSize)
	}
	if deviceID == "" {
		return nil, errors.New("pairing: empty device id")
	}
	return &Identity{
		DeviceID:   deviceID,
		PrivateKey: ed25519.NewKeyFromSeed(seed),
	}, nil
}

// PublicKey returns the accessory LTPK.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return id.PrivateKey.Public().(ed25519.PublicKey)
}

// Sign signs message with the accessory LTSK.
func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.PrivateKey, message)
}

// Seed returns the private key seed used for persistence.
func (id *Identity) Seed() []byte {
	return id.PrivateKey.Seed()
}

func formatDeviceID(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, ":")
}

// KeyStore persists the accessory identity.
type KeyStore interface {
	// LoadIdentity returns the saved identity or ErrNoIdentity.
	LoadIdentity() (*Identity, error)
	// SaveIdentity replaces the saved identity.
	SaveIdentity(id *Identity) error
}

// LoadOrCreateIdentity returns the identity saved in ks, generating and
// saving a new one on first use.
func LoadOrCreateIdentity(ks KeyStore, rand io.Reader) (*Identity, error) {
	id, err := ks.LoadIdentity()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNoIdentity) {
		return nil, fmt.Errorf("load identity: %w", err)
	}

	id, err = GenerateIdentity(rand)
	if err != nil {
		return nil, err
	}
	if err := ks.SaveIdentity(id); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	return id, nil
}

// MemoryKeyStore keeps the identity in memory.
type MemoryKeyStore struct {
	mu       sync.Mutex
	identity *Identity
}

// NewMemoryKeyStore creates an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{}
}

// LoadIdentity returns the stored identity.
func (m *MemoryKeyStore) LoadIdentity() (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil, ErrNoIdentity
	}
	return NewIdentity(m.identity.DeviceID, m.identity.Seed())
}

// SaveIdentity stores id.
func (m *MemoryKeyStore) SaveIdentity(id *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identity = id
	return nil
}

var _ KeyStore = (*MemoryKeyStore)(nil)
