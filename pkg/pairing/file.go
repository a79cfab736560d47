package pairing

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	Identity *identityRecord `json:"identity,omitempty"`
	Pairings []pairingRecord `json:"pairings"`
}

type identityRecord struct {
	DeviceID string `json:"device_id"`
	Seed     []byte `json:"seed"`
}

func newIdentityRecord(id *Identity) *identityRecord {
	return &identityRecord{DeviceID: id.DeviceID, Seed: id.Seed()}
}

func (r *identityRecord) identity() (*Identity, error) {
	return NewIdentity(r.DeviceID, r.Seed)
}

type pairingRecord struct {
	Identifier  string      `json:"id"`
	PublicKey   []byte      `json:"public_key"`
	Permissions Permissions `json:"permissions"`
}

// FileStore is a Store and KeyStore persisted as a single JSON document.
// Every mutation rewrites the document atomically (temp file and rename).
//
// All methods are safe for concurrent use.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	table    table
	identity *identityRecord
}

// OpenFileStore loads the document at path, or starts empty if it does not
// exist. maxPairings bounds the number of pairings; zero means unlimited.
func OpenFileStore(path string, maxPairings int) (*FileStore, error) {
	f := &FileStore{
		path:  path,
		table: newTable(maxPairings),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pairing: read %s: %w", path, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("pairing: decode %s: %w", path, err)
	}
	f.identity = doc.Identity
	for _, rec := range doc.Pairings {
		p := &Pairing{
			Identifier:  rec.Identifier,
			PublicKey:   ed25519.PublicKey(rec.PublicKey),
			Permissions: rec.Permissions,
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("pairing: decode %s: %w", path, err)
		}
		f.table.pairings[p.Identifier] = p
	}
	return f, nil
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Lookup returns the pairing for id.
func (f *FileStore) Lookup(id string) (*Pairing, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.table.lookup(id)
}

// Insert adds a new pairing and persists the store.
func (f *FileStore) Insert(p *Pairing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.table.insert(p); err != nil {
		return err
	}
	if err := f.flush(); err != nil {
		f.table.remove(p.Identifier)
		return err
	}
	return nil
}

// Update modifies an existing pairing and persists the store.
func (f *FileStore) Update(id string, fn func(p *Pairing) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.table.pairings[id]
	if err := f.table.update(id, fn); err != nil {
		return err
	}
	if err := f.flush(); err != nil {
		if ok {
			f.table.pairings[id] = prev
		}
		return err
	}
	return nil
}

// Remove deletes the pairing for id and persists the store.
func (f *FileStore) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, ok := f.table.pairings[id]
	if !ok {
		return nil
	}
	f.table.remove(id)
	if err := f.flush(); err != nil {
		f.table.pairings[id] = prev
		return err
	}
	return nil
}

// RemoveAll deletes every pairing and persists the store.
func (f *FileStore) RemoveAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.table.pairings
	f.table.pairings = make(map[string]*Pairing)
	if err := f.flush(); err != nil {
		f.table.pairings = prev
		return err
	}
	return nil
}

// List returns all pairings sorted by identifier.
func (f *FileStore) List() ([]*Pairing, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.table.list(), nil
}

// Count returns the number of pairings.
func (f *FileStore) Count() (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.table.pairings), nil
}

// LoadIdentity returns the identity saved in the document.
func (f *FileStore) LoadIdentity() (*Identity, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.identity == nil {
		return nil, ErrNoIdentity
	}
	return f.identity.identity()
}

// SaveIdentity stores id in the document.
func (f *FileStore) SaveIdentity(id *Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.identity
	f.identity = newIdentityRecord(id)
	if err := f.flush(); err != nil {
		f.identity = prev
		return err
	}
	return nil
}

// flush writes the document. Caller must hold f.mu.
func (f *FileStore) flush() error {
	doc := fileDocument{
		Identity: f.identity,
		Pairings: make([]pairingRecord, 0, len(f.table.pairings)),
	}
	for _, p := range f.table.list() {
		doc.Pairings = append(doc.Pairings, pairingRecord{
			Identifier:  p.Identifier,
			PublicKey:   p.PublicKey,
			Permissions: p.Permissions,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("pairing: write %s: %w", f.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("pairing: write %s: %w", f.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("pairing: sync %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("pairing: write %s: %w", f.path, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("pairing: chmod %s: %w", f.path, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("pairing: rename %s: %w", f.path, err)
	}
	return nil
}

var (
	_ Store    = (*FileStore)(nil)
	_ KeyStore = (*FileStore)(nil)
)
