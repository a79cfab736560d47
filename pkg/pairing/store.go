package pairing

import (
	"sort"
	"sync"
)

// Store is the durable mapping from controller identifier to pairing.
//
// Implementations serialize writers and allow concurrent readers. Records
// returned by Lookup and List are copies; mutating them does not affect the
// store.
type Store interface {
	// Lookup returns the pairing for id or ErrNotFound.
	Lookup(id string) (*Pairing, error)

	// Insert adds a new pairing. Returns ErrDuplicateIdentifier if id is
	// already paired and ErrStoreFull at capacity.
	Insert(p *Pairing) error

	// Update applies fn to a copy of the pairing for id and stores the
	// result if fn returns nil. The identifier cannot be changed.
	Update(id string, fn func(p *Pairing) error) error

	// Remove deletes the pairing for id. Removing an unknown id is not an error.
	Remove(id string) error

	// RemoveAll deletes every pairing.
	RemoveAll() error

	// List returns all pairings sorted by identifier.
	List() ([]*Pairing, error)

	// Count returns the number of pairings.
	Count() (int, error)
}

// table is the unsynchronized pairing map shared by the store implementations.
type table struct {
	pairings    map[string]*Pairing
	maxPairings int
}

func newTable(maxPairings int) table {
	return table{
		pairings:    make(map[string]*Pairing),
		maxPairings: maxPairings,
	}
}

func (t *table) lookup(id string) (*Pairing, error) {
	p, ok := t.pairings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (t *table) insert(p *Pairing) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, ok := t.pairings[p.Identifier]; ok {
		return ErrDuplicateIdentifier
	}
	if t.maxPairings > 0 && len(t.pairings) >= t.maxPairings {
		return ErrStoreFull
	}
	t.pairings[p.Identifier] = p.Clone()
	return nil
}

func (t *table) update(id string, fn func(p *Pairing) error) error {
	existing, ok := t.pairings[id]
	if !ok {
		return ErrNotFound
	}
	clone := existing.Clone()
	if err := fn(clone); err != nil {
		return err
	}
	clone.Identifier = id
	if err := clone.Validate(); err != nil {
		return err
	}
	t.pairings[id] = clone
	return nil
}

func (t *table) remove(id string) bool {
	if _, ok := t.pairings[id]; !ok {
		return false
	}
	delete(t.pairings, id)
	return true
}

func (t *table) list() []*Pairing {
	result := make([]*Pairing, 0, len(t.pairings))
	for _, p := range t.pairings {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Identifier < result[j].Identifier
	})
	return result
}

// MemoryStore is an in-memory Store implementation.
// Useful for testing and development. Data is lost when the process exits.
//
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	table table
}

// NewMemoryStore creates an empty store holding at most maxPairings
// records. Zero means unlimited.
func NewMemoryStore(maxPairings int) *MemoryStore {
	return &MemoryStore{table: newTable(maxPairings)}
}

// Lookup returns the pairing for id.
func (m *MemoryStore) Lookup(id string) (*Pairing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.table.lookup(id)
}

// Insert adds a new pairing.
func (m *MemoryStore) Insert(p *Pairing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.insert(p)
}

// Update modifies an existing pairing.
func (m *MemoryStore) Update(id string, fn func(p *Pairing) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.update(id, fn)
}

// Remove deletes the pairing for id.
func (m *MemoryStore) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table.remove(id)
	return nil
}

// RemoveAll deletes every pairing.
func (m *MemoryStore) RemoveAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table.pairings = make(map[string]*Pairing)
	return nil
}

// List returns all pairings sorted by identifier.
func (m *MemoryStore) List() ([]*Pairing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.table.list(), nil
}

// Count returns the number of pairings.
func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.table.pairings), nil
}

// Verify MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
