package session

import "sync"

// Table tracks the encrypted connections of an accessory so they can be
// closed when a pairing is removed or the accessory stops.
//
// All methods are safe for concurrent use.
type Table struct {
	conns map[*Conn]struct{}

	mu sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{conns: make(map[*Conn]struct{})}
}

// Add registers c. It is removed automatically once closed.
func (t *Table) Add(c *Conn) {
	t.mu.Lock()
	t.conns[c] = struct{}{}
	t.mu.Unlock()

	go func() {
		<-c.Done()
		t.Remove(c)
	}()
}

// Remove unregisters c without closing it.
func (t *Table) Remove(c *Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, c)
}

// FindByController returns the connections of a controller.
func (t *Table) FindByController(controllerID string) []*Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []*Conn
	for c := range t.conns {
		if c.ControllerID() == controllerID {
			result = append(result, c)
		}
	}
	return result
}

// CloseByController closes every connection of a controller.
// Returns the number of connections closed.
func (t *Table) CloseByController(controllerID string) int {
	conns := t.FindByController(controllerID)
	for _, c := range conns {
		c.Close()
	}
	return len(conns)
}

// CloseAll closes and unregisters every tracked connection.
func (t *Table) CloseAll() {
	t.mu.Lock()
	conns := make([]*Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.conns = make(map[*Conn]struct{})
	t.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Count returns the number of tracked connections.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}
