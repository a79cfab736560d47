package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
)

// MockMDNSResolver provides a mock mDNS resolver for testing without real network I/O.
// It allows registering services and simulating discovery responses.
type MockMDNSResolver struct {
	mu       sync.RWMutex
	services map[string][]*zeroconf.ServiceEntry
}

// NewMockMDNSResolver creates a new mock resolver.
func NewMockMDNSResolver() *MockMDNSResolver {
	return &MockMDNSResolver{
		services: make(map[string][]*zeroconf.ServiceEntry),
	}
}

// RegisterService registers a service that will be returned by Browse.
func (m *MockMDNSResolver) RegisterService(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[service] = append(m.services[service], entry)
}

// Browse implements MDNSResolver.
func (m *MockMDNSResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	m.mu.RLock()
	svcEntries := make([]*zeroconf.ServiceEntry, len(m.services[service]))
	copy(svcEntries, m.services[service])
	m.mu.RUnlock()

	for _, entry := range svcEntries {
		select {
		case entries <- entry:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// MockAccessoryService creates a mock _hap._tcp service entry for testing.
func MockAccessoryService(name string, port int, ip net.IP, txt TXT) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: name,
			Service:  ServiceHAP,
			Domain:   DefaultDomain,
		},
		HostName: name + ".local.",
		Port:     port,
		AddrIPv4: []net.IP{ip},
		Text:     txt.Encode(),
	}
}

// MockServer is an MDNSServer that records TXT updates.
type MockServer struct {
	mu       sync.Mutex
	Instance string
	Port     int
	texts    [][]string
	shutdown bool
}

// SetText implements MDNSServer.
func (s *MockServer) SetText(txt []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, append([]string(nil), txt...))
}

// Shutdown implements MDNSServer.
func (s *MockServer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
}

// Text returns the most recent TXT record.
func (s *MockServer) Text() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texts[len(s.texts)-1]
}

// IsShutdown reports whether Shutdown was called.
func (s *MockServer) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

// MockServerFactory is an MDNSServerFactory that creates MockServers.
type MockServerFactory struct {
	mu      sync.Mutex
	servers []*MockServer
	// Err, if set, is returned by Register.
	Err error
}

// Register implements MDNSServerFactory.
func (f *MockServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	s := &MockServer{Instance: instance, Port: port}
	s.texts = [][]string{append([]string(nil), txt...)}
	f.servers = append(f.servers, s)
	return s, nil
}

// Last returns the most recently registered server, or nil.
func (f *MockServerFactory) Last() *MockServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.servers) == 0 {
		return nil
	}
	return f.servers[len(f.servers)-1]
}

// LastTXT decodes the current TXT record of the last server.
func (f *MockServerFactory) LastTXT() map[string]string {
	s := f.Last()
	if s == nil {
		return nil
	}
	return ParseTXT(s.Text())
}
