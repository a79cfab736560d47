// Package securechannel coordinates HAP pairing on the accessory.
//
// The Manager owns the accessory-wide pairing policy: at most one Pair
// Setup in flight, the failed-attempt lockout and the pairing callbacks.
// Each connection gets a Channel that runs Pair Setup, Pair Verify and the
// pairings endpoint for that connection.
package securechannel

import (
	"crypto/rand"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/backkem/hap/pkg/pairing"
	"github.com/backkem/hap/pkg/securechannel/setup"
	"github.com/pion/logging"
)

// Constants for the secure channel manager.
const (
	// DefaultMaxAuthAttempts is the number of failed Pair Setup
	// authentications after which the accessory refuses further attempts.
	DefaultMaxAuthAttempts = 100

	// SetupTimeout is how long an idle Pair Setup may hold the setup slot
	// before another connection can take it over.
	SetupTimeout = 60 * time.Second
)

// Errors returned by the Manager and Channels.
var (
	ErrBusy          = errors.New("securechannel: pair setup in progress on another connection")
	ErrAlreadyPaired = errors.New("securechannel: accessory already paired")
	ErrMaxTries      = errors.New("securechannel: too many failed pairing attempts")
	ErrNotAdmin      = errors.New("securechannel: controller is not an admin")
	ErrNotVerified   = errors.New("securechannel: connection is not verified")
	ErrUnknownState  = errors.New("securechannel: unexpected message number")
	ErrUnknownMethod = errors.New("securechannel: unsupported pairings method")
	ErrKeyMismatch   = errors.New("securechannel: pairing exists with a different key")
	ErrClosed        = errors.New("securechannel: channel closed")
)

// Callbacks provides callback functions for Manager events.
type Callbacks struct {
	// OnPaired is called after Pair Setup or Pair Add stored a pairing.
	OnPaired func(p *pairing.Pairing)

	// OnUnpaired is called after a pairing was removed. Connections of
	// that controller should be closed.
	OnUnpaired func(controllerID string)

	// OnVerified is called when a connection completes Pair Verify.
	OnVerified func(controllerID string, remote net.Addr)
}

// ManagerConfig configures the Manager.
type ManagerConfig struct {
	// Identity is the accessory long-term identity. Required.
	Identity *pairing.Identity

	// Store holds the controller pairings. Required.
	Store pairing.Store

	// SetupCode is the "XXX-XX-XXX" Pair Setup code. Required.
	SetupCode string

	// MaxAuthAttempts bounds failed Pair Setup authentications until
	// restart. Default: DefaultMaxAuthAttempts.
	MaxAuthAttempts int

	// Rand is the random source for handshakes.
	// Default: crypto/rand.Reader.
	Rand io.Reader

	// Callbacks for Manager events.
	Callbacks Callbacks

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory

	// now is overridden in tests.
	now func() time.Time
}

// Manager coordinates pairing for one accessory.
type Manager struct {
	config ManagerConfig
	log    logging.LeveledLogger

	mu             sync.Mutex
	setupOwner     *Channel
	setupStarted   time.Time
	failedAttempts int

	// storeMu serializes multi-step pairing store updates.
	storeMu sync.Mutex
}

// NewManager creates a Manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Identity == nil {
		return nil, errors.New("securechannel: identity is required")
	}
	if config.Store == nil {
		return nil, errors.New("securechannel: store is required")
	}
	if err := setup.ValidateSetupCode(config.SetupCode); err != nil {
		return nil, err
	}
	if config.MaxAuthAttempts <= 0 {
		config.MaxAuthAttempts = DefaultMaxAuthAttempts
	}
	if config.Rand == nil {
		config.Rand = rand.Reader
	}
	if config.now == nil {
		config.now = time.Now
	}

	m := &Manager{config: config}
	if config.LoggerFactory != nil {
		m.log = config.LoggerFactory.NewLogger("securechannel")
	}
	return m, nil
}

// NewChannel creates the pairing channel of one connection.
func (m *Manager) NewChannel(remote net.Addr) *Channel {
	return &Channel{m: m, remote: remote}
}

// IsPaired reports whether at least one controller is paired.
func (m *Manager) IsPaired() bool {
	n, err := m.config.Store.Count()
	return err == nil && n > 0
}

// FailedAttempts returns the number of failed Pair Setup authentications
// since start or the last successful pairing.
func (m *Manager) FailedAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failedAttempts
}

// Identity returns the accessory identity.
func (m *Manager) Identity() *pairing.Identity {
	return m.config.Identity
}

// acquireSetup claims the Pair Setup slot for c.
func (m *Manager) acquireSetup(c *Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failedAttempts >= m.config.MaxAuthAttempts {
		return ErrMaxTries
	}
	now := m.config.now()
	if m.setupOwner != nil && m.setupOwner != c {
		if now.Sub(m.setupStarted) < SetupTimeout {
			return ErrBusy
		}
		if m.log != nil {
			m.log.Warnf("pair-setup from %s timed out, releasing slot", m.setupOwner.remote)
		}
	}
	m.setupOwner = c
	m.setupStarted = now
	return nil
}

// releaseSetup frees the Pair Setup slot if c holds it.
func (m *Manager) releaseSetup(c *Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setupOwner == c {
		m.setupOwner = nil
	}
}

// ownsSetup reports whether c holds the Pair Setup slot.
func (m *Manager) ownsSetup(c *Channel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setupOwner == c
}

// recordFailure counts a failed Pair Setup authentication.
func (m *Manager) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedAttempts++
	if m.failedAttempts >= m.config.MaxAuthAttempts && m.log != nil {
		m.log.Warnf("pair-setup locked after %d failed attempts", m.failedAttempts)
	}
}

// recordSuccess resets the failure count.
func (m *Manager) recordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedAttempts = 0
}

func (m *Manager) onPaired(p *pairing.Pairing) {
	if m.config.Callbacks.OnPaired != nil {
		m.config.Callbacks.OnPaired(p)
	}
}

func (m *Manager) onUnpaired(id string) {
	if m.config.Callbacks.OnUnpaired != nil {
		m.config.Callbacks.OnUnpaired(id)
	}
}

func (m *Manager) onVerified(id string, remote net.Addr) {
	if m.config.Callbacks.OnVerified != nil {
		m.config.Callbacks.OnVerified(id, remote)
	}
}
