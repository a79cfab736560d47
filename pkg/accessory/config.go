package accessory

import (
	"io"
	"net"
	"net/http"

	"github.com/backkem/hap/pkg/discovery"
	"github.com/backkem/hap/pkg/pairing"
	"github.com/pion/logging"
)

// Defaults for Config.
const (
	DefaultModel       = "Accessory"
	DefaultMaxPairings = 16
)

// Config holds all configuration for an Accessory.
type Config struct {
	// Name is the advertised service instance name. Required.
	Name string

	// Model is advertised in the md TXT key. Default: DefaultModel.
	Model string

	// Manufacturer is informational.
	Manufacturer string

	// Category is the primary accessory category. Default: CategoryOther.
	Category discovery.Category

	// SetupCode is the pairing code, "XXX-XX-XXX" or 8 digits. Required.
	SetupCode string

	// SetupID enables the setup hash and the setup URI. Optional.
	SetupID string

	// Network
	Port       int          // TCP port (default: ephemeral)
	ListenAddr string       // host to bind, "" for all interfaces
	Listener   net.Listener // pre-existing listener, overrides Port and ListenAddr

	// ConfigNumber is the initial c# value. Default: 1.
	ConfigNumber uint32

	// Storage
	Store       pairing.Store    // controller pairings (default: in-memory)
	KeyStore    pairing.KeyStore // accessory identity (default: Store if it is a KeyStore, else in-memory)
	MaxPairings int              // capacity of the default store (default: 16)

	// MaxAuthAttempts bounds failed Pair Setup attempts until restart.
	MaxAuthAttempts int

	// Handler serves requests on verified connections.
	Handler http.Handler

	// Rand is the random source. Default: crypto/rand.Reader.
	Rand io.Reader

	// Discovery
	DisableAdvertising bool
	MDNSServerFactory  discovery.MDNSServerFactory // For testing

	// Callbacks - Optional
	OnPaired   func(controllerID string)
	OnUnpaired func(controllerID string)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrInvalidName
	}
	if _, err := ParseSetupCode(c.SetupCode); err != nil {
		return err
	}
	if c.SetupID != "" && !validSetupID(c.SetupID) {
		return ErrInvalidSetupID
	}
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Category == 0 {
		c.Category = discovery.CategoryOther
	}
	if c.ConfigNumber == 0 {
		c.ConfigNumber = 1
	}
	if c.MaxPairings == 0 {
		c.MaxPairings = DefaultMaxPairings
	}
	if c.Store == nil {
		c.Store = pairing.NewMemoryStore(c.MaxPairings)
	}
	if c.KeyStore == nil {
		if ks, ok := c.Store.(pairing.KeyStore); ok {
			c.KeyStore = ks
		} else {
			c.KeyStore = pairing.NewMemoryKeyStore()
		}
	}
}
