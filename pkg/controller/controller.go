// Package controller implements the controller side of HAP: it pairs with
// an accessory, verifies a connection and then sends HTTP requests over the
// encrypted session.
//
// Usage:
//
//	c, _ := controller.New(controller.Config{})
//	conn, _ := c.Dial(ctx, "192.168.1.20:51826")
//	info, _ := conn.PairSetup("031-45-154")
//	_ = conn.PairVerify(info)
//	resp, body, _ := conn.Get("/accessories")
package controller

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// DefaultDialTimeout bounds connection setup when the context has no
// deadline.
const DefaultDialTimeout = 10 * time.Second

// Errors returned by the controller.
var (
	ErrNotVerified      = errors.New("controller: connection is not verified")
	ErrAlreadyVerified  = errors.New("controller: connection is already verified")
	ErrUnexpectedStatus = errors.New("controller: unexpected HTTP status")
)

// Config configures a Client.
type Config struct {
	// PairingID is the controller identifier sent to accessories.
	// Default: a random UUID.
	PairingID string

	// LongTermKey is the controller Ed25519 key. Default: a new key.
	LongTermKey ed25519.PrivateKey

	// Rand is the random source for handshakes.
	// Default: crypto/rand.Reader.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Client is a HAP controller identity.
type Client struct {
	pairingID string
	ltsk      ed25519.PrivateKey
	rand      io.Reader
	log       logging.LeveledLogger
}

// New creates a Client.
func New(config Config) (*Client, error) {
	if config.Rand == nil {
		config.Rand = rand.Reader
	}
	if config.PairingID == "" {
		id, err := uuid.NewRandomFromReader(config.Rand)
		if err != nil {
			return nil, fmt.Errorf("controller: pairing id: %w", err)
		}
		config.PairingID = strings.ToUpper(id.String())
	}
	if config.LongTermKey == nil {
		_, key, err := ed25519.GenerateKey(config.Rand)
		if err != nil {
			return nil, fmt.Errorf("controller: long-term key: %w", err)
		}
		config.LongTermKey = key
	}
	if len(config.LongTermKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("controller: long-term key is %d bytes", len(config.LongTermKey))
	}

	c := &Client{
		pairingID: config.PairingID,
		ltsk:      config.LongTermKey,
		rand:      config.Rand,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("controller")
	}
	return c, nil
}

// PairingID returns the controller identifier.
func (c *Client) PairingID() string {
	return c.pairingID
}

// PublicKey returns the controller long-term public key.
func (c *Client) PublicKey() ed25519.PublicKey {
	return c.ltsk.Public().(ed25519.PublicKey)
}

// LongTermKey returns the controller long-term private key.
func (c *Client) LongTermKey() ed25519.PrivateKey {
	return c.ltsk
}

// Dial opens a plaintext connection to an accessory.
func (c *Client) Dial(ctx context.Context, addr string) (*Conn, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if c.log != nil {
		c.log.Debugf("connected to %s", addr)
	}
	return NewConn(c, conn), nil
}
