package controller

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/pairing"
	"github.com/backkem/hap/pkg/securechannel/messages"
	"github.com/backkem/hap/pkg/securechannel/setup"
	"github.com/backkem/hap/pkg/securechannel/verify"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/tlv8"
	"github.com/backkem/hap/pkg/transport"
)

// Conn is one connection to an accessory. Requests are sent one at a time.
type Conn struct {
	client *Client

	mu       sync.Mutex
	conn     net.Conn
	br       *bufio.Reader
	verified bool
}

// NewConn wraps an established connection.
func NewConn(client *Client, conn net.Conn) *Conn {
	return &Conn{client: client, conn: conn, br: bufio.NewReader(conn)}
}

// Verified reports whether the connection is encrypted.
func (c *Conn) Verified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verified
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// PairSetup pairs with the accessory using setupCode and returns the
// accessory identity.
func (c *Conn) PairSetup(setupCode string) (*setup.AccessoryInfo, error) {
	ctrl := setup.NewController(setupCode, c.client.pairingID, c.client.ltsk)
	ctrl.SetRandom(c.client.rand)

	m2, err := c.pair(transport.PathPairSetup, ctrl.Start())
	if err != nil {
		return nil, err
	}
	m3, err := ctrl.HandleM2(m2)
	if err != nil {
		return nil, err
	}
	m4, err := c.pair(transport.PathPairSetup, m3)
	if err != nil {
		return nil, err
	}
	m5, err := ctrl.HandleM4(m4)
	if err != nil {
		return nil, err
	}
	m6, err := c.pair(transport.PathPairSetup, m5)
	if err != nil {
		return nil, err
	}
	info, err := ctrl.HandleM6(m6)
	if err != nil {
		return nil, err
	}
	if c.client.log != nil {
		c.client.log.Infof("paired with accessory %s", info.DeviceID)
	}
	return info, nil
}

// PairVerify authenticates the accessory and switches the connection to
// the encrypted session.
func (c *Conn) PairVerify(info *setup.AccessoryInfo) error {
	if c.Verified() {
		return ErrAlreadyVerified
	}
	in := verify.NewInitiator(c.client.pairingID, c.client.ltsk, info.DeviceID, info.PublicKey)
	in.SetRandom(c.client.rand)

	m1, err := in.Start()
	if err != nil {
		return err
	}
	m2, err := c.pair(transport.PathPairVerify, m1)
	if err != nil {
		return err
	}
	m3, err := in.HandleM2(m2)
	if err != nil {
		return err
	}
	m4, err := c.pair(transport.PathPairVerify, m3)
	if err != nil {
		return err
	}
	if err := in.HandleM4(m4); err != nil {
		return err
	}

	secret := in.SharedSecret()
	sess, err := session.NewSession(secret, session.RoleController)
	crypto.Zeroize(secret)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = session.NewConn(c.conn, sess, c.client.pairingID)
	c.br = bufio.NewReader(c.conn)
	c.verified = true
	if c.client.log != nil {
		c.client.log.Debugf("verified connection to %s", info.DeviceID)
	}
	return nil
}

// Do sends a request and returns the response with its body read.
func (c *Conn) Do(req *http.Request) (*http.Response, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	if err := req.Write(&buf); err != nil {
		return nil, nil, err
	}
	if _, err := c.conn.Write(buf.Bytes()); err != nil {
		return nil, nil, err
	}
	resp, err := http.ReadResponse(c.br, req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, body, nil
}

// Get sends a GET request for path.
func (c *Conn) Get(path string) (*http.Response, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, "http://accessory"+path, nil)
	if err != nil {
		return nil, nil, err
	}
	return c.Do(req)
}

// AddPairing adds or updates a pairing on the accessory. The connection
// must be verified by an admin controller.
func (c *Conn) AddPairing(p *pairing.Pairing) error {
	req := messages.NewResponse(messages.M1)
	req.AddByte(tlv8.TypeMethod, byte(messages.MethodAddPairing))
	req.AddString(tlv8.TypeIdentifier, p.Identifier)
	req.Add(tlv8.TypePublicKey, p.PublicKey)
	req.AddByte(tlv8.TypePermissions, byte(p.Permissions))
	_, err := c.pairings(req)
	return err
}

// RemovePairing removes a pairing from the accessory.
func (c *Conn) RemovePairing(id string) error {
	req := messages.NewResponse(messages.M1)
	req.AddByte(tlv8.TypeMethod, byte(messages.MethodRemovePairing))
	req.AddString(tlv8.TypeIdentifier, id)
	_, err := c.pairings(req)
	return err
}

// ListPairings returns the accessory's pairings.
func (c *Conn) ListPairings() ([]*pairing.Pairing, error) {
	req := messages.NewResponse(messages.M1)
	req.AddByte(tlv8.TypeMethod, byte(messages.MethodListPairings))
	resp, err := c.pairings(req)
	if err != nil {
		return nil, err
	}

	var list []*pairing.Pairing
	for _, rec := range resp.Split() {
		if !rec.Has(tlv8.TypeIdentifier) {
			continue
		}
		id, err := rec.GetString(tlv8.TypeIdentifier)
		if err != nil {
			return nil, err
		}
		key, err := rec.MustGet(tlv8.TypePublicKey)
		if err != nil {
			return nil, err
		}
		perm, err := rec.GetByte(tlv8.TypePermissions)
		if err != nil {
			return nil, err
		}
		list = append(list, &pairing.Pairing{
			Identifier:  id,
			PublicKey:   append(ed25519.PublicKey(nil), key...),
			Permissions: pairing.Permissions(perm),
		})
	}
	return list, nil
}

func (c *Conn) pairings(req tlv8.Container) (tlv8.Container, error) {
	if !c.Verified() {
		return nil, ErrNotVerified
	}
	resp, err := c.pair(transport.PathPairings, req)
	if err != nil {
		return nil, err
	}
	if err := messages.ExpectState(resp, messages.M2); err != nil {
		return nil, err
	}
	return resp, nil
}

// pair posts a TLV8 body to a pairing endpoint.
func (c *Conn) pair(path string, body tlv8.Container) (tlv8.Container, error) {
	req, err := http.NewRequest(http.MethodPost, "http://accessory"+path, bytes.NewReader(tlv8.Encode(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", messages.ContentType)

	resp, data, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}
	return tlv8.Decode(data)
}
