package setup

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/crypto/srp"
	"github.com/backkem/hap/pkg/securechannel/messages"
	"github.com/backkem/hap/pkg/tlv8"
)

// AccessoryInfo is the accessory identity learned from M6.
type AccessoryInfo struct {
	DeviceID  string
	PublicKey ed25519.PublicKey
}

// Controller is the initiator side of Pair Setup. It drives an accessory
// from tests and tooling.
//
// Usage:
//
//	c := setup.NewController("031-45-154", pairingID, ltsk)
//	m1 := c.Start()
//	m3, _ := c.HandleM2(m2)
//	m5, _ := c.HandleM4(m4)
//	info, _ := c.HandleM6(m6)
type Controller struct {
	setupCode string
	pairingID string
	ltsk      ed25519.PrivateKey
	rand      io.Reader

	srp    *srp.Client
	key    []byte
	encKey [crypto.KeySize]byte
	next   byte
}

// NewController creates a controller that pairs as pairingID with the
// long-term key ltsk.
func NewController(setupCode, pairingID string, ltsk ed25519.PrivateKey) *Controller {
	return &Controller{
		setupCode: setupCode,
		pairingID: pairingID,
		ltsk:      ltsk,
		rand:      rand.Reader,
	}
}

// SetRandom sets the random source for testing.
func (c *Controller) SetRandom(r io.Reader) {
	c.rand = r
}

// Start returns M1.
func (c *Controller) Start() tlv8.Container {
	req := messages.NewResponse(messages.M1)
	req.AddByte(tlv8.TypeMethod, byte(messages.MethodPairSetup))
	c.next = messages.M2
	return req
}

// HandleM2 runs the SRP client and returns M3.
func (c *Controller) HandleM2(resp tlv8.Container) (tlv8.Container, error) {
	if c.next != messages.M2 {
		return nil, ErrInvalidState
	}
	if err := messages.ExpectState(resp, messages.M2); err != nil {
		return nil, err
	}
	salt, err := resp.MustGet(tlv8.TypeSalt)
	if err != nil {
		return nil, err
	}
	B, err := resp.MustGet(tlv8.TypePublicKey)
	if err != nil {
		return nil, err
	}

	c.srp = srp.NewClient(srp.Username, c.setupCode)
	c.srp.SetRandom(c.rand)
	A, proof, err := c.srp.ProcessChallenge(salt, B)
	if err != nil {
		return nil, err
	}

	req := messages.NewResponse(messages.M3)
	req.Add(tlv8.TypePublicKey, A)
	req.Add(tlv8.TypeProof, proof)
	c.next = messages.M4
	return req, nil
}

// HandleM4 verifies the accessory proof and returns M5.
func (c *Controller) HandleM4(resp tlv8.Container) (tlv8.Container, error) {
	if c.next != messages.M4 {
		return nil, ErrInvalidState
	}
	if err := messages.ExpectState(resp, messages.M4); err != nil {
		return nil, err
	}
	proof, err := resp.MustGet(tlv8.TypeProof)
	if err != nil {
		return nil, err
	}
	if err := c.srp.VerifyServerProof(proof); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	if c.key, err = c.srp.SessionKey(); err != nil {
		return nil, err
	}
	if c.encKey, err = crypto.DeriveKey(c.key, encryptSalt, encryptInfo); err != nil {
		return nil, err
	}

	controllerX, err := crypto.DeriveKey(c.key, controllerSignSalt, controllerSignInfo)
	if err != nil {
		return nil, err
	}
	ltpk := c.ltsk.Public().(ed25519.PublicKey)
	deviceInfo := concat(controllerX[:], []byte(c.pairingID), ltpk)

	var sub tlv8.Container
	sub.AddString(tlv8.TypeIdentifier, c.pairingID)
	sub.Add(tlv8.TypePublicKey, ltpk)
	sub.Add(tlv8.TypeSignature, ed25519.Sign(c.ltsk, deviceInfo))

	sealed, err := crypto.SealLabeled(c.encKey, nonceM5, tlv8.Encode(sub))
	if err != nil {
		return nil, err
	}

	req := messages.NewResponse(messages.M5)
	req.Add(tlv8.TypeEncryptedData, sealed)
	c.next = messages.M6
	return req, nil
}

// HandleM6 decrypts and verifies the accessory's long-term identity.
func (c *Controller) HandleM6(resp tlv8.Container) (*AccessoryInfo, error) {
	if c.next != messages.M6 {
		return nil, ErrInvalidState
	}
	if err := messages.ExpectState(resp, messages.M6); err != nil {
		return nil, err
	}
	encrypted, err := resp.MustGet(tlv8.TypeEncryptedData)
	if err != nil {
		return nil, err
	}
	plaintext, err := crypto.OpenLabeled(c.encKey, nonceM6, encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	sub, err := tlv8.Decode(plaintext)
	if err != nil {
		return nil, err
	}

	id, err := sub.MustGet(tlv8.TypeIdentifier)
	if err != nil {
		return nil, err
	}
	ltpk, err := sub.MustGet(tlv8.TypePublicKey)
	if err != nil {
		return nil, err
	}
	signature, err := sub.MustGet(tlv8.TypeSignature)
	if err != nil {
		return nil, err
	}
	if len(ltpk) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: accessory key is %d bytes", ErrAuthenticationFailed, len(ltpk))
	}

	accessoryX, err := crypto.DeriveKey(c.key, accessorySignSalt, accessorySignInfo)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(ltpk, concat(accessoryX[:], id, ltpk), signature) {
		return nil, fmt.Errorf("%w: accessory signature", ErrAuthenticationFailed)
	}

	crypto.Zeroize(c.key)
	crypto.Zeroize(c.encKey[:])
	c.next = 0
	return &AccessoryInfo{DeviceID: string(id), PublicKey: ed25519.PublicKey(ltpk)}, nil
}
