package verify

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/securechannel/messages"
	"github.com/backkem/hap/pkg/tlv8"
)

// Initiator is the controller side of Pair Verify, used by tests and
// tooling.
//
// Usage:
//
//	in := verify.NewInitiator(pairingID, ltsk, accessoryID, accessoryLTPK)
//	m1, _ := in.Start()
//	m3, _ := in.HandleM2(m2)
//	_ = in.HandleM4(m4)
//	secret := in.SharedSecret()
type Initiator struct {
	pairingID     string
	ltsk          ed25519.PrivateKey
	accessoryID   string
	accessoryLTPK ed25519.PublicKey
	rand          io.Reader

	ephemeral *crypto.X25519KeyPair
	shared    []byte
	next      byte
}

// NewInitiator creates an initiator for a controller paired as pairingID
// with an accessory known by accessoryID and accessoryLTPK.
func NewInitiator(pairingID string, ltsk ed25519.PrivateKey, accessoryID string, accessoryLTPK ed25519.PublicKey) *Initiator {
	return &Initiator{
		pairingID:     pairingID,
		ltsk:          ltsk,
		accessoryID:   accessoryID,
		accessoryLTPK: accessoryLTPK,
		rand:          rand.Reader,
	}
}

// SetRandom sets the random source for testing.
func (in *Initiator) SetRandom(r io.Reader) {
	in.rand = r
}

// Start generates the ephemeral key and returns M1.
func (in *Initiator) Start() (tlv8.Container, error) {
	kp, err := crypto.GenerateX25519(in.rand)
	if err != nil {
		return nil, err
	}
	in.ephemeral = kp

	req := messages.NewResponse(messages.M1)
	req.Add(tlv8.TypePublicKey, kp.Public[:])
	in.next = messages.M2
	return req, nil
}

// HandleM2 authenticates the accessory and returns M3.
func (in *Initiator) HandleM2(resp tlv8.Container) (tlv8.Container, error) {
	if in.next != messages.M2 {
		return nil, ErrInvalidState
	}
	if err := messages.ExpectState(resp, messages.M2); err != nil {
		return nil, err
	}
	accessoryPub, err := resp.MustGet(tlv8.TypePublicKey)
	if err != nil {
		return nil, err
	}
	encrypted, err := resp.MustGet(tlv8.TypeEncryptedData)
	if err != nil {
		return nil, err
	}

	if in.shared, err = in.ephemeral.SharedSecret(accessoryPub); err != nil {
		return nil, err
	}
	encKey, err := crypto.DeriveKey(in.shared, encryptSalt, encryptInfo)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(encKey[:])

	plaintext, err := crypto.OpenLabeled(encKey, nonceM2, encrypted)
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
	signature, err := sub.MustGet(tlv8.TypeSignature)
	if err != nil {
		return nil, err
	}
	if string(id) != in.accessoryID {
		return nil, fmt.Errorf("%w: accessory id %q", ErrUnknownPeer, id)
	}
	accessoryInfo := concat(accessoryPub, id, in.ephemeral.Public[:])
	if !ed25519.Verify(in.accessoryLTPK, accessoryInfo, signature) {
		return nil, fmt.Errorf("%w: accessory signature", ErrAuthenticationFailed)
	}

	controllerID := []byte(in.pairingID)
	controllerInfo := concat(in.ephemeral.Public[:], controllerID, accessoryPub)

	var out tlv8.Container
	out.Add(tlv8.TypeIdentifier, controllerID)
	out.Add(tlv8.TypeSignature, ed25519.Sign(in.ltsk, controllerInfo))
	sealed, err := crypto.SealLabeled(encKey, nonceM3, tlv8.Encode(out))
	if err != nil {
		return nil, err
	}

	req := messages.NewResponse(messages.M3)
	req.Add(tlv8.TypeEncryptedData, sealed)
	in.next = messages.M4
	return req, nil
}

// HandleM4 checks the final response.
func (in *Initiator) HandleM4(resp tlv8.Container) error {
	if in.next != messages.M4 {
		return ErrInvalidState
	}
	if err := messages.ExpectState(resp, messages.M4); err != nil {
		return err
	}
	in.ephemeral.Zeroize()
	in.next = 0
	return nil
}

// SharedSecret returns the X25519 shared secret.
func (in *Initiator) SharedSecret() []byte {
	return append([]byte(nil), in.shared...)
}
