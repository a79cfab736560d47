package srp

import (
	"io"
	"math/big"

	"github.com/backkem/hap/pkg/crypto"
)

type clientState int

const (
	clientInit clientState = iota
	clientProofSent
	clientVerified
)

// Client is the controller side of an SRP exchange. It is used by the
// pairing simulator and by tests.
type Client struct {
	grp      *Group
	username string
	password string

	A  *big.Int
	K  []byte
	m1 []byte

	state clientState
	rand  io.Reader
}

// NewClient creates a client for username and password (the setup code).
func NewClient(username, password string) *Client {
	return &Client{
		grp:      Group3072,
		username: username,
		password: password,
		rand:     defaultRand,
	}
}

// SetRandom sets the random source for testing.
func (c *Client) SetRandom(r io.Reader) {
	c.rand = r
}

// ProcessChallenge consumes the server salt and public key B and returns
// the client public key A and proof M1.
func (c *Client) ProcessChallenge(salt, serverPub []byte) (pub, proof []byte, err error) {
	if c.state != clientInit {
		return nil, nil, ErrInvalidState
	}
	if len(salt) == 0 {
		return nil, nil, ErrInvalidSaltLength
	}
	B := new(big.Int).SetBytes(serverPub)
	if c.grp.isZeroMod(B) {
		return nil, nil, ErrInvalidPublicKey
	}

	a, err := generateSecret(c.rand)
	if err != nil {
		return nil, nil, err
	}
	defer a.SetInt64(0)
	A := new(big.Int).Exp(c.grp.G, a, c.grp.N)

	u := computeU(c.grp, A, B)
	if u.Sign() == 0 {
		return nil, nil, ErrInvalidPublicKey
	}
	x := computeX(salt, c.username, c.password)
	k := c.grp.multiplier()

	// S = (B - k * g^x) ^ (a + u * x) mod N
	gx := new(big.Int).Exp(c.grp.G, x, c.grp.N)
	base := new(big.Int).Sub(B, gx.Mul(k, gx))
	base.Mod(base, c.grp.N)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, a)
	S := new(big.Int).Exp(base, exp, c.grp.N)

	premaster := c.grp.pad(S)
	c.K = crypto.SHA512(premaster)
	crypto.Zeroize(premaster)

	c.A = A
	c.m1 = clientProof(c.grp, c.username, salt, A, B, c.K)
	c.state = clientProofSent
	return c.grp.pad(A), copyBytes(c.m1), nil
}

// VerifyServerProof checks M2 from the server.
func (c *Client) VerifyServerProof(m2 []byte) error {
	if c.state != clientProofSent {
		return ErrInvalidState
	}
	if !proofsEqual(serverProof(c.grp, c.A, c.m1, c.K), m2) {
		return ErrProofMismatch
	}
	c.state = clientVerified
	return nil
}

// SessionKey returns K once the server proof has been verified.
func (c *Client) SessionKey() ([]byte, error) {
	if c.state != clientVerified {
		return nil, ErrInvalidState
	}
	return copyBytes(c.K), nil
}
