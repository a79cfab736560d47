// Package srp implements SRP-6a (RFC 5054) as profiled by HAP Pair Setup.
//
// Profile: the RFC 5054 3072-bit group with generator 5, SHA-512 as H, and
// the fixed username "Pair-Setup". Public values and S are padded to the
// modulus length before hashing; the session key is K = H(S).
//
// Protocol flow:
//
//	Client (controller)                 Server (accessory)
//	-------------------                 ------------------
//	                                    v = ComputeVerifier(s, I, P)
//	                                    NewServer(I, s, v)
//	                   <---s, B----     B = PublicKey()
//	NewClient(I, P)
//	ProcessChallenge(s, B)
//	A, M1 ----------------A, M1--->     ProcessClientKey(A)
//	                                    VerifyClientProof(M1)
//	                   <----M2-----     M2 = ServerProof()
//	VerifyServerProof(M2)
//	K = SessionKey()                    K = SessionKey()
package srp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"math/big"

	"github.com/backkem/hap/pkg/crypto"
)

// Profile constants.
const (
	// Username is the SRP identity used by HAP Pair Setup.
	Username = "Pair-Setup"

	// KeySizeBytes is the modulus length; A, B, v and S are padded to it.
	KeySizeBytes = 384

	// SaltSizeBytes is the length of the salt sent in M2.
	SaltSizeBytes = 16

	// ProofSizeBytes is the length of M1, M2 and K (SHA-512).
	ProofSizeBytes = crypto.SHA512LenBytes

	// secretSizeBytes is the length of the ephemeral exponents a and b.
	secretSizeBytes = 32
)

// Errors
var (
	ErrInvalidPublicKey  = errors.New("srp: public key is zero modulo N")
	ErrInvalidState      = errors.New("srp: invalid protocol state for this operation")
	ErrProofMismatch     = errors.New("srp: proof mismatch")
	ErrInvalidProofSize  = errors.New("srp: proof must be 64 bytes")
	ErrInvalidSaltLength = errors.New("srp: salt must not be empty")
)

// Group is an SRP group: a safe prime N and generator g.
type Group struct {
	N *big.Int
	G *big.Int
}

// Group3072 is the RFC 5054 3072-bit group.
var Group3072 = &Group{
	N: mustParseHex("" +
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
		"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
		"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
		"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
		"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
		"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
		"3995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33" +
		"A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7" +
		"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864" +
		"D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E2" +
		"08E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"),
	G: big.NewInt(5),
}

// multiplier computes k = H(N | PAD(g)).
func (g *Group) multiplier() *big.Int {
	return new(big.Int).SetBytes(crypto.SHA512(g.pad(g.N), g.pad(g.G)))
}

// pad left-pads n to the modulus length.
func (g *Group) pad(n *big.Int) []byte {
	out := make([]byte, KeySizeBytes)
	return n.FillBytes(out)
}

// isZeroMod reports whether n mod N == 0.
func (g *Group) isZeroMod(n *big.Int) bool {
	return new(big.Int).Mod(n, g.N).Sign() == 0
}

// ComputeVerifier derives the password verifier v = g^x mod N with
// x = H(s | H(I ":" P)). The result is padded to KeySizeBytes.
func ComputeVerifier(salt []byte, username, password string) []byte {
	grp := Group3072
	x := computeX(salt, username, password)
	v := new(big.Int).Exp(grp.G, x, grp.N)
	return grp.pad(v)
}

func computeX(salt []byte, username, password string) *big.Int {
	inner := crypto.SHA512([]byte(username), []byte(":"), []byte(password))
	return new(big.Int).SetBytes(crypto.SHA512(salt, inner))
}

// computeU computes u = H(PAD(A) | PAD(B)).
func computeU(grp *Group, A, B *big.Int) *big.Int {
	return new(big.Int).SetBytes(crypto.SHA512(grp.pad(A), grp.pad(B)))
}

// clientProof computes M1 = H(H(N) xor H(g) | H(I) | s | PAD(A) | PAD(B) | K).
// H(g) is taken over the minimal encoding of g.
func clientProof(grp *Group, username string, salt []byte, A, B *big.Int, K []byte) []byte {
	hN := crypto.SHA512(grp.N.Bytes())
	hG := crypto.SHA512(grp.G.Bytes())
	for i := range hN {
		hN[i] ^= hG[i]
	}
	return crypto.SHA512(hN, crypto.SHA512([]byte(username)), salt, grp.pad(A), grp.pad(B), K)
}

// serverProof computes M2 = H(PAD(A) | M1 | K).
func serverProof(grp *Group, A *big.Int, m1, K []byte) []byte {
	return crypto.SHA512(grp.pad(A), m1, K)
}

func generateSecret(r io.Reader) (*big.Int, error) {
	buf := make([]byte, secretSizeBytes)
	if err := crypto.ReadRandom(r, buf); err != nil {
		return nil, err
	}
	defer crypto.Zeroize(buf)
	return new(big.Int).SetBytes(buf), nil
}

func mustParseHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("srp: invalid group constant")
	}
	return n
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func proofsEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

var defaultRand io.Reader = rand.Reader
