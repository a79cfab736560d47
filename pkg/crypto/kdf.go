package crypto

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the ChaCha20-Poly1305 key size used for every HAP derived key.
const KeySize = 32

// HKDFSHA512 derives key material using HKDF-SHA-512 (RFC 5869).
//
// Parameters:
//   - inputKey: Input keying material (IKM)
//   - salt: Optional salt value (can be nil or empty)
//   - info: Optional context/application-specific info (can be nil or empty)
//   - length: Number of bytes to derive
func HKDFSHA512(inputKey, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha512.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}

// DeriveKey derives a 32-byte key from secret with the given HAP salt and
// info strings, e.g. DeriveKey(K, "Pair-Setup-Encrypt-Salt", "Pair-Setup-Encrypt-Info").
func DeriveKey(secret []byte, salt, info string) ([KeySize]byte, error) {
	var key [KeySize]byte
	okm, err := HKDFSHA512(secret, []byte(salt), []byte(info), KeySize)
	if err != nil {
		return key, err
	}
	copy(key[:], okm)
	Zeroize(okm)
	return key, nil
}
