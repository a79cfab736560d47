package crypto

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

// RFC 8439 Section 2.8.2 AEAD test vector (prefix of ciphertext and tag).
func TestChaCha20Poly1305_RFC8439(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(0x80 + i)
	}
	nonce, _ := hex.DecodeString("070000004041424344454647")
	aad, _ := hex.DecodeString("50515253c0c1c2c3c4c5c6c7")
	plaintext := []byte("Ladies and Gentlemen of the class of '99: If I could offer you only one tip for the future, sunscreen would be it.")

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		t.Fatalf("chacha20poly1305.New failed: %v", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, aad)

	wantPrefix, _ := hex.DecodeString("d31a8d34648e60db7b86afbc53ef7ec2")
	wantTag, _ := hex.DecodeString("1ae10b594f09e26a7e902ecbd0600691")
	if !bytes.HasPrefix(sealed, wantPrefix) {
		t.Errorf("ciphertext prefix = %x, want %x", sealed[:16], wantPrefix)
	}
	if !bytes.Equal(sealed[len(sealed)-TagSize:], wantTag) {
		t.Errorf("tag = %x, want %x", sealed[len(sealed)-TagSize:], wantTag)
	}
}

func TestSealOpenLabeled(t *testing.T) {
	var key [KeySize]byte
	rand.Read(key[:])
	msg := []byte("sub-tlv payload")

	sealed, err := SealLabeled(key, "PS-Msg06", msg)
	if err != nil {
		t.Fatalf("SealLabeled failed: %v", err)
	}
	if len(sealed) != len(msg)+TagSize {
		t.Errorf("sealed length = %d, want %d", len(sealed), len(msg)+TagSize)
	}

	opened, err := OpenLabeled(key, "PS-Msg06", sealed)
	if err != nil {
		t.Fatalf("OpenLabeled failed: %v", err)
	}
	if !bytes.Equal(opened, msg) {
		t.Errorf("OpenLabeled() = %q, want %q", opened, msg)
	}

	// Wrong label is a different nonce.
	if _, err := OpenLabeled(key, "PS-Msg05", sealed); err != ErrDecrypt {
		t.Errorf("OpenLabeled(wrong label) error = %v, want ErrDecrypt", err)
	}

	sealed[0] ^= 0x01
	if _, err := OpenLabeled(key, "PS-Msg06", sealed); err != ErrDecrypt {
		t.Errorf("OpenLabeled(tampered) error = %v, want ErrDecrypt", err)
	}
}
