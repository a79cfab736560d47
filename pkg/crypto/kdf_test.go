package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// HKDF-SHA-512 computed over the RFC 5869 Test Case 1 and 3 inputs.
var hkdfSHA512TestVectors = []struct {
	name   string
	ikm    string
	salt   string
	info   string
	length int
	okm    string
}{
	{
		name:   "RFC5869_TC1_inputs",
		ikm:    "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
		salt:   "000102030405060708090a0b0c",
		info:   "f0f1f2f3f4f5f6f7f8f9",
		length: 42,
		okm:    "832390086cda71fb47625bb5ceb168e4c8e26a1a16ed34d9fc7fe92c1481579338da362cb8d9f925d7cb",
	},
	{
		name:   "RFC5869_TC3_inputs",
		ikm:    "0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b0b",
		salt:   "",
		info:   "",
		length: 42,
		okm:    "f5fa02b18298a72a8c23898a8703472c6eb179dc204c03425c970e3b164bf90fff22d04836d0e2343bac",
	},
}

func TestHKDFSHA512(t *testing.T) {
	for _, tc := range hkdfSHA512TestVectors {
		t.Run(tc.name, func(t *testing.T) {
			ikm, _ := hex.DecodeString(tc.ikm)
			salt, _ := hex.DecodeString(tc.salt)
			info, _ := hex.DecodeString(tc.info)
			want, _ := hex.DecodeString(tc.okm)

			got, err := HKDFSHA512(ikm, salt, info, tc.length)
			if err != nil {
				t.Fatalf("HKDFSHA512 failed: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("HKDFSHA512() = %x, want %x", got, want)
			}
		})
	}
}

// HAP derivations keyed by the session key K of the SRP test vector
// and by the shared secret 0x00..0x1f.
func TestDeriveKey_HAPInfoStrings(t *testing.T) {
	srpK, _ := hex.DecodeString("5cbc219db052138ee1148c71cd4498963d682549ce91ca24f098468f06015beb" +
		"6af245c2093f98c3651bca83ab8cab2b580bbf02184fefdf26142f73df95ac50")
	shared := make([]byte, 32)
	for i := range shared {
		shared[i] = byte(i)
	}

	tests := []struct {
		secret []byte
		salt   string
		info   string
		want   string
	}{
		{srpK, "Pair-Setup-Encrypt-Salt", "Pair-Setup-Encrypt-Info",
			"2a05883492dffdd216ca4a3c2aa472b67ddd49e2a061b86929539afcb6abfef4"},
		{srpK, "Pair-Setup-Controller-Sign-Salt", "Pair-Setup-Controller-Sign-Info",
			"e45baa0218c40756559b95d21736fccc641a2977b063b2c82be2de896aa779b3"},
		{srpK, "Pair-Setup-Accessory-Sign-Salt", "Pair-Setup-Accessory-Sign-Info",
			"5a55453e44c7721cf44179f3f694eb722d887e264cd3586d0328419d43092e1c"},
		{shared, "Pair-Verify-Encrypt-Salt", "Pair-Verify-Encrypt-Info",
			"faf9f3558a8ed1e45219bd94fb6d27e5b43a1bc861157fc2a0d291d8e3df410a"},
		{shared, "Control-Salt", "Control-Write-Encryption-Key",
			"c3ca130c7033dbe5e7ff7f91d117ead869bac476994c7a48ca170c111136ed96"},
		{shared, "Control-Salt", "Control-Read-Encryption-Key",
			"c09403ef8aa6c5045cbd8cf9bf3e665b2caed623af2be0e87c8f80f519914d3d"},
	}

	for _, tt := range tests {
		t.Run(tt.info, func(t *testing.T) {
			key, err := DeriveKey(tt.secret, tt.salt, tt.info)
			if err != nil {
				t.Fatalf("DeriveKey failed: %v", err)
			}
			if got := hex.EncodeToString(key[:]); got != tt.want {
				t.Errorf("DeriveKey() = %s, want %s", got, tt.want)
			}
		})
	}
}
