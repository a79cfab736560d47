package tlv8

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-test/deep"
)

func TestEncode_Simple(t *testing.T) {
	var c Container
	c.AddByte(TypeState, 1).AddByte(TypeMethod, 0)

	got := Encode(c)
	want := []byte{0x06, 0x01, 0x01, 0x00, 0x01, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = %x, want %x", got, want)
	}
}

func TestEncode_Fragments(t *testing.T) {
	value := make([]byte, 384) // SRP public key size
	for i := range value {
		value[i] = byte(i)
	}

	var c Container
	c.Add(TypePublicKey, value)
	got := Encode(c)

	if len(got) != 384+4 {
		t.Fatalf("encoded length = %d, want %d", len(got), 388)
	}
	if got[0] != byte(TypePublicKey) || got[1] != 255 {
		t.Errorf("first fragment header = %x %x", got[0], got[1])
	}
	if got[257] != byte(TypePublicKey) || got[258] != 129 {
		t.Errorf("second fragment header = %x %x", got[257], got[258])
	}

	decoded, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if diff := deep.Equal(decoded, c); diff != nil {
		t.Error(diff)
	}
}

func TestEncode_ExactFragmentFollowedByOtherType(t *testing.T) {
	value := bytes.Repeat([]byte{0xAB}, 255)

	var c Container
	c.Add(TypeEncryptedData, value).AddByte(TypeState, 5)

	decoded, err := Decode(Encode(c))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d items, want 2", len(decoded))
	}
	if !bytes.Equal(decoded[0].Value, value) {
		t.Error("encrypted data mismatch")
	}
}

func TestEncode_EmptyValue(t *testing.T) {
	var c Container
	c.AddSeparator()
	got := Encode(c)
	if !bytes.Equal(got, []byte{0xFF, 0x00}) {
		t.Errorf("Encode() = %x", got)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"header only type", []byte{0x06}},
		{"value truncated", []byte{0x06, 0x02, 0x01}},
		{"second item truncated", []byte{0x06, 0x01, 0x01, 0x03, 0x10, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	c, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil) failed: %v", err)
	}
	if len(c) != 0 {
		t.Errorf("expected empty container, got %d items", len(c))
	}
}

func TestContainer_Accessors(t *testing.T) {
	var c Container
	c.AddByte(TypeState, 3).
		AddString(TypeIdentifier, "controller").
		AddUint(TypeFlags, 0x01000010).
		AddUint(TypeRetryDelay, 0)

	state, err := c.GetByte(TypeState)
	if err != nil || state != 3 {
		t.Errorf("GetByte(State) = %d, %v", state, err)
	}

	id, err := c.GetString(TypeIdentifier)
	if err != nil || id != "controller" {
		t.Errorf("GetString(Identifier) = %q, %v", id, err)
	}

	flags, err := c.GetUint(TypeFlags)
	if err != nil || flags != 0x01000010 {
		t.Errorf("GetUint(Flags) = %x, %v", flags, err)
	}
	raw, _ := c.Get(TypeFlags)
	if len(raw) != 4 {
		t.Errorf("flags encoded in %d bytes, want 4", len(raw))
	}

	delay, err := c.GetUint(TypeRetryDelay)
	if err != nil || delay != 0 {
		t.Errorf("GetUint(RetryDelay) = %d, %v", delay, err)
	}

	if _, err := c.GetByte(TypeError); !errors.Is(err, ErrMissingItem) {
		t.Errorf("GetByte(Error) error = %v, want ErrMissingItem", err)
	}
	if _, err := c.GetByte(TypeIdentifier); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("GetByte(Identifier) error = %v, want ErrInvalidLength", err)
	}
	if c.Has(TypeSalt) {
		t.Error("Has(Salt) = true")
	}
}

func TestContainer_Split(t *testing.T) {
	var c Container
	c.AddByte(TypeState, 2)
	c.AddString(TypeIdentifier, "a").AddByte(TypePermissions, 1)
	c.AddSeparator()
	c.AddString(TypeIdentifier, "b").AddByte(TypePermissions, 0)

	decoded, err := Decode(Encode(c))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	records := decoded.Split()
	if len(records) != 2 {
		t.Fatalf("Split() returned %d records, want 2", len(records))
	}
	if id, _ := records[1].GetString(TypeIdentifier); id != "b" {
		t.Errorf("second record identifier = %q", id)
	}
	if _, ok := records[0].Get(TypeState); !ok {
		t.Error("first record lost the leading state item")
	}
}

func TestType_String(t *testing.T) {
	if TypeEncryptedData.String() != "EncryptedData" {
		t.Errorf("String() = %q", TypeEncryptedData.String())
	}
	if Type(0x42).String() != "Type(0x42)" {
		t.Errorf("String() = %q", Type(0x42).String())
	}
}
