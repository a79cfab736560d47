package pairing

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"os"
	"regexp"
	"testing"
	"testing/iotest"

	"github.com/zalando/go-keyring"
)

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}

var deviceIDPattern = regexp.MustCompile(`^[0-9A-F]{2}(:[0-9A-F]{2}){5}$`)

func TestGenerateIdentity(t *testing.T) {
	id, err := GenerateIdentity(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	if !deviceIDPattern.MatchString(id.DeviceID) {
		t.Errorf("DeviceID = %q, want XX:XX:XX:XX:XX:XX", id.DeviceID)
	}

	msg := []byte("accessory info")
	if !ed25519.Verify(id.PublicKey(), msg, id.Sign(msg)) {
		t.Error("signature does not verify with PublicKey()")
	}
}

func TestGenerateIdentity_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 64)
	a, err := GenerateIdentity(bytes.NewReader(seed))
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	if a.DeviceID != "42:42:42:42:42:42" {
		t.Errorf("DeviceID = %s, want 42:42:42:42:42:42", a.DeviceID)
	}
	b, _ := NewIdentity(a.DeviceID, a.Seed())
	if !a.PublicKey().Equal(b.PublicKey()) {
		t.Error("NewIdentity from seed produced a different key")
	}
}

func TestGenerateIdentity_RandomFailure(t *testing.T) {
	if _, err := GenerateIdentity(iotest.ErrReader(errors.New("boom"))); err == nil {
		t.Error("GenerateIdentity should fail when the random source fails")
	}
}

func TestLoadOrCreateIdentity(t *testing.T) {
	ks := NewMemoryKeyStore()
	if _, err := ks.LoadIdentity(); err != ErrNoIdentity {
		t.Fatalf("LoadIdentity on empty store error = %v, want ErrNoIdentity", err)
	}

	first, err := LoadOrCreateIdentity(ks, rand.Reader)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity failed: %v", err)
	}
	second, err := LoadOrCreateIdentity(ks, rand.Reader)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity failed: %v", err)
	}
	if first.DeviceID != second.DeviceID || !first.PublicKey().Equal(second.PublicKey()) {
		t.Error("second call generated a new identity")
	}
}

func TestKeyringKeyStore(t *testing.T) {
	keyring.MockInit()

	ks := NewKeyringKeyStore("", "")
	if ks.Service != DefaultKeyringService || ks.User != DefaultKeyringUser {
		t.Errorf("defaults = %s/%s", ks.Service, ks.User)
	}
	if _, err := ks.LoadIdentity(); err != ErrNoIdentity {
		t.Fatalf("LoadIdentity error = %v, want ErrNoIdentity", err)
	}

	id, err := LoadOrCreateIdentity(ks, rand.Reader)
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity failed: %v", err)
	}
	loaded, err := ks.LoadIdentity()
	if err != nil {
		t.Fatalf("LoadIdentity failed: %v", err)
	}
	if loaded.DeviceID != id.DeviceID || !loaded.PublicKey().Equal(id.PublicKey()) {
		t.Error("keyring round trip changed the identity")
	}

	if err := ks.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := ks.LoadIdentity(); err != ErrNoIdentity {
		t.Errorf("LoadIdentity after Delete error = %v, want ErrNoIdentity", err)
	}
}

func TestPermissions_String(t *testing.T) {
	if PermissionAdmin.String() != "Admin" || PermissionUser.String() != "User" {
		t.Error("unexpected permission names")
	}
	if Permissions(7).String() != "Permissions(7)" {
		t.Errorf("Permissions(7).String() = %s", Permissions(7).String())
	}
}
