package accessory

import (
	"context"
	"crypto/rand"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/backkem/hap/pkg/controller"
	"github.com/backkem/hap/pkg/discovery"
	"github.com/backkem/hap/pkg/pairing"
	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

const testSetupCode = "031-45-154"

func testConfig(mdns *discovery.MockServerFactory) Config {
	config := Config{
		Name:          "Test Lamp",
		Category:      discovery.CategoryLightbulb,
		SetupCode:     "03145154",
		SetupID:       "1QJ8",
		ListenAddr:    "127.0.0.1",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/identify" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			http.NotFound(w, r)
		}),
	}
	if mdns != nil {
		config.MDNSServerFactory = mdns
	}
	return config
}

func startTestAccessory(t *testing.T, config Config) *Accessory {
	t.Helper()
	acc, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := acc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = acc.Stop() })
	return acc
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"no name", func(c *Config) { c.Name = "" }, ErrInvalidName},
		{"bad code", func(c *Config) { c.SetupCode = "1234" }, ErrInvalidSetupCode},
		{"trivial code", func(c *Config) { c.SetupCode = "123-45-678" }, ErrInvalidSetupCode},
		{"bad setup id", func(c *Config) { c.SetupID = "abc" }, ErrInvalidSetupID},
		{"bad port", func(c *Config) { c.Port = 70000 }, ErrInvalidPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(nil)
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() failed: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	c := Config{Name: "x", SetupCode: testSetupCode}
	c.applyDefaults()

	if c.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", c.Model, DefaultModel)
	}
	if c.Category != discovery.CategoryOther {
		t.Errorf("Category = %d, want Other", c.Category)
	}
	if c.ConfigNumber != 1 {
		t.Errorf("ConfigNumber = %d, want 1", c.ConfigNumber)
	}
	if c.Store == nil || c.KeyStore == nil {
		t.Fatal("stores not defaulted")
	}
}

func TestNew_PersistentIdentity(t *testing.T) {
	ks := pairing.NewMemoryKeyStore()
	config := testConfig(nil)
	config.KeyStore = ks

	a1, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	a2, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a1.DeviceID() != a2.DeviceID() {
		t.Errorf("device id changed: %s != %s", a1.DeviceID(), a2.DeviceID())
	}
	if a1.SetupURI() != "X-HM://00522H1VM1QJ8" {
		t.Errorf("SetupURI() = %s", a1.SetupURI())
	}
}

func TestAccessory_Lifecycle(t *testing.T) {
	mdns := &discovery.MockServerFactory{}
	acc, err := New(testConfig(mdns))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if acc.State() != StateInitialized {
		t.Errorf("State() = %s, want Initialized", acc.State())
	}
	if acc.Addr() != nil {
		t.Error("Addr() before Start should be nil")
	}
	if err := acc.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop before Start error = %v, want ErrNotStarted", err)
	}

	if err := acc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if acc.State() != StateUnpaired {
		t.Errorf("State() = %s, want Unpaired", acc.State())
	}
	if err := acc.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start error = %v, want ErrAlreadyStarted", err)
	}

	server := mdns.Last()
	if server == nil {
		t.Fatal("no mDNS service registered")
	}
	if server.Instance != "Test Lamp" {
		t.Errorf("instance = %q", server.Instance)
	}
	if server.Port != acc.Addr().(*net.TCPAddr).Port {
		t.Errorf("advertised port = %d, listening on %s", server.Port, acc.Addr())
	}
	txt := mdns.LastTXT()
	if txt["sf"] != "1" || txt["ci"] != "5" || txt["id"] != acc.DeviceID() || txt["pv"] != "1.1" {
		t.Errorf("unexpected TXT record: %v", txt)
	}
	if txt["sh"] != discovery.SetupHash("1QJ8", acc.DeviceID()) {
		t.Errorf("sh = %q", txt["sh"])
	}

	if err := acc.BumpConfigNumber(); err != nil {
		t.Fatalf("BumpConfigNumber failed: %v", err)
	}
	if got := mdns.LastTXT()["c#"]; got != "2" {
		t.Errorf("c# = %q, want 2", got)
	}

	if err := acc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if acc.State() != StateStopped {
		t.Errorf("State() = %s, want Stopped", acc.State())
	}
	if !server.IsShutdown() {
		t.Error("mDNS service not shut down")
	}
	if err := acc.Stop(); !errors.Is(err, ErrAlreadyStopped) {
		t.Errorf("second Stop error = %v, want ErrAlreadyStopped", err)
	}
	if err := acc.Start(context.Background()); !errors.Is(err, ErrAlreadyStopped) {
		t.Errorf("Start after Stop error = %v, want ErrAlreadyStopped", err)
	}
}

func TestAccessory_StopsOnContextCancel(t *testing.T) {
	acc, err := New(testConfig(&discovery.MockServerFactory{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := acc.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()
	waitFor(t, "Stopped", func() bool { return acc.State() == StateStopped })
}

func TestAccessory_AdvertiseFailure(t *testing.T) {
	config := testConfig(&discovery.MockServerFactory{Err: errors.New("no multicast")})
	acc, err := New(config)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := acc.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded without mDNS")
	}
	if acc.State() != StateInitialized {
		t.Errorf("State() = %s, want Initialized", acc.State())
	}
}

func TestAccessory_PairVerifyRemove(t *testing.T) {
	lim := test.TimeOut(30 * time.Second)
	defer lim.Stop()

	mdns := &discovery.MockServerFactory{}
	config := testConfig(mdns)
	var paired, unpaired []string
	pairedCh := make(chan struct{}, 1)
	unpairedCh := make(chan struct{}, 1)
	config.OnPaired = func(id string) {
		paired = append(paired, id)
		pairedCh <- struct{}{}
	}
	config.OnUnpaired = func(id string) {
		unpaired = append(unpaired, id)
		unpairedCh <- struct{}{}
	}
	acc := startTestAccessory(t, config)

	client, err := controller.New(controller.Config{})
	if err != nil {
		t.Fatalf("controller.New failed: %v", err)
	}
	conn, err := client.Dial(context.Background(), acc.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	info, err := conn.PairSetup(testSetupCode)
	if err != nil {
		t.Fatalf("PairSetup failed: %v", err)
	}
	if info.DeviceID != acc.DeviceID() {
		t.Errorf("accessory id = %s, want %s", info.DeviceID, acc.DeviceID())
	}
	<-pairedCh
	if len(paired) != 1 || paired[0] != client.PairingID() {
		t.Errorf("OnPaired calls = %v", paired)
	}
	if !acc.IsPaired() || acc.State() != StatePaired {
		t.Errorf("IsPaired() = %v, State() = %s", acc.IsPaired(), acc.State())
	}
	if got := mdns.LastTXT()["sf"]; got != "0" {
		t.Errorf("sf after pairing = %q, want 0", got)
	}

	if err := conn.PairVerify(info); err != nil {
		t.Fatalf("PairVerify failed: %v", err)
	}
	resp, _, err := conn.Get("/identify")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("/identify status = %d, want 204", resp.StatusCode)
	}

	if err := conn.RemovePairing(client.PairingID()); err != nil {
		t.Fatalf("RemovePairing failed: %v", err)
	}
	<-unpairedCh
	if len(unpaired) != 1 || unpaired[0] != client.PairingID() {
		t.Errorf("OnUnpaired calls = %v", unpaired)
	}
	if acc.IsPaired() || acc.State() != StateUnpaired {
		t.Errorf("IsPaired() = %v, State() = %s", acc.IsPaired(), acc.State())
	}
	if got := mdns.LastTXT()["sf"]; got != "1" {
		t.Errorf("sf after removal = %q, want 1", got)
	}
	if _, _, err := conn.Get("/identify"); err == nil {
		t.Error("request on a removed controller's session succeeded")
	}
}

func TestAccessory_WrongSetupCode(t *testing.T) {
	lim := test.TimeOut(20 * time.Second)
	defer lim.Stop()

	config := testConfig(&discovery.MockServerFactory{})
	config.MaxAuthAttempts = 1
	acc := startTestAccessory(t, config)

	client, err := controller.New(controller.Config{})
	if err != nil {
		t.Fatalf("controller.New failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		conn, err := client.Dial(context.Background(), acc.Addr().String())
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		if _, err := conn.PairSetup("031-45-155"); err == nil {
			t.Fatal("PairSetup with wrong code succeeded")
		}
		conn.Close()
	}

	// Locked out, even with the right code.
	conn, err := client.Dial(context.Background(), acc.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	if _, err := conn.PairSetup(testSetupCode); err == nil {
		t.Error("PairSetup succeeded after lockout")
	}
	if acc.IsPaired() {
		t.Error("accessory paired after lockout")
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy source unavailable")
}

func TestAccessory_RandomFailureStops(t *testing.T) {
	lim := test.TimeOut(20 * time.Second)
	defer lim.Stop()

	id, err := pairing.GenerateIdentity(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	ks := pairing.NewMemoryKeyStore()
	if err := ks.SaveIdentity(id); err != nil {
		t.Fatalf("SaveIdentity failed: %v", err)
	}

	config := testConfig(&discovery.MockServerFactory{})
	config.KeyStore = ks
	config.Rand = failingReader{}
	acc := startTestAccessory(t, config)

	client, err := controller.New(controller.Config{})
	if err != nil {
		t.Fatalf("controller.New failed: %v", err)
	}
	conn, err := client.Dial(context.Background(), acc.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if _, err := conn.PairSetup(testSetupCode); err == nil {
		t.Error("PairSetup succeeded without randomness")
	}
	waitFor(t, "Stopped", func() bool { return acc.State() == StateStopped })
}
