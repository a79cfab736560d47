// Package integration contains end-to-end tests that run the lightbulb
// example against the controller example over real sockets.
package integration

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/backkem/hap/examples/controller"
	"github.com/backkem/hap/examples/lightbulb"
	"github.com/backkem/hap/pkg/accessory"
	"github.com/backkem/hap/pkg/discovery"
	"github.com/backkem/hap/pkg/pairing"
	"github.com/pion/logging"
)

const testSetupCode = "111-22-333"

// TestPair holds a running lightbulb and a controller that can find it
// through a mock mDNS resolver.
type TestPair struct {
	Device     *lightbulb.Device
	Store      *pairing.FileStore
	MDNS       *discovery.MockServerFactory
	Resolver   *discovery.MockMDNSResolver
	Controller *controller.Controller
	StatePath  string
}

// NewTestPair starts a lightbulb on loopback and creates a controller
// with its state under t.TempDir().
func NewTestPair(t *testing.T) *TestPair {
	t.Helper()
	dir := t.TempDir()
	loggerFactory := logging.NewDefaultLoggerFactory()

	store, err := pairing.OpenFileStore(filepath.Join(dir, "accessory.json"), accessory.DefaultMaxPairings)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}

	tp := &TestPair{
		Store:     store,
		MDNS:      &discovery.MockServerFactory{},
		Resolver:  discovery.NewMockMDNSResolver(),
		StatePath: filepath.Join(dir, "controller.json"),
	}

	tp.Device, err = lightbulb.NewDeviceWithConfig(accessory.Config{
		Name:              "Test Lightbulb",
		SetupCode:         testSetupCode,
		SetupID:           "HOME",
		ListenAddr:        "127.0.0.1",
		Store:             store,
		MDNSServerFactory: tp.MDNS,
		LoggerFactory:     loggerFactory,
	})
	if err != nil {
		t.Fatalf("NewDeviceWithConfig failed: %v", err)
	}
	if err := tp.Device.Accessory.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = tp.Device.Accessory.Stop() })

	acc := tp.Device.Accessory
	port := acc.Addr().(*net.TCPAddr).Port
	tp.Resolver.RegisterService(discovery.ServiceHAP,
		discovery.MockAccessoryService("Test Lightbulb", port, net.IPv4(127, 0, 0, 1), acc.TXT()))

	tp.Controller = tp.NewController(t)
	return tp
}

// NewController loads a controller from the pair's state file.
func (tp *TestPair) NewController(t *testing.T) *controller.Controller {
	t.Helper()
	c, err := controller.New(controller.Options{
		StatePath:    tp.StatePath,
		MDNSResolver: tp.Resolver,
	})
	if err != nil {
		t.Fatalf("controller.New failed: %v", err)
	}
	return c
}

// Addr returns the accessory address.
func (tp *TestPair) Addr() string {
	return tp.Device.Accessory.Addr().String()
}
