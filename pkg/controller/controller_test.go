package controller

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/backkem/hap/pkg/pairing"
	"github.com/backkem/hap/pkg/securechannel"
	"github.com/backkem/hap/pkg/securechannel/messages"
	"github.com/backkem/hap/pkg/transport"
	"github.com/pion/transport/v3/test"
)

const testSetupCode = "031-45-154"

func startAccessory(t *testing.T) (*transport.TCP, pairing.Store) {
	t.Helper()
	id, err := pairing.GenerateIdentity(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateIdentity failed: %v", err)
	}
	store := pairing.NewMemoryStore(0)
	m, err := securechannel.NewManager(securechannel.ManagerConfig{
		Identity:  id,
		Store:     store,
		SetupCode: testSetupCode,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	tcp, err := transport.NewTCP(transport.TCPConfig{
		ListenAddr: "127.0.0.1:0",
		Channels:   m,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}),
	})
	if err != nil {
		t.Fatalf("NewTCP failed: %v", err)
	}
	if err := tcp.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = tcp.Stop() })
	return tcp, store
}

func newClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func dial(t *testing.T, c *Client, tcp *transport.TCP) *Conn {
	t.Helper()
	conn, err := c.Dial(context.Background(), tcp.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNew(t *testing.T) {
	c := newClient(t)
	if len(c.PairingID()) != 36 {
		t.Errorf("PairingID() = %q, want a UUID", c.PairingID())
	}
	if len(c.PublicKey()) != 32 {
		t.Errorf("PublicKey() length = %d", len(c.PublicKey()))
	}

	fixed, err := New(Config{PairingID: "controller-1", LongTermKey: c.LongTermKey()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if fixed.PairingID() != "controller-1" || !fixed.PublicKey().Equal(c.PublicKey()) {
		t.Error("configured identity not used")
	}

	if _, err := New(Config{LongTermKey: make([]byte, 5)}); err == nil {
		t.Error("New with short key succeeded")
	}
}

func TestConn_PairAndManage(t *testing.T) {
	lim := test.TimeOut(30 * time.Second)
	defer lim.Stop()

	tcp, store := startAccessory(t)
	admin := newClient(t)
	conn := dial(t, admin, tcp)

	if _, _, err := conn.Get("/accessories"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	info, err := conn.PairSetup(testSetupCode)
	if err != nil {
		t.Fatalf("PairSetup failed: %v", err)
	}
	if err := conn.PairVerify(info); err != nil {
		t.Fatalf("PairVerify failed: %v", err)
	}
	if !conn.Verified() {
		t.Fatal("Verified() = false")
	}
	if err := conn.PairVerify(info); !errors.Is(err, ErrAlreadyVerified) {
		t.Errorf("second PairVerify error = %v, want ErrAlreadyVerified", err)
	}

	resp, _, err := conn.Get("/identify")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	user := newClient(t)
	if err := conn.AddPairing(&pairing.Pairing{
		Identifier:  user.PairingID(),
		PublicKey:   user.PublicKey(),
		Permissions: pairing.PermissionUser,
	}); err != nil {
		t.Fatalf("AddPairing failed: %v", err)
	}
	list, err := conn.ListPairings()
	if err != nil {
		t.Fatalf("ListPairings failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListPairings returned %d pairings, want 2", len(list))
	}

	// The added controller can verify but not manage pairings.
	userConn := dial(t, user, tcp)
	if err := userConn.PairVerify(info); err != nil {
		t.Fatalf("user PairVerify failed: %v", err)
	}
	_, err = userConn.ListPairings()
	var remote *messages.RemoteError
	if !errors.As(err, &remote) || remote.Code != messages.ErrorCodeAuthentication {
		t.Errorf("user ListPairings error = %v, want Authentication", err)
	}

	if err := conn.RemovePairing(user.PairingID()); err != nil {
		t.Fatalf("RemovePairing failed: %v", err)
	}
	if n, _ := store.Count(); n != 1 {
		t.Errorf("store Count() = %d, want 1", n)
	}
}

func TestConn_PairSetupWrongCode(t *testing.T) {
	lim := test.TimeOut(20 * time.Second)
	defer lim.Stop()

	tcp, _ := startAccessory(t)
	conn := dial(t, newClient(t), tcp)

	_, err := conn.PairSetup("031-45-155")
	var remote *messages.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("PairSetup error = %v, want RemoteError", err)
	}
	if remote.Code != messages.ErrorCodeAuthentication || remote.State != messages.M4 {
		t.Errorf("RemoteError = %+v, want Authentication in M4", remote)
	}
}

func TestConn_PairingsRequireVerify(t *testing.T) {
	tcp, _ := startAccessory(t)
	conn := dial(t, newClient(t), tcp)

	if _, err := conn.ListPairings(); !errors.Is(err, ErrNotVerified) {
		t.Errorf("ListPairings error = %v, want ErrNotVerified", err)
	}
	if err := conn.RemovePairing("x"); !errors.Is(err, ErrNotVerified) {
		t.Errorf("RemovePairing error = %v, want ErrNotVerified", err)
	}
}
