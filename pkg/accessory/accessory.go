// Package accessory runs a HAP accessory server: the pairing manager, the
// TCP transport and the _hap._tcp advertisement, tied to one long-term
// identity.
//
// Usage:
//
//	acc, err := accessory.New(accessory.Config{
//		Name:      "Lamp",
//		Category:  discovery.CategoryLightbulb,
//		SetupCode: "031-45-154",
//		Handler:   mux,
//	})
//	if err := acc.Start(ctx); err != nil { ... }
//	defer acc.Stop()
package accessory

import (
	"context"
	"crypto/rand"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/backkem/hap/pkg/discovery"
	"github.com/backkem/hap/pkg/pairing"
	"github.com/backkem/hap/pkg/securechannel"
	"github.com/backkem/hap/pkg/transport"
	"github.com/pion/logging"
)

// Accessory is a HAP accessory server.
type Accessory struct {
	config    Config
	setupCode SetupCode
	identity  *pairing.Identity
	manager   *securechannel.Manager
	log       logging.LeveledLogger

	tcp        *transport.TCP
	advertiser *discovery.Advertiser

	// advMu serializes TXT record updates.
	advMu sync.Mutex

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// New creates an accessory. The long-term identity is loaded from the
// KeyStore, or generated and saved on first use.
func New(config Config) (*Accessory, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	code, _ := ParseSetupCode(config.SetupCode)
	a := &Accessory{
		config:    config,
		setupCode: code,
		state:     StateInitialized,
		done:      make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("accessory")
	}

	r := config.Rand
	if r == nil {
		r = rand.Reader
	}
	r = &fatalReader{r: r, onFatal: a.randomFailed}

	identity, err := pairing.LoadOrCreateIdentity(config.KeyStore, r)
	if err != nil {
		return nil, err
	}
	a.identity = identity

	a.manager, err = securechannel.NewManager(securechannel.ManagerConfig{
		Identity:        identity,
		Store:           config.Store,
		SetupCode:       code.String(),
		MaxAuthAttempts: config.MaxAuthAttempts,
		Rand:            r,
		Callbacks: securechannel.Callbacks{
			OnPaired:   a.onPaired,
			OnUnpaired: a.onUnpaired,
			OnVerified: a.onVerified,
		},
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	if a.log != nil {
		a.log.Infof("accessory %q device id %s", config.Name, identity.DeviceID)
	}
	return a, nil
}

// Start opens the listener, begins serving connections and registers the
// advertisement. The accessory stops when ctx is cancelled.
func (a *Accessory) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateInitialized {
		if a.state.IsRunning() || a.state == StateStarting {
			return ErrAlreadyStarted
		}
		return ErrAlreadyStopped
	}
	a.state = StateStarting

	listenAddr := a.config.ListenAddr
	if a.config.Listener == nil {
		listenAddr = net.JoinHostPort(a.config.ListenAddr, strconv.Itoa(a.config.Port))
	}
	tcp, err := transport.NewTCP(transport.TCPConfig{
		Listener:      a.config.Listener,
		ListenAddr:    listenAddr,
		Channels:      a.manager,
		Handler:       a.config.Handler,
		LoggerFactory: a.config.LoggerFactory,
	})
	if err != nil {
		a.state = StateInitialized
		return err
	}
	if err := tcp.Start(); err != nil {
		a.state = StateInitialized
		return err
	}
	a.tcp = tcp

	if !a.config.DisableAdvertising {
		if err := a.startAdvertising(); err != nil {
			tcp.Stop()
			a.tcp = nil
			a.state = StateInitialized
			return err
		}
	}

	ctx, a.cancel = context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		a.Stop()
	}()

	if a.manager.IsPaired() {
		a.state = StatePaired
	} else {
		a.state = StateUnpaired
	}
	if a.log != nil {
		a.log.Infof("accessory started on %s, state=%s", tcp.LocalAddr(), a.state)
	}
	return nil
}

// startAdvertising registers _hap._tcp. Caller must hold a.mu.
func (a *Accessory) startAdvertising() error {
	port := a.config.Port
	if addr, ok := a.tcp.LocalAddr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{
		Name:          a.config.Name,
		Port:          port,
		ServerFactory: a.config.MDNSServerFactory,
		LoggerFactory: a.config.LoggerFactory,
	})
	if err != nil {
		return err
	}
	if err := adv.Start(a.txt(a.config.ConfigNumber)); err != nil {
		return err
	}
	a.advertiser = adv
	return nil
}

// txt builds the TXT record for the current pairing state.
func (a *Accessory) txt(configNumber uint32) discovery.TXT {
	t := discovery.TXT{
		ConfigNumber:    configNumber,
		DeviceID:        a.identity.DeviceID,
		Model:           a.config.Model,
		ProtocolVersion: discovery.ProtocolVersion,
		StateNumber:     1,
		Category:        a.config.Category,
	}
	if !a.manager.IsPaired() {
		t.StatusFlags = discovery.StatusFlagNotPaired
	}
	if a.config.SetupID != "" {
		t.SetupHash = discovery.SetupHash(a.config.SetupID, a.identity.DeviceID)
	}
	return t
}

// Stop closes all connections and withdraws the advertisement.
func (a *Accessory) Stop() error {
	a.mu.Lock()
	switch {
	case a.state == StateStopped || a.state == StateStopping:
		a.mu.Unlock()
		return ErrAlreadyStopped
	case !a.state.IsRunning():
		a.mu.Unlock()
		return ErrNotStarted
	}
	a.state = StateStopping
	a.stopOnce.Do(func() {
		if a.cancel != nil {
			a.cancel()
		}
	})
	tcp, adv := a.tcp, a.advertiser
	a.mu.Unlock()

	// Connection goroutines run callbacks that take advMu, so a.mu is not
	// held while they drain.
	if adv != nil {
		a.advMu.Lock()
		adv.Close()
		a.advMu.Unlock()
	}
	if tcp != nil {
		tcp.Stop()
	}

	a.mu.Lock()
	a.state = StateStopped
	a.mu.Unlock()
	close(a.done)

	if a.log != nil {
		a.log.Info("accessory stopped")
	}
	return nil
}

// Done is closed once the accessory has stopped.
func (a *Accessory) Done() <-chan struct{} {
	return a.done
}

// State returns the current lifecycle state.
func (a *Accessory) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Addr returns the listening address, or nil before Start.
func (a *Accessory) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tcp == nil {
		return nil
	}
	return a.tcp.LocalAddr()
}

// DeviceID returns the accessory pairing identifier.
func (a *Accessory) DeviceID() string {
	return a.identity.DeviceID
}

// PublicKey returns the accessory long-term public key.
func (a *Accessory) PublicKey() []byte {
	return a.identity.PublicKey()
}

// IsPaired reports whether any controller is paired.
func (a *Accessory) IsPaired() bool {
	return a.manager.IsPaired()
}

// SetupURI returns the X-HM:// setup payload, or "" without a SetupID.
func (a *Accessory) SetupURI() string {
	if a.config.SetupID == "" {
		return ""
	}
	return SetupURI(a.setupCode, uint16(a.config.Category), a.config.SetupID)
}

// TXT returns the advertised TXT record.
func (a *Accessory) TXT() discovery.TXT {
	a.advMu.Lock()
	defer a.advMu.Unlock()
	if a.advertiser == nil {
		return a.txt(a.config.ConfigNumber)
	}
	return a.advertiser.TXT()
}

// BumpConfigNumber increments c# and re-announces, e.g. after the
// accessory database changed.
func (a *Accessory) BumpConfigNumber() error {
	a.advMu.Lock()
	defer a.advMu.Unlock()
	a.config.ConfigNumber = discovery.NextConfigNumber(a.config.ConfigNumber)
	if a.advertiser == nil || !a.advertiser.IsAdvertising() {
		return nil
	}
	return a.advertiser.Update(a.txt(a.config.ConfigNumber))
}

// refresh updates the paired state and re-announces the TXT record.
func (a *Accessory) refresh() {
	paired := a.manager.IsPaired()

	a.mu.Lock()
	if a.state.IsRunning() {
		if paired {
			a.state = StatePaired
		} else {
			a.state = StateUnpaired
		}
	}
	a.mu.Unlock()

	a.advMu.Lock()
	defer a.advMu.Unlock()
	if a.advertiser == nil || !a.advertiser.IsAdvertising() {
		return
	}
	if err := a.advertiser.Update(a.txt(a.config.ConfigNumber)); err != nil && a.log != nil {
		a.log.Warnf("failed to update advertisement: %v", err)
	}
}

func (a *Accessory) onPaired(p *pairing.Pairing) {
	if a.log != nil {
		a.log.Infof("controller %s paired (%s)", p.Identifier, p.Permissions)
	}
	a.refresh()
	if a.config.OnPaired != nil {
		a.config.OnPaired(p.Identifier)
	}
}

func (a *Accessory) onUnpaired(controllerID string) {
	a.mu.Lock()
	tcp := a.tcp
	a.mu.Unlock()

	n := 0
	if tcp != nil {
		n = tcp.Sessions().CloseByController(controllerID)
	}
	if a.log != nil {
		a.log.Infof("controller %s unpaired, closed %d sessions", controllerID, n)
	}
	a.refresh()
	if a.config.OnUnpaired != nil {
		a.config.OnUnpaired(controllerID)
	}
}

func (a *Accessory) onVerified(controllerID string, remote net.Addr) {
	if a.log != nil {
		a.log.Debugf("controller %s verified from %s", controllerID, remote)
	}
}

// randomFailed stops the accessory. A broken random source cannot be
// recovered from.
func (a *Accessory) randomFailed(err error) {
	if a.log != nil {
		a.log.Errorf("random source failed, stopping: %v", err)
	}
	go a.Stop()
}

// fatalReader reports the first read error of the wrapped source.
type fatalReader struct {
	r       io.Reader
	once    sync.Once
	onFatal func(error)
}

func (f *fatalReader) Read(p []byte) (int, error) {
	n, err := io.ReadFull(f.r, p)
	if err != nil {
		f.once.Do(func() { f.onFatal(err) })
	}
	return n, err
}
