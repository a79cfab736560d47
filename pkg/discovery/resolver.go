package discovery

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

// DefaultBrowseTimeout is the default timeout for browse operations.
const DefaultBrowseTimeout = 10 * time.Second

// ResolvedService contains information about a discovered accessory.
type ResolvedService struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// HostName is the target host name.
	HostName string

	// Port is the service port.
	Port int

	// IPs contains the resolved IP addresses, IPv4 first.
	IPs []net.IP

	// TXT is the decoded HAP TXT record.
	TXT TXT
}

// Addr returns "ip:port" for the first address, or "" if none is known.
func (r *ResolvedService) Addr() string {
	if len(r.IPs) == 0 {
		return ""
	}
	return net.JoinHostPort(r.IPs[0].String(), strconv.Itoa(r.Port))
}

// MDNSResolver is the interface for mDNS service resolution.
// This allows for dependency injection in tests.
type MDNSResolver interface {
	// Browse sends discovered entries until ctx is done. It does not close
	// entries.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	// zeroconf closes its channel when ctx is done.
	found := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Browse(ctx, service, domain, found); err != nil {
		return err
	}
	for entry := range found {
		select {
		case entries <- entry:
		case <-ctx.Done():
		}
	}
	return nil
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// MDNSResolver is the underlying mDNS resolver implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout is the timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration
}

// Resolver discovers HAP accessories via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	return &Resolver{config: config, resolver: resolver}, nil
}

// Browse discovers accessories until ctx is done or the browse timeout
// expires. Entries without a valid HAP TXT record are skipped.
func (r *Resolver) Browse(ctx context.Context) <-chan ResolvedService {
	results := make(chan ResolvedService)
	entries := make(chan *zeroconf.ServiceEntry)

	ctx, cancel := context.WithTimeout(ctx, r.config.BrowseTimeout)

	go func() {
		defer close(entries)
		_ = r.resolver.Browse(ctx, ServiceHAP, DefaultDomain, entries)
	}()

	go func() {
		defer cancel()
		defer close(results)
		for entry := range entries {
			svc, err := entryToResolvedService(entry)
			if err != nil {
				continue
			}
			select {
			case results <- svc:
			case <-ctx.Done():
				// Drain so the browse goroutine can exit.
				for range entries {
				}
				return
			}
		}
	}()

	return results
}

// Find returns the first accessory advertising deviceID.
func (r *Resolver) Find(ctx context.Context, deviceID string) (*ResolvedService, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for svc := range r.Browse(ctx) {
		if svc.TXT.DeviceID == deviceID {
			return &svc, nil
		}
	}
	if ctx.Err() == context.DeadlineExceeded {
		return nil, ErrTimeout
	}
	return nil, ErrServiceNotFound
}

// entryToResolvedService converts a zeroconf.ServiceEntry to ResolvedService.
func entryToResolvedService(entry *zeroconf.ServiceEntry) (ResolvedService, error) {
	txt, err := DecodeTXT(entry.Text)
	if err != nil {
		return ResolvedService{}, err
	}
	ips := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)
	return ResolvedService{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          ips,
		TXT:          txt,
	}, nil
}
