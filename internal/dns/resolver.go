// Package dns resolves batches of domain names over a single multiplexed
// UDP socket and tracks the results of a run.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/p4th0r/gatelist/internal/classify"
	"github.com/p4th0r/gatelist/internal/logging"
	"github.com/p4th0r/gatelist/internal/metrics"
)

// ErrResolverInit is returned when the query socket cannot be opened.
var ErrResolverInit = errors.New("resolver initialization failed")

const (
	defaultTimeout  = 2 * time.Second
	defaultAttempts = 3
	defaultWindow   = 256
	ednsBufferSize  = 1232
)

// Tap observes every datagram the resolver sends or receives.
type Tap interface {
	Packet(src, dst netip.AddrPort, payload []byte)
}

// Config holds the configuration for a Resolver.
type Config struct {
	Servers  []string      // upstream "ip" or "ip:port"; tried round-robin per attempt
	Timeout  time.Duration // per attempt
	Attempts int           // sends per query before giving up
	Window   int           // queries in flight per batch
	Bind     string        // local address of the query socket, default ":0"
	Tracker  *Tracker
	Tap      Tap
	Metrics  *metrics.Metrics
	Logger   *logging.StderrLogger
}

// Resolver looks up A and AAAA records for batches of names.
// It keeps no cache between calls.
type Resolver struct {
	servers  []netip.AddrPort
	timeout  time.Duration
	attempts int
	window   int
	bind     string
	tracker  *Tracker
	tap      Tap
	metrics  *metrics.Metrics
	logger   *logging.StderrLogger
	tcp      *dns.Client
}

// NewResolver validates cfg and returns a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("%w: no upstream servers", ErrResolverInit)
	}
	servers := make([]netip.AddrPort, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		ap, err := parseServer(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResolverInit, err)
		}
		servers = append(servers, ap)
	}

	r := &Resolver{
		servers:  servers,
		timeout:  cfg.Timeout,
		attempts: cfg.Attempts,
		window:   cfg.Window,
		bind:     cfg.Bind,
		tracker:  cfg.Tracker,
		tap:      cfg.Tap,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.attempts <= 0 {
		r.attempts = defaultAttempts
	}
	if r.window <= 0 {
		r.window = defaultWindow
	}
	if r.bind == "" {
		r.bind = ":0"
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	r.tcp = &dns.Client{Net: "tcp", Timeout: r.timeout}
	return r, nil
}

// parseServer accepts "1.1.1.1", "1.1.1.1:53", "2606:4700::1111" or "[2606:4700::1111]:53".
func parseServer(s string) (netip.AddrPort, error) {
	s = strings.TrimSpace(s)
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
	}
	addr, err := netip.ParseAddr(strings.Trim(s, "[]"))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid DNS server %q", s)
	}
	return netip.AddrPortFrom(addr.Unmap(), 53), nil
}

// Servers returns the upstream servers in use.
func (r *Resolver) Servers() []string {
	out := make([]string, len(r.servers))
	for i, s := range r.servers {
		out[i] = s.String()
	}
	return out
}

// ResolveEach resolves every name and returns its A and AAAA addresses,
// keyed by the name as given. Names that fail or time out map to an empty
// slice. The error is non-nil only when the batch could not start.
func (r *Resolver) ResolveEach(ctx context.Context, names []string) (map[string][]string, error) {
	out := make(map[string][]string, len(names))
	byNorm := make(map[string][]string, len(names)) // normalized -> names as given
	var order []string
	for _, name := range names {
		out[name] = nil
		norm, ok := classify.NormalizeDomain(name)
		if !ok {
			continue
		}
		if _, dup := byNorm[norm]; !dup {
			order = append(order, norm)
		}
		byNorm[norm] = append(byNorm[norm], name)
	}
	if len(order) == 0 {
		return out, nil
	}

	start := time.Now()
	addrs, err := r.exchange(ctx, order)
	if err != nil {
		return out, err
	}
	r.metrics.Batch(time.Since(start))

	for norm, given := range byNorm {
		list := addrs[norm]
		for _, name := range given {
			out[name] = list
		}
	}
	return out, nil
}

// Resolve returns the deduplicated union of the addresses of names, in no
// particular order. Failures resolve to nothing; a batch that cannot
// start is logged and yields an empty result.
func (r *Resolver) Resolve(ctx context.Context, names []string) []string {
	each, err := r.ResolveEach(ctx, names)
	if err != nil {
		r.logger.Error("%v", err)
		return []string{}
	}
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range each {
		for _, a := range list {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// collect merges the answers of both query types per name.
func collect(queries []*query) map[string][]string {
	sets := make(map[string]map[netip.Addr]struct{})
	for _, q := range queries {
		if sets[q.name] == nil {
			sets[q.name] = make(map[netip.Addr]struct{})
		}
		for _, a := range q.addrs {
			sets[q.name][a] = struct{}{}
		}
	}

	out := make(map[string][]string, len(sets))
	for name, set := range sets {
		addrs := make([]netip.Addr, 0, len(set))
		for a := range set {
			addrs = append(addrs, a)
		}
		sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
		list := make([]string, len(addrs))
		for i, a := range addrs {
			list[i] = a.String()
		}
		out[name] = list
	}
	return out
}

// extract returns the A/AAAA addresses and CNAME targets of a response.
// Records are accepted regardless of owner name, so a CNAME chain the
// upstream already followed contributes its terminal addresses.
func extract(resp *dns.Msg) (addrs []netip.Addr, cnames []string) {
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if a, ok := netip.AddrFromSlice(v.A.To4()); ok {
				addrs = append(addrs, a)
			}
		case *dns.AAAA:
			if a, ok := netip.AddrFromSlice(v.AAAA.To16()); ok {
				addrs = append(addrs, a)
			}
		case *dns.CNAME:
			cnames = append(cnames, strings.TrimSuffix(strings.ToLower(v.Target), "."))
		}
	}
	return addrs, cnames
}

func udpAddrPort(a net.Addr) netip.AddrPort {
	if u, ok := a.(*net.UDPAddr); ok {
		ap := u.AddrPort()
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	return netip.AddrPort{}
}
