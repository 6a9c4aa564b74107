package allowlist

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/p4th0r/gatelist/internal/logging"
	"github.com/p4th0r/gatelist/internal/netaddr"
	"github.com/p4th0r/gatelist/internal/trie"
)

// Resolver turns the exact domains of a reference list into addresses.
// *dns.Resolver satisfies it.
type Resolver interface {
	ResolveEach(ctx context.Context, names []string) (map[string][]string, error)
}

// Set is a loaded reference list. Address entries and the resolved
// addresses of exact domains live in a trie pair; names stay in a
// DomainSet. A Set is read-only after NewSet returns.
type Set struct {
	entries  []Entry
	pair     *trie.Pair
	domains  *DomainSet
	resolved int
}

// Load parses inline and path and builds a Set from the result.
func Load(ctx context.Context, inline, path string, r Resolver, logger *logging.StderrLogger) (*Set, error) {
	entries, err := Parse(inline, path, logger)
	if err != nil {
		return nil, err
	}
	return NewSet(ctx, entries, r)
}

// NewSet builds a Set from parsed entries. When r is nil exact domains
// are matched by name only.
func NewSet(ctx context.Context, entries []Entry, r Resolver) (*Set, error) {
	s := &Set{entries: entries, pair: trie.NewPair()}

	var exact, wildcards []string
	for _, e := range entries {
		switch e.Type {
		case EntryDomain:
			exact = append(exact, e.Domain)
		case EntryWildcard:
			wildcards = append(wildcards, e.Wildcard)
		case EntryIPv4:
			s.insert4(e.Subnet4)
		case EntryIPv6:
			s.insert6(e.Subnet6)
		case EntryCIDR:
			if e.V6 {
				s.insert6(e.Subnet6)
			} else {
				s.insert4(e.Subnet4)
			}
		}
	}
	s.domains = NewDomainSet(exact, wildcards)

	if r == nil || len(exact) == 0 {
		return s, nil
	}
	answers, err := r.ResolveEach(ctx, exact)
	if err != nil {
		return nil, fmt.Errorf("resolving reference domains: %w", err)
	}
	for _, name := range exact {
		for _, a := range answers[name] {
			addr, err := netip.ParseAddr(a)
			if err != nil {
				continue
			}
			if err := s.pair.InsertPrefix(netip.PrefixFrom(addr, addr.BitLen())); err == nil {
				s.resolved++
			}
		}
	}
	return s, nil
}

// Reference entries always carry a valid mask, so insert errors cannot occur.
func (s *Set) insert4(sub netaddr.Subnet4) { _ = s.pair.V4.Insert(sub) }

func (s *Set) insert6(sub netaddr.Subnet6) { _ = s.pair.V6.Insert(sub) }

// Match4 returns the most specific reference subnet that includes sub's
// address.
func (s *Set) Match4(sub netaddr.Subnet4) (netaddr.Subnet4, bool) {
	return s.pair.V4.Lookup(sub.Address)
}

// Match6 is the IPv6 counterpart of Match4.
func (s *Set) Match6(sub netaddr.Subnet6) (netaddr.Subnet6, bool) {
	return s.pair.V6.Lookup(sub.Address)
}

// Contains4 reports whether any reference subnet includes sub.
func (s *Set) Contains4(sub netaddr.Subnet4) bool {
	_, ok := s.Match4(sub)
	return ok
}

// Contains6 reports whether any reference subnet includes sub.
func (s *Set) Contains6(sub netaddr.Subnet6) bool {
	_, ok := s.Match6(sub)
	return ok
}

// MatchDomain returns the exact or wildcard rule naming domain.
func (s *Set) MatchDomain(domain string) (string, bool) {
	return s.domains.Match(domain)
}

// Entries returns all parsed entries.
func (s *Set) Entries() []Entry { return s.entries }

// Pair exposes the address tries, e.g. for export.
func (s *Set) Pair() *trie.Pair { return s.pair }

// Summary returns a human-readable summary: "5 domains, 2 CIDRs, 1 IPs, 7 resolved".
func (s *Set) Summary() string {
	var domainCount, ipCount, cidrCount int
	for _, e := range s.entries {
		switch e.Type {
		case EntryDomain, EntryWildcard:
			domainCount++
		case EntryIPv4, EntryIPv6:
			ipCount++
		case EntryCIDR:
			cidrCount++
		}
	}

	parts := []string{}
	if domainCount > 0 {
		parts = append(parts, fmt.Sprintf("%d domains", domainCount))
	}
	if cidrCount > 0 {
		parts = append(parts, fmt.Sprintf("%d CIDRs", cidrCount))
	}
	if ipCount > 0 {
		parts = append(parts, fmt.Sprintf("%d IPs", ipCount))
	}
	if s.resolved > 0 {
		parts = append(parts, fmt.Sprintf("%d resolved", s.resolved))
	}

	if len(parts) == 0 {
		return "0 entries"
	}
	return strings.Join(parts, ", ")
}
