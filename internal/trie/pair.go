package trie

import (
	"net/netip"

	"github.com/p4th0r/gatelist/internal/netaddr"
)

// Pair holds one trie per address family.
type Pair struct {
	V4 *Trie[netaddr.V4]
	V6 *Trie[netaddr.V6]
}

// NewPair returns a pair of empty tries.
func NewPair() *Pair {
	return &Pair{V4: New[netaddr.V4](), V6: New[netaddr.V6]()}
}

// InsertPrefix stores p in the trie of its family. IPv4-mapped IPv6
// prefixes go to the IPv4 trie.
func (p *Pair) InsertPrefix(pfx netip.Prefix) error {
	if pfx.Addr().Unmap().Is4() {
		s, ok := netaddr.FromPrefix4(pfx)
		if !ok {
			return netaddr.ErrInvalidPrefix
		}
		return p.V4.Insert(s)
	}
	s, ok := netaddr.FromPrefix6(pfx)
	if !ok {
		return netaddr.ErrInvalidPrefix
	}
	return p.V6.Insert(s)
}

func (p *Pair) LookupV4(addr netaddr.V4) (netaddr.Subnet4, bool) { return p.V4.Lookup(addr) }

func (p *Pair) LookupV6(addr netaddr.V6) (netaddr.Subnet6, bool) { return p.V6.Lookup(addr) }

// Len returns the number of stored IPv4 and IPv6 subnets.
func (p *Pair) Len() (v4, v6 int) { return p.V4.Len(), p.V6.Len() }

// Walk visits the stored IPv4 subnets and then the IPv6 ones, each family
// in address order. It stops early when fn returns false.
func (p *Pair) Walk(fn func(netip.Prefix) bool) {
	more := true
	p.V4.Walk(func(s netaddr.Subnet4) bool {
		more = fn(s.Prefix())
		return more
	})
	if !more {
		return
	}
	p.V6.Walk(func(s netaddr.Subnet6) bool { return fn(s.Prefix()) })
}
