package nft

import (
	"net/netip"

	"github.com/google/nftables"
)

// BuildElements converts prefixes into interval set elements, split by
// family. Each prefix becomes a start key and an interval end one past its
// last address; a range reaching the top of the address space has no end.
func BuildElements(prefixes []netip.Prefix) (v4, v6 []nftables.SetElement) {
	for _, p := range prefixes {
		if !p.IsValid() {
			continue
		}
		p = p.Masked()
		if p.Addr().Is4In6() {
			if p.Bits() < 96 {
				continue
			}
			p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits()-96)
		}
		start := p.Addr().AsSlice()
		elems := []nftables.SetElement{{Key: start}}
		if end, ok := nextIP(lastIP(p)); ok {
			elems = append(elems, nftables.SetElement{Key: end, IntervalEnd: true})
		}
		if p.Addr().Is4() {
			v4 = append(v4, elems...)
		} else {
			v6 = append(v6, elems...)
		}
	}
	return v4, v6
}

// lastIP returns the last address of p as a byte slice.
func lastIP(p netip.Prefix) []byte {
	b := p.Addr().AsSlice()
	bits := p.Bits()
	for i := range b {
		switch {
		case bits >= 8:
			bits -= 8
		case bits <= 0:
			b[i] = 0xff
		default:
			b[i] |= 0xff >> bits
			bits = 0
		}
	}
	return b
}

// nextIP returns the address after ip, or false when ip is the last one.
func nextIP(ip []byte) ([]byte, bool) {
	next := make([]byte, len(ip))
	copy(next, ip)
	for i := len(next) - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			return next, true
		}
	}
	return nil, false
}
