package netaddr

import (
	"fmt"
	"net/netip"
)

// Subnet is an address paired with a contiguous mask of the same width.
// Address holds the value as written; Network returns the masked form.
type Subnet[A Bits[A]] struct {
	Address A
	Mask    A
}

// Subnet4 and Subnet6 are the two concrete widths.
type (
	Subnet4 = Subnet[V4]
	Subnet6 = Subnet[V6]
)

// New builds a subnet from an address and prefix length.
func New[A Bits[A]](addr A, prefixLen int) Subnet[A] {
	return Subnet[A]{Address: addr, Mask: MaskFromLength[A](prefixLen)}
}

// Network returns address & mask.
func (s Subnet[A]) Network() A { return s.Address.And(s.Mask) }

// PrefixLen returns the mask length, or -1 if the mask is not contiguous.
func (s Subnet[A]) PrefixLen() int {
	n, ok := LengthFromMask(s.Mask)
	if !ok {
		return -1
	}
	return n
}

// Valid reports whether the mask is a contiguous run of leading ones.
func (s Subnet[A]) Valid() bool {
	_, ok := LengthFromMask(s.Mask)
	return ok
}

// Prefix converts the subnet to its masked netip form.
func (s Subnet[A]) Prefix() netip.Prefix {
	return netip.PrefixFrom(s.Network().Addr(), s.PrefixLen())
}

// String formats the address as written followed by /prefixLen.
func (s Subnet[A]) String() string {
	return fmt.Sprintf("%s/%d", s.Address.Addr(), s.PrefixLen())
}

// Includes reports whether inner lies inside outer: the two agree on every
// bit selected by outer's mask. A subnet includes itself.
func Includes[A Bits[A]](outer, inner Subnet[A]) bool {
	return outer.Address.And(outer.Mask) == inner.Address.And(outer.Mask)
}

// MaskFromLength returns the mask with n leading ones, n clamped to [0, width].
func MaskFromLength[A Bits[A]](n int) A {
	var zero A
	return zero.Ones(n)
}

// LengthFromMask counts the leading ones of m. ok is false when the ones
// are not contiguous.
func LengthFromMask[A Bits[A]](m A) (int, bool) {
	n := 0
	for n < m.Width() && m.Bit(n) == 1 {
		n++
	}
	return n, m == m.Ones(n)
}

// FromPrefix4 converts an IPv4 netip prefix.
func FromPrefix4(p netip.Prefix) (Subnet4, bool) {
	a, ok := V4FromAddr(p.Addr())
	if !ok || !p.IsValid() {
		return Subnet4{}, false
	}
	bits := p.Bits()
	if p.Addr().Is4In6() {
		bits -= 96
		if bits < 0 {
			return Subnet4{}, false
		}
	}
	return New(a, bits), true
}

// FromPrefix6 converts an IPv6 netip prefix.
func FromPrefix6(p netip.Prefix) (Subnet6, bool) {
	a, ok := V6FromAddr(p.Addr())
	if !ok || !p.IsValid() {
		return Subnet6{}, false
	}
	return New(a, p.Bits()), true
}
