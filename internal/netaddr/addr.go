// Package netaddr models IPv4 and IPv6 subnets as fixed-width bit vectors.
package netaddr

import (
	"encoding/binary"
	"net/netip"
)

// Bits is the constraint satisfied by the fixed-width address types.
// Bit 0 is the most significant bit.
type Bits[A any] interface {
	comparable
	Width() int
	Bit(i int) uint8
	And(other A) A
	Ones(n int) A
	Addr() netip.Addr
}

// V4 is a 32-bit IPv4 address or mask.
type V4 uint32

// V6 is a 128-bit IPv6 address or mask split into two halves.
type V6 struct {
	Hi uint64
	Lo uint64
}

func (V4) Width() int { return 32 }

func (a V4) Bit(i int) uint8 { return uint8(a>>(31-i)) & 1 }

func (a V4) And(b V4) V4 { return a & b }

// Ones returns a value with the n leading bits set.
func (V4) Ones(n int) V4 {
	switch {
	case n <= 0:
		return 0
	case n >= 32:
		return ^V4(0)
	}
	return ^V4(0) << (32 - n)
}

func (a V4) Addr() netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(a))
	return netip.AddrFrom4(b)
}

func (V6) Width() int { return 128 }

func (a V6) Bit(i int) uint8 {
	if i < 64 {
		return uint8(a.Hi>>(63-i)) & 1
	}
	return uint8(a.Lo>>(127-i)) & 1
}

func (a V6) And(b V6) V6 { return V6{Hi: a.Hi & b.Hi, Lo: a.Lo & b.Lo} }

// Ones returns a value with the n leading bits set.
func (V6) Ones(n int) V6 {
	var v V6
	switch {
	case n <= 0:
	case n < 64:
		v.Hi = ^uint64(0) << (64 - n)
	case n < 128:
		v.Hi = ^uint64(0)
		v.Lo = ^uint64(0) << (128 - n)
	default:
		v.Hi, v.Lo = ^uint64(0), ^uint64(0)
	}
	return v
}

func (a V6) Addr() netip.Addr {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], a.Hi)
	binary.BigEndian.PutUint64(b[8:], a.Lo)
	return netip.AddrFrom16(b)
}

// V4FromAddr converts an IPv4 (or IPv4-mapped) address.
func V4FromAddr(addr netip.Addr) (V4, bool) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return 0, false
	}
	b := addr.As4()
	return V4(binary.BigEndian.Uint32(b[:])), true
}

// V6FromAddr converts an IPv6 address. IPv4 addresses are rejected;
// IPv4-mapped IPv6 addresses are kept in their 128-bit form.
func V6FromAddr(addr netip.Addr) (V6, bool) {
	if !addr.Is6() {
		return V6{}, false
	}
	b := addr.As16()
	return V6{Hi: binary.BigEndian.Uint64(b[:8]), Lo: binary.BigEndian.Uint64(b[8:])}, true
}
