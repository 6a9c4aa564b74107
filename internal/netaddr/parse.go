package netaddr

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAddress is returned for text that is not an address of the requested family.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidPrefix is returned for a malformed or out-of-range /n suffix.
	ErrInvalidPrefix = errors.New("invalid prefix length")
	// ErrMaskUndeterminable is returned when a bare address has no usable
	// covering route. Callers log and skip the token.
	ErrMaskUndeterminable = errors.New("cannot determine subnet mask")
)

// MaskResolver finds the most specific known route covering an address.
type MaskResolver interface {
	LookupV4(addr V4) (Subnet4, bool)
	LookupV6(addr V6) (Subnet6, bool)
}

// ParseIPv4 parses a.b.c.d or a.b.c.d/n. A missing mask means /32.
func ParseIPv4(text string) (Subnet4, error) {
	s, _, err := parseIPv4(text)
	return s, err
}

// ParseIPv6 parses an IPv6 literal with an optional /n. IPv4-mapped and
// %zone forms are accepted; the zone is dropped. A missing mask means /128.
func ParseIPv6(text string) (Subnet6, error) {
	s, _, err := parseIPv6(text)
	return s, err
}

func parseIPv4(text string) (Subnet4, bool, error) {
	addrText, bits, hasBits, err := splitPrefix(text, 32)
	if err != nil {
		return Subnet4{}, false, err
	}
	addr, err := netip.ParseAddr(addrText)
	if err != nil || !addr.Is4() {
		return Subnet4{}, false, fmt.Errorf("%w: %q", ErrInvalidAddress, text)
	}
	v, _ := V4FromAddr(addr)
	if !hasBits {
		bits = 32
	}
	return New(v, bits), hasBits, nil
}

func parseIPv6(text string) (Subnet6, bool, error) {
	addrText, bits, hasBits, err := splitPrefix(text, 128)
	if err != nil {
		return Subnet6{}, false, err
	}
	addr, err := netip.ParseAddr(addrText)
	if err != nil || !addr.Is6() {
		return Subnet6{}, false, fmt.Errorf("%w: %q", ErrInvalidAddress, text)
	}
	v, _ := V6FromAddr(addr.WithZone(""))
	if !hasBits {
		bits = 128
	}
	return New(v, bits), hasBits, nil
}

// splitPrefix separates "addr/n". netip.ParsePrefix rejects zones, so the
// suffix is handled here.
func splitPrefix(text string, width int) (string, int, bool, error) {
	addrText, bitsText, found := strings.Cut(strings.TrimSpace(text), "/")
	if !found {
		return addrText, 0, false, nil
	}
	if bitsText == "" || len(bitsText) > 3 || strings.TrimLeft(bitsText, "0123456789") != "" {
		return "", 0, false, fmt.Errorf("%w: %q", ErrInvalidPrefix, text)
	}
	n, err := strconv.Atoi(bitsText)
	if err != nil || n > width {
		return "", 0, false, fmt.Errorf("%w: %q", ErrInvalidPrefix, text)
	}
	return addrText, n, true, nil
}

// Parser applies the subnet inference policy to bare addresses.
type Parser struct {
	Routes     MaskResolver // nil disables inference
	AutoFix    bool         // infer masks for bare addresses
	MinPrefix4 int          // shortest inferred IPv4 prefix accepted
	MinPrefix6 int          // shortest inferred IPv6 prefix accepted
}

// ParseIPv4 parses like the package function, but when AutoFix is set a
// bare address takes the mask of its longest matching route.
func (p *Parser) ParseIPv4(text string) (Subnet4, error) {
	s, hasBits, err := parseIPv4(text)
	if err != nil || hasBits || p == nil || !p.AutoFix {
		return s, err
	}
	var found Subnet4
	ok := false
	if p.Routes != nil {
		found, ok = p.Routes.LookupV4(s.Address)
	}
	if !ok || found.PrefixLen() < p.MinPrefix4 {
		return Subnet4{}, fmt.Errorf("%w: %s", ErrMaskUndeterminable, strings.TrimSpace(text))
	}
	return Subnet4{Address: s.Address, Mask: found.Mask}, nil
}

// ParseIPv6 is the IPv6 counterpart of ParseIPv4.
func (p *Parser) ParseIPv6(text string) (Subnet6, error) {
	s, hasBits, err := parseIPv6(text)
	if err != nil || hasBits || p == nil || !p.AutoFix {
		return s, err
	}
	var found Subnet6
	ok := false
	if p.Routes != nil {
		found, ok = p.Routes.LookupV6(s.Address)
	}
	if !ok || found.PrefixLen() < p.MinPrefix6 {
		return Subnet6{}, fmt.Errorf("%w: %s", ErrMaskUndeterminable, strings.TrimSpace(text))
	}
	return Subnet6{Address: s.Address, Mask: found.Mask}, nil
}
