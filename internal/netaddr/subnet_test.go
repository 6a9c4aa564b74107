package netaddr

import (
	"net/netip"
	"testing"
)

func TestMaskRoundTrip(t *testing.T) {
	for n := 0; n <= 32; n++ {
		got, ok := LengthFromMask(MaskFromLength[V4](n))
		if !ok || got != n {
			t.Errorf("v4 /%d: LengthFromMask = %d, %v", n, got, ok)
		}
	}
	for n := 0; n <= 128; n++ {
		got, ok := LengthFromMask(MaskFromLength[V6](n))
		if !ok || got != n {
			t.Errorf("v6 /%d: LengthFromMask = %d, %v", n, got, ok)
		}
	}
}

func TestLengthFromMaskRejectsHoles(t *testing.T) {
	tests := []struct {
		name string
		mask V4
	}{
		{"gap", 0xFF00FF00},
		{"trailing one", 0x00000001},
		{"single hole", 0xFFFFFFFD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := LengthFromMask(tt.mask); ok {
				t.Errorf("LengthFromMask(%#x) accepted a non-contiguous mask", uint32(tt.mask))
			}
		})
	}

	if _, ok := LengthFromMask(V6{Hi: ^uint64(0), Lo: 1}); ok {
		t.Error("v6 mask with a stray low bit accepted")
	}
}

func TestIncludes(t *testing.T) {
	outer := mustParse4(t, "192.168.0.0/16")

	tests := []struct {
		inner string
		want  bool
	}{
		{"192.168.0.0/16", true},
		{"192.168.1.0/24", true},
		{"192.168.255.255/32", true},
		{"192.169.0.0/32", false},
		{"192.167.255.255/32", false},
		{"10.0.0.1/32", false},
	}
	for _, tt := range tests {
		t.Run(tt.inner, func(t *testing.T) {
			if got := Includes(outer, mustParse4(t, tt.inner)); got != tt.want {
				t.Errorf("Includes(%s, %s) = %v, want %v", outer, tt.inner, got, tt.want)
			}
		})
	}

	all := mustParse4(t, "0.0.0.0/0")
	if !Includes(all, mustParse4(t, "203.0.113.7")) {
		t.Error("/0 should include every address")
	}

	v6 := mustParse6(t, "2001:db8::/32")
	if !Includes(v6, mustParse6(t, "2001:db8:ffff::1")) {
		t.Error("2001:db8::/32 should include 2001:db8:ffff::1")
	}
	if Includes(v6, mustParse6(t, "2001:db9::1")) {
		t.Error("2001:db8::/32 should not include 2001:db9::1")
	}
}

func TestSubnetString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"10.1.2.3", "10.1.2.3/32"},
		{"10.1.2.3/8", "10.1.2.3/8"},
		{"2001:db8::1", "2001:db8::1/128"},
		{"fe80::1%eth0/64", "fe80::1/64"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got string
			if p, err := netip.ParseAddr(trimMask(tt.in)); err == nil && p.Is4() {
				got = mustParse4(t, tt.in).String()
			} else {
				got = mustParse6(t, tt.in).String()
			}
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromPrefix(t *testing.T) {
	s, ok := FromPrefix4(netip.MustParsePrefix("198.51.100.0/24"))
	if !ok || s.String() != "198.51.100.0/24" {
		t.Errorf("FromPrefix4 = %v, %v", s, ok)
	}
	s, ok = FromPrefix4(netip.MustParsePrefix("::ffff:198.51.100.0/120"))
	if !ok || s.PrefixLen() != 24 {
		t.Errorf("FromPrefix4 mapped = %v, %v", s, ok)
	}
	if _, ok := FromPrefix4(netip.MustParsePrefix("2001:db8::/32")); ok {
		t.Error("FromPrefix4 accepted an IPv6 prefix")
	}
	s6, ok := FromPrefix6(netip.MustParsePrefix("2001:db8::/32"))
	if !ok || s6.Prefix() != netip.MustParsePrefix("2001:db8::/32") {
		t.Errorf("FromPrefix6 = %v, %v", s6, ok)
	}
}

func mustParse4(t *testing.T, s string) Subnet4 {
	t.Helper()
	v, err := ParseIPv4(s)
	if err != nil {
		t.Fatalf("ParseIPv4(%q): %v", s, err)
	}
	return v
}

func mustParse6(t *testing.T, s string) Subnet6 {
	t.Helper()
	v, err := ParseIPv6(s)
	if err != nil {
		t.Fatalf("ParseIPv6(%q): %v", s, err)
	}
	return v
}

func trimMask(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' || s[i] == '%' {
			return s[:i]
		}
	}
	return s
}
