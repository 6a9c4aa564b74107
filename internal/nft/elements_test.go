package nft

import (
	"bytes"
	"net/netip"
	"testing"
)

func TestBuildElements(t *testing.T) {
	v4, v6 := BuildElements([]netip.Prefix{
		netip.MustParsePrefix("10.1.2.3/8"),
		netip.MustParsePrefix("192.0.2.1/32"),
		netip.MustParsePrefix("2001:db8::/32"),
		netip.MustParsePrefix("::ffff:198.51.100.0/120"),
	})

	want4 := []struct {
		key []byte
		end bool
	}{
		{[]byte{10, 0, 0, 0}, false},
		{[]byte{11, 0, 0, 0}, true},
		{[]byte{192, 0, 2, 1}, false},
		{[]byte{192, 0, 2, 2}, true},
		{[]byte{198, 51, 100, 0}, false},
		{[]byte{198, 51, 101, 0}, true},
	}
	if len(v4) != len(want4) {
		t.Fatalf("got %d IPv4 elements, want %d", len(v4), len(want4))
	}
	for i, w := range want4 {
		if !bytes.Equal(v4[i].Key, w.key) || v4[i].IntervalEnd != w.end {
			t.Errorf("v4[%d] = %v end=%v, want %v end=%v", i, v4[i].Key, v4[i].IntervalEnd, w.key, w.end)
		}
	}

	if len(v6) != 2 {
		t.Fatalf("got %d IPv6 elements, want 2", len(v6))
	}
	if got := netip.AddrFrom16([16]byte(v6[1].Key)); got.String() != "2001:db9::" || !v6[1].IntervalEnd {
		t.Errorf("v6 end = %s", got)
	}
}

func TestBuildElementsTopOfRange(t *testing.T) {
	v4, _ := BuildElements([]netip.Prefix{
		netip.MustParsePrefix("255.255.255.0/24"),
		netip.MustParsePrefix("0.0.0.0/0"),
	})
	if len(v4) != 2 {
		t.Fatalf("expected start keys only, got %d elements", len(v4))
	}
	for _, e := range v4 {
		if e.IntervalEnd {
			t.Errorf("unexpected interval end %v", e.Key)
		}
	}
}

func TestLastIP(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"10.0.0.0/8", "10.255.255.255"},
		{"192.168.1.0/23", "192.168.1.255"},
		{"192.168.0.0/23", "192.168.1.255"},
		{"1.2.3.4/32", "1.2.3.4"},
		{"0.0.0.0/0", "255.255.255.255"},
		{"2001:db8::/33", "2001:db8:7fff:ffff:ffff:ffff:ffff:ffff"},
	}
	for _, tt := range tests {
		p := netip.MustParsePrefix(tt.prefix).Masked()
		addr, _ := netip.AddrFromSlice(lastIP(p))
		if addr.String() != tt.want {
			t.Errorf("lastIP(%s) = %s, want %s", tt.prefix, addr, tt.want)
		}
	}
}

func TestTableName(t *testing.T) {
	if TableName("vpn") != "gatelist_vpn" {
		t.Errorf("TableName(vpn) = %s", TableName("vpn"))
	}
	if TableName("gatelist_vpn") != "gatelist_vpn" {
		t.Error("prefixed names should be kept")
	}
	if New(Config{}).Table() != "gatelist_default" {
		t.Errorf("default table = %s", New(Config{}).Table())
	}
}
