package routes

import (
	"errors"
	"io/fs"
	"net"
	"net/netip"
	"path/filepath"
	"sync"
	"testing"
)

func TestCacheFirstCallerWins(t *testing.T) {
	first := writeDump(t, "first.mrt", ribRecord(t, "10.0.0.0/8"))
	second := writeDump(t, "second.mrt", ribRecord(t, "172.16.0.0/12"))

	c := NewCache()
	if got := lookup4(t, c, "10.1.1.1"); got != "" {
		t.Errorf("unloaded cache matched %q", got)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.ParseDumpToCache(first); err != nil {
				t.Errorf("ParseDumpToCache: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := c.ParseDumpToCache(second); err != nil {
		t.Fatalf("second ParseDumpToCache: %v", err)
	}
	if got := lookup4(t, c, "10.1.1.1"); got != "10.0.0.0/8" {
		t.Errorf("lookup = %q, want 10.0.0.0/8", got)
	}
	if got := lookup4(t, c, "172.16.0.1"); got != "" {
		t.Errorf("second dump was loaded: %q", got)
	}
	if c.Source() != "mrt:"+first {
		t.Errorf("Source() = %q", c.Source())
	}
}

func TestCacheFailedLoadIsEmpty(t *testing.T) {
	c := NewCache()
	err := c.ParseDumpToCache(filepath.Join(t.TempDir(), "missing.mrt"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("error = %v, want fs.ErrNotExist", err)
	}
	n4, n6 := c.Trie().Len()
	if n4 != 0 || n6 != 0 {
		t.Errorf("failed cache holds %d/%d routes", n4, n6)
	}

	// The failure sticks: a later valid dump is not read.
	good := writeDump(t, "good.mrt", ribRecord(t, "10.0.0.0/8"))
	if err := c.ParseDumpToCache(good); err == nil {
		t.Error("second load should report the first failure")
	}
	if got := lookup4(t, c, "10.0.0.1"); got != "" {
		t.Errorf("lookup = %q after failed load", got)
	}
}

func TestPrefixFromIPNet(t *testing.T) {
	tests := []struct {
		cidr   string
		want   string
		wantOK bool
	}{
		{"10.0.0.0/8", "10.0.0.0/8", true},
		{"2001:db8::/32", "2001:db8::/32", true},
		{"0.0.0.0/0", "0.0.0.0/0", true},
	}
	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			_, n, err := net.ParseCIDR(tt.cidr)
			if err != nil {
				t.Fatal(err)
			}
			got, ok := prefixFromIPNet(n)
			if ok != tt.wantOK || got != netip.MustParsePrefix(tt.want) {
				t.Errorf("prefixFromIPNet(%s) = %v, %v", tt.cidr, got, ok)
			}
		})
	}

	mapped := &net.IPNet{IP: net.ParseIP("192.0.2.0"), Mask: net.CIDRMask(120, 128)}
	if got, ok := prefixFromIPNet(mapped); !ok || got != netip.MustParsePrefix("192.0.2.0/24") {
		t.Errorf("mapped = %v, %v", got, ok)
	}
	if _, ok := prefixFromIPNet(nil); ok {
		t.Error("nil destination accepted")
	}
}
