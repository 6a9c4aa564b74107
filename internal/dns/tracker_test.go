package dns

import (
	"net/netip"
	"testing"
)

func TestTracker_KeepsOrder(t *testing.T) {
	tr := NewTracker()

	a1 := netip.MustParseAddr("93.184.216.34")
	a2 := netip.MustParseAddr("2606:2800:220:1::1")

	tr.RecordResolution("example.com", "A", []netip.Addr{a1}, nil, ResultOK)
	tr.RecordResolution("example.com", "AAAA", []netip.Addr{a2}, []string{"edge.example.net"}, ResultOK)

	res := tr.GetAllResolutions()
	if len(res) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(res))
	}
	if res[0].QueryType != "A" || res[1].QueryType != "AAAA" {
		t.Errorf("order = %s, %s; want A, AAAA", res[0].QueryType, res[1].QueryType)
	}
	if len(res[1].CNAMEs) != 1 || res[1].CNAMEs[0] != "edge.example.net" {
		t.Errorf("CNAMEs = %v", res[1].CNAMEs)
	}

	res[0].Domain = "changed"
	if got := tr.GetAllResolutions()[0].Domain; got != "example.com" {
		t.Errorf("GetAllResolutions returned shared storage: %q", got)
	}
}

func TestTracker_GetStats(t *testing.T) {
	tr := NewTracker()

	tr.RecordResolution("example.com", "A", []netip.Addr{netip.MustParseAddr("1.1.1.1")}, nil, ResultOK)
	tr.RecordResolution("gone.example", "A", nil, nil, "nxdomain")
	tr.RecordResolution("example.com", "AAAA", nil, nil, "timeout")

	total, failed, unique := tr.GetStats()
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if failed != 2 {
		t.Errorf("failed = %d, want 2", failed)
	}
	if unique != 2 {
		t.Errorf("unique = %d, want 2", unique)
	}
}

func TestTracker_FailedResolution(t *testing.T) {
	tr := NewTracker()

	tr.RecordResolution("gone.example", "A", nil, nil, "nxdomain")

	res := tr.GetAllResolutions()
	if len(res) != 1 {
		t.Fatalf("expected 1 resolution, got %d", len(res))
	}
	if res[0].Result != "nxdomain" {
		t.Errorf("Result = %q, want nxdomain", res[0].Result)
	}
}
