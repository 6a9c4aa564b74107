package allowlist

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p4th0r/gatelist/internal/logging"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType EntryType
		wantErr  bool
	}{
		{"exact domain", "vpn.example.net", EntryDomain, false},
		{"domain with trailing dot", "vpn.example.net.", EntryDomain, false},
		{"domain uppercase", "VPN.Example.NET", EntryDomain, false},
		{"wildcard", "*.gw.example.net", EntryWildcard, false},
		{"wildcard uppercase", "*.GW.example.NET", EntryWildcard, false},
		{"ipv4", "198.51.100.20", EntryIPv4, false},
		{"ipv6", "2001:db8:4:5::20", EntryIPv6, false},
		{"cidr v4", "198.51.100.0/22", EntryCIDR, false},
		{"cidr v6", "2001:db8:4::/48", EntryCIDR, false},
		{"nested labels", "fra1.edge.vpn.example.net", EntryDomain, false},
		{"hyphenated label", "wg-exit.example.net", EntryDomain, false},
		{"bare wildcard", "*.", EntryWildcard, true},
		{"prefix too long", "198.51.100.0/33", EntryCIDR, true},
		{"invalid chars", "exam ple.com", EntryDomain, true},
		{"bad octet", "999.999.999.999", EntryIPv4, true},
		{"empty", "", EntryDomain, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := parseEntry(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseEntry(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEntry(%q): %v", tt.input, err)
			}
			if entry.Type != tt.wantType {
				t.Errorf("parseEntry(%q).Type = %d, want %d", tt.input, entry.Type, tt.wantType)
			}
			if entry.Raw != tt.input {
				t.Errorf("parseEntry(%q).Raw = %q", tt.input, entry.Raw)
			}
		})
	}
}

func TestParseEntrySubnets(t *testing.T) {
	e, err := parseEntry("10.10.10.7/24")
	if err != nil {
		t.Fatal(err)
	}
	if e.V6 || e.Subnet4.String() != "10.10.10.7/24" {
		t.Errorf("got %+v", e)
	}

	e, err = parseEntry("2001:db8::1")
	if err != nil {
		t.Fatal(err)
	}
	if !e.V6 || e.Subnet6.PrefixLen() != 128 {
		t.Errorf("bare IPv6 should be a /128 host entry, got %s", e.Subnet6)
	}

	e, err = parseEntry("192.0.2.1")
	if err != nil {
		t.Fatal(err)
	}
	if e.Subnet4.PrefixLen() != 32 {
		t.Errorf("bare IPv4 should be a /32 host entry, got %s", e.Subnet4)
	}
}

func TestParseCommaSeparated(t *testing.T) {
	entries, err := Parse("example.com, *.target.com, 10.0.0.0/8, 1.2.3.4", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	want := []EntryType{EntryDomain, EntryWildcard, EntryCIDR, EntryIPv4}
	for i, w := range want {
		if entries[i].Type != w {
			t.Errorf("entry %d: got type %d, want %d", i, entries[i].Type, w)
		}
	}
}

func TestParseFile(t *testing.T) {
	content := `# gateway exits
wg.example.net
*.exit.example.net

# operator ranges
198.51.100.0/22
2001:db8:4::/48
203.0.113.9
`
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := Parse("", path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
}

func TestParseCombined(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.txt")
	if err := os.WriteFile(path, []byte("example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := Parse("203.0.113.9", path, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// inline entries come first
	if len(entries) != 2 || entries[0].Type != EntryIPv4 || entries[1].Type != EntryDomain {
		t.Fatalf("entries = %v, want [ip domain]", entries)
	}
}

func TestParseInvalidInlineEntry(t *testing.T) {
	_, err := Parse("example.com, not valid!!!", "", nil)
	if !errors.Is(err, ErrInvalidEntry) {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestParseNonExistentFile(t *testing.T) {
	_, err := Parse("", filepath.Join(t.TempDir(), "missing.txt"), nil)
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestParseFileInvalidLineSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(path, []byte("example.com\nnot valid!!!\n10.0.0.0/8\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	entries, err := Parse("", path, logging.NewWriterLogger(&buf, false, false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !strings.Contains(buf.String(), "line 2") {
		t.Errorf("warning should name the line, got %q", buf.String())
	}
}

func TestEntryNormalization(t *testing.T) {
	tests := []struct {
		input, domain, wildcard string
	}{
		{"WG.Example.NET.", "wg.example.net", ""},
		{"*.Exit.Example.NET.", "exit.example.net", ".exit.example.net"},
		{"bücher.example", "xn--bcher-kva.example", ""},
	}
	for _, tt := range tests {
		e, err := parseEntry(tt.input)
		if err != nil {
			t.Fatalf("parseEntry(%q): %v", tt.input, err)
		}
		if e.Domain != tt.domain || e.Wildcard != tt.wildcard {
			t.Errorf("parseEntry(%q) = %q, %q; want %q, %q", tt.input, e.Domain, e.Wildcard, tt.domain, tt.wildcard)
		}
	}
}

func TestEntryString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"example.com", "domain   example.com"},
		{"*.example.com", "wildcard *.example.com"},
		{"10.0.0.1", "ip       10.0.0.1"},
		{"10.0.0.0/8", "cidr     10.0.0.0/8"},
		{"2001:db8::/32", "cidr     2001:db8::/32"},
	}
	for _, tt := range tests {
		e, err := parseEntry(tt.input)
		if err != nil {
			t.Fatalf("parseEntry(%q): %v", tt.input, err)
		}
		if got := e.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
