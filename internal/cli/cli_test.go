package cli

import (
	"bytes"
	"encoding/binary"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClassifyCmd(t *testing.T) {
	out, err := execute(t, "classify", "8.8.8.8", "2001:db8::1", "example.com")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	for _, want := range []string{"ipv4     8.8.8.8", "ipv6     2001:db8::1", "domain   example.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAggregateCmd(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "10.0.0.0/8\n10.1.0.0/16\nexample.com\n")
	b := writeFile(t, dir, "b.txt", "10.0.0.0/8\n192.0.2.1\nexample.com\n")
	outPath := filepath.Join(dir, "merged.txt")

	if _, err := execute(t, "-q", "aggregate", "-o", outPath, a, b); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "10.0.0.0/8\n192.0.2.1\nexample.com\n"
	if string(got) != want {
		t.Errorf("merged list = %q, want %q", got, want)
	}
}

func TestAggregateCmdMissingFile(t *testing.T) {
	if _, err := execute(t, "-q", "aggregate", filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Error("expected error for a missing list file")
	}
}

func TestQuietVerboseRejected(t *testing.T) {
	_, err := execute(t, "-q", "-v", "classify", "x")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("err = %v, want mutually exclusive error", err)
	}
}

func TestConfigFileUnderFlags(t *testing.T) {
	path := writeFile(t, t.TempDir(), "gatelist.yaml", "batch_size: 0\n")

	if _, err := execute(t, "--config", path, "classify", "x"); err == nil || !strings.Contains(err.Error(), "batch size") {
		t.Errorf("err = %v, want batch size error from config file", err)
	}
	if _, err := execute(t, "--config", path, "--batch-size", "7", "classify", "x"); err != nil {
		t.Errorf("explicit --batch-size should override the config file: %v", err)
	}
}

func TestMergeFlags(t *testing.T) {
	cfg := config.Defaults()
	a := &app{cfg: &cfg}
	cmd := &cobra.Command{Use: "x"}
	AddFlags(cmd, a)
	if err := cmd.ParseFlags([]string{"--batch-size", "7", "--dns-server", "9.9.9.9"}); err != nil {
		t.Fatal(err)
	}

	loaded := config.Defaults()
	loaded.BatchSize = 100
	loaded.DNSTimeout = 5 * time.Second
	mergeFlags(cmd, &loaded, a.cfg)

	if loaded.BatchSize != 7 {
		t.Errorf("BatchSize = %d, want 7", loaded.BatchSize)
	}
	if loaded.DNSTimeout != 5*time.Second {
		t.Errorf("DNSTimeout = %s, want 5s from the file", loaded.DNSTimeout)
	}
	if len(loaded.DNSServers) != 1 || loaded.DNSServers[0] != "9.9.9.9" {
		t.Errorf("DNSServers = %v, want [9.9.9.9]", loaded.DNSServers)
	}
}

// ribRecord encodes a TABLE_DUMP_V2 IPv4 unicast RIB record with no entries.
func ribRecord(prefix string) []byte {
	p := netip.MustParsePrefix(prefix)
	addr := p.Addr().AsSlice()

	var body bytes.Buffer
	_ = binary.Write(&body, binary.BigEndian, uint32(1))
	body.WriteByte(byte(p.Bits()))
	body.Write(addr[:(p.Bits()+7)/8])
	_ = binary.Write(&body, binary.BigEndian, uint16(0))

	var rec bytes.Buffer
	_ = binary.Write(&rec, binary.BigEndian, uint32(1700000000))
	_ = binary.Write(&rec, binary.BigEndian, uint16(13)) // TABLE_DUMP_V2
	_ = binary.Write(&rec, binary.BigEndian, uint16(2))  // RIB_IPV4_UNICAST
	_ = binary.Write(&rec, binary.BigEndian, uint32(body.Len()))
	rec.Write(body.Bytes())
	return rec.Bytes()
}

func TestRouteDumpCmd(t *testing.T) {
	dump := append(ribRecord("198.51.100.0/24"), ribRecord("10.0.0.0/8")...)
	path := filepath.Join(t.TempDir(), "rib.mrt")
	if err := os.WriteFile(path, dump, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "-q", "--route-source", "mrt", "--route-path", path, "route", "dump")
	if err != nil {
		t.Fatalf("route dump: %v", err)
	}
	if want := "10.0.0.0/8\n198.51.100.0/24\n"; out != want {
		t.Errorf("route dump = %q, want %q", out, want)
	}
}
