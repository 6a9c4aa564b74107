package cleanup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFindAndCleanup(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, ".list.txt.gatelist-42.tmp")
	keep := filepath.Join(dir, "list.txt")
	for _, p := range []string{stale, keep} {
		if err := os.WriteFile(p, []byte("x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	var deleted []string
	f := &Finder{
		Dirs:     []string{dir},
		listNFT:  func() ([]string, error) { return []string{"gatelist_vpn"}, nil },
		deleteFn: func(name string) error { deleted = append(deleted, name); return nil },
	}

	res, err := f.FindOrphanedResources()
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("found %v, want 2 resources", res)
	}
	if res[0].Type != ResourceNFTablesTable || res[0].Name != "gatelist_vpn" {
		t.Errorf("res[0] = %+v", res[0])
	}
	if res[1].Type != ResourceTempFile || res[1].Name != stale {
		t.Errorf("res[1] = %+v", res[1])
	}

	if err := f.CleanupOrphanedResources(res); err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 1 || deleted[0] != "gatelist_vpn" {
		t.Errorf("deleted tables = %v", deleted)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp file still present")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("list file was removed")
	}

	// already gone
	if err := f.CleanupOrphanedResources(res[1:]); err != nil {
		t.Errorf("second cleanup: %v", err)
	}
}

func TestSkipNFT(t *testing.T) {
	f := &Finder{
		SkipNFT: true,
		listNFT: func() ([]string, error) { t.Fatal("nftables queried"); return nil, nil },
	}
	res, err := f.FindOrphanedResources()
	if err != nil || len(res) != 0 {
		t.Errorf("res=%v err=%v", res, err)
	}
}

func TestCleanupErrorsCollected(t *testing.T) {
	f := &Finder{deleteFn: func(string) error { return errors.New("permission denied") }}
	err := f.CleanupOrphanedResources([]OrphanedResource{
		{Type: ResourceNFTablesTable, Name: "gatelist_a"},
		{Type: ResourceNFTablesTable, Name: "gatelist_b"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "gatelist_a") || !strings.Contains(err.Error(), "gatelist_b") {
		t.Errorf("error should name both tables: %v", err)
	}
}
