// Package cleanup finds and removes resources left behind by interrupted
// gatelist runs.
package cleanup

import (
	"fmt"
	"os"
	"strings"

	"github.com/p4th0r/gatelist/internal/filter"
	"github.com/p4th0r/gatelist/internal/nft"
)

// ResourceType indicates the type of orphaned resource.
type ResourceType string

const (
	ResourceNFTablesTable ResourceType = "nftables"
	ResourceTempFile      ResourceType = "temp file"
)

// OrphanedResource represents a gatelist resource that needs cleanup.
type OrphanedResource struct {
	Type ResourceType
	Name string
}

// Finder locates orphaned resources. The zero value checks nftables and
// no directories.
type Finder struct {
	Dirs     []string // directories holding list files
	SkipNFT  bool
	listNFT  func() ([]string, error)
	deleteFn func(string) error
}

// FindOrphanedResources scans for gatelist nftables tables and rewrite
// temp files in the configured directories.
func (f *Finder) FindOrphanedResources() ([]OrphanedResource, error) {
	var resources []OrphanedResource

	if !f.SkipNFT {
		list := f.listNFT
		if list == nil {
			list = nft.ListTables
		}
		tables, err := list()
		if err != nil {
			return nil, fmt.Errorf("finding orphaned nftables tables: %w", err)
		}
		for _, name := range tables {
			resources = append(resources, OrphanedResource{Type: ResourceNFTablesTable, Name: name})
		}
	}

	for _, dir := range f.Dirs {
		stale, err := filter.StaleTemps(dir)
		if err != nil {
			return nil, fmt.Errorf("finding temp files in %s: %w", dir, err)
		}
		for _, path := range stale {
			resources = append(resources, OrphanedResource{Type: ResourceTempFile, Name: path})
		}
	}

	return resources, nil
}

// CleanupOrphanedResources removes the specified orphaned resources.
// Operations are idempotent - no error if resource is already gone.
func (f *Finder) CleanupOrphanedResources(resources []OrphanedResource) error {
	var errs []string

	for _, res := range resources {
		var err error
		switch res.Type {
		case ResourceNFTablesTable:
			del := f.deleteFn
			if del == nil {
				del = nft.DeleteTable
			}
			err = del(res.Name)
		case ResourceTempFile:
			err = cleanupTempFile(res.Name)
		}

		if err != nil {
			errs = append(errs, fmt.Sprintf("%s %s: %v", res.Type, res.Name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors:\n  %s", strings.Join(errs, "\n  "))
	}

	return nil
}

func cleanupTempFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}
