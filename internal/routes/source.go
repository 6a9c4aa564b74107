// Package routes builds the subnet-inference trie pair from a routing
// table: an MRT dump, the live kernel table, or a MaxMind network list.
package routes

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/p4th0r/gatelist/internal/trie"
)

// Source yields the prefixes of one routing table.
type Source interface {
	// Name describes the source for logs.
	Name() string
	// Routes calls fn for every prefix. An error from fn stops iteration
	// and is returned.
	Routes(ctx context.Context, fn func(netip.Prefix) error) error
}

// Open returns the source for kind: "mrt", "kernel" or "mmdb".
func Open(kind, path, netns string) (Source, error) {
	switch kind {
	case "mrt":
		if path == "" {
			return nil, fmt.Errorf("route source %q requires a path", kind)
		}
		return MRTDump{Path: path}, nil
	case "kernel":
		return Kernel{Netns: netns}, nil
	case "mmdb":
		if path == "" {
			return nil, fmt.Errorf("route source %q requires a path", kind)
		}
		return MaxMind{Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown route source %q (must be mrt, kernel, or mmdb)", kind)
	}
}

// Build reads every prefix of src into a new trie pair. Prefixes the trie
// rejects are skipped.
func Build(ctx context.Context, src Source) (*trie.Pair, error) {
	pair := trie.NewPair()
	err := src.Routes(ctx, func(p netip.Prefix) error {
		_ = pair.InsertPrefix(p.Masked())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading routes from %s: %w", src.Name(), err)
	}
	return pair, nil
}

// ParseDump reads an MRT routing dump into a new trie pair.
func ParseDump(path string) (*trie.Pair, error) {
	return Build(context.Background(), MRTDump{Path: path})
}
