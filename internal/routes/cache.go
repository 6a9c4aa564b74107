package routes

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/p4th0r/gatelist/internal/netaddr"
	"github.com/p4th0r/gatelist/internal/trie"
)

var emptyPair = trie.NewPair()

// Cache holds the trie pair of one routing table for the life of the
// process. The first Load wins; later calls return its result without
// reading anything. A failed load leaves an empty pair, so inference
// through the cache fails for every address.
type Cache struct {
	once sync.Once
	pair atomic.Pointer[trie.Pair]
	name string
	err  error
}

// NewCache returns an unloaded cache.
func NewCache() *Cache { return &Cache{} }

// ParseDumpToCache loads an MRT dump into the cache.
func (c *Cache) ParseDumpToCache(path string) error {
	return c.Load(context.Background(), MRTDump{Path: path})
}

// Load builds the pair from src unless the cache is already loaded.
func (c *Cache) Load(ctx context.Context, src Source) error {
	c.once.Do(func() {
		c.name = src.Name()
		pair, err := Build(ctx, src)
		if err != nil {
			c.err = err
			pair = trie.NewPair()
		}
		c.pair.Store(pair)
	})
	return c.err
}

// Source returns the name of the source the cache was loaded from.
func (c *Cache) Source() string {
	if c.pair.Load() == nil {
		return ""
	}
	return c.name
}

// Trie returns the cached pair. Before the first Load it returns a shared
// empty pair; callers must not insert into the result.
func (c *Cache) Trie() *trie.Pair {
	if p := c.pair.Load(); p != nil {
		return p
	}
	return emptyPair
}

func (c *Cache) LookupV4(addr netaddr.V4) (netaddr.Subnet4, bool) { return c.Trie().LookupV4(addr) }

func (c *Cache) LookupV6(addr netaddr.V6) (netaddr.Subnet6, bool) { return c.Trie().LookupV6(addr) }
