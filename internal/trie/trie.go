// Package trie implements a binary longest-prefix-match trie over the
// fixed-width address types of package netaddr.
package trie

import (
	"errors"
	"fmt"

	"github.com/p4th0r/gatelist/internal/netaddr"
)

// ErrInvalidMask is returned by Insert for a mask that is not a
// contiguous run of leading ones.
var ErrInvalidMask = errors.New("non-contiguous subnet mask")

// node children are arena indexes; 0 means absent since the root is never a child.
type node[A netaddr.Bits[A]] struct {
	child  [2]int32
	subnet netaddr.Subnet[A]
	stored bool
}

// Trie is a binary trie whose nodes live in a single slice.
// Lookups are safe for concurrent use once inserts have stopped.
type Trie[A netaddr.Bits[A]] struct {
	nodes []node[A]
	count int
}

// New returns an empty trie.
func New[A netaddr.Bits[A]]() *Trie[A] {
	return &Trie[A]{nodes: make([]node[A], 1, 64)}
}

// Insert stores s at the depth given by its prefix length. Inserting the
// same prefix again replaces the stored subnet.
func (t *Trie[A]) Insert(s netaddr.Subnet[A]) error {
	n, ok := netaddr.LengthFromMask(s.Mask)
	if !ok {
		return fmt.Errorf("inserting %s: %w", s.Address.Addr(), ErrInvalidMask)
	}

	cur := int32(0)
	for i := 0; i < n; i++ {
		b := s.Address.Bit(i)
		next := t.nodes[cur].child[b]
		if next == 0 {
			t.nodes = append(t.nodes, node[A]{})
			next = int32(len(t.nodes) - 1)
			t.nodes[cur].child[b] = next
		}
		cur = next
	}

	if !t.nodes[cur].stored {
		t.count++
	}
	t.nodes[cur].subnet = s
	t.nodes[cur].stored = true
	return nil
}

// Lookup returns the deepest stored subnet on the path of addr.
func (t *Trie[A]) Lookup(addr A) (netaddr.Subnet[A], bool) {
	var (
		best  netaddr.Subnet[A]
		found bool
	)
	cur := int32(0)
	for i := 0; ; i++ {
		nd := &t.nodes[cur]
		if nd.stored {
			best, found = nd.subnet, true
		}
		if i == addr.Width() {
			break
		}
		next := nd.child[addr.Bit(i)]
		if next == 0 {
			break
		}
		cur = next
	}
	return best, found
}

// Len returns the number of stored subnets.
func (t *Trie[A]) Len() int { return t.count }

// Walk visits stored subnets in address order, parents before children.
// It stops early when fn returns false.
func (t *Trie[A]) Walk(fn func(netaddr.Subnet[A]) bool) {
	t.walk(0, fn)
}

func (t *Trie[A]) walk(idx int32, fn func(netaddr.Subnet[A]) bool) bool {
	nd := t.nodes[idx]
	if nd.stored && !fn(nd.subnet) {
		return false
	}
	for _, c := range nd.child {
		if c != 0 && !t.walk(c, fn) {
			return false
		}
	}
	return true
}
