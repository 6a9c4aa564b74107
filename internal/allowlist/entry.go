// Package allowlist loads the reference list a filtering run checks
// entries against: domains, wildcards, addresses and subnets.
package allowlist

import (
	"fmt"

	"github.com/p4th0r/gatelist/internal/netaddr"
)

// EntryType indicates the kind of reference entry.
type EntryType int

const (
	EntryDomain   EntryType = iota // "example.com"
	EntryWildcard                  // "*.example.com"
	EntryIPv4                      // "93.184.216.34"
	EntryIPv6                      // "2606:2800:220:1::248"
	EntryCIDR                      // "10.10.10.0/24" or "2001:db8::/32"
)

// Entry represents a single parsed reference entry.
type Entry struct {
	Type     EntryType
	Raw      string          // original text
	Domain   string          // normalized name (EntryDomain, EntryWildcard)
	Wildcard string          // match suffix, e.g. ".example.com"
	V6       bool            // family of an address or CIDR entry
	Subnet4  netaddr.Subnet4 // EntryIPv4, IPv4 EntryCIDR
	Subnet6  netaddr.Subnet6 // EntryIPv6, IPv6 EntryCIDR
}

// String returns a human-readable representation of the entry.
func (e Entry) String() string {
	switch e.Type {
	case EntryDomain:
		return fmt.Sprintf("domain   %s", e.Domain)
	case EntryWildcard:
		return fmt.Sprintf("wildcard *.%s", e.Domain)
	case EntryIPv4:
		return fmt.Sprintf("ip       %s", e.Subnet4.Address.Addr())
	case EntryIPv6:
		return fmt.Sprintf("ip       %s", e.Subnet6.Address.Addr())
	case EntryCIDR:
		if e.V6 {
			return fmt.Sprintf("cidr     %s", e.Subnet6)
		}
		return fmt.Sprintf("cidr     %s", e.Subnet4)
	default:
		return e.Raw
	}
}
