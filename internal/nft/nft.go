// Package nft loads list prefixes into nftables interval sets so a gateway
// can drop forwarded traffic to them.
package nft

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"

	"github.com/p4th0r/gatelist/internal/logging"
)

// TablePrefix starts the name of every table gatelist creates.
const TablePrefix = "gatelist_"

// Set names inside a gatelist table.
const (
	SetV4 = "blocked_v4"
	SetV6 = "blocked_v6"
)

// Exporter manages one gatelist table.
type Exporter struct {
	logger *logging.StderrLogger

	mu    sync.Mutex
	table *nftables.Table
	setV4 *nftables.Set
	setV6 *nftables.Set
}

// Config holds the configuration for creating an Exporter.
type Config struct {
	Name   string // table suffix, e.g. "vpn" for table gatelist_vpn
	Logger *logging.StderrLogger
}

// New creates an Exporter. Call Apply to install the table.
func New(cfg Config) *Exporter {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	table := &nftables.Table{Name: TableName(name), Family: nftables.TableFamilyINet}
	return &Exporter{
		logger: logger,
		table:  table,
		setV4:  &nftables.Set{Name: SetV4, Table: table, KeyType: nftables.TypeIPAddr, Interval: true},
		setV6:  &nftables.Set{Name: SetV6, Table: table, KeyType: nftables.TypeIP6Addr, Interval: true},
	}
}

// TableName returns the full table name for a suffix.
func TableName(name string) string {
	if strings.HasPrefix(name, TablePrefix) {
		return name
	}
	return TablePrefix + name
}

// Table returns the table name.
func (e *Exporter) Table() string { return e.table.Name }

// Apply replaces the table with one whose sets hold prefixes and whose
// forward chain drops traffic to them. Prefixes must not overlap; pass
// them through aggregate.Merge first. The swap is one netlink batch.
func (e *Exporter) Apply(prefixes []netip.Prefix) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("creating nftables connection: %w", err)
	}

	// AddTable before DelTable keeps the delete from failing on a fresh host.
	conn.AddTable(e.table)
	conn.DelTable(e.table)
	conn.AddTable(e.table)

	v4, v6 := BuildElements(prefixes)
	if err := conn.AddSet(e.setV4, v4); err != nil {
		return fmt.Errorf("adding %s set: %w", SetV4, err)
	}
	if err := conn.AddSet(e.setV6, v6); err != nil {
		return fmt.Errorf("adding %s set: %w", SetV6, err)
	}

	policy := nftables.ChainPolicyAccept
	chain := conn.AddChain(&nftables.Chain{
		Name:     "forward",
		Table:    e.table,
		Hooknum:  nftables.ChainHookForward,
		Priority: nftables.ChainPriorityFilter,
		Type:     nftables.ChainTypeFilter,
		Policy:   &policy,
	})
	conn.AddRule(&nftables.Rule{Table: e.table, Chain: chain, Exprs: dropExprs(unix.NFPROTO_IPV4, 16, 4, e.setV4)})
	conn.AddRule(&nftables.Rule{Table: e.table, Chain: chain, Exprs: dropExprs(unix.NFPROTO_IPV6, 24, 16, e.setV6)})

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("flushing nftables rules: %w", err)
	}

	e.logger.Debug("nftables table %s loaded: %d IPv4 and %d IPv6 intervals", e.table.Name, len(v4)/2, len(v6)/2)
	return nil
}

// Add inserts prefixes into the sets of an applied table.
func (e *Exporter) Add(prefixes []netip.Prefix) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v4, v6 := BuildElements(prefixes)
	if len(v4) == 0 && len(v6) == 0 {
		return nil
	}

	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("creating nftables connection for set update: %w", err)
	}
	if len(v4) > 0 {
		if err := conn.SetAddElements(e.setV4, v4); err != nil {
			return fmt.Errorf("adding elements to %s: %w", SetV4, err)
		}
	}
	if len(v6) > 0 {
		if err := conn.SetAddElements(e.setV6, v6); err != nil {
			return fmt.Errorf("adding elements to %s: %w", SetV6, err)
		}
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("flushing set update: %w", err)
	}
	return nil
}

// Teardown deletes the table. It is idempotent.
func (e *Exporter) Teardown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := DeleteTable(e.table.Name); err != nil {
		return err
	}
	e.logger.Debug("nftables table %s deleted", e.table.Name)
	return nil
}

// dropExprs matches the destination address of one family against set.
func dropExprs(nfproto byte, offset, length uint32, set *nftables.Set) []expr.Any {
	return []expr.Any{
		// inet tables need the family check before reading the network header
		&expr.Meta{Key: expr.MetaKeyNFPROTO, Register: 1},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     []byte{nfproto},
		},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseNetworkHeader,
			Offset:       offset,
			Len:          length,
		},
		&expr.Lookup{
			SourceRegister: 1,
			SetName:        set.Name,
			SetID:          set.ID,
		},
		&expr.Counter{},
		&expr.Verdict{Kind: expr.VerdictDrop},
	}
}

// ListTables returns the names of all gatelist tables.
func ListTables() ([]string, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("creating nftables connection: %w", err)
	}
	tables, err := conn.ListTables()
	if err != nil {
		return nil, fmt.Errorf("listing nftables tables: %w", err)
	}
	var names []string
	for _, t := range tables {
		if t.Family == nftables.TableFamilyINet && strings.HasPrefix(t.Name, TablePrefix) {
			names = append(names, t.Name)
		}
	}
	return names, nil
}

// DeleteTable removes a gatelist table by name. A missing table is not an error.
func DeleteTable(name string) error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("creating nftables connection: %w", err)
	}
	table := &nftables.Table{Name: name, Family: nftables.TableFamilyINet}
	conn.AddTable(table)
	conn.DelTable(table)
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("deleting table %s: %w", name, err)
	}
	return nil
}
