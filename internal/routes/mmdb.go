package routes

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/oschwald/maxminddb-golang/v2"
)

// MaxMind reads the network list of a MaxMind DB (GeoLite2 ASN, Country,
// or any other mmdb). Each network becomes a route.
type MaxMind struct {
	Path string
}

func (m MaxMind) Name() string { return "mmdb:" + m.Path }

func (m MaxMind) Routes(ctx context.Context, fn func(netip.Prefix) error) error {
	db, err := maxminddb.Open(m.Path)
	if err != nil {
		return fmt.Errorf("opening mmdb: %w", err)
	}
	defer db.Close()

	for res := range db.Networks() {
		if err := res.Err(); err != nil {
			return fmt.Errorf("walking mmdb networks: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		prefix := res.Prefix()
		if prefix.Addr().Is4In6() {
			bits := prefix.Bits() - 96
			if bits < 0 {
				continue
			}
			prefix = netip.PrefixFrom(prefix.Addr().Unmap(), bits)
		}
		if err := fn(prefix); err != nil {
			return err
		}
	}
	return nil
}
