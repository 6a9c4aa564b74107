package routes

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// Kernel reads the live routing table over netlink, optionally from a
// named network namespace.
type Kernel struct {
	Netns string
}

func (k Kernel) Name() string {
	if k.Netns != "" {
		return "kernel:" + k.Netns
	}
	return "kernel"
}

func (k Kernel) Routes(ctx context.Context, fn func(netip.Prefix) error) error {
	h, err := k.handle()
	if err != nil {
		return err
	}
	defer h.Close()

	for _, family := range []int{netlink.FAMILY_V4, netlink.FAMILY_V6} {
		routes, err := h.RouteList(nil, family)
		if err != nil {
			return fmt.Errorf("listing routes: %w", err)
		}
		for _, r := range routes {
			if err := ctx.Err(); err != nil {
				return err
			}
			prefix, ok := prefixFromIPNet(r.Dst)
			if !ok {
				continue
			}
			if err := fn(prefix); err != nil {
				return err
			}
		}
	}
	return nil
}

func (k Kernel) handle() (*netlink.Handle, error) {
	if k.Netns == "" {
		h, err := netlink.NewHandle()
		if err != nil {
			return nil, fmt.Errorf("opening netlink handle: %w", err)
		}
		return h, nil
	}

	ns, err := netns.GetFromName(k.Netns)
	if err != nil {
		return nil, fmt.Errorf("opening namespace %s: %w", k.Netns, err)
	}
	defer ns.Close()

	h, err := netlink.NewHandleAt(ns)
	if err != nil {
		return nil, fmt.Errorf("opening netlink handle in %s: %w", k.Netns, err)
	}
	return h, nil
}

// prefixFromIPNet converts a route destination. Default routes come back
// as nil on older kernels and are skipped.
func prefixFromIPNet(n *net.IPNet) (netip.Prefix, bool) {
	if n == nil {
		return netip.Prefix{}, false
	}
	addr, ok := netip.AddrFromSlice(n.IP)
	if !ok {
		return netip.Prefix{}, false
	}
	ones, bits := n.Mask.Size()
	if bits == 0 {
		return netip.Prefix{}, false
	}
	addr = addr.Unmap()
	if addr.Is4() && bits == 128 {
		ones -= 96
	}
	if ones < 0 {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(addr, ones), true
}
