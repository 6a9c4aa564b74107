package cli

import (
	"fmt"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/classify"
	"github.com/p4th0r/gatelist/internal/netaddr"
)

func (a *app) newRouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Inspect the routing table used for subnet inference",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <addr>...",
		Short: "Print the longest matching route and inferred subnet of each address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.RouteSource == "" {
				return fmt.Errorf("no route source: use --route-source")
			}
			logger := a.logger()
			ctx, cancel := signalContext(logger)
			defer cancel()

			// lookups always infer, whatever --auto-fix says
			a.cfg.AutoFix = true
			parser, err := a.parser(ctx, logger)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, tok := range args {
				switch classify.Classify(tok) {
				case classify.IPv4:
					s, err := parser.ParseIPv4(tok)
					if err != nil {
						fmt.Fprintf(w, "%s\t-\t%v\n", tok, err)
						continue
					}
					route, _ := a.routes.LookupV4(s.Address)
					fmt.Fprintf(w, "%s\t%s\t%s\n", tok, route.Prefix(), s)
				case classify.IPv6:
					s, err := parser.ParseIPv6(tok)
					if err != nil {
						fmt.Fprintf(w, "%s\t-\t%v\n", tok, err)
						continue
					}
					route, _ := a.routes.LookupV6(s.Address)
					fmt.Fprintf(w, "%s\t%s\t%s\n", tok, route.Prefix(), s)
				default:
					fmt.Fprintf(w, "%s\t-\t%v\n", tok, netaddr.ErrInvalidAddress)
				}
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print every route of the loaded table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.RouteSource == "" {
				return fmt.Errorf("no route source: use --route-source")
			}
			logger := a.logger()
			ctx, cancel := signalContext(logger)
			defer cancel()

			a.cfg.AutoFix = true
			if _, err := a.parser(ctx, logger); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			var werr error
			a.routes.Trie().Walk(func(p netip.Prefix) bool {
				_, werr = fmt.Fprintln(w, p)
				return werr == nil
			})
			return werr
		},
	})
	return cmd
}
