package cli

import (
	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/config"
)

// AddFlags adds the flags shared by all subcommands.
func AddFlags(cmd *cobra.Command, a *app) {
	cfg := a.cfg
	f := cmd.PersistentFlags()

	f.StringVar(&a.configPath, "config", "", "YAML config file; flags override its values")

	// Reference set
	f.StringVar(&cfg.Reference, "reference", cfg.Reference, "Comma-separated reference entries (domains, IPs, CIDRs)")
	f.StringVar(&cfg.ReferenceFile, "reference-file", cfg.ReferenceFile, "Path to the reference list (one entry per line)")

	// Resolver
	f.StringSliceVar(&cfg.DNSServers, "dns-server", cfg.DNSServers, "Upstream DNS server, repeatable (default: /etc/resolv.conf)")
	f.DurationVar(&cfg.DNSTimeout, "dns-timeout", cfg.DNSTimeout, "Per-attempt DNS timeout")
	f.IntVar(&cfg.DNSAttempts, "dns-attempts", cfg.DNSAttempts, "Sends per query before giving up")
	f.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "DNS queries in flight per batch")
	f.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Domains resolved per batch")
	f.StringVar(&cfg.DNSBind, "dns-bind", cfg.DNSBind, "Local address of the query socket")
	f.StringVar(&cfg.PcapPath, "dns-pcap", cfg.PcapPath, "Record resolver traffic to a pcapng file")

	// Subnet inference
	f.BoolVar(&cfg.AutoFix, "auto-fix", cfg.AutoFix, "Give bare list addresses the mask of their covering route")
	f.StringVar(&cfg.RouteSource, "route-source", cfg.RouteSource, "Routing table for inference: mrt, kernel or mmdb")
	f.StringVar(&cfg.RoutePath, "route-path", cfg.RoutePath, "Path of the MRT dump or MaxMind database")
	f.StringVar(&cfg.RouteNetns, "route-netns", cfg.RouteNetns, "Network namespace for kernel routes")
	f.IntVar(&cfg.MinPrefix4, "min-prefix-v4", cfg.MinPrefix4, "Shortest inferred IPv4 prefix accepted")
	f.IntVar(&cfg.MinPrefix6, "min-prefix-v6", cfg.MinPrefix6, "Shortest inferred IPv6 prefix accepted")

	// Output
	f.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "Suppress per-entry logging")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Show debug output and progress")
}

// mergeFlags copies every explicitly set flag from flagCfg into dst.
func mergeFlags(cmd *cobra.Command, dst, flagCfg *config.Config) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("reference", func() { dst.Reference = flagCfg.Reference })
	set("reference-file", func() { dst.ReferenceFile = flagCfg.ReferenceFile })
	set("fix", func() { dst.Fix = flagCfg.Fix })
	set("dns-server", func() { dst.DNSServers = flagCfg.DNSServers })
	set("dns-timeout", func() { dst.DNSTimeout = flagCfg.DNSTimeout })
	set("dns-attempts", func() { dst.DNSAttempts = flagCfg.DNSAttempts })
	set("concurrency", func() { dst.Concurrency = flagCfg.Concurrency })
	set("batch-size", func() { dst.BatchSize = flagCfg.BatchSize })
	set("dns-bind", func() { dst.DNSBind = flagCfg.DNSBind })
	set("dns-pcap", func() { dst.PcapPath = flagCfg.PcapPath })
	set("auto-fix", func() { dst.AutoFix = flagCfg.AutoFix })
	set("route-source", func() { dst.RouteSource = flagCfg.RouteSource })
	set("route-path", func() { dst.RoutePath = flagCfg.RoutePath })
	set("route-netns", func() { dst.RouteNetns = flagCfg.RouteNetns })
	set("min-prefix-v4", func() { dst.MinPrefix4 = flagCfg.MinPrefix4 })
	set("min-prefix-v6", func() { dst.MinPrefix6 = flagCfg.MinPrefix6 })
	set("quiet", func() { dst.Quiet = flagCfg.Quiet })
	set("verbose", func() { dst.Verbose = flagCfg.Verbose })
	set("report", func() { dst.ReportPath = flagCfg.ReportPath })
	set("no-report", func() { dst.NoReport = flagCfg.NoReport })
	set("table", func() { dst.NFTTable = flagCfg.NFTTable })
	set("listen", func() { dst.Listen = flagCfg.Listen })
}
