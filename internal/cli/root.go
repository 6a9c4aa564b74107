// Package cli provides the root command and main execution flow for gatelist.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/config"
	"github.com/p4th0r/gatelist/internal/logging"
	"github.com/p4th0r/gatelist/internal/routes"
)

// app carries state shared by the subcommands of one process.
type app struct {
	version    string
	cfg        *config.Config
	configPath string
	routes     *routes.Cache // built at most once per process
}

// NewRootCmd creates the root command for gatelist.
func NewRootCmd(version ...string) *cobra.Command {
	ver := "dev"
	if len(version) > 0 && version[0] != "" {
		ver = version[0]
	}
	cfg := config.Defaults()
	a := &app{version: ver, cfg: &cfg, routes: routes.NewCache()}

	cmd := &cobra.Command{
		Use:   "gatelist <command> [flags]",
		Short: "Build block and allow lists for a VPN gateway",
		Long: `gatelist checks address and domain lists against a reference set and
removes the entries the reference already covers.

List lines are classified as IPv4, IPv6 or domain. Addresses are checked by
subnet containment; domains are resolved in batches and checked by every
address they resolve to. Bare addresses can take the mask of their covering
route from an MRT dump, the kernel routing table or a MaxMind database.

Example:
  gatelist filter --reference-file vpn-ranges.txt --fix blocklist.txt
  gatelist aggregate -o merged.txt feed1.txt feed2.txt
  gatelist route lookup --route-source mrt --route-path rib.bz2 8.8.8.8`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	AddFlags(cmd, a)

	cmd.AddCommand(a.newFilterCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(a.newResolveCmd())
	cmd.AddCommand(a.newRouteCmd())
	cmd.AddCommand(a.newAggregateCmd())
	cmd.AddCommand(a.newNFTCmd())
	cmd.AddCommand(a.newServeCmd())
	cmd.AddCommand(a.newCleanupCmd())
	cmd.AddCommand(NewVersionCmd(ver))
	cmd.AddCommand(NewCompletionCmd())

	return cmd
}

// loadConfig merges --config under the flags that were set explicitly and
// validates the result.
func (a *app) loadConfig(cmd *cobra.Command) error {
	if a.configPath != "" {
		loaded, err := config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		mergeFlags(cmd, &loaded, a.cfg)
		*a.cfg = loaded
	}
	return a.cfg.Validate()
}

func (a *app) logger() *logging.StderrLogger {
	return logging.NewStderrLogger(a.cfg.Quiet, a.cfg.Verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *logging.StderrLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Debug("Received signal: %v", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

// checkPrivileges verifies we have sufficient privileges for nftables.
func checkPrivileges() error {
	if os.Getuid() != 0 {
		return fmt.Errorf("nftables changes require root privileges: run with sudo")
	}
	return nil
}

// checkPlatform ensures we're running on Linux.
func checkPlatform() error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("this command requires Linux (nftables and netlink are Linux kernel features)")
	}
	return nil
}
