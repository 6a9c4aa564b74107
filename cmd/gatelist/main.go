// gatelist builds block and allow lists for VPN gateways: it filters list
// files against a reference set, merges lists and loads them into nftables.
package main

import (
	"fmt"
	"os"

	"github.com/p4th0r/gatelist/internal/cli"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	rootCmd := cli.NewRootCmd(version)
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[gatelist] Error: %v\n", err)
		os.Exit(1)
	}
}
