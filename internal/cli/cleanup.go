package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/cleanup"
	"github.com/p4th0r/gatelist/internal/logging"
)

func (a *app) newCleanupCmd() *cobra.Command {
	finder := &cleanup.Finder{}
	cmd := &cobra.Command{
		Use:   "cleanup [dir]...",
		Short: "Remove resources left by interrupted runs",
		Long: `Finds and removes resources left behind by interrupted gatelist runs.

This includes:
  - nftables tables matching "gatelist_*"
  - rewrite temp files matching ".<list>.gatelist-*.tmp" in the given directories

Run this if gatelist was killed while rewriting a list.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			finder.Dirs = args
			if !finder.SkipNFT {
				if err := checkPlatform(); err != nil {
					return err
				}
				if err := checkPrivileges(); err != nil {
					return err
				}
			}
			return runCleanup(finder, a.logger())
		},
	}
	cmd.Flags().BoolVar(&finder.SkipNFT, "files-only", false, "Only remove temp files; leave nftables alone")
	return cmd
}

func runCleanup(finder *cleanup.Finder, logger *logging.StderrLogger) error {
	logger.CleanupStart()

	resources, err := finder.FindOrphanedResources()
	if err != nil {
		return fmt.Errorf("finding orphaned resources: %w", err)
	}

	if len(resources) == 0 {
		logger.CleanupNone()
		return nil
	}

	for _, res := range resources {
		logger.CleanupFound(string(res.Type), res.Name)
	}

	if err := finder.CleanupOrphanedResources(resources); err != nil {
		return fmt.Errorf("cleaning up resources: %w", err)
	}

	for _, res := range resources {
		logger.CleanupRemoved(string(res.Type), res.Name)
	}

	return nil
}
