package cli

import (
	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/aggregate"
	"github.com/p4th0r/gatelist/internal/nft"
)

func (a *app) newNFTCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nft",
		Short: "Load lists into nftables",
	}
	cmd.PersistentFlags().StringVar(&a.cfg.NFTTable, "table", a.cfg.NFTTable, "Table suffix (table name gatelist_<suffix>)")

	cmd.AddCommand(&cobra.Command{
		Use:   "apply <list-file>...",
		Short: "Drop forwarded traffic to the addresses of the lists",
		Long: `Merges the list files and loads their IPv4 and IPv6 entries into the
interval sets of an inet table whose forward chain drops matching traffic.
An existing table of the same name is replaced in one transaction. Domain
entries are ignored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkPlatform(); err != nil {
				return err
			}
			if err := checkPrivileges(); err != nil {
				return err
			}
			logger := a.logger()
			ctx, cancel := signalContext(logger)
			defer cancel()

			lists, err := aggregate.ReadAll(ctx, args, logger)
			if err != nil {
				return err
			}
			merged := aggregate.Merge(lists...)

			exp := nft.New(nft.Config{Name: a.cfg.NFTTable, Logger: logger})
			if err := exp.Apply(merged.Prefixes); err != nil {
				return err
			}
			logger.Info("Loaded %d prefixes into table %s", len(merged.Prefixes), exp.Table())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <list-file>...",
		Short: "Add list addresses to an applied table",
		Long: `Adds the merged IPv4 and IPv6 entries of the list files to the sets of a
table created by "nft apply". Entries overlapping an interval already in a
set are rejected by the kernel.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkPlatform(); err != nil {
				return err
			}
			if err := checkPrivileges(); err != nil {
				return err
			}
			logger := a.logger()
			ctx, cancel := signalContext(logger)
			defer cancel()

			lists, err := aggregate.ReadAll(ctx, args, logger)
			if err != nil {
				return err
			}
			merged := aggregate.Merge(lists...)

			exp := nft.New(nft.Config{Name: a.cfg.NFTTable, Logger: logger})
			if err := exp.Add(merged.Prefixes); err != nil {
				return err
			}
			logger.Info("Added %d prefixes to table %s", len(merged.Prefixes), exp.Table())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkPlatform(); err != nil {
				return err
			}
			if err := checkPrivileges(); err != nil {
				return err
			}
			logger := a.logger()
			exp := nft.New(nft.Config{Name: a.cfg.NFTTable, Logger: logger})
			if err := exp.Teardown(); err != nil {
				return err
			}
			logger.Info("Deleted table %s", exp.Table())
			return nil
		},
	})
	return cmd
}
