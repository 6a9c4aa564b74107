package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/aggregate"
)

func (a *app) newAggregateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "aggregate <list-file>...",
		Short: "Merge list files, dropping duplicates and covered prefixes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger()
			ctx, cancel := signalContext(logger)
			defer cancel()

			lists, err := aggregate.ReadAll(ctx, args, logger)
			if err != nil {
				return err
			}
			merged := aggregate.Merge(lists...)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if _, err := merged.WriteTo(w); err != nil {
				return fmt.Errorf("writing merged list: %w", err)
			}
			logger.Info("Merged %d files: %s (%d lines skipped)", len(lists), merged.Summary(), merged.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}
