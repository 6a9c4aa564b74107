package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/classify"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <token>...",
		Short: "Print the type of each token",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			for _, tok := range args {
				fmt.Fprintf(w, "%-8s %s\n", classify.Classify(tok), tok)
			}
		},
	}
}
