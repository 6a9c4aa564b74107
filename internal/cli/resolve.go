package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	nfdns "github.com/p4th0r/gatelist/internal/dns"
)

func (a *app) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>...",
		Short: "Resolve names with the batch resolver",
		Long: `Resolves A and AAAA records of every name in one batch and prints one line
per name. With --verbose the CNAMEs returned by the upstream are shown.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger()
			ctx, cancel := signalContext(logger)
			defer cancel()

			recorder, stop, err := a.startRecorder(logger, "")
			if err != nil {
				return err
			}
			defer stop()

			tracker := nfdns.NewTracker()
			r, err := a.newResolver(logger, resolverDeps{tracker: tracker, recorder: recorder})
			if err != nil {
				return err
			}
			answers, err := r.ResolveEach(ctx, args)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, name := range args {
				addrs := answers[name]
				if len(addrs) == 0 {
					fmt.Fprintf(w, "%s\t-\n", name)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(addrs, " "))
			}

			if a.cfg.Verbose {
				for _, res := range tracker.GetAllResolutions() {
					if len(res.CNAMEs) > 0 {
						chain := append([]string(nil), res.CNAMEs...)
						sort.Strings(chain)
						logger.Debug("%s %s via %s", res.Domain, res.QueryType, strings.Join(chain, ", "))
					}
				}
			}
			return nil
		},
	}
}
