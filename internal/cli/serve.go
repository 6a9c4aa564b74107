package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/allowlist"
	nfdns "github.com/p4th0r/gatelist/internal/dns"
	"github.com/p4th0r/gatelist/internal/filter"
	"github.com/p4th0r/gatelist/internal/metrics"
	"github.com/p4th0r/gatelist/internal/server"
)

func (a *app) newServeCmd() *cobra.Command {
	var root, token string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the filtering pipeline over HTTP",
		Long: `Starts an HTTP service for build jobs:

  POST /api/filter   {"files": ["list.txt"], "fix": true}
  GET  /api/health
  GET  /metrics

List paths are relative to --root. The reference set is loaded once at start.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if !cfg.HasReference() {
				return fmt.Errorf("no reference set: use --reference or --reference-file")
			}
			if root == "" {
				return fmt.Errorf("no list root: use --root")
			}
			logger := a.logger()
			ctx, cancel := signalContext(logger)
			defer cancel()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m := metrics.New(reg)

			recorder, stop, err := a.startRecorder(logger, cfg.ReferenceFile)
			if err != nil {
				return err
			}
			defer stop()

			resolver, err := a.newResolver(logger, resolverDeps{tracker: nfdns.NewTracker(), recorder: recorder, metrics: m})
			if err != nil {
				return err
			}
			ref, err := allowlist.Load(ctx, cfg.Reference, cfg.ReferenceFile, resolver, logger)
			if err != nil {
				return fmt.Errorf("loading reference set: %w", err)
			}
			logger.Info("Reference: %s", ref.Summary())

			parser, err := a.parser(ctx, logger)
			if err != nil {
				return err
			}

			f := filter.New(filter.Options{
				BatchSize: cfg.BatchSize,
				Parser:    parser,
				Resolver:  resolver,
				Logger:    logger,
				Metrics:   m,
			})
			srv := server.New(server.Config{
				Checker:   f,
				Reference: ref,
				Root:      root,
				Token:     token,
				Gatherer:  reg,
				Logger:    logger,
			})
			return srv.ListenAndServe(ctx, cfg.Listen)
		},
	}
	cmd.Flags().StringVar(&a.cfg.Listen, "listen", a.cfg.Listen, "HTTP listen address")
	cmd.Flags().StringVar(&root, "root", "", "Directory holding the list files")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token required by /api/filter")
	return cmd
}
