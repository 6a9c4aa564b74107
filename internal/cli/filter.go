package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/p4th0r/gatelist/internal/allowlist"
	nfdns "github.com/p4th0r/gatelist/internal/dns"
	"github.com/p4th0r/gatelist/internal/filter"
	"github.com/p4th0r/gatelist/internal/logging"
)

func (a *app) newFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter <list-file>...",
		Short: "Check list files against the reference set",
		Long: `Checks every entry of each list file against the reference set.

Without --fix the files are only checked. With --fix, files with matches are
replaced atomically by a copy without the matching lines; comments, blank
lines and unrecognized lines are kept.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFilter(args)
		},
	}
	cmd.Flags().BoolVar(&a.cfg.Fix, "fix", a.cfg.Fix, "Rewrite files without the matching entries")
	cmd.Flags().StringVar(&a.cfg.ReportPath, "report", a.cfg.ReportPath, "Path for the JSON report (default: ./gatelist-<timestamp>.json)")
	cmd.Flags().BoolVar(&a.cfg.NoReport, "no-report", a.cfg.NoReport, "Disable the JSON report")
	return cmd
}

func (a *app) runFilter(files []string) error {
	cfg := a.cfg
	logger := a.logger()

	if !cfg.HasReference() {
		return fmt.Errorf("no reference set: use --reference or --reference-file")
	}
	refName := cfg.ReferenceFile
	if refName == "" {
		refName = "inline"
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	startTime := time.Now()

	recorder, stopRecorder, err := a.startRecorder(logger, refName)
	if err != nil {
		return err
	}
	defer stopRecorder()

	tracker := nfdns.NewTracker()
	resolver, err := a.newResolver(logger, resolverDeps{tracker: tracker, recorder: recorder})
	if err != nil {
		return err
	}

	ref, err := allowlist.Load(ctx, cfg.Reference, cfg.ReferenceFile, resolver, logger)
	if err != nil {
		return fmt.Errorf("loading reference set: %w", err)
	}
	logger.Info("Reference: %s (%s)", refName, ref.Summary())

	parser, err := a.parser(ctx, logger)
	if err != nil {
		return err
	}

	eventLogger := logging.NewEventLogger(logger)
	eventLogger.Start()

	f := filter.New(filter.Options{
		BatchSize: cfg.BatchSize,
		Parser:    parser,
		Resolver:  resolver,
		Logger:    logger,
		Events:    eventLogger.EventCh(),
		Progress:  logger.Progress,
	})

	var results []logging.FileResult
	failed := 0
	for _, path := range files {
		logger.FilterStart(path, refName, cfg.Fix)
		matched, err := f.CheckFileByAddressLists(ctx, path, ref, cfg.Fix)
		res := logging.FileResult{Path: path, Matched: matched}
		if err != nil {
			logger.Error("%s: %v", path, err)
			res.Error = err.Error()
			failed++
		}
		results = append(results, res)
		if ctx.Err() != nil {
			break
		}
	}

	eventLogger.Stop()
	endTime := time.Now()
	duration := endTime.Sub(startTime)

	summary := eventLogger.GetSummary()
	logger.PrintSummary(summary, duration)
	total, failedQueries, unique := tracker.GetStats()
	logger.Debug("DNS: %d queries, %d failed, %d domains", total, failedQueries, unique)

	if !cfg.NoReport {
		reportPath := cfg.ReportPath
		if reportPath == "" {
			reportPath = logging.DefaultReportPath(startTime)
		}
		run := logging.RunInfo{
			StartTime:    startTime,
			EndTime:      endTime,
			DurationSecs: duration.Seconds(),
			Reference:    refName,
			RefSummary:   ref.Summary(),
			RouteSource:  a.routes.Source(),
			Fix:          cfg.Fix,
		}
		report := logging.BuildReport(run, results, eventLogger.GetEvents(), summary)
		if err := logging.WriteReport(reportPath, report); err != nil {
			logger.Error("Failed to write report: %v", err)
		} else {
			logger.Info("Report written to %s", reportPath)
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
