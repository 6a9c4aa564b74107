package cli

import (
	"context"
	"fmt"

	"github.com/p4th0r/gatelist/internal/capture"
	nfdns "github.com/p4th0r/gatelist/internal/dns"
	"github.com/p4th0r/gatelist/internal/logging"
	"github.com/p4th0r/gatelist/internal/metrics"
	"github.com/p4th0r/gatelist/internal/netaddr"
	"github.com/p4th0r/gatelist/internal/routes"
)

const resolvConf = "/etc/resolv.conf"

// resolverDeps are the optional collaborators of a resolver.
type resolverDeps struct {
	tracker  *nfdns.Tracker
	recorder *capture.Recorder
	metrics  *metrics.Metrics
}

// upstreams returns the configured servers, the system ones, or the
// last-resort default.
func (a *app) upstreams() []string {
	if len(a.cfg.DNSServers) > 0 {
		return a.cfg.DNSServers
	}
	if servers := nfdns.SystemServers(resolvConf); len(servers) > 0 {
		return servers
	}
	return []string{nfdns.DefaultServer}
}

func (a *app) newResolver(logger *logging.StderrLogger, deps resolverDeps) (*nfdns.Resolver, error) {
	cfg := nfdns.Config{
		Servers:  a.upstreams(),
		Timeout:  a.cfg.DNSTimeout,
		Attempts: a.cfg.DNSAttempts,
		Window:   a.cfg.Concurrency,
		Bind:     a.cfg.DNSBind,
		Tracker:  deps.tracker,
		Metrics:  deps.metrics,
		Logger:   logger,
	}
	if deps.recorder != nil {
		cfg.Tap = deps.recorder
	}
	r, err := nfdns.NewResolver(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("Upstream DNS: %v", r.Servers())
	return r, nil
}

// startRecorder starts a pcapng recorder when --dns-pcap is set. The
// returned stop func is always safe to call.
func (a *app) startRecorder(logger *logging.StderrLogger, reference string) (*capture.Recorder, func(), error) {
	if a.cfg.PcapPath == "" {
		return nil, func() {}, nil
	}
	rec := capture.New(capture.Config{
		FilePath: a.cfg.PcapPath,
		Logger:   logger,
		Comment:  capture.BuildSectionComment(a.version, reference, a.upstreams()),
	})
	if err := rec.Start(); err != nil {
		return nil, func() {}, fmt.Errorf("starting DNS capture: %w", err)
	}
	stop := func() {
		if err := rec.Stop(); err != nil {
			logger.Debug("PCAP stop error: %v", err)
		}
	}
	return rec, stop, nil
}

// parser returns the mask policy for bare list addresses. A routing table
// that cannot be read only disables inference.
func (a *app) parser(ctx context.Context, logger *logging.StderrLogger) (*netaddr.Parser, error) {
	p := &netaddr.Parser{
		AutoFix:    a.cfg.InferenceEnabled(),
		MinPrefix4: a.cfg.MinPrefix4,
		MinPrefix6: a.cfg.MinPrefix6,
	}
	if !p.AutoFix {
		return p, nil
	}
	src, err := routes.Open(a.cfg.RouteSource, a.cfg.RoutePath, a.cfg.RouteNetns)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loading routes from %s", src.Name())
	if err := a.routes.Load(ctx, src); err != nil {
		logger.Warn("routing table unavailable, bare addresses will be skipped: %v", err)
	}
	v4, v6 := a.routes.Trie().Len()
	logger.Debug("Routes loaded: %d IPv4, %d IPv6", v4, v6)
	p.Routes = a.routes
	return p, nil
}
