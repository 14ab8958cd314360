package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"IXScan/internal/broker"
	"IXScan/internal/config"
	"IXScan/internal/engine/manager"
	"IXScan/internal/factory"
	"IXScan/internal/metrics"
	"IXScan/internal/model"
	"IXScan/internal/report"
	"IXScan/internal/routeserver"
	"IXScan/pkg/mrt"
)

// scan wires the production index, opener and writers and runs one scan.
func scan(ctx context.Context, cfg *config.Config) error {
	writers, err := factory.Create(cfg)
	if err != nil {
		return err
	}
	defer report.Close(writers)

	return runScan(ctx, cfg, broker.FromConfig(cfg), mrt.NewOpener(cfg.S3), writers)
}

// runScan looks up the sources of the snapshot, collects and aggregates them and
// hands the report to the writers. Failed sources are part of the report; only
// errors that leave nothing to report, and writer failures, are returned.
func runScan(ctx context.Context, cfg *config.Config, index model.Index, opener model.StreamOpener, writers []model.Writer) error {
	table, err := routeserver.FromConfig(cfg.RouteServers)
	if err != nil {
		return err
	}
	ts, err := snapshotTime(cfg, time.Now())
	if err != nil {
		return err
	}

	sources, err := index.Sources(ctx, ts)
	if err != nil {
		return fmt.Errorf("failed to list RIB dumps for %s: %w", ts.Format(time.RFC3339), err)
	}
	zap.S().Infof("Scanning %d RIB dumps at %s for %d route servers.", len(sources), ts.Format(time.RFC3339), table.Len())

	m := metrics.New()
	mgr, err := manager.NewManager(cfg, opener, table, m)
	if err != nil {
		return err
	}
	res, err := mgr.Run(ctx, sources)
	if err != nil {
		return fmt.Errorf("scan aborted: %w", err)
	}

	rep := report.Build(ts, table, res)
	deliverErr := report.Deliver(ctx, writers, rep)

	if cfg.Metrics.PushgatewayURL != "" {
		if err := m.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
			zap.S().Warnf("Failed to push metrics: %v", err)
		}
	}
	return deliverErr
}
