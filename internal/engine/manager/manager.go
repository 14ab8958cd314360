package manager

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"IXScan/internal/config"
	"IXScan/internal/engine/aggregator"
	"IXScan/internal/engine/collector"
	"IXScan/internal/metrics"
	"IXScan/internal/model"
	"IXScan/internal/routeserver"
)

// Result is the outcome of a scan over a set of data sources.
type Result struct {
	State    *aggregator.State
	Sources  int
	Failures []model.SourceFailure
	Stats    model.Stats
}

// Manager dispatches one collector task per data source onto a bounded pool and
// feeds their observations to a single aggregator.
type Manager struct {
	opener      model.StreamOpener
	table       *routeserver.Table
	metrics     *metrics.Metrics
	numWorkers  int
	channelSize int
}

// NewManager creates a Manager sized from the scan section of the config.
func NewManager(cfg *config.Config, opener model.StreamOpener, table *routeserver.Table, m *metrics.Metrics) (*Manager, error) {
	if cfg.Scan.NumWorkers <= 0 {
		return nil, fmt.Errorf("number of workers must be positive, got %d", cfg.Scan.NumWorkers)
	}
	if cfg.Scan.ChannelSize <= 0 {
		return nil, fmt.Errorf("channel size must be positive, got %d", cfg.Scan.ChannelSize)
	}
	return &Manager{
		opener:      opener,
		table:       table,
		metrics:     m,
		numWorkers:  cfg.Scan.NumWorkers,
		channelSize: cfg.Scan.ChannelSize,
	}, nil
}

// progress is the completion bookkeeping of one run.
type progress struct {
	scheduled atomic.Int64
	finished  atomic.Int64
}

func (p *progress) Scheduled() int { return int(p.scheduled.Load()) }
func (p *progress) Finished() int  { return int(p.finished.Load()) }

// Run processes sources, which should be ordered largest first, and returns the
// finalized aggregate. A failing source is recorded in Result.Failures and never
// stops the other sources. Errors returned from Run are fatal for the run.
func (m *Manager) Run(ctx context.Context, sources []model.DataSource) (*Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	observations := make(chan model.Observation, m.channelSize)
	worker := collector.New(m.opener, m.table, observations, m.metrics)

	prog := &progress{}
	prog.scheduled.Store(int64(len(sources)))
	results := make([]collector.Result, len(sources))
	errs := make([]error, len(sources))

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		var g errgroup.Group
		g.SetLimit(m.numWorkers)
		for i, src := range sources {
			i, src := i, src
			// Tasks never return an error to the group so siblings are not affected.
			g.Go(func() error {
				defer prog.finished.Add(1)
				results[i], errs[i] = worker.Collect(runCtx, src)
				m.finish(src, results[i], errs[i])
				return nil
			})
		}
		_ = g.Wait()
		close(observations)
	}()
	zap.S().Infof("Manager started %d sources with %d workers.", len(sources), m.numWorkers)

	state, err := aggregator.New(observations, prog).Run(runCtx)
	if err != nil {
		// Release producers blocked on a full channel before waiting for them.
		cancel()
		<-dispatched
		return nil, err
	}
	<-dispatched

	res := &Result{State: state, Sources: len(sources)}
	for i, r := range results {
		res.Stats.Records += r.Records
		res.Stats.MissingPaths += r.MissingPaths
		res.Stats.AmbiguousPaths += r.AmbiguousPaths
		res.Stats.Observations += r.Observations
		if errs[i] != nil {
			res.Failures = append(res.Failures, model.SourceFailure{Source: sources[i], Err: errs[i].Error()})
		}
	}
	res.Stats.SourcesCompleted = len(sources) - len(res.Failures)

	zap.S().Infof("Scan finished in %s: %d of %d sources completed, %d records, %d observations.",
		time.Since(start).Round(time.Millisecond), res.Stats.SourcesCompleted, len(sources),
		res.Stats.Records, res.Stats.Observations)
	return res, nil
}

func (m *Manager) finish(src model.DataSource, res collector.Result, err error) {
	result := "ok"
	switch {
	case err == nil:
		zap.S().Infof("Finished %s: %d records, %d observations.", src.Collector, res.Records, res.Observations)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "cancelled"
		zap.S().Infof("Collection of %s cancelled after %d records.", src.Collector, res.Records)
	default:
		result = "failed"
		zap.S().Warnf("Source %s failed, continuing without it: %v", src.Collector, err)
	}
	if m.metrics != nil {
		m.metrics.Sources.WithLabelValues(result).Inc()
	}
}
