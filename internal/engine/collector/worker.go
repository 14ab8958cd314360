package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"IXScan/internal/engine"
	"IXScan/internal/engine/analysis"
	"IXScan/internal/metrics"
	"IXScan/internal/model"
)

// Result holds the per-source counters of one collection.
type Result struct {
	Records        uint64
	MissingPaths   uint64
	AmbiguousPaths uint64
	Observations   uint64
}

// Worker reads the records of a data source and forwards route server observations.
// A single Worker may serve many sources concurrently; it holds no per-source state.
type Worker struct {
	opener  model.StreamOpener
	table   analysis.Monitored
	out     chan<- model.Observation
	metrics *metrics.Metrics
}

// New creates a worker sending its observations to out.
func New(opener model.StreamOpener, table analysis.Monitored, out chan<- model.Observation, m *metrics.Metrics) *Worker {
	return &Worker{opener: opener, table: table, out: out, metrics: m}
}

// Collect processes src to completion. Records without a usable path are skipped.
// Failures to open or read the source, including a panic in the decoder, are
// returned wrapping engine.ErrSourceUnavailable; observations sent before the
// failure stay valid. A cancelled context returns the context error.
func (w *Worker) Collect(ctx context.Context, src model.DataSource) (res Result, err error) {
	perRS := make(map[model.ASN]uint64)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: decoder panic: %v", engine.ErrSourceUnavailable, src.Collector, r)
		}
		w.record(src, res, perRS)
	}()

	stream, err := w.opener.Open(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, fmt.Errorf("%w: open %s: %w", engine.ErrSourceUnavailable, src.URL, err)
	}
	defer stream.Close()

	zap.S().Debugf("Collecting records of %s from %s", src.Collector, src.URL)

	var (
		path []model.ASN
		obs  []model.Observation
	)
	for {
		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, fmt.Errorf("%w: read %s after %d records: %w", engine.ErrSourceUnavailable, src.Collector, res.Records, err)
		}
		res.Records++

		var reason analysis.SkipReason
		path, reason = analysis.Normalize(path, rec.Path)
		switch reason {
		case analysis.SkipMissingPath:
			res.MissingPaths++
			continue
		case analysis.SkipAmbiguousPath:
			res.AmbiguousPaths++
			continue
		}

		obs = analysis.Extract(obs[:0], path, rec.Prefix, w.table)
		for _, o := range obs {
			select {
			case w.out <- o:
				res.Observations++
				perRS[o.RouteServer]++
			case <-ctx.Done():
				return res, ctx.Err()
			}
		}
	}
}

func (w *Worker) record(src model.DataSource, res Result, perRS map[model.ASN]uint64) {
	if w.metrics == nil {
		return
	}
	w.metrics.Records.WithLabelValues(src.Collector).Add(float64(res.Records))
	w.metrics.Skipped.WithLabelValues(analysis.SkipMissingPath.String()).Add(float64(res.MissingPaths))
	w.metrics.Skipped.WithLabelValues(analysis.SkipAmbiguousPath.String()).Add(float64(res.AmbiguousPaths))
	for rs, n := range perRS {
		w.metrics.Observations.WithLabelValues(strconv.FormatUint(uint64(rs), 10)).Add(float64(n))
	}
}
