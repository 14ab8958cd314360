package collector

import (
	"context"
	"net/netip"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IXScan/internal/engine"
	"IXScan/internal/engine/enginetest"
	"IXScan/internal/metrics"
	"IXScan/internal/model"
	"IXScan/internal/routeserver"
)

func newTable(t *testing.T) *routeserver.Table {
	t.Helper()
	table, err := routeserver.NewTable([]model.RouteServer{{ASN: 99, Name: "Test-IX"}})
	require.NoError(t, err)
	return table
}

func drain(ch chan model.Observation) []model.Observation {
	close(ch)
	var out []model.Observation
	for o := range ch {
		out = append(out, o)
	}
	return out
}

func TestCollect(t *testing.T) {
	ambiguous := &model.Record{
		Path: &model.ASPath{Segments: []model.PathSegment{
			{Type: model.SegmentSequence, ASNs: []model.ASN{5, 99}},
			{Type: model.SegmentSet, ASNs: []model.ASN{6, 7}},
		}},
		Prefix: netip.MustParsePrefix("198.51.100.0/24"),
	}
	missing := &model.Record{Prefix: netip.MustParsePrefix("203.0.113.0/24")}

	opener := &enginetest.Opener{Sources: map[string]enginetest.Source{
		"mem://rrc00": {Records: []*model.Record{
			enginetest.Record("10.0.0.0/24", 10, 20, 99),
			ambiguous,
			missing,
			enginetest.Record("2001:db8::/32", 10, 30, 30, 99, 40),
			enginetest.Record("192.0.2.0/24", 10, 20, 30),
		}},
	}}
	m := metrics.New()
	out := make(chan model.Observation, 16)
	w := New(opener, newTable(t), out, m)

	res, err := w.Collect(context.Background(), model.DataSource{Collector: "rrc00", URL: "mem://rrc00"})
	require.NoError(t, err)

	assert.Equal(t, Result{Records: 5, MissingPaths: 1, AmbiguousPaths: 1, Observations: 2}, res)
	assert.Equal(t, []model.Observation{
		{Member: 20, RouteServer: 99, Prefix: netip.MustParsePrefix("10.0.0.0/24")},
		{Member: 30, RouteServer: 99, Prefix: netip.MustParsePrefix("2001:db8::/32")},
	}, drain(out))
	assert.Equal(t, 1, opener.Closed())

	assert.Equal(t, 5.0, testutil.ToFloat64(m.Records.WithLabelValues("rrc00")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Skipped.WithLabelValues("ambiguous_path")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Observations.WithLabelValues("99")))
}

func TestCollect_SourceUnavailable(t *testing.T) {
	opener := &enginetest.Opener{Sources: map[string]enginetest.Source{
		"mem://down": {OpenErr: enginetest.ErrInjected},
		"mem://midstream": {
			Records: []*model.Record{
				enginetest.Record("10.0.0.0/24", 1, 99),
				enginetest.Record("10.0.1.0/24", 2, 99),
			},
			FailAfter: 1,
		},
		"mem://panics": {
			Records: []*model.Record{enginetest.Record("10.0.0.0/24", 3, 99)},
			Panic:   true,
		},
	}}
	out := make(chan model.Observation, 16)
	w := New(opener, newTable(t), out, nil)

	_, err := w.Collect(context.Background(), model.DataSource{Collector: "down", URL: "mem://down"})
	assert.ErrorIs(t, err, engine.ErrSourceUnavailable)
	assert.ErrorIs(t, err, enginetest.ErrInjected)

	res, err := w.Collect(context.Background(), model.DataSource{Collector: "midstream", URL: "mem://midstream"})
	assert.ErrorIs(t, err, engine.ErrSourceUnavailable)
	assert.Equal(t, uint64(1), res.Observations)

	res, err = w.Collect(context.Background(), model.DataSource{Collector: "panics", URL: "mem://panics"})
	assert.ErrorIs(t, err, engine.ErrSourceUnavailable)
	assert.Equal(t, uint64(1), res.Records)

	assert.Len(t, drain(out), 2)
	assert.Equal(t, 2, opener.Closed())
}

func TestCollect_Cancelled(t *testing.T) {
	opener := &enginetest.Opener{Sources: map[string]enginetest.Source{
		"mem://rrc00": {Records: []*model.Record{enginetest.Record("10.0.0.0/24", 10, 99)}},
	}}
	ctx, cancel := context.WithCancel(context.Background())

	// Unbuffered with no reader: the send can only finish through cancellation.
	out := make(chan model.Observation)
	w := New(opener, newTable(t), out, nil)

	done := make(chan error, 1)
	go func() {
		_, err := w.Collect(ctx, model.DataSource{Collector: "rrc00", URL: "mem://rrc00"})
		done <- err
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
