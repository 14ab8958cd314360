// Package metrics collects the counters of a scan run on a private prometheus registry.
// A scan is a batch job, so the registry is pushed to a Pushgateway once the run ends
// instead of being scraped.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "ixscan"

// Metrics groups the run counters. All counters are safe for concurrent use.
type Metrics struct {
	Registry *prometheus.Registry

	// Records counts RIB entries read, per collector.
	Records *prometheus.CounterVec
	// Skipped counts entries without a usable path, per reason.
	Skipped *prometheus.CounterVec
	// Observations counts (member, route server, prefix) triples emitted, per route server.
	Observations *prometheus.CounterVec
	// Sources counts finished data sources, per result ("ok", "failed" or "cancelled").
	Sources *prometheus.CounterVec
}

// New creates the counters and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Number of RIB entries read.",
		}, []string{"collector"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_skipped_total",
			Help:      "Number of RIB entries skipped because their AS path was missing or ambiguous.",
		}, []string{"reason"}),
		Observations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Number of route server observations emitted, duplicates included.",
		}, []string{"route_server"}),
		Sources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_total",
			Help:      "Number of data sources processed.",
		}, []string{"result"}),
	}
	m.Registry.MustRegister(m.Records, m.Skipped, m.Observations, m.Sources)
	return m
}

// Push sends the registry to a Pushgateway under the given job name.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
