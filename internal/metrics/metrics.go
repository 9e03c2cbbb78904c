// Package metrics holds the Prometheus instruments of padronsync.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeLockHeld   = "lock_held"
	MaterializeCreate = "created"
	MaterializeUpdate = "refreshed"
)

// Metrics is bound to its own registry so several instances can coexist.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal            *prometheus.CounterVec
	RunDurationSeconds   prometheus.Histogram
	PagesTotal           prometheus.Counter
	ItemsTotal           prometheus.Counter
	RowsUpsertedTotal    *prometheus.CounterVec
	RowsSkippedTotal     prometheus.Counter
	LastCursorTimestamp  prometheus.Gauge
	MaterializationTotal *prometheus.CounterVec
	ResolverLookupsTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "padronsync_runs_total",
			Help: "Sync runs by outcome",
		}, []string{"outcome"}),
		RunDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "padronsync_run_duration_seconds",
			Help:    "Duration of sync runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		PagesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "padronsync_pages_total",
			Help: "Registry pages fetched",
		}),
		ItemsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "padronsync_items_total",
			Help: "Registry items mapped",
		}),
		RowsUpsertedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "padronsync_rows_upserted_total",
			Help: "Mirror rows submitted per conflict key",
		}, []string{"key"}),
		RowsSkippedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "padronsync_rows_skipped_total",
			Help: "Mirror rows dropped for lacking both sid and dni",
		}),
		LastCursorTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "padronsync_last_cursor_timestamp_seconds",
			Help: "Cursor committed by the last successful run, unix seconds",
		}),
		MaterializationTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "padronsync_identity_materializations_total",
			Help: "Identity materializations by result",
		}, []string{"result"}),
		ResolverLookupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "padronsync_resolver_lookups_total",
			Help: "Padron resolver lookups by source",
		}, []string{"source"}),
	}
}

// WithRuntimeCollectors adds the Go and process collectors, for long-running servers.
func (m *Metrics) WithRuntimeCollectors() *Metrics {
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRun counts one run and observes its duration.
func (m *Metrics) RecordRun(outcome string, seconds float64) {
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunDurationSeconds.Observe(seconds)
}

func (m *Metrics) RecordPage(items int) {
	m.PagesTotal.Inc()
	m.ItemsTotal.Add(float64(items))
}

func (m *Metrics) RecordUpsert(bySecondaryID, byNationalID, skipped int) {
	m.RowsUpsertedTotal.WithLabelValues("sid").Add(float64(bySecondaryID))
	m.RowsUpsertedTotal.WithLabelValues("dni").Add(float64(byNationalID))
	m.RowsSkippedTotal.Add(float64(skipped))
}

func (m *Metrics) SetCursor(unixSeconds int64) {
	m.LastCursorTimestamp.Set(float64(unixSeconds))
}

func (m *Metrics) RecordMaterialization(result string) {
	m.MaterializationTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordResolverLookup(source string) {
	m.ResolverLookupsTotal.WithLabelValues(source).Inc()
}

// pushAdd is a seam for tests.
var pushAdd = func(ctx context.Context, p *push.Pusher) error {
	return p.AddContext(ctx)
}

// Push sends the registry to a Pushgateway under the given job name.
// An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := pushAdd(ctx, push.New(url, job).Gatherer(m.Registry)); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
