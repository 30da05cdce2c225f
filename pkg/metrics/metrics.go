// Package metrics exports spill and operator counters to Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "qpexec"

// ExecMetrics groups the collectors updated by temp storage and operators.
// A nil *ExecMetrics is valid and records nothing.
type ExecMetrics struct {
	RunsCreated   *prometheus.CounterVec
	RunsRemoved   *prometheus.CounterVec
	PagesSpilled  *prometheus.CounterVec
	PagesRead     *prometheus.CounterVec
	BytesSpilled  *prometheus.CounterVec
	MergePasses   *prometheus.CounterVec
	TuplesEmitted *prometheus.CounterVec
	LiveRuns      prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *ExecMetrics
)

// Default returns the process-wide metrics registered on the default registerer.
func Default() *ExecMetrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors on reg. Tests pass a private
// prometheus.NewRegistry() so counts do not leak between cases.
func New(reg prometheus.Registerer) *ExecMetrics {
	f := promauto.With(reg)
	byOperator := []string{"operator"}

	return &ExecMetrics{
		RunsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spill_runs_created_total",
			Help:      "Temp runs created.",
		}, byOperator),
		RunsRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spill_runs_removed_total",
			Help:      "Temp runs deleted after being consumed or on close.",
		}, byOperator),
		PagesSpilled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spill_pages_written_total",
			Help:      "Pages written to temp runs.",
		}, byOperator),
		PagesRead: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spill_pages_read_total",
			Help:      "Pages read back from temp runs.",
		}, byOperator),
		BytesSpilled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spill_bytes_written_total",
			Help:      "Frame bytes written to temp runs.",
		}, byOperator),
		MergePasses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sort_merge_passes_total",
			Help:      "External sort merge passes.",
		}, byOperator),
		TuplesEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operator_tuples_emitted_total",
			Help:      "Tuples returned from Next.",
		}, byOperator),
		LiveRuns: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "spill_runs_live",
			Help:      "Temp runs currently on disk.",
		}),
	}
}

func (m *ExecMetrics) RunCreated(operator string) {
	if m == nil {
		return
	}
	m.RunsCreated.WithLabelValues(operator).Inc()
	m.LiveRuns.Inc()
}

func (m *ExecMetrics) RunRemoved(operator string) {
	if m == nil {
		return
	}
	m.RunsRemoved.WithLabelValues(operator).Inc()
	m.LiveRuns.Dec()
}

func (m *ExecMetrics) PageSpilled(operator string, bytes int) {
	if m == nil {
		return
	}
	m.PagesSpilled.WithLabelValues(operator).Inc()
	m.BytesSpilled.WithLabelValues(operator).Add(float64(bytes))
}

func (m *ExecMetrics) PageRead(operator string) {
	if m == nil {
		return
	}
	m.PagesRead.WithLabelValues(operator).Inc()
}

func (m *ExecMetrics) MergePass(operator string) {
	if m == nil {
		return
	}
	m.MergePasses.WithLabelValues(operator).Inc()
}

func (m *ExecMetrics) Emitted(operator string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.TuplesEmitted.WithLabelValues(operator).Add(float64(n))
}

// Handler serves the collectors registered on g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
