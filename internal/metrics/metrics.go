// Package metrics exposes sync counters in Prometheus format.
//
// Metrics implements sync.Observer, so the daemon registers it with the
// engine and serves Handler on the dashboard's /metrics route.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mschirtzinger/personal-dash/internal/sync"
)

const namespace = "pd"

// Metrics holds the sync collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	// SyncRuns counts SyncAll batches. Labels: result (ok, partial, aborted)
	SyncRuns *prometheus.CounterVec
	// CalendarSyncs counts per-calendar attempts. Labels: mode (full, incremental), result (ok, failed)
	CalendarSyncs *prometheus.CounterVec
	// EventsUpserted counts events written by sync.
	EventsUpserted prometheus.Counter
	// EventsDeleted counts events marked deleted by sync.
	EventsDeleted prometheus.Counter
	// AnnotationsWritten counts annotations created or re-categorised by sync.
	AnnotationsWritten prometheus.Counter
	// TokenExpirations counts full resyncs forced by an expired token.
	TokenExpirations prometheus.Counter
	// CalendarDuration measures per-calendar attempt latency.
	CalendarDuration prometheus.Histogram
	// LastSync holds the unix time of the last completed batch.
	LastSync prometheus.Gauge
	// SyncInProgress is 1 while a batch runs.
	SyncInProgress prometheus.Gauge
}

var _ sync.Observer = (*Metrics)(nil)

// New creates Metrics on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newWithRegistry(reg)
}

func newWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total sync batches by result",
		}, []string{"result"}),
		CalendarSyncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "calendar_attempts_total",
			Help:      "Total per-calendar sync attempts by mode and result",
		}, []string{"mode", "result"}),
		EventsUpserted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_upserted_total",
			Help:      "Total events upserted by sync",
		}),
		EventsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_deleted_total",
			Help:      "Total events marked deleted by sync",
		}),
		AnnotationsWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "annotations_written_total",
			Help:      "Total annotations created or re-categorised by sync",
		}),
		TokenExpirations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "token_expirations_total",
			Help:      "Total full resyncs forced by an expired sync token",
		}),
		CalendarDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "calendar_duration_seconds",
			Help:      "Per-calendar sync attempt latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSync: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last completed sync batch",
		}),
		SyncInProgress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "in_progress",
			Help:      "Whether a sync batch is running",
		}),
	}
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SyncStarted implements sync.Observer.
func (m *Metrics) SyncStarted([]string) {
	m.SyncInProgress.Set(1)
}

// CalendarSynced implements sync.Observer.
func (m *Metrics) CalendarSynced(r sync.CalendarReport) {
	mode := "incremental"
	if r.FullSync {
		mode = "full"
	}
	result := "ok"
	if r.Failed() {
		result = "failed"
	}
	m.CalendarSyncs.WithLabelValues(mode, result).Inc()
	m.EventsUpserted.Add(float64(r.EventsUpserted))
	m.EventsDeleted.Add(float64(r.EventsDeletedMarked))
	m.AnnotationsWritten.Add(float64(r.AnnotationsWritten))
	if r.TokenExpired {
		m.TokenExpirations.Inc()
	}
	m.CalendarDuration.Observe(r.Duration.Seconds())
}

// SyncComplete implements sync.Observer.
func (m *Metrics) SyncComplete(r *sync.Report) {
	m.SyncInProgress.Set(0)
	switch {
	case r.LastSyncAt.IsZero():
		m.SyncRuns.WithLabelValues("aborted").Inc()
	case r.CalendarsFailed > 0:
		m.SyncRuns.WithLabelValues("partial").Inc()
		m.LastSync.Set(float64(r.LastSyncAt.Unix()))
	default:
		m.SyncRuns.WithLabelValues("ok").Inc()
		m.LastSync.Set(float64(r.LastSyncAt.Unix()))
	}
}
