package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Response outcomes recorded by StreamMetrics.ResponseOutcome.
const (
	OutcomeApplied   = "applied"
	OutcomeStale     = "stale"
	OutcomeEmpty     = "empty"
	OutcomeMalformed = "malformed"
	OutcomeDetached  = "detached"
)

// Session end reasons recorded by StreamMetrics.SessionsEnded.
const (
	EndReasonReconfigured = "reconfigured"
	EndReasonDisposed     = "disposed"
	EndReasonDialFailed   = "dial_failed"
	EndReasonRemoteClosed = "remote_closed"
)

// StreamMetrics holds the counters maintained by the stream controller.
type StreamMetrics struct {
	registry *prometheus.Registry

	RequestsSent    prometheus.Counter
	ResponseOutcome *prometheus.CounterVec
	PointsAppended  prometheus.Counter
	SessionsStarted prometheus.Counter
	SessionsEnded   *prometheus.CounterVec
	SeriesLength    prometheus.Gauge
}

// NewStreamMetrics creates the metrics on a private registry.
func NewStreamMetrics() *StreamMetrics {
	m := &StreamMetrics{
		registry: prometheus.NewRegistry(),

		RequestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chartfeed",
			Subsystem: "stream",
			Name:      "requests_sent_total",
			Help:      "Chunk requests written to the data source",
		}),
		ResponseOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartfeed",
			Subsystem: "stream",
			Name:      "responses_total",
			Help:      "Responses received, by outcome (applied, stale, empty, malformed, detached)",
		}, []string{"outcome"}),
		PointsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chartfeed",
			Subsystem: "series",
			Name:      "points_appended_total",
			Help:      "Points appended to the series across all sessions",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chartfeed",
			Subsystem: "stream",
			Name:      "sessions_started_total",
			Help:      "Sessions started by Configure",
		}),
		SessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartfeed",
			Subsystem: "stream",
			Name:      "sessions_ended_total",
			Help:      "Sessions ended, by reason",
		}, []string{"reason"}),
		SeriesLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chartfeed",
			Subsystem: "series",
			Name:      "length",
			Help:      "Points currently held by the series",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.RequestsSent,
		m.ResponseOutcome,
		m.PointsAppended,
		m.SessionsStarted,
		m.SessionsEnded,
		m.SeriesLength,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *StreamMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *StreamMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}
