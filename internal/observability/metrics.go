// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Ingest metrics
	EventsProcessed  *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	StreamReconnects prometheus.Counter

	// Window metrics
	WindowsOpened    prometheus.Counter
	WindowsEvaluated prometheus.Counter
	GatesPassed      prometheus.Counter
	ThrottleRejected prometheus.Counter
	LiveWindows      prometheus.Gauge

	// Trade metrics
	BuysSubmitted  prometheus.Counter
	BuysConfirmed  prometheus.Counter
	SellsSubmitted *prometheus.CounterVec
	SellsConfirmed prometheus.Counter
	SubmitLatency  *prometheus.HistogramVec
	OpenPositions  prometheus.Gauge

	// Journal metrics
	JournalErrors prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pump_sniper"
	}

	return &Metrics{
		EventsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_processed_total",
			Help:      "Total number of stream events processed by kind",
		}, []string{"kind"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_dropped_total",
			Help:      "Total number of unrecognized stream messages dropped",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "stream_reconnects_total",
			Help:      "Total number of stream reconnections",
		}),
		WindowsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "windows_opened_total",
			Help:      "Total number of observation windows opened",
		}),
		WindowsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "windows_evaluated_total",
			Help:      "Total number of observation windows evaluated",
		}),
		GatesPassed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "gates_passed_total",
			Help:      "Total number of windows that passed all hard gates and the score filter",
		}),
		ThrottleRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "throttle_rejected_total",
			Help:      "Total number of qualifying buys rejected by the risk throttle",
		}),
		LiveWindows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "live_windows",
			Help:      "Number of currently live observation windows",
		}),
		BuysSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "buys_submitted_total",
			Help:      "Total number of buy submissions started",
		}),
		BuysConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "buys_confirmed_total",
			Help:      "Total number of buys with a confirmation signature",
		}),
		SellsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "sells_submitted_total",
			Help:      "Total number of sell submissions started by exit reason",
		}, []string{"reason"}),
		SellsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "sells_confirmed_total",
			Help:      "Total number of sells with a confirmation signature",
		}),
		SubmitLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "submit_latency_seconds",
			Help:      "Trade submission latency from decision to result",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"side"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trade",
			Name:      "open_positions",
			Help:      "Number of currently tracked positions",
		}),
		JournalErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "errors_total",
			Help:      "Total number of journal write failures",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
