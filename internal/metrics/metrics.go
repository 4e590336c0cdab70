// Package metrics exposes the system's Prometheus metrics: one registry
// covering anomaly detection, quality scoring, the paper-trading engine,
// and the alert pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics collects and exposes this system's Prometheus metrics.
type Metrics struct {
	mu       sync.RWMutex
	registry *prometheus.Registry

	// Detector metrics
	AnomaliesDetected *prometheus.CounterVec
	DetectorLatency   *prometheus.HistogramVec
	DetectorErrors    *prometheus.CounterVec
	SeverityObserved  *prometheus.HistogramVec

	// Quality scorer metrics
	QualityScore   *prometheus.HistogramVec
	QualityBlocks  *prometheus.CounterVec
	ActionableRate *prometheus.CounterVec

	// Paper trading metrics
	PositionsOpened *prometheus.CounterVec
	PositionsClosed *prometheus.CounterVec
	OpenPositions   prometheus.Gauge
	PaperBalance    prometheus.Gauge
	PaperDrawdown   prometheus.Gauge
	PaperPaused     prometheus.Gauge
	LossStreak      prometheus.Gauge

	// Alert pipeline metrics
	AlertsDispatched *prometheus.CounterVec
	AlertsDropped    *prometheus.CounterVec
	TransportErrors  prometheus.Counter

	// Market ingestion metrics
	ActiveMarkets      prometheus.Gauge
	MarketFetchLatency *prometheus.HistogramVec
	MarketFetchErrors  *prometheus.CounterVec

	// Orchestrator metrics
	StageLatency     *prometheus.HistogramVec
	WorkflowRunsTotal *prometheus.CounterVec
}

// New creates a metrics collector backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		AnomaliesDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_anomalies_detected_total",
				Help: "Total number of anomalies detected, by type",
			},
			[]string{"type"},
		),
		DetectorLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_detector_latency_seconds",
				Help:    "Time spent in a single detector's Process call",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
			},
			[]string{"detector"},
		),
		DetectorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_detector_errors_total",
				Help: "Total number of detector processing errors",
			},
			[]string{"detector"},
		),
		SeverityObserved: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_anomaly_severity",
				Help:    "Severity of detected anomalies (0-1)",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"type"},
		),

		QualityScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_quality_score",
				Help:    "Quality scorer output (0-100)",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
			[]string{"market_type"},
		),
		QualityBlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_quality_blocks_total",
				Help: "Total number of hard-block reasons triggered by the quality scorer",
			},
			[]string{"reason"},
		),
		ActionableRate: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_quality_actionable_total",
				Help: "Total scored anomalies, split by whether they were actionable",
			},
			[]string{"actionable"},
		),

		PositionsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_paper_positions_opened_total",
				Help: "Total paper positions opened, by direction",
			},
			[]string{"direction"},
		),
		PositionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_paper_positions_closed_total",
				Help: "Total paper positions closed, by close reason",
			},
			[]string{"reason"},
		),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_paper_open_positions",
			Help: "Current number of open paper positions",
		}),
		PaperBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_paper_balance_usd",
			Help: "Current paper trading balance in USD",
		}),
		PaperDrawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_paper_drawdown_pct",
			Help: "Current paper trading drawdown from starting balance",
		}),
		PaperPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_paper_paused",
			Help: "Whether the paper trading engine is currently paused (1=yes, 0=no)",
		}),
		LossStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_paper_loss_streak",
			Help: "Current consecutive paper-trade loss streak",
		}),

		AlertsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_alerts_dispatched_total",
				Help: "Total alerts successfully sent, by anomaly type",
			},
			[]string{"type"},
		),
		AlertsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_alerts_dropped_total",
				Help: "Total alerts dropped before transport, by drop reason",
			},
			[]string{"reason"},
		),
		TransportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_transport_errors_total",
			Help: "Total errors returned by the outbound alert transport",
		}),

		ActiveMarkets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_active_markets",
			Help: "Number of markets currently being tracked",
		}),
		MarketFetchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_market_fetch_latency_seconds",
				Help:    "Latency of external market/trade/order-book fetches",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"source"},
		),
		MarketFetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_market_fetch_errors_total",
				Help: "Total errors fetching from an external market data source",
			},
			[]string{"source"},
		),

		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_stage_latency_seconds",
				Help:    "Orchestrator pipeline stage latency",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"stage"},
		),
		WorkflowRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_pipeline_runs_total",
				Help: "Total orchestrator pipeline cycles, by outcome",
			},
			[]string{"status"},
		),
	}

	m.registerAll()
	return m
}

func (m *Metrics) registerAll() {
	m.registry.MustRegister(
		m.AnomaliesDetected,
		m.DetectorLatency,
		m.DetectorErrors,
		m.SeverityObserved,
		m.QualityScore,
		m.QualityBlocks,
		m.ActionableRate,
		m.PositionsOpened,
		m.PositionsClosed,
		m.OpenPositions,
		m.PaperBalance,
		m.PaperDrawdown,
		m.PaperPaused,
		m.LossStreak,
		m.AlertsDispatched,
		m.AlertsDropped,
		m.TransportErrors,
		m.ActiveMarkets,
		m.MarketFetchLatency,
		m.MarketFetchErrors,
		m.StageLatency,
		m.WorkflowRunsTotal,
	)
}

// Registry returns the Prometheus registry backing this collector, for
// wiring into an HTTP /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAnomaly records a detected anomaly and its severity.
func (m *Metrics) RecordAnomaly(anomalyType string, severity float64) {
	m.AnomaliesDetected.WithLabelValues(anomalyType).Inc()
	m.SeverityObserved.WithLabelValues(anomalyType).Observe(severity)
}

// RecordDetector records one detector invocation's latency and outcome.
func (m *Metrics) RecordDetector(detector string, latencySec float64, err error) {
	m.DetectorLatency.WithLabelValues(detector).Observe(latencySec)
	if err != nil {
		m.DetectorErrors.WithLabelValues(detector).Inc()
	}
}

// RecordQualityScore records a quality scorer result.
func (m *Metrics) RecordQualityScore(marketType string, score int, actionable bool, blocks []string) {
	m.QualityScore.WithLabelValues(marketType).Observe(float64(score))
	if actionable {
		m.ActionableRate.WithLabelValues("true").Inc()
	} else {
		m.ActionableRate.WithLabelValues("false").Inc()
	}
	for _, reason := range blocks {
		m.QualityBlocks.WithLabelValues(reason).Inc()
	}
}

// RecordPositionOpened records a new paper position.
func (m *Metrics) RecordPositionOpened(direction string) {
	m.PositionsOpened.WithLabelValues(direction).Inc()
}

// RecordPositionClosed records a closed paper position.
func (m *Metrics) RecordPositionClosed(reason string) {
	m.PositionsClosed.WithLabelValues(reason).Inc()
}

// UpdatePaperState pushes the paper engine's current gauges.
func (m *Metrics) UpdatePaperState(balance decimal.Decimal, drawdownPct float64, openCount, lossStreak int, paused bool) {
	f, _ := balance.Float64()
	m.PaperBalance.Set(f)
	m.PaperDrawdown.Set(drawdownPct)
	m.OpenPositions.Set(float64(openCount))
	m.LossStreak.Set(float64(lossStreak))
	if paused {
		m.PaperPaused.Set(1)
	} else {
		m.PaperPaused.Set(0)
	}
}

// RecordAlertDispatched records a successfully sent alert.
func (m *Metrics) RecordAlertDispatched(anomalyType string) {
	m.AlertsDispatched.WithLabelValues(anomalyType).Inc()
}

// RecordAlertDropped records an alert dropped before transport, tagged by
// which gate dropped it (the orchestrator uses "not_actionable" and "gate").
func (m *Metrics) RecordAlertDropped(reason string) {
	m.AlertsDropped.WithLabelValues(reason).Inc()
}

// RecordTransportError records a failed Transport.Send call.
func (m *Metrics) RecordTransportError() {
	m.TransportErrors.Inc()
}

// UpdateActiveMarkets sets the active-market gauge.
func (m *Metrics) UpdateActiveMarkets(count int) {
	m.ActiveMarkets.Set(float64(count))
}

// RecordMarketFetch records one external fetch's latency and outcome.
func (m *Metrics) RecordMarketFetch(source string, latencySec float64, err error) {
	m.MarketFetchLatency.WithLabelValues(source).Observe(latencySec)
	if err != nil {
		m.MarketFetchErrors.WithLabelValues(source).Inc()
	}
}

// RecordStage records an orchestrator pipeline stage's latency.
func (m *Metrics) RecordStage(stage string, latencySec float64) {
	m.StageLatency.WithLabelValues(stage).Observe(latencySec)
}

// RecordPipelineRun records one full orchestrator cycle's outcome.
func (m *Metrics) RecordPipelineRun(status string) {
	m.WorkflowRunsTotal.WithLabelValues(status).Inc()
}

var defaultMetrics *Metrics
var once sync.Once

// Default returns the process-wide default Metrics instance.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}
