package metrics

import (
	"github.com/newthinker/cyclewatch/internal/signal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Engine metrics
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	providerRequests   *prometheus.CounterVec
	scheduledRuns      *prometheus.CounterVec
	alertsFired        *prometheus.CounterVec
	latestValue        *prometheus.GaugeVec
	latestSentiment    *prometheus.GaugeVec
	accumulation       *prometheus.GaugeVec
	distribution       *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Engine metrics
	r.evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclewatch_evaluations_total",
			Help: "Total number of cycle evaluations",
		},
		[]string{"asset", "status"},
	)
	r.evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cyclewatch_evaluation_duration_seconds",
			Help:    "Cycle evaluation duration in seconds, data fetching included",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	r.providerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclewatch_provider_requests_total",
			Help: "Total number of requests to external data providers",
		},
		[]string{"provider", "outcome"},
	)
	r.scheduledRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclewatch_scheduled_runs_total",
			Help: "Total number of scheduled evaluation runs",
		},
		[]string{"status"},
	)
	r.alertsFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cyclewatch_alerts_fired_total",
			Help: "Total number of fired alert rules",
		},
		[]string{"rule", "severity"},
	)
	r.latestValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclewatch_latest_value",
			Help: "Latest evaluated value per asset: price, rolling_mean, band or volume_mean",
		},
		[]string{"asset", "currency", "series"},
	)
	r.latestSentiment = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclewatch_latest_sentiment",
			Help: "Latest sentiment score per asset, absent when not provided",
		},
		[]string{"asset"},
	)
	r.accumulation = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclewatch_accumulation",
			Help: "1 when the latest price is below the rolling mean",
		},
		[]string{"asset"},
	)
	r.distribution = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cyclewatch_distribution",
			Help: "1 when the latest price is above the band",
		},
		[]string{"asset"},
	)

	reg.MustRegister(r.evaluationsTotal)
	reg.MustRegister(r.evaluationDuration)
	reg.MustRegister(r.providerRequests)
	reg.MustRegister(r.scheduledRuns)
	reg.MustRegister(r.alertsFired)
	reg.MustRegister(r.latestValue)
	reg.MustRegister(r.latestSentiment)
	reg.MustRegister(r.accumulation)
	reg.MustRegister(r.distribution)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordEvaluation records a finished evaluation with status "ok" or an error code.
func (r *Registry) RecordEvaluation(asset, status string, duration float64) {
	r.evaluationsTotal.WithLabelValues(asset, status).Inc()
	r.evaluationDuration.Observe(duration)
}

// RecordResult publishes the latest record values as gauges.
func (r *Registry) RecordResult(record signal.AnalysisRecord) {
	r.latestValue.WithLabelValues(record.Asset, record.Currency, "price").Set(record.CurrentPrice)
	r.latestValue.WithLabelValues(record.Asset, record.Currency, "rolling_mean").Set(record.RollingMean)
	r.latestValue.WithLabelValues(record.Asset, record.Currency, "band").Set(record.Band)
	r.latestValue.WithLabelValues(record.Asset, record.Currency, "volume_mean").Set(record.VolumeMean)

	if v, ok := record.Sentiment.Value(); ok {
		r.latestSentiment.WithLabelValues(record.Asset).Set(v)
	} else {
		r.latestSentiment.DeleteLabelValues(record.Asset)
	}

	r.accumulation.WithLabelValues(record.Asset).Set(boolToFloat(record.CurrentPrice < record.RollingMean))
	r.distribution.WithLabelValues(record.Asset).Set(boolToFloat(record.CurrentPrice > record.Band))
}

// ObserveProviderRequest counts a provider request by outcome.
func (r *Registry) ObserveProviderRequest(provider, outcome string) {
	r.providerRequests.WithLabelValues(provider, outcome).Inc()
}

// RecordScheduledRun records a scheduled run with status "ok" or "error".
func (r *Registry) RecordScheduledRun(status string) {
	r.scheduledRuns.WithLabelValues(status).Inc()
}

// RecordAlert counts a fired alert rule.
func (r *Registry) RecordAlert(rule, severity string) {
	r.alertsFired.WithLabelValues(rule, severity).Inc()
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
