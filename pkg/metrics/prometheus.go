package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksTotal    prometheus.Counter
	tickSeconds   prometheus.Histogram
	triggersTotal *prometheus.CounterVec
	rejectedTotal prometheus.Counter
	roundsTotal   *prometheus.CounterVec
	roundSeconds  *prometheus.HistogramVec
	jobRunsTotal  *prometheus.CounterVec
	jobSeconds    *prometheus.HistogramVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	published     *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	running       prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "markwatch_monitor_ticks_total",
				Help: "Total number of market monitor ticks evaluated",
			},
		),
		tickSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "markwatch_monitor_tick_seconds",
				Help:    "Duration of one monitor tick evaluation",
				Buckets: prometheus.DefBuckets,
			},
		),
		triggersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markwatch_triggers_total",
				Help: "Analysis triggers by reason",
			},
			[]string{"reason"},
		),
		rejectedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "markwatch_round_requests_rejected_total",
				Help: "Round requests dropped because a round was already in flight",
			},
		),
		roundsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markwatch_rounds_total",
				Help: "Completed analysis rounds by status",
			},
			[]string{"status"},
		),
		roundSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "markwatch_round_duration_seconds",
				Help:    "Duration of analysis rounds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"status"},
		),
		jobRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markwatch_job_runs_total",
				Help: "Interval job invocations by job and status",
			},
			[]string{"job", "status"},
		),
		jobSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "markwatch_job_duration_seconds",
				Help:    "Duration of interval job invocations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markwatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "markwatch_last_mark_price",
				Help: "Last observed mark price for a symbol",
			},
			[]string{"symbol"},
		),
		published: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markwatch_published_total",
				Help: "Messages published to a topic",
			},
			[]string{"topic"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "markwatch_operation_duration_seconds",
				Help:    "Duration of named operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		running: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "markwatch_scheduler_running",
				Help: "1 when the scheduler is running, 0 when stopped",
			},
		),
	}
}

// RecordTick records one monitor tick and its duration.
func (r *Recorder) RecordTick(seconds float64) {
	r.ticksTotal.Inc()
	r.tickSeconds.Observe(seconds)
}

// RecordTrigger records an analysis trigger by reason.
func (r *Recorder) RecordTrigger(reason string) {
	r.triggersTotal.WithLabelValues(reason).Inc()
}

// RecordRoundRejected records a round request dropped by the single-flight guard.
func (r *Recorder) RecordRoundRejected() {
	r.rejectedTotal.Inc()
}

// RecordRound records a finished analysis round.
func (r *Recorder) RecordRound(status string, seconds float64) {
	r.roundsTotal.WithLabelValues(status).Inc()
	r.roundSeconds.WithLabelValues(status).Observe(seconds)
}

// RecordJobRun records an interval job invocation.
func (r *Recorder) RecordJobRun(name, status string, seconds float64) {
	r.jobRunsTotal.WithLabelValues(name, status).Inc()
	r.jobSeconds.WithLabelValues(name).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last mark price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordPublished records messages published to a topic.
func (r *Recorder) RecordPublished(topic string, count int) {
	r.published.WithLabelValues(topic).Add(float64(count))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetRunning reflects the scheduler lifecycle state.
func (r *Recorder) SetRunning(running bool) {
	if running {
		r.running.Set(1)
	} else {
		r.running.Set(0)
	}
}
