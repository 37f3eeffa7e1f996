package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	jobRuns        *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	predictions    *prometheus.CounterVec
	coverage       *prometheus.GaugeVec
	psi            *prometheus.GaugeVec
	retrainSignals *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		jobRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "impactradar_job_runs_total",
				Help: "Total number of background job runs by outcome",
			},
			[]string{"job", "status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "impactradar_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		predictions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "impactradar_predictions_total",
				Help: "Total number of interval predictions served",
			},
			[]string{"model", "horizon"},
		),
		coverage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "impactradar_empirical_coverage",
				Help: "Last evaluated empirical interval coverage",
			},
			[]string{"horizon", "level"},
		),
		psi: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "impactradar_feature_psi",
				Help: "Population Stability Index per monitored feature",
			},
			[]string{"model", "feature"},
		),
		retrainSignals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "impactradar_retrain_signals_total",
				Help: "Retrain recommendations issued by priority",
			},
			[]string{"model", "priority"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "impactradar_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordJobRun records a background job completion.
func (r *Recorder) RecordJobRun(job, status string) {
	r.jobRuns.WithLabelValues(job, status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordPrediction records one served prediction.
func (r *Recorder) RecordPrediction(model, horizon string) {
	r.predictions.WithLabelValues(model, horizon).Inc()
}

// RecordCoverage records the last empirical coverage evaluation.
func (r *Recorder) RecordCoverage(horizon string, level, empirical float64) {
	r.coverage.WithLabelValues(horizon, formatLevel(level)).Set(empirical)
}

// RecordPSI records drift of one monitored feature.
func (r *Recorder) RecordPSI(model, feature string, psi float64) {
	r.psi.WithLabelValues(model, feature).Set(psi)
}

// RecordRetrainSignal records an issued retrain recommendation.
func (r *Recorder) RecordRetrainSignal(model, priority string) {
	r.retrainSignals.WithLabelValues(model, priority).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func formatLevel(level float64) string {
	return strconv.FormatFloat(level, 'f', 2, 64)
}
