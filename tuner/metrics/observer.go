// Package metrics exports tuning progress as Prometheus metrics through the
// tuner.Observer interface.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lambda-tuner/lambda-tuner/tuner"
)

const namespace = "lambda_tuner"

// Observer records session and measurement events. It is safe for
// concurrent use by the sessions of a batch.
type Observer struct {
	sessionsStarted  prometheus.Counter
	sessionsRunning  prometheus.Gauge
	sessionsFinished *prometheus.CounterVec
	restoreFailures  prometheus.Counter
	invocations      *prometheus.CounterVec
	measurements     *prometheus.CounterVec
	meanDuration     *prometheus.HistogramVec
	recommended      *prometheus.GaugeVec
}

var _ tuner.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them with reg.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of tuning sessions started.",
		}),
		sessionsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_running",
			Help:      "Number of tuning sessions currently running.",
		}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of tuning sessions finished, by final search phase.",
		}, []string{"phase"}),
		restoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restore_failures_total",
			Help:      "Total number of sessions that could not restore the original memory size.",
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of sampled invocations, by function and outcome.",
		}, []string{"function", "outcome"}),
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_total",
			Help:      "Total number of memory sizes measured, by function and usability.",
		}, []string{"function", "usable"}),
		meanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "measurement_mean_duration_milliseconds",
			Help:      "Mean execution duration of usable measurements.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"function"}),
		recommended: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recommended_memory_megabytes",
			Help:      "Recommended memory size of the last finished session per function.",
		}, []string{"function"}),
	}
	for _, c := range []prometheus.Collector{
		o.sessionsStarted, o.sessionsRunning, o.sessionsFinished, o.restoreFailures,
		o.invocations, o.measurements, o.meanDuration, o.recommended,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Observer) SessionStarted(sessionID string, fn tuner.FunctionInformation) {
	o.sessionsStarted.Inc()
	o.sessionsRunning.Inc()
}

func (o *Observer) MeasurementRecorded(sessionID string, m tuner.Measurement) {
	if m.SuccessCount > 0 {
		o.invocations.WithLabelValues(m.FunctionID, "success").Add(float64(m.SuccessCount))
	}
	for kind, n := range m.Failures {
		o.invocations.WithLabelValues(m.FunctionID, string(kind)).Add(float64(n))
	}
	if !m.Usable() {
		o.measurements.WithLabelValues(m.FunctionID, "false").Inc()
		return
	}
	o.measurements.WithLabelValues(m.FunctionID, "true").Inc()
	o.meanDuration.WithLabelValues(m.FunctionID).Observe(m.Duration.Mean)
}

func (o *Observer) SessionFinished(res *tuner.TuningResult, err error) {
	o.sessionsRunning.Dec()
	var rerr *tuner.RestoreError
	if errors.As(err, &rerr) {
		o.restoreFailures.Inc()
	}
	if res == nil {
		return
	}
	o.sessionsFinished.WithLabelValues(string(res.Phase)).Inc()
	if res.Recommended != nil {
		o.recommended.WithLabelValues(res.FunctionID).Set(float64(res.Recommended.Memory))
	}
}
