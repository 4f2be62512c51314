// Package metrics 检测周期的 Prometheus 指标。
//
//   - vitaldrift_cycles_total{device_id,outcome}         outcome: evaluated | offline | failed
//   - vitaldrift_verdicts_total{device_id,signal,verdict}
//   - vitaldrift_alerts_total{device_id}
//   - vitaldrift_hysteresis_counter{device_id,signal}
//   - vitaldrift_cycle_duration_seconds
package metrics

import (
	"context"

	"wisefido-vitaldrift/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "vitaldrift"

const (
	OutcomeEvaluated = "evaluated"
	OutcomeOffline   = "offline"
	OutcomeFailed    = "failed"
)

// Recorder 记录周期结果（实现 sink.Sink 与 consumer.FailureObserver）
type Recorder struct {
	cyclesTotal       *prometheus.CounterVec
	verdictsTotal     *prometheus.CounterVec
	alertsTotal       *prometheus.CounterVec
	hysteresisCounter *prometheus.GaugeVec
	cycleDuration     prometheus.Histogram
}

// NewRecorder 在 reg 上注册指标；生产环境传 prometheus.DefaultRegisterer
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of detection cycles by device and outcome.",
			},
			[]string{"device_id", "outcome"},
		),
		verdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verdicts_total",
				Help:      "Per-signal deviation verdicts.",
			},
			[]string{"device_id", "signal", "verdict"},
		),
		alertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Composite drift alerts fired.",
			},
			[]string{"device_id"},
		),
		hysteresisCounter: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hysteresis_counter",
				Help:      "Consecutive anomalous cycles after the last commit.",
			},
			[]string{"device_id", "signal"},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Detection cycle duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
		),
	}
}

func (r *Recorder) Emit(_ context.Context, result *models.CycleResult) error {
	r.cycleDuration.Observe(result.Duration.Seconds())

	if result.Offline {
		r.cyclesTotal.WithLabelValues(result.DeviceID, OutcomeOffline).Inc()
		return nil
	}

	r.cyclesTotal.WithLabelValues(result.DeviceID, OutcomeEvaluated).Inc()
	for _, sig := range models.Signals {
		o := result.Outcome(sig)
		r.verdictsTotal.WithLabelValues(result.DeviceID, string(sig), string(o.Verdict.Verdict)).Inc()
		r.hysteresisCounter.WithLabelValues(result.DeviceID, string(sig)).Set(float64(o.Counter))
	}
	if result.AlertFired {
		r.alertsTotal.WithLabelValues(result.DeviceID).Inc()
	}
	return nil
}

// ObserveFailure 记录失败周期（存储不可用、状态读写失败等）
func (r *Recorder) ObserveFailure(deviceID string, _ error) {
	r.cyclesTotal.WithLabelValues(deviceID, OutcomeFailed).Inc()
}
