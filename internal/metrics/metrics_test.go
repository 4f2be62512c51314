package metrics

import (
	"context"
	"errors"
	"testing"

	"wisefido-vitaldrift/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Emit(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	ctx := context.Background()

	result := &models.CycleResult{
		DeviceID:    "dev-1",
		HeartRate:   models.SignalOutcome{Signal: models.SignalHeartRate, Verdict: models.DeviationVerdict{Verdict: models.VerdictAnomalous}, Counter: 2},
		Respiration: models.SignalOutcome{Signal: models.SignalRespiration, Verdict: models.DeviationVerdict{Verdict: models.VerdictNormal}},
	}
	require.NoError(t, r.Emit(ctx, result))

	result.AlertFired = true
	result.HeartRate.Counter = 0
	require.NoError(t, r.Emit(ctx, result))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cyclesTotal.WithLabelValues("dev-1", OutcomeEvaluated)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.verdictsTotal.WithLabelValues("dev-1", "heart_rate", "Anomalous")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.verdictsTotal.WithLabelValues("dev-1", "respiration", "Normal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.alertsTotal.WithLabelValues("dev-1")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.hysteresisCounter.WithLabelValues("dev-1", "heart_rate")))
}

func TestRecorder_OfflineAndFailure(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	require.NoError(t, r.Emit(context.Background(), &models.CycleResult{DeviceID: "dev-1", Offline: true}))
	r.ObserveFailure("dev-1", errors.New("store down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cyclesTotal.WithLabelValues("dev-1", OutcomeOffline)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cyclesTotal.WithLabelValues("dev-1", OutcomeFailed)))
	assert.Equal(t, 0, testutil.CollectAndCount(r.verdictsTotal))
}

func TestRecorder_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.ObserveFailure("dev-1", nil)

	n, err := testutil.GatherAndCount(reg, "vitaldrift_cycles_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
