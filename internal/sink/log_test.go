package sink

import (
	"context"
	"testing"

	"wisefido-vitaldrift/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogSink_FiredAlert(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSink(zap.New(core))

	require.NoError(t, s.Emit(context.Background(), firedResult()))

	alerts := logs.FilterMessage("ALERT: sustained vital sign drift").All()
	require.Len(t, alerts, 1)
	assert.Equal(t, zapcore.WarnLevel, alerts[0].Level)
	assert.Equal(t, int64(3), alerts[0].ContextMap()["heart_rate_streak"])

	assert.Equal(t, 1, logs.FilterMessage("ALERT: HR异常: short=100.0 long=70.0 abs=30.0 rel=0.43").Len())
	assert.Equal(t, 2, logs.FilterMessage("Signal comparison").Len())
	assert.Zero(t, logs.FilterMessage("No anomalies").Len())
}

func TestLogSink_NoAnomalies(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSink(zap.New(core))

	require.NoError(t, s.Emit(context.Background(), normalResult()))

	assert.Equal(t, 1, logs.FilterMessage("No anomalies").Len())
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestLogSink_Offline(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSink(zap.New(core))

	result := &models.CycleResult{DeviceID: "84F7035346E0", Offline: true}
	require.NoError(t, s.Emit(context.Background(), result))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "84F7035346E0", entry.ContextMap()["device_id"])
}

func TestLogSink_PartialData(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSink(zap.New(core))

	result := normalResult()
	result.HeartRate.Verdict = models.DeviationVerdict{Verdict: models.VerdictInsufficientData}
	result.HeartRate.LongWindow = nil
	result.Respiration.Verdict = models.DeviationVerdict{Verdict: models.VerdictNoRecentData}
	require.NoError(t, s.Emit(context.Background(), result))

	assert.Equal(t, 1, logs.FilterMessage("Insufficient data for signal").Len())
	assert.Equal(t, 1, logs.FilterMessage("No recent data for signal, skipping").Len())
}
