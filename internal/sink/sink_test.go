package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisefido-vitaldrift/internal/models"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 {
	return &v
}

// firedResult 心率连续 3 次异常后触发的周期结果
func firedResult() *models.CycleResult {
	return &models.CycleResult{
		DeviceID:    "84F7035346E0",
		EvaluatedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		HeartRate: models.SignalOutcome{
			Signal:      models.SignalHeartRate,
			Verdict:     models.DeviationVerdict{Verdict: models.VerdictAnomalous, AbsDiff: 30, RelDiff: 30.0 / 70.0},
			ShortWindow: floatPtr(100),
			LongWindow:  floatPtr(70),
			SeriesLen:   12,
			Counter:     0,
			Streak:      3,
		},
		Respiration: models.SignalOutcome{
			Signal:      models.SignalRespiration,
			Verdict:     models.DeviationVerdict{Verdict: models.VerdictNormal},
			ShortWindow: floatPtr(16),
			LongWindow:  floatPtr(16),
			SeriesLen:   12,
		},
		AlertFired:  true,
		TriggeredBy: []models.Signal{models.SignalHeartRate},
	}
}

func normalResult() *models.CycleResult {
	r := firedResult()
	r.AlertFired = false
	r.TriggeredBy = nil
	r.HeartRate.Verdict = models.DeviationVerdict{Verdict: models.VerdictNormal}
	r.HeartRate.Streak = 0
	return r
}

type sinkFunc func(ctx context.Context, result *models.CycleResult) error

func (f sinkFunc) Emit(ctx context.Context, result *models.CycleResult) error {
	return f(ctx, result)
}

func TestFanout_CallsEverySink(t *testing.T) {
	errFirst := errors.New("first failed")
	var calls int
	fanout := Fanout{
		sinkFunc(func(context.Context, *models.CycleResult) error { calls++; return errFirst }),
		sinkFunc(func(context.Context, *models.CycleResult) error { calls++; return nil }),
	}

	err := fanout.Emit(context.Background(), firedResult())
	assert.ErrorIs(t, err, errFirst)
	assert.Equal(t, 2, calls)

	assert.NoError(t, Fanout{}.Emit(context.Background(), firedResult()))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "HR异常: short=100.0 long=70.0 abs=30.0 rel=0.43", Describe(firedResult().HeartRate))
}
