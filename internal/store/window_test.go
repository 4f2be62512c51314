package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimedMovingAverage_OverlappingWindows(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Time: base.Add(1 * time.Minute), Value: 60},
		{Time: base.Add(6 * time.Minute), Value: 70},
		{Time: base.Add(11 * time.Minute), Value: 80},
	}

	// every=5m, period=10m:
	//   stop 00:05 -> [60]        = 60
	//   stop 00:10 -> [60,70]     = 65
	//   stop 00:15 -> [70,80]     = 75
	//   stop 00:20 -> [80]        = 80
	got := TimedMovingAverage(points, 5*time.Minute, 10*time.Minute)
	assert.Equal(t, []float64{60, 65, 75, 80}, got)
}

func TestTimedMovingAverage_WindowBoundaries(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// 恰好落在 00:05 的点属于终点 00:10 和 00:15 的窗口，不属于 00:05
	points := []Point{{Time: base.Add(5 * time.Minute), Value: 50}}

	got := TimedMovingAverage(points, 5*time.Minute, 10*time.Minute)
	assert.Equal(t, []float64{50, 50}, got)
}

func TestTimedMovingAverage_SkipsUnusableSamples(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Time: base.Add(time.Minute), Value: 0},
		{Time: base.Add(2 * time.Minute), Value: 64},
	}

	got := TimedMovingAverage(points, 5*time.Minute, 5*time.Minute)
	assert.Equal(t, []float64{64}, got)
}

func TestTimedMovingAverage_Empty(t *testing.T) {
	assert.Empty(t, TimedMovingAverage(nil, 5*time.Minute, 10*time.Minute))
	assert.Empty(t, TimedMovingAverage([]Point{{Time: time.Now(), Value: 1}}, 0, time.Minute))
}
