package store

import (
	"sort"
	"time"
)

// Point 原始采样点
type Point struct {
	Time  time.Time
	Value float64
}

// TimedMovingAverage 按步长 every 对齐窗口终点，对每个 [stop-period, stop) 窗口求均值。
// 空窗口不输出，均值为 0 的窗口丢弃；结果按时间升序。
func TimedMovingAverage(points []Point, every, period time.Duration) []float64 {
	if every <= 0 || period <= 0 || len(points) == 0 {
		return nil
	}

	type acc struct {
		sum   float64
		count int
	}
	windows := make(map[int64]*acc)

	step := every.Nanoseconds()
	span := period.Nanoseconds()
	for _, p := range points {
		if !usable(p.Value) {
			continue
		}
		t := p.Time.UnixNano()
		// 第一个严格大于 t 的对齐终点
		first := floorDiv(t, step)*step + step
		for stop := first; stop <= t+span; stop += step {
			a := windows[stop]
			if a == nil {
				a = &acc{}
				windows[stop] = a
			}
			a.sum += p.Value
			a.count++
		}
	}

	stops := make([]int64, 0, len(windows))
	for stop := range windows {
		stops = append(stops, stop)
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i] < stops[j] })

	out := make([]float64, 0, len(stops))
	for _, stop := range stops {
		a := windows[stop]
		mean := a.sum / float64(a.count)
		if mean == 0 {
			continue
		}
		out = append(out, mean)
	}
	return out
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
