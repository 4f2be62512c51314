package store

import (
	"fmt"
	"strings"
	"time"
)

// fluxQuery 组装 Flux 查询的公共前缀
type fluxQuery struct {
	Bucket      string
	Measurement string
	DeviceID    string
	Field       string
}

func (q fluxQuery) head(rangeStart time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)\n", q.Bucket)
	fmt.Fprintf(&b, "  |> range(start: -%s)\n", fluxDuration(rangeStart))
	if q.Measurement != "" {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %q)\n", q.Measurement)
	}
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"device_id\"] == %q)\n", q.DeviceID)
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r[\"_field\"] == %q)\n", q.Field)
	b.WriteString("  |> filter(fn: (r) => r._value != 0)\n")
	return b.String()
}

// seriesFlux 回看 Lookback 范围内按 Every/Period 计算的移动平均序列
func seriesFlux(q fluxQuery, w WindowSpec) string {
	return q.head(w.Lookback) +
		fmt.Sprintf("  |> timedMovingAverage(every: %s, period: %s)\n", fluxDuration(w.Every), fluxDuration(w.Period)) +
		"  |> filter(fn: (r) => r._value != 0)"
}

// scalarFlux 最近 PointWindow 范围内的整体均值
func scalarFlux(q fluxQuery, w WindowSpec) string {
	return q.head(w.PointWindow) + "  |> mean()"
}

// fluxDuration 将 time.Duration 转为 Flux duration 字面量（如 12h、5m、90s）
func fluxDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}
