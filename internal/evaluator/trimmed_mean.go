package evaluator

import "sort"

// DefaultTrimWindow 截尾均值默认取中间 10 个值
const DefaultTrimWindow = 10

// TrimmedMean 对序列排序后取居中的 n 个值求平均，丢弃两端极值。
// 空序列返回 nil；长度不超过 n（或 n <= 0）时返回全部值的平均。输入不会被修改。
func TrimmedMean(series []float64, n int) *float64 {
	if len(series) == 0 {
		return nil
	}

	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted)

	window := sorted
	if n > 0 && len(sorted) > n {
		start := (len(sorted) - n) / 2
		window = sorted[start : start+n]
	}

	var sum float64
	for _, v := range window {
		sum += v
	}
	mean := sum / float64(len(window))
	return &mean
}
