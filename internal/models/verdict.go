package models

// Verdict 单个信号的偏移判定结果
type Verdict string

const (
	VerdictNormal           Verdict = "Normal"
	VerdictAnomalous        Verdict = "Anomalous"
	VerdictInsufficientData Verdict = "InsufficientData" // 短窗口或长窗口聚合值缺失
	VerdictNoRecentData     Verdict = "NoRecentData"     // 序列为空且长窗口无数据（离线）
)

// DeviationVerdict 判定结果及其依据
type DeviationVerdict struct {
	Verdict Verdict `json:"verdict"`
	AbsDiff float64 `json:"abs_diff"`
	RelDiff float64 `json:"rel_diff"`
}

// Thresholds 单个信号的偏移阈值
type Thresholds struct {
	Abs float64 `json:"abs"` // 绝对偏差阈值（bpm / rpm）
	Rel float64 `json:"rel"` // 相对偏差阈值（比例）
}
