package models

// Signal 生命体征信号
type Signal string

const (
	SignalHeartRate   Signal = "heart_rate"
	SignalRespiration Signal = "respiration"
)

// Signals 评估顺序固定：心率、呼吸
var Signals = []Signal{SignalHeartRate, SignalRespiration}

// Short 日志/报警文本中使用的缩写
func (s Signal) Short() string {
	switch s {
	case SignalHeartRate:
		return "HR"
	case SignalRespiration:
		return "RR"
	default:
		return string(s)
	}
}
