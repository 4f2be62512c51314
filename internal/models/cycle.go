package models

import "time"

// HysteresisState 单个信号的连续异常计数
type HysteresisState struct {
	Counter int `json:"counter"`
	Trigger int `json:"trigger"`
}

// DeviceState 单个设备的计数对，按设备隔离
type DeviceState struct {
	HeartRate   HysteresisState `json:"heart_rate"`
	Respiration HysteresisState `json:"respiration"`
}

// NewDeviceState 初始状态：计数均为 0
func NewDeviceState(trigger int) DeviceState {
	return DeviceState{
		HeartRate:   HysteresisState{Trigger: trigger},
		Respiration: HysteresisState{Trigger: trigger},
	}
}

// Get 按信号读取状态
func (d DeviceState) Get(s Signal) HysteresisState {
	if s == SignalRespiration {
		return d.Respiration
	}
	return d.HeartRate
}

// Set 按信号写入状态
func (d *DeviceState) Set(s Signal, st HysteresisState) {
	if s == SignalRespiration {
		d.Respiration = st
		return
	}
	d.HeartRate = st
}

// Counters 持久化布局 {signal -> counter}
func (d DeviceState) Counters() map[Signal]int {
	return map[Signal]int{
		SignalHeartRate:   d.HeartRate.Counter,
		SignalRespiration: d.Respiration.Counter,
	}
}

// SignalOutcome 单个信号在一个周期内的评估结果
type SignalOutcome struct {
	Signal      Signal           `json:"signal"`
	Verdict     DeviationVerdict `json:"verdict"`
	ShortWindow *float64         `json:"short_window,omitempty"` // 截尾均值
	LongWindow  *float64         `json:"long_window,omitempty"`  // 长窗口均值
	SeriesLen   int              `json:"series_len"`
	Counter     int              `json:"counter"` // 提交后的计数
	Streak      int              `json:"streak"`  // 重置前的计数（报警触发时用于展示）
}

// CycleResult 一次检测周期的完整结果
type CycleResult struct {
	DeviceID    string        `json:"device_id"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
	Duration    time.Duration `json:"-"`
	Offline     bool          `json:"offline"`
	HeartRate   SignalOutcome `json:"heart_rate"`
	Respiration SignalOutcome `json:"respiration"`
	AlertFired  bool          `json:"alert_fired"`
	TriggeredBy []Signal      `json:"triggered_by,omitempty"`
}

// Outcome 按信号读取结果
func (r *CycleResult) Outcome(s Signal) *SignalOutcome {
	if s == SignalRespiration {
		return &r.Respiration
	}
	return &r.HeartRate
}

// Anomalies 本周期判定为异常的信号
func (r *CycleResult) Anomalies() []SignalOutcome {
	var out []SignalOutcome
	for _, s := range Signals {
		if o := r.Outcome(s); o.Verdict.Verdict == VerdictAnomalous {
			out = append(out, *o)
		}
	}
	return out
}
