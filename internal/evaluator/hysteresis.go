package evaluator

import "wisefido-vitaldrift/internal/models"

// DefaultTriggerThreshold 任一信号连续 3 个周期异常即触发报警
const DefaultTriggerThreshold = 3

// Advance 异常则计数加一，其余判定一律归零
func Advance(state models.HysteresisState, verdict models.Verdict) models.HysteresisState {
	if verdict == models.VerdictAnomalous {
		state.Counter++
	} else {
		state.Counter = 0
	}
	return state
}

// CompositeAlert 任一信号计数达到触发阈值
func CompositeAlert(hr, rr models.HysteresisState) bool {
	return reached(hr) || reached(rr)
}

// Commit 推进两个信号的计数并判断复合报警。
// 报警触发时两个计数在同一次提交中清零，需重新累计才会再次报警。
func Commit(prev models.DeviceState, hr, rr models.Verdict) (models.DeviceState, bool, []models.Signal) {
	next := models.DeviceState{
		HeartRate:   Advance(prev.HeartRate, hr),
		Respiration: Advance(prev.Respiration, rr),
	}
	if !CompositeAlert(next.HeartRate, next.Respiration) {
		return next, false, nil
	}

	var triggeredBy []models.Signal
	for _, sig := range models.Signals {
		if reached(next.Get(sig)) {
			triggeredBy = append(triggeredBy, sig)
		}
	}
	next.HeartRate.Counter = 0
	next.Respiration.Counter = 0
	return next, true, triggeredBy
}

func reached(s models.HysteresisState) bool {
	trigger := s.Trigger
	if trigger <= 0 {
		trigger = DefaultTriggerThreshold
	}
	return s.Counter >= trigger
}
