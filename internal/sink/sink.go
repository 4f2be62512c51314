// Package sink 将检测周期结果分发到日志、Redis Stream、MQTT 与 alarm_events。
package sink

import (
	"context"
	"errors"
	"fmt"

	"wisefido-vitaldrift/internal/models"
)

// Sink 周期结果消费者
type Sink interface {
	Emit(ctx context.Context, result *models.CycleResult) error
}

// Fanout 依次调用所有 Sink，单个失败不影响其他
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, result *models.CycleResult) error {
	var errs []error
	for _, s := range f {
		if err := s.Emit(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Describe 单个异常信号的报警文本，如 "HR异常: short=100.0 long=70.0 abs=30.0 rel=0.43"
func Describe(o models.SignalOutcome) string {
	return fmt.Sprintf("%s异常: short=%.1f long=%.1f abs=%.1f rel=%.2f",
		o.Signal.Short(), deref(o.ShortWindow), deref(o.LongWindow), o.Verdict.AbsDiff, o.Verdict.RelDiff)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
