package sink

import (
	"context"

	"wisefido-vitaldrift/internal/models"

	"go.uber.org/zap"
)

// LogSink 将周期结果写入结构化日志
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink 创建日志输出
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, result *models.CycleResult) error {
	logger := s.logger.With(zap.String("device_id", result.DeviceID))

	if result.Offline {
		logger.Warn("No recent heart rate or respiration data, skipping evaluation (device treated as offline)")
		return nil
	}

	for _, sig := range models.Signals {
		o := result.Outcome(sig)
		switch o.Verdict.Verdict {
		case models.VerdictNoRecentData:
			logger.Info("No recent data for signal, skipping",
				zap.String("signal", o.Signal.Short()),
			)
		case models.VerdictInsufficientData:
			logger.Info("Insufficient data for signal",
				zap.String("signal", o.Signal.Short()),
				zap.Float64p("short_window", o.ShortWindow),
				zap.Float64p("long_window", o.LongWindow),
			)
		default:
			logger.Info("Signal comparison",
				zap.String("signal", o.Signal.Short()),
				zap.Float64p("short_window", o.ShortWindow),
				zap.Float64p("long_window", o.LongWindow),
				zap.Float64("abs_diff", o.Verdict.AbsDiff),
				zap.Float64("rel_diff", o.Verdict.RelDiff),
				zap.Int("counter", o.Counter),
			)
		}
	}

	if result.AlertFired {
		triggeredBy := make([]string, 0, len(result.TriggeredBy))
		for _, sig := range result.TriggeredBy {
			triggeredBy = append(triggeredBy, sig.Short())
		}
		logger.Warn("ALERT: sustained vital sign drift",
			zap.Strings("triggered_by", triggeredBy),
			zap.Int("heart_rate_streak", result.HeartRate.Streak),
			zap.Int("respiration_streak", result.Respiration.Streak),
		)
	}

	anomalies := result.Anomalies()
	if len(anomalies) == 0 {
		logger.Info("No anomalies")
		return nil
	}
	for _, o := range anomalies {
		logger.Warn("ALERT: " + Describe(o))
	}
	return nil
}
