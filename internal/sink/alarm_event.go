package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-vitaldrift/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlarmEventBuilder 报警事件构建器
type AlarmEventBuilder struct {
	tenantID string
	source   string
	now      func() time.Time
}

// NewAlarmEventBuilder 创建报警事件构建器；source 为数据来源（Influx / Postgres）
func NewAlarmEventBuilder(tenantID, source string) *AlarmEventBuilder {
	return &AlarmEventBuilder{
		tenantID: tenantID,
		source:   source,
		now:      time.Now,
	}
}

// BuildDriftEvent 由已触发的周期结果构建 alarm_events 记录
func (b *AlarmEventBuilder) BuildDriftEvent(result *models.CycleResult) (*models.AlarmEvent, error) {
	now := b.now()

	triggerData := BuildDriftTriggerData(b.source, result)
	triggerDataJSON, err := json.Marshal(triggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	metadataJSON, err := json.Marshal(map[string]interface{}{
		"trigger_source": "vitaldrift",
		"messages":       NewAlertMessage(result).Messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	triggeredAt := result.EvaluatedAt
	if triggeredAt.IsZero() {
		triggeredAt = now
	}

	return &models.AlarmEvent{
		EventID:       uuid.New().String(),
		TenantID:      b.tenantID,
		DeviceID:      result.DeviceID,
		EventType:     models.EventTypeVitalSignDrift,
		Category:      models.CategoryClinical,
		AlarmLevel:    models.AlarmLevelWarning,
		AlarmStatus:   models.AlarmStatusActive,
		TriggeredAt:   triggeredAt,
		TriggerData:   triggerDataJSON,
		NotifiedUsers: json.RawMessage("[]"),
		Metadata:      metadataJSON,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// BuildDriftTriggerData 构建触发数据快照
func BuildDriftTriggerData(source string, result *models.CycleResult) *models.DriftTriggerData {
	data := &models.DriftTriggerData{
		EventType:   models.EventTypeVitalSignDrift,
		Source:      source,
		TriggeredBy: result.TriggeredBy,
		Signals:     make(map[models.Signal]models.SignalSnap, len(models.Signals)),
	}
	for _, sig := range models.Signals {
		o := result.Outcome(sig)
		data.Signals[sig] = models.SignalSnap{
			Verdict:     o.Verdict.Verdict,
			ShortWindow: o.ShortWindow,
			LongWindow:  o.LongWindow,
			AbsDiff:     o.Verdict.AbsDiff,
			RelDiff:     o.Verdict.RelDiff,
			Streak:      o.Streak,
		}
	}
	return data
}

// AlarmEventWriter alarm_events 写入接口（由 repository.AlarmEventsRepository 实现）
type AlarmEventWriter interface {
	CreateAlarmEvent(ctx context.Context, tenantID string, event *models.AlarmEvent) error
}

// AlarmEventSink 复合报警触发时写入 alarm_events
type AlarmEventSink struct {
	tenantID string
	builder  *AlarmEventBuilder
	writer   AlarmEventWriter
	logger   *zap.Logger
}

// NewAlarmEventSink 创建报警事件输出
func NewAlarmEventSink(tenantID string, builder *AlarmEventBuilder, writer AlarmEventWriter, logger *zap.Logger) *AlarmEventSink {
	return &AlarmEventSink{
		tenantID: tenantID,
		builder:  builder,
		writer:   writer,
		logger:   logger,
	}
}

func (s *AlarmEventSink) Emit(ctx context.Context, result *models.CycleResult) error {
	if !result.AlertFired {
		return nil
	}

	event, err := s.builder.BuildDriftEvent(result)
	if err != nil {
		return fmt.Errorf("alarm event sink: %w", err)
	}
	if err := s.writer.CreateAlarmEvent(ctx, s.tenantID, event); err != nil {
		return fmt.Errorf("alarm event sink: %w", err)
	}

	s.logger.Info("Drift alarm event created",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
	)
	return nil
}
