package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wisefido-vitaldrift/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT 发布接口（由 common/mqtt.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// AlertMessage 发布到 MQTT 的报警消息
type AlertMessage struct {
	DeviceID    string               `json:"device_id"`
	EventType   string               `json:"event_type"`
	TriggeredAt time.Time            `json:"triggered_at"`
	TriggeredBy []models.Signal      `json:"triggered_by"`
	Messages    []string             `json:"messages"`
	HeartRate   models.SignalOutcome `json:"heart_rate"`
	Respiration models.SignalOutcome `json:"respiration"`
}

// MQTTSink 仅在复合报警触发时发布
type MQTTSink struct {
	publisher     Publisher
	topicTemplate string // 含一个 %s（设备ID）
	qos           byte
	logger        *zap.Logger
}

// NewMQTTSink 创建 MQTT 输出
func NewMQTTSink(publisher Publisher, topicTemplate string, qos byte, logger *zap.Logger) *MQTTSink {
	return &MQTTSink{
		publisher:     publisher,
		topicTemplate: topicTemplate,
		qos:           qos,
		logger:        logger,
	}
}

func (s *MQTTSink) Emit(_ context.Context, result *models.CycleResult) error {
	if !result.AlertFired {
		return nil
	}

	payload, err := json.Marshal(NewAlertMessage(result))
	if err != nil {
		return fmt.Errorf("failed to marshal alert message: %w", err)
	}

	topic := fmt.Sprintf(s.topicTemplate, result.DeviceID)
	if err := s.publisher.Publish(topic, s.qos, false, payload); err != nil {
		return fmt.Errorf("mqtt sink: %w", err)
	}

	s.logger.Info("Drift alert published",
		zap.String("topic", topic),
		zap.String("device_id", result.DeviceID),
	)
	return nil
}

// NewAlertMessage 由周期结果生成报警消息
func NewAlertMessage(result *models.CycleResult) AlertMessage {
	msg := AlertMessage{
		DeviceID:    result.DeviceID,
		EventType:   models.EventTypeVitalSignDrift,
		TriggeredAt: result.EvaluatedAt,
		TriggeredBy: result.TriggeredBy,
		HeartRate:   result.HeartRate,
		Respiration: result.Respiration,
	}
	for _, o := range result.Anomalies() {
		msg.Messages = append(msg.Messages, Describe(o))
	}
	return msg
}
