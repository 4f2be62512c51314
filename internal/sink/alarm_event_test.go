package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wisefido-vitaldrift/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAlarmEventWriter struct {
	mock.Mock
}

func (m *mockAlarmEventWriter) CreateAlarmEvent(ctx context.Context, tenantID string, event *models.AlarmEvent) error {
	args := m.Called(ctx, tenantID, event)
	return args.Error(0)
}

func TestAlarmEventBuilder_BuildDriftEvent(t *testing.T) {
	builder := NewAlarmEventBuilder("tenant-123", "Influx")
	builder.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 5, 0, time.UTC) }

	event, err := builder.BuildDriftEvent(firedResult())
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "tenant-123", event.TenantID)
	assert.Equal(t, "84F7035346E0", event.DeviceID)
	assert.Equal(t, "VitalSignDrift", event.EventType)
	assert.Equal(t, "clinical", event.Category)
	assert.Equal(t, "WARNING", event.AlarmLevel)
	assert.Equal(t, "active", event.AlarmStatus)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), event.TriggeredAt)
	assert.JSONEq(t, "[]", string(event.NotifiedUsers))

	// 验证 trigger_data 序列化
	var td models.DriftTriggerData
	require.NoError(t, json.Unmarshal(event.TriggerData, &td))
	assert.Equal(t, "Influx", td.Source)
	assert.Equal(t, []models.Signal{models.SignalHeartRate}, td.TriggeredBy)
	hr := td.Signals[models.SignalHeartRate]
	assert.Equal(t, models.VerdictAnomalous, hr.Verdict)
	assert.Equal(t, 3, hr.Streak)
	require.NotNil(t, hr.ShortWindow)
	assert.Equal(t, 100.0, *hr.ShortWindow)

	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Metadata, &metadata))
	assert.Equal(t, "vitaldrift", metadata["trigger_source"])
}

func TestAlarmEventSink_WritesOnlyWhenFired(t *testing.T) {
	writer := &mockAlarmEventWriter{}
	writer.On("CreateAlarmEvent", mock.Anything, "tenant-123", mock.MatchedBy(func(e *models.AlarmEvent) bool {
		return e.DeviceID == "84F7035346E0" && e.TenantID == "tenant-123"
	})).Return(nil).Once()

	s := NewAlarmEventSink("tenant-123", NewAlarmEventBuilder("tenant-123", "Influx"), writer, zap.NewNop())
	require.NoError(t, s.Emit(context.Background(), normalResult()))
	require.NoError(t, s.Emit(context.Background(), firedResult()))

	writer.AssertExpectations(t)
}

func TestAlarmEventSink_WriterError(t *testing.T) {
	writer := &mockAlarmEventWriter{}
	writer.On("CreateAlarmEvent", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down"))

	s := NewAlarmEventSink("tenant-123", NewAlarmEventBuilder("tenant-123", "Influx"), writer, zap.NewNop())
	assert.Error(t, s.Emit(context.Background(), firedResult()))
}
