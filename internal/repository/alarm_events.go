package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"wisefido-vitaldrift/internal/models"

	"go.uber.org/zap"
)

var (
	ErrTenantRequired = errors.New("tenant_id is required")
	ErrTenantMismatch = errors.New("event.tenant_id must match tenant_id parameter")
)

const (
	defaultAlarmListLimit = 50
	maxAlarmListLimit     = 500
)

// alarmEventColumns INSERT 与 SELECT 共用的列顺序
const alarmEventColumns = `event_id, tenant_id, device_id, event_type, category, alarm_level, alarm_status,
	triggered_at, trigger_data, notified_users, metadata, created_at, updated_at`

// AlarmEventsRepository alarm_events 表读写
type AlarmEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlarmEventsRepository 创建报警事件仓库
func NewAlarmEventsRepository(db *sql.DB, logger *zap.Logger) *AlarmEventsRepository {
	return &AlarmEventsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlarmEvent 写入一条报警事件，event.TenantID 必须与 tenantID 一致
func (r *AlarmEventsRepository) CreateAlarmEvent(ctx context.Context, tenantID string, event *models.AlarmEvent) error {
	switch {
	case tenantID == "":
		return ErrTenantRequired
	case event == nil:
		return errors.New("event is required")
	case event.TenantID != tenantID:
		return ErrTenantMismatch
	}

	query := `INSERT INTO alarm_events (` + alarmEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	// lib/pq 会把 []byte 编码为 bytea，JSONB 列以字符串传入
	_, err := r.db.ExecContext(ctx, query,
		event.EventID, event.TenantID, event.DeviceID,
		event.EventType, event.Category, event.AlarmLevel, event.AlarmStatus,
		event.TriggeredAt,
		string(jsonOrDefault(event.TriggerData, "{}")),
		string(jsonOrDefault(event.NotifiedUsers, "[]")),
		string(jsonOrDefault(event.Metadata, "{}")),
		event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alarm event: %w", err)
	}

	r.logger.Debug("Alarm event created",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.String("event_type", event.EventType),
	)
	return nil
}

// ListRecentByDevice 设备最近的报警事件（按触发时间倒序，排除软删除）。
// limit <= 0 取默认 50，上限 500。
func (r *AlarmEventsRepository) ListRecentByDevice(ctx context.Context, tenantID, deviceID, eventType string, limit int) ([]models.AlarmEvent, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	switch {
	case limit <= 0:
		limit = defaultAlarmListLimit
	case limit > maxAlarmListLimit:
		limit = maxAlarmListLimit
	}

	query := `SELECT ` + alarmEventColumns + `
		FROM alarm_events
		WHERE tenant_id = $1
		  AND device_id = $2
		  AND event_type = $3
		  AND (metadata->>'deleted_at' IS NULL)
		ORDER BY triggered_at DESC
		LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, tenantID, deviceID, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alarm events: %w", err)
	}
	defer rows.Close()

	events := make([]models.AlarmEvent, 0)
	for rows.Next() {
		event, err := scanAlarmEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alarm events: %w", err)
	}
	return events, nil
}

func scanAlarmEvent(rows *sql.Rows) (models.AlarmEvent, error) {
	var e models.AlarmEvent
	var triggerData, notifiedUsers, metadata []byte
	err := rows.Scan(
		&e.EventID, &e.TenantID, &e.DeviceID,
		&e.EventType, &e.Category, &e.AlarmLevel, &e.AlarmStatus,
		&e.TriggeredAt, &triggerData, &notifiedUsers, &metadata,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan alarm event: %w", err)
	}
	e.TriggerData = jsonOrDefault(triggerData, "{}")
	e.NotifiedUsers = jsonOrDefault(notifiedUsers, "[]")
	e.Metadata = jsonOrDefault(metadata, "{}")
	return e, nil
}

func jsonOrDefault(raw []byte, def string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(def)
	}
	return json.RawMessage(raw)
}
