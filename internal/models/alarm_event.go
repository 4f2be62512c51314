package models

import (
	"encoding/json"
	"time"
)

const (
	EventTypeVitalSignDrift = "VitalSignDrift"
	CategoryClinical        = "clinical"
	AlarmLevelWarning       = "WARNING"
	AlarmStatusActive       = "active"
)

// AlarmEvent 报警事件（对应 alarm_events 表）
type AlarmEvent struct {
	EventID       string          `json:"event_id" db:"event_id"`
	TenantID      string          `json:"tenant_id" db:"tenant_id"`
	DeviceID      string          `json:"device_id" db:"device_id"`
	EventType     string          `json:"event_type" db:"event_type"`
	Category      string          `json:"category" db:"category"`
	AlarmLevel    string          `json:"alarm_level" db:"alarm_level"`
	AlarmStatus   string          `json:"alarm_status" db:"alarm_status"`
	TriggeredAt   time.Time       `json:"triggered_at" db:"triggered_at"`
	TriggerData   json.RawMessage `json:"trigger_data" db:"trigger_data"`
	NotifiedUsers json.RawMessage `json:"notified_users" db:"notified_users"`
	Metadata      json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// DriftTriggerData 漂移报警的触发数据快照（trigger_data JSONB）
type DriftTriggerData struct {
	EventType   string                `json:"event_type"`
	Source      string                `json:"source"` // "Influx" 或 "Postgres"
	TriggeredBy []Signal              `json:"triggered_by"`
	Signals     map[Signal]SignalSnap `json:"signals"`
}

// SignalSnap 单个信号的快照
type SignalSnap struct {
	Verdict     Verdict  `json:"verdict"`
	ShortWindow *float64 `json:"short_window,omitempty"`
	LongWindow  *float64 `json:"long_window,omitempty"`
	AbsDiff     float64  `json:"abs_diff"`
	RelDiff     float64  `json:"rel_diff"`
	Streak      int      `json:"streak"`
}
