package config

import (
	"testing"
	"time"

	"wisefido-vitaldrift/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "DB_MAX_CONNS", "DB_MAX_IDLE",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_QOS", "MQTT_TOPIC",
	"TENANT_ID", "DEVICE_IDS", "DEVICE_ID",
	"HR_ABS", "HR_REL", "RR_ABS", "RR_REL", "ALERT_THRESHOLD", "TRIM_WINDOW",
	"POLL_INTERVAL", "QUERY_TIMEOUT", "BATCH_SIZE",
	"SERIES_LOOKBACK", "SERIES_EVERY", "SERIES_PERIOD", "POINT_WINDOW",
	"STORE_BACKEND", "STATE_BACKEND", "STATE_KEY_PREFIX",
	"INFLUXDB_URL", "INFLUXDB_TOKEN", "INFLUXDB_ORG", "INFLUXDB_BUCKET",
	"INFLUX_MEASUREMENT", "INFLUX_HR_FIELD", "INFLUX_RR_FIELD",
	"SINK_STREAM_ENABLED", "STREAM_DRIFT", "STREAM_MAX_LEN", "SINK_MQTT_ENABLED", "SINK_DB_ENABLED",
	"HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv 清除环境变量（空值视为未设置），测试结束后自动恢复
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	t.Setenv("INFLUXDB_TOKEN", "test-token")
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "owlrd", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	assert.Equal(t, []string{"84F7035346E0"}, cfg.Drift.DeviceIDs)
	assert.Equal(t, models.Thresholds{Abs: 20, Rel: 0.30}, cfg.Drift.Thresholds[models.SignalHeartRate])
	assert.Equal(t, models.Thresholds{Abs: 5, Rel: 0.35}, cfg.Drift.Thresholds[models.SignalRespiration])
	assert.Equal(t, 3, cfg.Drift.TriggerThreshold)
	assert.Equal(t, 10, cfg.Drift.TrimWindow)
	assert.Equal(t, time.Minute, cfg.Drift.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Drift.QueryTimeout)
	assert.Equal(t, 10, cfg.Drift.BatchSize)
	assert.Equal(t, 12*time.Hour, cfg.Drift.Window.Lookback)
	assert.Equal(t, 5*time.Minute, cfg.Drift.Window.Every)
	assert.Equal(t, 10*time.Minute, cfg.Drift.Window.Period)
	assert.Equal(t, 2*time.Minute, cfg.Drift.Window.PointWindow)
	assert.Equal(t, StoreBackendInflux, cfg.Drift.StoreBackend)
	assert.Equal(t, StateBackendMemory, cfg.Drift.StateBackend)
	assert.Equal(t, "drift:state:", cfg.Drift.StateKeyPrefix)

	assert.Equal(t, "http://influxdb:8086", cfg.Influx.URL)
	assert.Equal(t, "ld6002h", cfg.Influx.Org)
	assert.Equal(t, "vitals_data", cfg.Influx.Bucket)
	assert.Equal(t, "heart_rate_bpm", cfg.Influx.HRField)
	assert.Equal(t, "respiration_bpm", cfg.Influx.RRField)

	assert.False(t, cfg.Sinks.Stream.Enabled)
	assert.Equal(t, "vital:drift:stream", cfg.Sinks.Stream.Name)
	assert.False(t, cfg.Sinks.MQTT.Enabled)
	assert.Equal(t, "vitals/%s/drift", cfg.Sinks.MQTT.Topic)
	assert.False(t, cfg.Sinks.DB.Enabled)

	assert.Equal(t, ":8090", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.False(t, cfg.UsesDatabase())
	assert.False(t, cfg.UsesRedis())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_ADDR", "test-redis:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("TENANT_ID", "test-tenant")
	t.Setenv("DEVICE_IDS", "dev-a, dev-b,,dev-c")
	t.Setenv("HR_ABS", "15")
	t.Setenv("RR_REL", "0.5")
	t.Setenv("ALERT_THRESHOLD", "5")
	t.Setenv("POLL_INTERVAL", "30s")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("STATE_BACKEND", "redis")
	t.Setenv("SINK_DB_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "test-tenant", cfg.TenantID)
	assert.Equal(t, []string{"dev-a", "dev-b", "dev-c"}, cfg.Drift.DeviceIDs)
	assert.Equal(t, 15.0, cfg.Drift.Thresholds[models.SignalHeartRate].Abs)
	assert.Equal(t, 0.5, cfg.Drift.Thresholds[models.SignalRespiration].Rel)
	assert.Equal(t, 5, cfg.Drift.TriggerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Drift.PollInterval)
	assert.Equal(t, StoreBackendPostgres, cfg.Drift.StoreBackend)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.UsesDatabase())
	assert.True(t, cfg.UsesRedis())
}

func TestLoad_SingleDeviceFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEVICE_ID", "ABC123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC123"}, cfg.Drift.DeviceIDs)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"malformed float", "HR_ABS", "twenty", "HR_ABS"},
		{"malformed duration", "POLL_INTERVAL", "5", "POLL_INTERVAL"},
		{"malformed port", "DB_PORT", "abc", "DB_PORT"},
		{"malformed bool", "SINK_DB_ENABLED", "maybe", "SINK_DB_ENABLED"},
		{"zero trigger", "ALERT_THRESHOLD", "0", "ALERT_THRESHOLD"},
		{"zero trim window", "TRIM_WINDOW", "0", "TRIM_WINDOW"},
		{"negative threshold", "RR_ABS", "-1", "RR thresholds"},
		{"unknown store", "STORE_BACKEND", "mysql", "STORE_BACKEND"},
		{"unknown state", "STATE_BACKEND", "etcd", "STATE_BACKEND"},
		{"bad qos", "MQTT_QOS", "3", "MQTT_QOS"},
		{"negative interval", "QUERY_TIMEOUT", "-1s", "QUERY_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_InfluxRequiresToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("INFLUXDB_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INFLUXDB_TOKEN")

	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("TENANT_ID", "tenant-1")
	_, err = Load()
	assert.NoError(t, err)
}

func TestValidate_TenantRequirements(t *testing.T) {
	clearEnv(t)
	t.Setenv("SINK_DB_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_ID")
}

func TestValidate_MQTTTopic(t *testing.T) {
	clearEnv(t)
	t.Setenv("SINK_MQTT_ENABLED", "true")
	t.Setenv("MQTT_TOPIC", "vitals/drift")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MQTT_TOPIC")
}
