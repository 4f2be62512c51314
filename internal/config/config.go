package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wisefido-vitaldrift/internal/common/config"
	"wisefido-vitaldrift/internal/models"
	"wisefido-vitaldrift/internal/store"
)

const (
	StoreBackendInflux   = "influx"
	StoreBackendPostgres = "postgres"

	StateBackendMemory = "memory"
	StateBackendRedis  = "redis"
)

// Config 漂移检测服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	TenantID string // 写入 alarm_events / 查询 iot_timeseries 时使用

	// 检测配置
	Drift struct {
		DeviceIDs        []string
		Thresholds       map[models.Signal]models.Thresholds
		TriggerThreshold int // 连续异常次数，默认 3
		TrimWindow       int // 截尾均值取中间值个数，默认 10
		PollInterval     time.Duration
		QueryTimeout     time.Duration
		BatchSize        int // 并发评估设备数，默认 10
		Window           store.WindowSpec

		StoreBackend   string // influx | postgres
		StateBackend   string // memory | redis
		StateKeyPrefix string // 计数状态键前缀，如 "drift:state:"
	}

	Influx struct {
		URL         string
		Token       string
		Org         string
		Bucket      string
		Measurement string
		HRField     string
		RRField     string
	}

	// 输出配置
	Sinks struct {
		Stream struct {
			Enabled bool
			Name    string
			MaxLen  int64
		}
		MQTT struct {
			Enabled bool
			Topic   string // 含一个 %s（设备ID）
		}
		DB struct {
			Enabled bool
		}
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}
	env := &envLoader{}

	// 默认值，随后由 DB_* / REDIS_* / MQTT_* 环境变量覆盖
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "owlrd"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 2
	env.check(cfg.Database.LoadFromEnv("DB"))

	cfg.Redis.Addr = "localhost:6379"
	env.check(cfg.Redis.LoadFromEnv("REDIS"))

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "wisefido-vitaldrift"
	cfg.MQTT.QoS = 1
	env.check(cfg.MQTT.LoadFromEnv("MQTT"))

	cfg.TenantID = getEnv("TENANT_ID", "")

	// 检测配置
	cfg.Drift.DeviceIDs = splitList(getEnv("DEVICE_IDS", getEnv("DEVICE_ID", "84F7035346E0")))
	cfg.Drift.Thresholds = map[models.Signal]models.Thresholds{
		models.SignalHeartRate: {
			Abs: env.getFloat("HR_ABS", 20),
			Rel: env.getFloat("HR_REL", 0.30),
		},
		models.SignalRespiration: {
			Abs: env.getFloat("RR_ABS", 5),
			Rel: env.getFloat("RR_REL", 0.35),
		},
	}
	cfg.Drift.TriggerThreshold = env.getInt("ALERT_THRESHOLD", 3)
	cfg.Drift.TrimWindow = env.getInt("TRIM_WINDOW", 10)
	cfg.Drift.PollInterval = env.getDuration("POLL_INTERVAL", time.Minute)
	cfg.Drift.QueryTimeout = env.getDuration("QUERY_TIMEOUT", 30*time.Second)
	cfg.Drift.BatchSize = env.getInt("BATCH_SIZE", 10)

	defaults := store.DefaultWindowSpec()
	cfg.Drift.Window = store.WindowSpec{
		Lookback:    env.getDuration("SERIES_LOOKBACK", defaults.Lookback),
		Every:       env.getDuration("SERIES_EVERY", defaults.Every),
		Period:      env.getDuration("SERIES_PERIOD", defaults.Period),
		PointWindow: env.getDuration("POINT_WINDOW", defaults.PointWindow),
	}

	cfg.Drift.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", StoreBackendInflux))
	cfg.Drift.StateBackend = strings.ToLower(getEnv("STATE_BACKEND", StateBackendMemory))
	cfg.Drift.StateKeyPrefix = getEnv("STATE_KEY_PREFIX", "drift:state:")

	cfg.Influx.URL = getEnv("INFLUXDB_URL", "http://influxdb:8086")
	cfg.Influx.Token = getEnv("INFLUXDB_TOKEN", "")
	cfg.Influx.Org = getEnv("INFLUXDB_ORG", "ld6002h")
	cfg.Influx.Bucket = getEnv("INFLUXDB_BUCKET", "vitals_data")
	cfg.Influx.Measurement = getEnv("INFLUX_MEASUREMENT", "")
	cfg.Influx.HRField = getEnv("INFLUX_HR_FIELD", "heart_rate_bpm")
	cfg.Influx.RRField = getEnv("INFLUX_RR_FIELD", "respiration_bpm")

	// 输出配置
	cfg.Sinks.Stream.Enabled = env.getBool("SINK_STREAM_ENABLED", false)
	cfg.Sinks.Stream.Name = getEnv("STREAM_DRIFT", "vital:drift:stream")
	cfg.Sinks.Stream.MaxLen = int64(env.getInt("STREAM_MAX_LEN", 10000))
	cfg.Sinks.MQTT.Enabled = env.getBool("SINK_MQTT_ENABLED", false)
	cfg.Sinks.MQTT.Topic = getEnv("MQTT_TOPIC", "vitals/%s/drift")
	cfg.Sinks.DB.Enabled = env.getBool("SINK_DB_ENABLED", false)

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := env.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	var errs []error

	if len(c.Drift.DeviceIDs) == 0 {
		errs = append(errs, errors.New("DEVICE_IDS must name at least one device"))
	}
	for sig, th := range c.Drift.Thresholds {
		if th.Abs < 0 || th.Rel < 0 {
			errs = append(errs, fmt.Errorf("%s thresholds must be non-negative", sig.Short()))
		}
	}
	if c.Drift.TriggerThreshold < 1 {
		errs = append(errs, fmt.Errorf("ALERT_THRESHOLD must be >= 1, got %d", c.Drift.TriggerThreshold))
	}
	if c.Drift.TrimWindow < 1 {
		errs = append(errs, fmt.Errorf("TRIM_WINDOW must be >= 1, got %d", c.Drift.TrimWindow))
	}
	if c.Drift.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be >= 1, got %d", c.Drift.BatchSize))
	}
	for name, d := range map[string]time.Duration{
		"POLL_INTERVAL":   c.Drift.PollInterval,
		"QUERY_TIMEOUT":   c.Drift.QueryTimeout,
		"SERIES_LOOKBACK": c.Drift.Window.Lookback,
		"SERIES_EVERY":    c.Drift.Window.Every,
		"SERIES_PERIOD":   c.Drift.Window.Period,
		"POINT_WINDOW":    c.Drift.Window.PointWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	switch c.Drift.StoreBackend {
	case StoreBackendInflux:
		if c.Influx.Token == "" {
			errs = append(errs, errors.New("INFLUXDB_TOKEN is required for the influx store backend"))
		}
	case StoreBackendPostgres:
		if c.TenantID == "" {
			errs = append(errs, errors.New("TENANT_ID is required for the postgres store backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Drift.StoreBackend))
	}

	switch c.Drift.StateBackend {
	case StateBackendMemory, StateBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown STATE_BACKEND %q", c.Drift.StateBackend))
	}

	if c.Sinks.DB.Enabled && c.TenantID == "" {
		errs = append(errs, errors.New("TENANT_ID is required when SINK_DB_ENABLED"))
	}
	if c.Sinks.MQTT.Enabled && strings.Count(c.Sinks.MQTT.Topic, "%s") != 1 {
		errs = append(errs, fmt.Errorf("MQTT_TOPIC must contain exactly one %%s, got %q", c.Sinks.MQTT.Topic))
	}

	return errors.Join(errs...)
}

// UsesDatabase 是否需要 PostgreSQL 连接
func (c *Config) UsesDatabase() bool {
	return c.Drift.StoreBackend == StoreBackendPostgres || c.Sinks.DB.Enabled
}

// UsesRedis 是否需要 Redis 连接
func (c *Config) UsesRedis() bool {
	return c.Drift.StateBackend == StateBackendRedis || c.Sinks.Stream.Enabled
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envLoader 解析数值型环境变量并收集错误
type envLoader struct {
	errs []error
}

func (l *envLoader) check(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

func (l *envLoader) Err() error {
	return errors.Join(l.errs...)
}

func (l *envLoader) getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return n
}

func (l *envLoader) getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return f
}

func (l *envLoader) getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return d
}

func (l *envLoader) getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s %q: %w", key, v, err))
		return def
	}
	return b
}
