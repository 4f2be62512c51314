package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wisefido-vitaldrift/internal/common/database"
	mqttclient "wisefido-vitaldrift/internal/common/mqtt"
	rediscommon "wisefido-vitaldrift/internal/common/redis"
	"wisefido-vitaldrift/internal/config"
	"wisefido-vitaldrift/internal/consumer"
	"wisefido-vitaldrift/internal/evaluator"
	httpapi "wisefido-vitaldrift/internal/http"
	"wisefido-vitaldrift/internal/metrics"
	"wisefido-vitaldrift/internal/models"
	"wisefido-vitaldrift/internal/repository"
	"wisefido-vitaldrift/internal/sink"
	"wisefido-vitaldrift/internal/store"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// backends 外部连接（按配置按需创建）
type backends struct {
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttclient.Client
	sampleStore store.SampleStore // 为 nil 时按 STORE_BACKEND 创建
	publisher   sink.Publisher    // 为 nil 时使用 mqttClient
}

// DriftService 漂移检测服务（整合各层）
type DriftService struct {
	config   *config.Config
	backends backends
	logger   *zap.Logger

	// 各层组件
	states   consumer.StateStore
	detector *evaluator.Detector
	poller   *consumer.Poller
	recorder *metrics.Recorder
	registry *prometheus.Registry
	router   *httpapi.Router
	server   *Server
}

// NewDriftService 创建漂移检测服务
func NewDriftService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*DriftService, error) {
	var b backends
	var err error

	// 1. 连接数据库（postgres 存储或 alarm_events 输出）
	if cfg.UsesDatabase() {
		b.db, err = database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
	}

	// 2. 连接 Redis（计数状态或 Stream 输出）
	if cfg.UsesRedis() {
		b.redisClient, err = rediscommon.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			b.close(logger)
			return nil, err
		}
	}

	// 3. 连接 MQTT
	if cfg.Sinks.MQTT.Enabled {
		b.mqttClient, err = mqttclient.NewClient(&cfg.MQTT, logger)
		if err != nil {
			b.close(logger)
			return nil, err
		}
	}

	s, err := newDriftService(cfg, b, logger)
	if err != nil {
		b.close(logger)
		return nil, err
	}
	return s, nil
}

func newDriftService(cfg *config.Config, b backends, logger *zap.Logger) (*DriftService, error) {
	// 4. 时序存储
	sampleStore := b.sampleStore
	source := "Influx"
	if cfg.Drift.StoreBackend == config.StoreBackendPostgres {
		source = "Postgres"
	}
	if sampleStore == nil {
		switch cfg.Drift.StoreBackend {
		case config.StoreBackendInflux:
			sampleStore = store.NewInfluxStore(store.InfluxConfig{
				URL:         cfg.Influx.URL,
				Token:       cfg.Influx.Token,
				Org:         cfg.Influx.Org,
				Bucket:      cfg.Influx.Bucket,
				Measurement: cfg.Influx.Measurement,
				Fields: map[models.Signal]string{
					models.SignalHeartRate:   cfg.Influx.HRField,
					models.SignalRespiration: cfg.Influx.RRField,
				},
				Timeout: cfg.Drift.QueryTimeout,
			}, cfg.Drift.Window, logger)
		case config.StoreBackendPostgres:
			if b.db == nil {
				return nil, errors.New("postgres store backend requires a database connection")
			}
			sampleStore = repository.NewIoTTimeSeriesRepository(b.db, cfg.TenantID, cfg.Drift.Window, logger)
		default:
			return nil, fmt.Errorf("unknown store backend %q", cfg.Drift.StoreBackend)
		}
	}

	// 5. 计数状态
	var states consumer.StateStore
	switch cfg.Drift.StateBackend {
	case config.StateBackendRedis:
		if b.redisClient == nil {
			return nil, errors.New("redis state backend requires a redis connection")
		}
		states = consumer.NewRedisStateStore(b.redisClient, cfg.Drift.StateKeyPrefix, cfg.Drift.TriggerThreshold, logger)
	default:
		states = consumer.NewMemoryStateStore(cfg.Drift.TriggerThreshold)
	}

	// 6. 检测器
	detector := evaluator.NewDetector(evaluator.DetectorConfig{
		Thresholds:   cfg.Drift.Thresholds,
		TrimWindow:   cfg.Drift.TrimWindow,
		QueryTimeout: cfg.Drift.QueryTimeout,
	}, sampleStore, states, logger)

	// 7. 输出
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	sinks := sink.Fanout{sink.NewLogSink(logger), recorder}
	if cfg.Sinks.Stream.Enabled {
		if b.redisClient == nil {
			return nil, errors.New("stream sink requires a redis connection")
		}
		sinks = append(sinks, sink.NewStreamSink(b.redisClient, cfg.Sinks.Stream.Name, cfg.Sinks.Stream.MaxLen, logger))
	}
	if cfg.Sinks.MQTT.Enabled {
		publisher := b.publisher
		if publisher == nil && b.mqttClient != nil {
			publisher = b.mqttClient
		}
		if publisher == nil {
			return nil, errors.New("mqtt sink requires an mqtt connection")
		}
		sinks = append(sinks, sink.NewMQTTSink(publisher, cfg.Sinks.MQTT.Topic, cfg.MQTT.QoS, logger))
	}

	var alarmEventsRepo *repository.AlarmEventsRepository
	if b.db != nil {
		alarmEventsRepo = repository.NewAlarmEventsRepository(b.db, logger)
	}
	if cfg.Sinks.DB.Enabled {
		if alarmEventsRepo == nil {
			return nil, errors.New("alarm event sink requires a database connection")
		}
		builder := sink.NewAlarmEventBuilder(cfg.TenantID, source)
		sinks = append(sinks, sink.NewAlarmEventSink(cfg.TenantID, builder, alarmEventsRepo, logger))
	}

	// 8. 轮询
	poller := consumer.NewPoller(consumer.PollerConfig{
		DeviceIDs:    cfg.Drift.DeviceIDs,
		PollInterval: cfg.Drift.PollInterval,
		BatchSize:    cfg.Drift.BatchSize,
	}, detector, sinks, recorder, logger)

	// 9. HTTP
	var alarms httpapi.AlarmEventLister
	if alarmEventsRepo != nil {
		alarms = alarmEventsRepo
	}
	router := httpapi.NewRouter(logger)
	router.RegisterHealthRoutes(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.RegisterDriftRoutes(httpapi.NewDriftHandler(cfg.TenantID, cfg.Drift.DeviceIDs, poller, sampleStore, states, alarms, logger))

	return &DriftService{
		config:   cfg,
		backends: b,
		logger:   logger,
		states:   states,
		detector: detector,
		poller:   poller,
		recorder: recorder,
		registry: registry,
		router:   router,
		server:   NewServer(cfg.HTTP.Addr, router, logger),
	}, nil
}

// Handler HTTP 路由
func (s *DriftService) Handler() http.Handler {
	return s.router
}

// Start 启动轮询与 HTTP 服务，阻塞直到 ctx 取消或任一组件失败
func (s *DriftService) Start(ctx context.Context) error {
	s.logger.Info("Starting drift service",
		zap.Strings("device_ids", s.config.Drift.DeviceIDs),
		zap.String("store_backend", s.config.Drift.StoreBackend),
		zap.String("state_backend", s.config.Drift.StateBackend),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.poller.Start(gctx); err != nil {
			return fmt.Errorf("failed to start poller: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.server.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Stop(shutdownCtx)
	})

	return g.Wait()
}

// Stop 关闭外部连接
func (s *DriftService) Stop() error {
	s.logger.Info("Stopping drift service")
	s.backends.close(s.logger)
	return nil
}

func (b *backends) close(logger *zap.Logger) {
	if b.mqttClient != nil {
		b.mqttClient.Disconnect()
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			logger.Error("Failed to close database", zap.Error(err))
		}
	}
	if b.redisClient != nil {
		if err := b.redisClient.Close(); err != nil {
			logger.Error("Failed to close redis", zap.Error(err))
		}
	}
}
