package store

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"wisefido-vitaldrift/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// InfluxConfig InfluxDB v2 连接参数
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	Fields      map[models.Signal]string // 信号 -> _field，如 heart_rate_bpm
	Timeout     time.Duration
}

// InfluxStore 通过 /api/v2/query 查询 InfluxDB
type InfluxStore struct {
	httpClient *resty.Client
	config     InfluxConfig
	window     WindowSpec
	logger     *zap.Logger
}

// NewInfluxStore 创建 InfluxDB 查询客户端
func NewInfluxStore(cfg InfluxConfig, window WindowSpec, logger *zap.Logger) *InfluxStore {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", "Token "+cfg.Token).
		SetHeader("Accept", "application/csv").
		SetHeader("Content-Type", "application/json")

	return &InfluxStore{
		httpClient: client,
		config:     cfg,
		window:     window,
		logger:     logger,
	}
}

// QuerySeries 查询短窗口平滑序列
func (s *InfluxStore) QuerySeries(ctx context.Context, signal models.Signal, deviceID string) ([]float64, error) {
	q, err := s.query(signal, deviceID)
	if err != nil {
		return nil, err
	}
	values, err := s.execute(ctx, seriesFlux(q, s.window))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Influx series fetched",
		zap.String("device_id", deviceID),
		zap.String("signal", string(signal)),
		zap.Int("series_len", len(values)),
	)
	return values, nil
}

// QueryScalar 查询长窗口均值，返回第一个有效值
func (s *InfluxStore) QueryScalar(ctx context.Context, signal models.Signal, deviceID string) (*float64, error) {
	q, err := s.query(signal, deviceID)
	if err != nil {
		return nil, err
	}
	values, err := s.execute(ctx, scalarFlux(q, s.window))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	v := values[0]
	return &v, nil
}

func (s *InfluxStore) query(signal models.Signal, deviceID string) (fluxQuery, error) {
	field, ok := s.config.Fields[signal]
	if !ok || field == "" {
		return fluxQuery{}, fmt.Errorf("no influx field configured for signal %s", signal)
	}
	return fluxQuery{
		Bucket:      s.config.Bucket,
		Measurement: s.config.Measurement,
		DeviceID:    deviceID,
		Field:       field,
	}, nil
}

func (s *InfluxStore) execute(ctx context.Context, flux string) ([]float64, error) {
	resp, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam("org", s.config.Org).
		SetBody(map[string]any{
			"query": flux,
			"type":  "flux",
		}).
		Post("/api/v2/query")
	if err != nil {
		s.logger.Error("Influx query failed", zap.Error(err))
		return nil, fmt.Errorf("%w: influx query: %v", ErrUnavailable, err)
	}

	if resp.StatusCode() != http.StatusOK {
		s.logger.Error("Influx returned error",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", truncate(resp.String(), 200)),
		)
		return nil, fmt.Errorf("%w: influx status %d: %s", ErrUnavailable, resp.StatusCode(), truncate(resp.String(), 200))
	}

	values, err := parseFluxValues(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return values, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
