package consumer

import (
	"context"
	"time"

	"wisefido-vitaldrift/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CycleRunner 单设备检测周期（由 evaluator.Detector 实现）
type CycleRunner interface {
	RunCycle(ctx context.Context, deviceID string) (*models.CycleResult, error)
}

// ResultHandler 周期结果的下游（日志、Redis Stream、MQTT、alarm_events、指标）
type ResultHandler interface {
	Emit(ctx context.Context, result *models.CycleResult) error
}

// FailureObserver 记录失败的周期
type FailureObserver interface {
	ObserveFailure(deviceID string, err error)
}

// PollerConfig 轮询配置
type PollerConfig struct {
	DeviceIDs    []string
	PollInterval time.Duration
	BatchSize    int // 同时运行的设备周期上限
}

// Poller 定时对所有设备执行检测周期
type Poller struct {
	config   PollerConfig
	runner   CycleRunner
	handler  ResultHandler
	observer FailureObserver
	logger   *zap.Logger
}

// NewPoller 创建轮询器；handler、observer 可为 nil
func NewPoller(
	cfg PollerConfig,
	runner CycleRunner,
	handler ResultHandler,
	observer FailureObserver,
	logger *zap.Logger,
) *Poller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &Poller{
		config:   cfg,
		runner:   runner,
		handler:  handler,
		observer: observer,
		logger:   logger,
	}
}

// Start 启动轮询（阻塞直到 ctx 取消）
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("Drift poller started",
		zap.Strings("device_ids", p.config.DeviceIDs),
		zap.Duration("poll_interval", p.config.PollInterval),
	)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// 立即执行一次
	p.evaluateAllDevices(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Drift poller stopped")
			return nil
		case <-ticker.C:
			p.evaluateAllDevices(ctx)
		}
	}
}

// evaluateAllDevices 并发评估所有设备，单个设备失败不影响其他设备
func (p *Poller) evaluateAllDevices(ctx context.Context) {
	p.logger.Debug("Evaluating devices",
		zap.Int("device_count", len(p.config.DeviceIDs)),
	)

	var g errgroup.Group
	g.SetLimit(p.config.BatchSize)
	for _, deviceID := range p.config.DeviceIDs {
		if ctx.Err() != nil {
			break
		}
		deviceID := deviceID
		g.Go(func() error {
			p.RunDevice(ctx, deviceID)
			return nil
		})
	}
	_ = g.Wait()
}

// RunDevice 执行一个设备的检测周期并分发结果
func (p *Poller) RunDevice(ctx context.Context, deviceID string) (*models.CycleResult, error) {
	result, err := p.runner.RunCycle(ctx, deviceID)
	if err != nil {
		p.logger.Error("Detection cycle failed, skipping",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		if p.observer != nil {
			p.observer.ObserveFailure(deviceID, err)
		}
		return nil, err
	}

	if p.handler != nil {
		if err := p.handler.Emit(ctx, result); err != nil {
			// 结果已提交，下游失败只记录
			p.logger.Error("Failed to emit cycle result",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
		}
	}
	return result, nil
}
