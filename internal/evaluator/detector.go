package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wisefido-vitaldrift/internal/consumer"
	"wisefido-vitaldrift/internal/models"
	"wisefido-vitaldrift/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrCycleInProgress 同一设备已有检测周期在执行
var ErrCycleInProgress = errors.New("detection cycle already in progress")

// DetectorConfig 检测参数
type DetectorConfig struct {
	Thresholds   map[models.Signal]models.Thresholds
	TrimWindow   int
	QueryTimeout time.Duration // 单次查询超时，0 表示只受 ctx 约束
}

// DefaultThresholds 心率 20 bpm / 30%，呼吸 5 rpm / 35%
func DefaultThresholds() map[models.Signal]models.Thresholds {
	return map[models.Signal]models.Thresholds{
		models.SignalHeartRate:   {Abs: 20, Rel: 0.30},
		models.SignalRespiration: {Abs: 5, Rel: 0.35},
	}
}

// QueryError 单次时序查询失败，统一归类为 store.ErrUnavailable
type QueryError struct {
	Signal models.Signal
	Query  string // series | scalar
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s query failed: %v", e.Signal.Short(), e.Query, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is 超时、解析失败等任何查询错误都视为存储不可用，而不是离线
func (e *QueryError) Is(target error) bool {
	return target == store.ErrUnavailable
}

// Detector 检测周期编排（实现 consumer.CycleRunner 接口）
type Detector struct {
	config DetectorConfig
	store  store.SampleStore
	states consumer.StateStore
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	running map[string]*sync.Mutex
}

// NewDetector 创建检测器
func NewDetector(cfg DetectorConfig, sampleStore store.SampleStore, states consumer.StateStore, logger *zap.Logger) *Detector {
	if cfg.Thresholds == nil {
		cfg.Thresholds = DefaultThresholds()
	}
	return &Detector{
		config:  cfg,
		store:   sampleStore,
		states:  states,
		logger:  logger,
		now:     time.Now,
		running: make(map[string]*sync.Mutex),
	}
}

type signalSamples struct {
	series []float64
	point  *float64
}

// noRecentData 序列为空且长窗口无值
func (s *signalSamples) noRecentData() bool {
	return s.point == nil && len(s.series) == 0
}

// RunCycle 执行一个设备的检测周期：读取、判定、提交计数。
// 任一查询失败则整个周期中止且不修改计数。
func (d *Detector) RunCycle(ctx context.Context, deviceID string) (*models.CycleResult, error) {
	lock := d.deviceLock(deviceID)
	if !lock.TryLock() {
		return nil, fmt.Errorf("device %s: %w", deviceID, ErrCycleInProgress)
	}
	defer lock.Unlock()

	started := d.now()
	samples, err := d.fetch(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}

	result := &models.CycleResult{DeviceID: deviceID, EvaluatedAt: started}
	for _, sig := range models.Signals {
		o := result.Outcome(sig)
		o.Signal = sig
		o.SeriesLen = len(samples[sig].series)
		o.LongWindow = samples[sig].point
	}

	hr, rr := samples[models.SignalHeartRate], samples[models.SignalRespiration]
	if hr.noRecentData() && rr.noRecentData() {
		return d.offline(ctx, result, started)
	}

	verdicts := make(map[models.Signal]models.Verdict, len(models.Signals))
	for _, sig := range models.Signals {
		o := result.Outcome(sig)
		if samples[sig].noRecentData() {
			o.Verdict = models.DeviationVerdict{Verdict: models.VerdictNoRecentData}
		} else {
			o.ShortWindow = TrimmedMean(samples[sig].series, d.config.TrimWindow)
			o.Verdict = Evaluate(o.ShortWindow, o.LongWindow, d.config.Thresholds[sig])
		}
		verdicts[sig] = o.Verdict.Verdict

		d.logger.Debug("Signal evaluated",
			zap.String("device_id", deviceID),
			zap.String("signal", string(sig)),
			zap.String("verdict", string(o.Verdict.Verdict)),
			zap.Int("series_len", o.SeriesLen),
			zap.Float64("abs_diff", o.Verdict.AbsDiff),
			zap.Float64("rel_diff", o.Verdict.RelDiff),
		)
	}

	prev, err := d.states.Load(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("device %s: load state: %w", deviceID, err)
	}

	next, fired, triggeredBy := Commit(prev, verdicts[models.SignalHeartRate], verdicts[models.SignalRespiration])
	if err := d.states.Save(ctx, deviceID, next); err != nil {
		return nil, fmt.Errorf("device %s: save state: %w", deviceID, err)
	}

	for _, sig := range models.Signals {
		o := result.Outcome(sig)
		o.Streak = Advance(prev.Get(sig), verdicts[sig]).Counter
		o.Counter = next.Get(sig).Counter
	}
	result.AlertFired = fired
	result.TriggeredBy = triggeredBy
	result.Duration = d.now().Sub(started)
	return result, nil
}

// offline 两个信号都无近期数据：不评估、不写计数，仅回报当前计数
func (d *Detector) offline(ctx context.Context, result *models.CycleResult, started time.Time) (*models.CycleResult, error) {
	result.Offline = true
	for _, sig := range models.Signals {
		result.Outcome(sig).Verdict = models.DeviationVerdict{Verdict: models.VerdictNoRecentData}
	}

	state, err := d.states.Load(ctx, result.DeviceID)
	if err != nil {
		d.logger.Warn("Failed to load state for offline device",
			zap.String("device_id", result.DeviceID),
			zap.Error(err),
		)
	} else {
		for _, sig := range models.Signals {
			result.Outcome(sig).Counter = state.Get(sig).Counter
		}
	}

	result.Duration = d.now().Sub(started)
	return result, nil
}

// fetch 并发执行四个查询（每个信号的序列与长窗口均值）
func (d *Detector) fetch(ctx context.Context, deviceID string) (map[models.Signal]*signalSamples, error) {
	out := make(map[models.Signal]*signalSamples, len(models.Signals))
	for _, sig := range models.Signals {
		out[sig] = &signalSamples{}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sig := range models.Signals {
		sig := sig
		s := out[sig]
		g.Go(func() error {
			qctx, cancel := d.queryContext(gctx)
			defer cancel()

			series, err := d.store.QuerySeries(qctx, sig, deviceID)
			if err != nil {
				return &QueryError{Signal: sig, Query: "series", Err: err}
			}
			s.series = series
			return nil
		})
		g.Go(func() error {
			qctx, cancel := d.queryContext(gctx)
			defer cancel()

			point, err := d.store.QueryScalar(qctx, sig, deviceID)
			if err != nil {
				return &QueryError{Signal: sig, Query: "scalar", Err: err}
			}
			s.point = point
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Detector) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.config.QueryTimeout > 0 {
		return context.WithTimeout(ctx, d.config.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

func (d *Detector) deviceLock(deviceID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.running[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		d.running[deviceID] = lock
	}
	return lock
}
