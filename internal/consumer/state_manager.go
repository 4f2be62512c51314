package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"wisefido-vitaldrift/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrStateUnavailable 状态存储读写失败
var ErrStateUnavailable = errors.New("hysteresis state unavailable")

// StateStore 按设备隔离的滞后计数存储
type StateStore interface {
	Load(ctx context.Context, deviceID string) (models.DeviceState, error)
	Save(ctx context.Context, deviceID string, state models.DeviceState) error
}

// MemoryStateStore 进程内状态（重启后计数归零）
type MemoryStateStore struct {
	mu      sync.RWMutex
	trigger int
	states  map[string]models.DeviceState
}

// NewMemoryStateStore 创建内存状态存储
func NewMemoryStateStore(trigger int) *MemoryStateStore {
	return &MemoryStateStore{
		trigger: trigger,
		states:  make(map[string]models.DeviceState),
	}
}

func (m *MemoryStateStore) Load(_ context.Context, deviceID string) (models.DeviceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if st, ok := m.states[deviceID]; ok {
		return st, nil
	}
	return models.NewDeviceState(m.trigger), nil
}

func (m *MemoryStateStore) Save(_ context.Context, deviceID string, state models.DeviceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.states[deviceID] = state
	return nil
}

// RedisStateStore 将计数持久化到 Redis：key = <prefix><device_id>，value = {"heart_rate":n,"respiration":m}
type RedisStateStore struct {
	redisClient *redis.Client
	keyPrefix   string
	trigger     int
	logger      *zap.Logger
}

// NewRedisStateStore 创建 Redis 状态存储
func NewRedisStateStore(redisClient *redis.Client, keyPrefix string, trigger int, logger *zap.Logger) *RedisStateStore {
	return &RedisStateStore{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		trigger:     trigger,
		logger:      logger,
	}
}

// GetStateKey 构建状态键
func (s *RedisStateStore) GetStateKey(deviceID string) string {
	return s.keyPrefix + deviceID
}

func (s *RedisStateStore) Load(ctx context.Context, deviceID string) (models.DeviceState, error) {
	state := models.NewDeviceState(s.trigger)

	val, err := s.redisClient.Get(ctx, s.GetStateKey(deviceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return state, nil
		}
		return state, fmt.Errorf("%w: failed to get state: %v", ErrStateUnavailable, err)
	}

	var counters map[models.Signal]int
	if err := json.Unmarshal([]byte(val), &counters); err != nil {
		// 损坏的状态按初始状态处理
		s.logger.Warn("Discarding malformed hysteresis state",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return state, nil
	}

	for _, sig := range models.Signals {
		if n := counters[sig]; n > 0 {
			state.Set(sig, models.HysteresisState{Counter: n, Trigger: s.trigger})
		}
	}
	return state, nil
}

func (s *RedisStateStore) Save(ctx context.Context, deviceID string, state models.DeviceState) error {
	jsonData, err := json.Marshal(state.Counters())
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.redisClient.Set(ctx, s.GetStateKey(deviceID), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("%w: failed to set state: %v", ErrStateUnavailable, err)
	}
	return nil
}
