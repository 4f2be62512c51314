package sink

import (
	"context"
	"fmt"

	rediscommon "wisefido-vitaldrift/internal/common/redis"
	"wisefido-vitaldrift/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamSink 每个周期结果写入 Redis Stream，供下游服务消费
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
	logger *zap.Logger
}

// NewStreamSink 创建 Stream 输出
func NewStreamSink(client *redis.Client, stream string, maxLen int64, logger *zap.Logger) *StreamSink {
	return &StreamSink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		logger: logger,
	}
}

func (s *StreamSink) Emit(ctx context.Context, result *models.CycleResult) error {
	id, err := rediscommon.PublishJSONToStream(ctx, s.client, s.stream, result, s.maxLen)
	if err != nil {
		return fmt.Errorf("stream sink: %w", err)
	}

	s.logger.Debug("Cycle result published to stream",
		zap.String("stream", s.stream),
		zap.String("message_id", id),
		zap.String("device_id", result.DeviceID),
	)
	return nil
}
