package threshold

import (
	"context"
	"fmt"
	"time"

	"vitalhub/internal/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 连续违规计数的保留时长，超时后视为重新布防
const violationStateTTL = 10 * time.Minute

// StateManager 报警状态管理器（Redis 存储连续违规计数，重启不丢失）
type StateManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewStateManager 创建状态管理器
func NewStateManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *StateManager {
	return &StateManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// violationKey 构建连续违规计数键
func (s *StateManager) violationKey(roomID int64) string {
	return fmt.Sprintf("%sroom:%d:violations", s.config.Alarm.Cache.StateKeyPrefix, roomID)
}

// IncrViolations 连续违规计数加一，返回当前计数
func (s *StateManager) IncrViolations(ctx context.Context, roomID int64) (int64, error) {
	key := s.violationKey(roomID)

	count, err := s.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to incr violation count: %w", err)
	}

	if err := s.redisClient.Expire(ctx, key, violationStateTTL).Err(); err != nil {
		s.logger.Warn("Failed to set violation state TTL",
			zap.Int64("room_id", roomID),
			zap.Error(err),
		)
	}

	return count, nil
}

// ResetViolations 清零连续违规计数（正常样本或重新布防时调用）
func (s *StateManager) ResetViolations(ctx context.Context, roomID int64) error {
	if err := s.redisClient.Del(ctx, s.violationKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to reset violation count: %w", err)
	}
	return nil
}
