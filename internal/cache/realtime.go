package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vitalhub/internal/config"
	"vitalhub/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrNotFound 房间没有实时数据缓存
var ErrNotFound = fmt.Errorf("realtime data not found")

// RealtimeCache 房间最新采样的 Redis 缓存
// 只保留每个房间的最新一次采样（带 TTL），供快照接口在 WebSocket
// 增量数据到达前返回初始状态。
type RealtimeCache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewRealtimeCache 创建实时数据缓存
func NewRealtimeCache(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *RealtimeCache {
	return &RealtimeCache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// key 构建缓存键
func (c *RealtimeCache) key(roomID int64) string {
	return fmt.Sprintf("%s%d%s",
		c.config.Alarm.Cache.RealtimeKeyPrefix,
		roomID,
		c.config.Alarm.Cache.RealtimeSuffix,
	)
}

// SetRealtime 写入房间最新采样
func (c *RealtimeCache) SetRealtime(ctx context.Context, sample *models.VitalSample) error {
	jsonData, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal realtime data: %w", err)
	}

	ttl := time.Duration(c.config.Alarm.Cache.RealtimeTTL) * time.Second
	if err := c.redisClient.Set(ctx, c.key(sample.RoomID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}

	return nil
}

// GetRealtime 读取房间最新采样
func (c *RealtimeCache) GetRealtime(ctx context.Context, roomID int64) (*models.VitalSample, error) {
	val, err := c.redisClient.Get(ctx, c.key(roomID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get realtime cache: %w", err)
	}

	var sample models.VitalSample
	if err := json.Unmarshal([]byte(val), &sample); err != nil {
		return nil, fmt.Errorf("failed to unmarshal realtime data: %w", err)
	}

	return &sample, nil
}
