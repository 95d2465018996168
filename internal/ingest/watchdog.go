package ingest

import (
	"context"
	"time"

	"vitalhub/internal/hub"
	"vitalhub/internal/models"

	"go.uber.org/zap"
)

// Watchdog 房间数据超时巡检
// 超过 timeout 未收到雷达数据的房间标记 networkFailure 并广播，
// 标志在下一条数据到达时由消费者清除。
type Watchdog struct {
	registry  *Registry
	publisher Publisher
	timeout   time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewWatchdog 创建巡检器
func NewWatchdog(registry *Registry, publisher Publisher, timeout, interval time.Duration, logger *zap.Logger) *Watchdog {
	return &Watchdog{
		registry:  registry,
		publisher: publisher,
		timeout:   timeout,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run 周期巡检，阻塞到上下文取消
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Network watchdog started",
		zap.Duration("timeout", w.timeout),
		zap.Duration("interval", w.interval),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Network watchdog stopped")
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep 单次巡检
func (w *Watchdog) Sweep() {
	for _, roomID := range w.registry.StaleRooms(w.now(), w.timeout) {
		room, changed := w.registry.SetFault(roomID, models.FaultNetworkFailure)
		if !changed {
			continue
		}

		w.publisher.Publish(hub.RoomTopic(roomID), &models.FaultMessage{
			Type:   models.MsgNetworkFailure,
			RoomID: roomID,
		})
		name := ""
		if _, occupant, ok := w.registry.Get(roomID); ok && occupant != nil {
			name = occupant.Name
		}
		w.publisher.Publish(hub.RoomTopic(roomID), models.NewRoomDataMessage(&room, name))

		w.logger.Warn("Room data timed out, network failure flagged",
			zap.Int64("room_id", roomID),
			zap.Int64("last_data_at", room.Time),
		)
	}
}
