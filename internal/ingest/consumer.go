package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vitalhub/internal/alarmstore"
	"vitalhub/internal/cache"
	mqttcommon "vitalhub/internal/common/mqtt"
	"vitalhub/internal/config"
	"vitalhub/internal/hub"
	"vitalhub/internal/models"
	"vitalhub/internal/threshold"

	"go.uber.org/zap"
)

// 雷达载荷 error_code 取值
const (
	radarOK       = 0
	radarFailure  = 1 // 硬件故障
	radarAbnormal = 2 // 读数异常
)

// RadarPayload 雷达上报载荷
// 主题格式 radar/{serial_number}/data。
type RadarPayload struct {
	HeartRate  *int  `json:"heart_rate"`
	BreathRate *int  `json:"breath_rate"`
	Distance   *int  `json:"distance"`
	Timestamp  int64 `json:"timestamp"`
	ErrorCode  int   `json:"error_code"`
}

// Subscriber MQTT 订阅接口（由 common/mqtt.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Publisher 事件分发接口（由 hub.Hub 实现）
type Publisher interface {
	Publish(topic string, msg interface{})
}

// Consumer 雷达数据消费者
// 每条采样依次：写入状态表、刷新实时缓存、广播 roomData、
// 评估阈值并触发报警。处理失败只降级该房间，不影响其他房间。
type Consumer struct {
	cfg       *config.Config
	mqtt      Subscriber
	registry  *Registry
	realtime  *cache.RealtimeCache
	engine    *threshold.Engine
	alarms    *alarmstore.Store
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewConsumer 创建消费者
func NewConsumer(
	cfg *config.Config,
	mqttClient Subscriber,
	registry *Registry,
	realtime *cache.RealtimeCache,
	engine *threshold.Engine,
	alarms *alarmstore.Store,
	publisher Publisher,
	logger *zap.Logger,
) *Consumer {
	return &Consumer{
		cfg:       cfg,
		mqtt:      mqttClient,
		registry:  registry,
		realtime:  realtime,
		engine:    engine,
		alarms:    alarms,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Start 订阅雷达数据主题并阻塞到上下文取消
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.mqtt.Subscribe(c.cfg.Radar.DataTopic, c.cfg.Radar.QoS, c.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to data topic: %w", err)
	}

	c.logger.Info("Radar consumer started",
		zap.String("topic", c.cfg.Radar.DataTopic),
	)

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (c *Consumer) Stop() {
	if err := c.mqtt.Unsubscribe(c.cfg.Radar.DataTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	c.logger.Info("Radar consumer stopped")
}

// HandleMessage 处理一条雷达消息
func (c *Consumer) HandleMessage(topic string, payload []byte) error {
	// 主题格式: radar/{serial_number}/data
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	radarSN := parts[1]

	var data RadarPayload
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("failed to unmarshal radar payload: %w", err)
	}

	now := c.now()
	sample := &models.VitalSample{
		HeartRate:  data.HeartRate,
		BreathRate: data.BreathRate,
		Distance:   data.Distance,
		Timestamp:  data.Timestamp,
	}
	if sample.Timestamp == 0 {
		sample.Timestamp = now.Unix()
	}

	room, occupant, ok := c.registry.ApplySample(radarSN, sample)
	if !ok {
		c.logger.Warn("Data from unknown radar ignored",
			zap.String("radar_sn", radarSN),
		)
		return fmt.Errorf("radar not bound to any room: %s", radarSN)
	}

	// 载荷自报故障覆盖房间故障标志；正常载荷清除故障
	room = c.applyRadarStatus(room.ID, data.ErrorCode)

	ctx := context.Background()

	// 缓存失败降级为日志，推送和评估照常进行
	if err := c.realtime.SetRealtime(ctx, sample); err != nil {
		c.logger.Warn("Failed to cache realtime sample",
			zap.Int64("room_id", room.ID),
			zap.Error(err),
		)
	}

	c.publishRoomData(&room, occupant)

	result, err := c.engine.Evaluate(ctx, sample, occupant, &room, now)
	if err != nil {
		c.logger.Error("Threshold evaluation failed",
			zap.Int64("room_id", room.ID),
			zap.Error(err),
		)
		return nil
	}
	if result != nil {
		code := ""
		if occupant != nil {
			code = occupant.MedicalHistory
		}
		if _, err := c.alarms.Trigger(ctx, room.ID, room.OccupantID, result.Level, result.Message, code); err != nil {
			c.logger.Error("Failed to trigger alarm",
				zap.Int64("room_id", room.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// applyRadarStatus 把载荷 error_code 映射到房间故障标志
// 标志变化时广播对应故障消息。返回更新后的房间副本。
func (c *Consumer) applyRadarStatus(roomID int64, errorCode int) models.Room {
	flag := models.FaultNone
	switch errorCode {
	case radarFailure:
		flag = models.FaultRadarFailure
	case radarAbnormal:
		flag = models.FaultRadarAbnormal
	}

	room, changed := c.registry.SetFault(roomID, flag)
	if changed && flag != models.FaultNone {
		c.publishFault(roomID, flag)
	}
	return room
}

func (c *Consumer) publishRoomData(room *models.Room, occupant *models.Personnel) {
	name := ""
	if occupant != nil {
		name = occupant.Name
	}
	c.publisher.Publish(hub.RoomTopic(room.ID), models.NewRoomDataMessage(room, name))
}

func (c *Consumer) publishFault(roomID int64, flag models.FaultFlag) {
	c.publisher.Publish(hub.RoomTopic(roomID), &models.FaultMessage{
		Type:   models.MessageType(flag),
		RoomID: roomID,
	})
	c.logger.Warn("Room fault flag raised",
		zap.Int64("room_id", roomID),
		zap.String("fault", string(flag)),
	)
}
