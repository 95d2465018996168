package alarmstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"vitalhub/internal/hub"
	"vitalhub/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound 指定的 active 报警不存在
var ErrNotFound = errors.New("alarm not found")

// Publisher 事件分发接口（由 hub.Hub 实现）
type Publisher interface {
	Publish(topic string, msg interface{})
}

// History 报警历史持久化接口
type History interface {
	InsertAlarm(ctx context.Context, alarm *models.Alarm) error
	UpdateAlarm(ctx context.Context, alarm *models.Alarm) error
	ResolveAlarm(ctx context.Context, alarmID string, status models.AlarmStatus, handlingMethod string, handledAt time.Time) error
}

// Store 报警去重与生命周期管理
// 不变式：每个房间至多一条 active 报警。重复触发原地更新同一条报警
// （保持 id），不产生重复记录。报警只能由操作员处理清除，生命体征
// 恢复正常不会自动清除。
type Store struct {
	mu     sync.Mutex
	byRoom map[int64]*models.Alarm
	byID   map[string]*models.Alarm

	publisher Publisher
	history   History
	logger    *zap.Logger
	now       func() time.Time
}

// NewStore 创建报警存储
func NewStore(publisher Publisher, history History, logger *zap.Logger) *Store {
	return &Store{
		byRoom:    make(map[int64]*models.Alarm),
		byID:      make(map[string]*models.Alarm),
		publisher: publisher,
		history:   history,
		logger:    logger,
		now:       time.Now,
	}
}

// Trigger 触发报警
// 房间已有 active 报警时原地替换其级别/消息/时间戳并重新广播，
// 否则创建新报警。返回当前报警的副本。
func (s *Store) Trigger(
	ctx context.Context,
	roomID int64,
	personnelID *int64,
	level models.AlarmLevel,
	message string,
	medicalHistoryCode string,
) (*models.Alarm, error) {
	s.mu.Lock()

	now := s.now()
	alarm, exists := s.byRoom[roomID]
	if exists {
		alarm.Level = level
		alarm.Message = message
		alarm.MedicalHistoryCode = medicalHistoryCode
		alarm.PersonnelID = personnelID
		alarm.TriggeredAt = now
	} else {
		alarm = &models.Alarm{
			ID:                 uuid.New().String(),
			RoomID:             roomID,
			PersonnelID:        personnelID,
			Level:              level,
			Message:            message,
			MedicalHistoryCode: medicalHistoryCode,
			Status:             models.AlarmActive,
			TriggeredAt:        now,
		}
		s.byRoom[roomID] = alarm
		s.byID[alarm.ID] = alarm
	}
	snapshot := *alarm
	s.mu.Unlock()

	// 持久化失败降级为日志，报警广播不能因存储不可用而丢失
	if s.history != nil {
		var err error
		if exists {
			err = s.history.UpdateAlarm(ctx, &snapshot)
		} else {
			err = s.history.InsertAlarm(ctx, &snapshot)
		}
		if err != nil {
			s.logger.Error("Failed to persist alarm",
				zap.String("alarm_id", snapshot.ID),
				zap.Int64("room_id", roomID),
				zap.Error(err),
			)
		}
	}

	s.publish(&snapshot)

	s.logger.Info("Alarm triggered",
		zap.String("alarm_id", snapshot.ID),
		zap.Int64("room_id", roomID),
		zap.Int("level", int(snapshot.Level)),
		zap.Bool("replaced", exists),
	)
	return &snapshot, nil
}

// Resolve 操作员处理报警，将其移出 active 集合
// status 必须是 handled 或 ignored。
func (s *Store) Resolve(ctx context.Context, alarmID string, status models.AlarmStatus, handlingMethod string) error {
	if status != models.AlarmHandled && status != models.AlarmIgnored {
		status = models.AlarmHandled
	}

	s.mu.Lock()
	alarm, ok := s.byID[alarmID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}

	now := s.now()
	alarm.Status = status
	alarm.HandlingMethod = handlingMethod
	alarm.HandledAt = &now

	delete(s.byRoom, alarm.RoomID)
	delete(s.byID, alarmID)
	snapshot := *alarm
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.ResolveAlarm(ctx, alarmID, status, handlingMethod, now); err != nil {
			s.logger.Error("Failed to persist alarm resolution",
				zap.String("alarm_id", alarmID),
				zap.Error(err),
			)
		}
	}

	s.publish(&snapshot)

	s.logger.Info("Alarm resolved",
		zap.String("alarm_id", alarmID),
		zap.Int64("room_id", snapshot.RoomID),
		zap.String("status", string(status)),
		zap.String("handling_method", handlingMethod),
	)
	return nil
}

// ListActive 当前全部 active 报警（按房间排序）
func (s *Store) ListActive() []models.Alarm {
	s.mu.Lock()
	alarms := make([]models.Alarm, 0, len(s.byRoom))
	for _, a := range s.byRoom {
		alarms = append(alarms, *a)
	}
	s.mu.Unlock()

	sort.Slice(alarms, func(i, j int) bool { return alarms[i].RoomID < alarms[j].RoomID })
	return alarms
}

// ActiveForRoom 查询房间的 active 报警
func (s *Store) ActiveForRoom(roomID int64) (*models.Alarm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alarm, ok := s.byRoom[roomID]
	if !ok {
		return nil, false
	}
	snapshot := *alarm
	return &snapshot, true
}

// publish 广播到房间主题；通配订阅者由 hub 负责送达
func (s *Store) publish(alarm *models.Alarm) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(hub.RoomTopic(alarm.RoomID), &models.AlertMessage{
		Type:               models.MsgAlertMessage,
		RoomID:             alarm.RoomID,
		AlarmID:            alarm.ID,
		Level:              alarm.Level,
		Message:            alarm.Message,
		MedicalHistoryCode: alarm.MedicalHistoryCode,
		Status:             alarm.Status,
	})
}
