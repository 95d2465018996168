package service

import (
	"context"
	"fmt"

	"vitalhub/internal/httpapi"
	"vitalhub/internal/hub"
	"vitalhub/internal/ingest"
	"vitalhub/internal/models"
	"vitalhub/internal/occupancy"
	"vitalhub/internal/repository"

	"go.uber.org/zap"
)

// CheckIn 人员入住
// 先在状态机中占位（校验冲突），再持久化并装配阈值配置。
// 持久化失败时回滚占位，保证内存与数据库一致。
func (s *MonitorService) CheckIn(ctx context.Context, roomID, personnelID int64) error {
	if err := s.occupancy.CheckIn(roomID, personnelID); err != nil {
		return err
	}

	rollback := func() {
		if _, err := s.occupancy.CheckOut(roomID); err != nil {
			s.logger.Error("Failed to roll back check-in",
				zap.Int64("room_id", roomID),
				zap.Error(err),
			)
		}
	}

	p, err := s.personnelRepo.GetPersonnel(ctx, personnelID)
	if err != nil {
		rollback()
		return fmt.Errorf("%w: %v", httpapi.ErrUnavailable, err)
	}
	if err := s.roomRepo.UpdateOccupant(ctx, roomID, &personnelID); err != nil {
		rollback()
		return fmt.Errorf("%w: %v", httpapi.ErrUnavailable, err)
	}

	s.registry.SetOccupant(roomID, p)
	s.rearm(ctx, roomID)
	s.broadcastRoom(roomID)

	s.logger.Info("Personnel checked in",
		zap.Int64("room_id", roomID),
		zap.Int64("personnel_id", personnelID),
	)
	return nil
}

// CheckOut 人员退房
func (s *MonitorService) CheckOut(ctx context.Context, roomID int64) error {
	personnelID, err := s.occupancy.CheckOut(roomID)
	if err != nil {
		return err
	}

	if err := s.roomRepo.UpdateOccupant(ctx, roomID, nil); err != nil {
		if rbErr := s.occupancy.CheckIn(roomID, personnelID); rbErr != nil {
			s.logger.Error("Failed to roll back check-out",
				zap.Int64("room_id", roomID),
				zap.Error(rbErr),
			)
		}
		return fmt.Errorf("%w: %v", httpapi.ErrUnavailable, err)
	}

	s.registry.SetOccupant(roomID, nil)
	s.rearm(ctx, roomID)
	s.broadcastRoom(roomID)

	s.logger.Info("Personnel checked out",
		zap.Int64("room_id", roomID),
		zap.Int64("personnel_id", personnelID),
	)
	return nil
}

// SwitchRoom 换房
// 状态机负责原子校验：目标被占用或来源无人时整体拒绝，不产生中间态。
func (s *MonitorService) SwitchRoom(ctx context.Context, fromRoomID, toRoomID int64) error {
	personnelID, ok := s.occupancy.OccupantOf(fromRoomID)
	if !ok {
		return fmt.Errorf("%w: room %d has no occupant", occupancy.ErrInvalidTransition, fromRoomID)
	}

	if err := s.occupancy.SwitchRoom(fromRoomID, toRoomID, personnelID); err != nil {
		return err
	}

	rollback := func() {
		if err := s.occupancy.SwitchRoom(toRoomID, fromRoomID, personnelID); err != nil {
			s.logger.Error("Failed to roll back room switch",
				zap.Int64("from_room_id", fromRoomID),
				zap.Int64("to_room_id", toRoomID),
				zap.Error(err),
			)
		}
	}

	if err := s.roomRepo.UpdateOccupant(ctx, fromRoomID, nil); err != nil {
		rollback()
		return fmt.Errorf("%w: %v", httpapi.ErrUnavailable, err)
	}
	if err := s.roomRepo.UpdateOccupant(ctx, toRoomID, &personnelID); err != nil {
		// 来源已清空：恢复来源再回滚状态机
		if rbErr := s.roomRepo.UpdateOccupant(ctx, fromRoomID, &personnelID); rbErr != nil {
			s.logger.Error("Failed to restore source room binding",
				zap.Int64("room_id", fromRoomID),
				zap.Error(rbErr),
			)
		}
		rollback()
		return fmt.Errorf("%w: %v", httpapi.ErrUnavailable, err)
	}

	_, occupant, _ := s.registry.Get(fromRoomID)
	s.registry.SetOccupant(fromRoomID, nil)
	s.registry.SetOccupant(toRoomID, occupant)
	s.rearm(ctx, fromRoomID)
	s.rearm(ctx, toRoomID)
	s.broadcastRoom(fromRoomID)
	s.broadcastRoom(toRoomID)

	s.logger.Info("Personnel switched room",
		zap.Int64("from_room_id", fromRoomID),
		zap.Int64("to_room_id", toRoomID),
		zap.Int64("personnel_id", personnelID),
	)
	return nil
}

// SetArmed 布防/撤防
// 重新布防时清零连续违规计数，布防后的前几个违规样本按启动瞬态抑制。
func (s *MonitorService) SetArmed(ctx context.Context, roomID int64, enabled bool) error {
	if _, _, ok := s.registry.Get(roomID); !ok {
		return occupancy.ErrRoomNotFound
	}

	if err := s.roomRepo.SetEnabled(ctx, roomID, enabled); err != nil {
		return fmt.Errorf("%w: %v", httpapi.ErrUnavailable, err)
	}

	s.registry.SetEnabled(roomID, enabled)
	if enabled {
		s.rearm(ctx, roomID)
	}
	s.broadcastRoom(roomID)

	s.logger.Info("Room arming changed",
		zap.Int64("room_id", roomID),
		zap.Bool("enabled", enabled),
	)
	return nil
}

// RoomSnapshots 全部房间状态快照
func (s *MonitorService) RoomSnapshots() []ingest.RoomSnapshot {
	return s.registry.Snapshot()
}

// ResolveAlarm 操作员处理报警
func (s *MonitorService) ResolveAlarm(ctx context.Context, alarmID string, status models.AlarmStatus, handlingMethod string) error {
	return s.alarms.Resolve(ctx, alarmID, status, handlingMethod)
}

// ListHistory 报警历史查询
func (s *MonitorService) ListHistory(ctx context.Context, filters repository.AlarmFilters) ([]models.Alarm, error) {
	alarms, err := s.alarmHistory.ListAlarms(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpapi.ErrUnavailable, err)
	}
	return alarms, nil
}

// ActiveAlarms 当前 active 报警
func (s *MonitorService) ActiveAlarms() []models.Alarm {
	return s.alarms.ListActive()
}

// rearm 占用变化后清零连续违规计数
func (s *MonitorService) rearm(ctx context.Context, roomID int64) {
	if err := s.engine.Rearm(ctx, roomID); err != nil {
		s.logger.Warn("Failed to rearm threshold state",
			zap.Int64("room_id", roomID),
			zap.Error(err),
		)
	}
}

// broadcastRoom 推送房间最新状态
func (s *MonitorService) broadcastRoom(roomID int64) {
	room, occupant, ok := s.registry.Get(roomID)
	if !ok {
		return
	}
	name := ""
	if occupant != nil {
		name = occupant.Name
	}
	s.hub.Publish(hub.RoomTopic(roomID), models.NewRoomDataMessage(&room, name))
}
