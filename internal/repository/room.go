package repository

import (
	"context"
	"database/sql"
	"fmt"

	"vitalhub/internal/models"

	"go.uber.org/zap"
)

// RoomRepository 房间仓库
type RoomRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRoomRepository 创建房间仓库
func NewRoomRepository(db *sql.DB, logger *zap.Logger) *RoomRepository {
	return &RoomRepository{
		db:     db,
		logger: logger,
	}
}

const roomColumns = `
	id, name, ip, radar_id, radar_sn, enabled,
	mattress_distance, person_pose, personnel_id, remark
`

// ListRooms 获取全部房间
func (r *RoomRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}

	return rooms, nil
}

// GetRoom 获取单个房间
func (r *RoomRepository) GetRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = $1`

	room, err := scanRoom(r.db.QueryRowContext(ctx, query, roomID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("room not found: id=%d", roomID)
		}
		return nil, err
	}
	return room, nil
}

// UpdateOccupant 更新房间入住人员（nil 表示清空）
func (r *RoomRepository) UpdateOccupant(ctx context.Context, roomID int64, personnelID *int64) error {
	query := `UPDATE rooms SET personnel_id = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, personnelID, roomID)
	if err != nil {
		return fmt.Errorf("failed to update room occupant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("room not found: id=%d", roomID)
	}

	return nil
}

// SetEnabled 布防/撤防
func (r *RoomRepository) SetEnabled(ctx context.Context, roomID int64, enabled bool) error {
	query := `UPDATE rooms SET enabled = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, enabled, roomID)
	if err != nil {
		return fmt.Errorf("failed to update room enabled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("room not found: id=%d", roomID)
	}

	return nil
}

// scanner QueryRow / Rows 共用的扫描接口
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(s scanner) (*models.Room, error) {
	var room models.Room
	var occupantID sql.NullInt64
	var pose sql.NullString

	err := s.Scan(
		&room.ID,
		&room.Name,
		&room.IP,
		&room.RadarID,
		&room.RadarSN,
		&room.Enabled,
		&room.MattressDistance,
		&pose,
		&occupantID,
		&room.Remark,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}

	if occupantID.Valid {
		room.OccupantID = &occupantID.Int64
	}
	if pose.Valid {
		room.PersonPose = models.PersonPose(pose.String)
	}
	return &room, nil
}
