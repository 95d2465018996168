package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vitalhub/internal/models"

	"go.uber.org/zap"
)

// AlarmHistoryRepository 报警历史仓库
type AlarmHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlarmHistoryRepository 创建报警历史仓库
func NewAlarmHistoryRepository(db *sql.DB, logger *zap.Logger) *AlarmHistoryRepository {
	return &AlarmHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// AlarmFilters 历史查询条件（nil 表示不过滤）
type AlarmFilters struct {
	RoomID    *int64
	Level     *models.AlarmLevel
	Status    *models.AlarmStatus
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// InsertAlarm 写入新报警
func (r *AlarmHistoryRepository) InsertAlarm(ctx context.Context, alarm *models.Alarm) error {
	query := `
		INSERT INTO alarm_history (
			id, room_id, personnel_id, level, message,
			medical_history_code, status, triggered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		alarm.ID,
		alarm.RoomID,
		alarm.PersonnelID,
		int(alarm.Level),
		alarm.Message,
		alarm.MedicalHistoryCode,
		string(alarm.Status),
		alarm.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alarm: %w", err)
	}
	return nil
}

// UpdateAlarm 原地更新报警（重复触发时刷新级别/消息/时间）
func (r *AlarmHistoryRepository) UpdateAlarm(ctx context.Context, alarm *models.Alarm) error {
	query := `
		UPDATE alarm_history
		SET level = $1, message = $2, medical_history_code = $3,
		    personnel_id = $4, triggered_at = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		int(alarm.Level),
		alarm.Message,
		alarm.MedicalHistoryCode,
		alarm.PersonnelID,
		alarm.TriggeredAt,
		alarm.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update alarm: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alarm not found: id=%s", alarm.ID)
	}
	return nil
}

// ResolveAlarm 记录操作员处理结果
func (r *AlarmHistoryRepository) ResolveAlarm(ctx context.Context, alarmID string, status models.AlarmStatus, handlingMethod string, handledAt time.Time) error {
	query := `
		UPDATE alarm_history
		SET status = $1, handling_method = $2, handled_at = $3
		WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, string(status), handlingMethod, handledAt, alarmID)
	if err != nil {
		return fmt.Errorf("failed to resolve alarm: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alarm not found: id=%s", alarmID)
	}
	return nil
}

// ListAlarms 按条件查询报警历史（倒序，最新在前）
func (r *AlarmHistoryRepository) ListAlarms(ctx context.Context, filters AlarmFilters) ([]models.Alarm, error) {
	query := `
		SELECT id, room_id, personnel_id, level, message,
		       medical_history_code, status, handling_method,
		       triggered_at, handled_at
		FROM alarm_history
		WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if filters.RoomID != nil {
		query += fmt.Sprintf(" AND room_id = $%d", argIndex)
		args = append(args, *filters.RoomID)
		argIndex++
	}
	if filters.Level != nil {
		query += fmt.Sprintf(" AND level = $%d", argIndex)
		args = append(args, int(*filters.Level))
		argIndex++
	}
	if filters.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, string(*filters.Status))
		argIndex++
	}
	if filters.StartTime != nil {
		query += fmt.Sprintf(" AND triggered_at >= $%d", argIndex)
		args = append(args, *filters.StartTime)
		argIndex++
	}
	if filters.EndTime != nil {
		query += fmt.Sprintf(" AND triggered_at <= $%d", argIndex)
		args = append(args, *filters.EndTime)
		argIndex++
	}

	query += " ORDER BY triggered_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filters.Limit)
		argIndex++
	}
	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarm history: %w", err)
	}
	defer rows.Close()

	var alarms []models.Alarm
	for rows.Next() {
		var a models.Alarm
		var level int
		var status string
		var history, handling sql.NullString
		var handledAt sql.NullTime

		err := rows.Scan(
			&a.ID,
			&a.RoomID,
			&a.PersonnelID,
			&level,
			&a.Message,
			&history,
			&status,
			&handling,
			&a.TriggeredAt,
			&handledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm: %w", err)
		}

		a.Level = models.AlarmLevel(level)
		a.Status = models.AlarmStatus(status)
		a.MedicalHistoryCode = history.String
		a.HandlingMethod = handling.String
		if handledAt.Valid {
			a.HandledAt = &handledAt.Time
		}
		alarms = append(alarms, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alarm history: %w", err)
	}

	return alarms, nil
}
