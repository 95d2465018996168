package repository

import (
	"context"
	"database/sql"
	"fmt"

	"vitalhub/internal/models"

	"go.uber.org/zap"
)

// PersonnelRepository 人员仓库
type PersonnelRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPersonnelRepository 创建人员仓库
func NewPersonnelRepository(db *sql.DB, logger *zap.Logger) *PersonnelRepository {
	return &PersonnelRepository{
		db:     db,
		logger: logger,
	}
}

const personnelColumns = `
	id, name, id_number, gender, age, occupation, medical_history, remark,
	heart_rate_upper, heart_rate_lower, breath_upper, breath_lower,
	heart_rate_base, breath_base,
	heart_ratio_upper, heart_ratio_lower, breath_ratio_upper, breath_ratio_lower
`

// GetPersonnel 获取人员及其作息时间段
func (r *PersonnelRepository) GetPersonnel(ctx context.Context, personnelID int64) (*models.Personnel, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnel WHERE id = $1`

	p, err := scanPersonnel(r.db.QueryRowContext(ctx, query, personnelID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("personnel not found: id=%d", personnelID)
		}
		return nil, err
	}

	schedules, err := r.listSchedules(ctx, personnelID)
	if err != nil {
		return nil, err
	}
	p.Schedules = schedules

	return p, nil
}

// ListPersonnel 获取全部人员（不含作息时间段）
func (r *PersonnelRepository) ListPersonnel(ctx context.Context) ([]models.Personnel, error) {
	query := `SELECT ` + personnelColumns + ` FROM personnel ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query personnel: %w", err)
	}
	defer rows.Close()

	var list []models.Personnel
	for rows.Next() {
		p, err := scanPersonnel(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate personnel: %w", err)
	}

	return list, nil
}

// listSchedules 获取人员的作息时间段及日期区间
func (r *PersonnelRepository) listSchedules(ctx context.Context, personnelID int64) ([]models.Schedule, error) {
	query := `
		SELECT id, personnel_id, start_time, end_time, days_of_week
		FROM personnel_schedules
		WHERE personnel_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, personnelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		var s models.Schedule
		var days sql.NullString
		if err := rows.Scan(&s.ID, &s.PersonnelID, &s.StartTime, &s.EndTime, &days); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		if days.Valid {
			s.DaysOfWeek = days.String
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}

	for i := range schedules {
		ranges, err := r.listDateRanges(ctx, schedules[i].ID)
		if err != nil {
			return nil, err
		}
		schedules[i].DateRanges = ranges
	}

	return schedules, nil
}

func (r *PersonnelRepository) listDateRanges(ctx context.Context, scheduleID int64) ([]models.DateRange, error) {
	query := `
		SELECT start_date, end_date
		FROM schedule_date_ranges
		WHERE schedule_id = $1
		ORDER BY start_date`

	rows, err := r.db.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query date ranges: %w", err)
	}
	defer rows.Close()

	var ranges []models.DateRange
	for rows.Next() {
		var dr models.DateRange
		if err := rows.Scan(&dr.StartDate, &dr.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan date range: %w", err)
		}
		ranges = append(ranges, dr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate date ranges: %w", err)
	}

	return ranges, nil
}

func scanPersonnel(s scanner) (*models.Personnel, error) {
	var p models.Personnel
	var gender, occupation, history, remark sql.NullString
	var age sql.NullInt64

	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.IDNumber,
		&gender,
		&age,
		&occupation,
		&history,
		&remark,
		&p.HeartRateUpper,
		&p.HeartRateLower,
		&p.BreathUpper,
		&p.BreathLower,
		&p.HeartRateBase,
		&p.BreathBase,
		&p.HeartRatioUpper,
		&p.HeartRatioLower,
		&p.BreathRatioUpper,
		&p.BreathRatioLower,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan personnel: %w", err)
	}

	p.Gender = gender.String
	p.Occupation = occupation.String
	p.MedicalHistory = history.String
	p.Remark = remark.String
	if age.Valid {
		p.Age = int(age.Int64)
	}

	return &p, nil
}
