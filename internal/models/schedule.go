package models

// Schedule 作息时间段（对应 personnel_schedules 表）
// 两种形式：
//   - 每周重复：DaysOfWeek 为 "1,3,5" 形式的星期集合（1=周一..7=周日）
//   - 日期区间：DateRanges 非空，每个闭区间配合每日 StartTime/EndTime
//
// EndTime < StartTime 表示跨午夜时间段。
type Schedule struct {
	ID          int64       `json:"id,omitempty" db:"id"`
	PersonnelID int64       `json:"personnel_id" db:"personnel_id"`
	StartTime   string      `json:"start_time" db:"start_time"` // "HH:mm"
	EndTime     string      `json:"end_time" db:"end_time"`     // "HH:mm"
	DaysOfWeek  string      `json:"days_of_week,omitempty" db:"days_of_week"`
	DateRanges  []DateRange `json:"date_ranges,omitempty"`
}

// DateRange 日期闭区间
type DateRange struct {
	StartDate string `json:"start_date" db:"start_date"` // "2006-01-02"
	EndDate   string `json:"end_date" db:"end_date"`
}
