package models

import "time"

// AlarmLevel 报警级别（1 最严重）
type AlarmLevel int

const (
	LevelExtreme  AlarmLevel = 1 // 极度危险：超出绝对阈值且达到危急余量
	LevelDanger   AlarmLevel = 2 // 危险：超出绝对阈值
	LevelAbnormal AlarmLevel = 3 // 异常：仅超出比例阈值
)

// MoreSevere 判断 l 是否比 other 更严重
func (l AlarmLevel) MoreSevere(other AlarmLevel) bool {
	return l < other
}

// AlarmStatus 报警生命周期状态
type AlarmStatus string

const (
	AlarmActive  AlarmStatus = "active"
	AlarmHandled AlarmStatus = "handled"
	AlarmIgnored AlarmStatus = "ignored"
)

// Alarm 报警记录
// 不变式：每个房间同一时刻至多一条 active 报警，重复触发原地更新。
type Alarm struct {
	ID                 string      `json:"id" db:"id"`
	RoomID             int64       `json:"room_id" db:"room_id"`
	PersonnelID        *int64      `json:"personnel_id,omitempty" db:"personnel_id"`
	Level              AlarmLevel  `json:"level" db:"level"`
	Message            string      `json:"message" db:"message"`
	MedicalHistoryCode string      `json:"medical_history_code,omitempty" db:"medical_history_code"`
	Status             AlarmStatus `json:"status" db:"status"`
	HandlingMethod     string      `json:"handling_method,omitempty" db:"handling_method"`
	TriggeredAt        time.Time   `json:"triggered_at" db:"triggered_at"`
	HandledAt          *time.Time  `json:"handled_at,omitempty" db:"handled_at"`
}
