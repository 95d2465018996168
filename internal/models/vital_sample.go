package models

// VitalSample 一次雷达生命体征采样
type VitalSample struct {
	RoomID     int64 `json:"room_id"`
	HeartRate  *int  `json:"heart_rate"`  // 次/分钟
	BreathRate *int  `json:"breath_rate"` // 次/分钟
	Distance   *int  `json:"distance"`    // 目标距离（cm）
	Timestamp  int64 `json:"timestamp"`   // Unix 时间戳
}
