package models

// MessageType WebSocket 消息类型（固定集合，服务端与前端共同约定）
type MessageType string

const (
	MsgSubscribe      MessageType = "subscribe"
	MsgRoomData       MessageType = "roomData"
	MsgAlertMessage   MessageType = "alertMessage"
	MsgNetworkFailure MessageType = "networkFailure"
	MsgRadarFailure   MessageType = "radarFailure"
	MsgRadarAbnormal  MessageType = "radarAbnormal"
)

// SubscribeRequest 客户端订阅请求
type SubscribeRequest struct {
	Type  MessageType `json:"type"`
	Topic string      `json:"topic"`
}

// SubscribeAck 订阅响应
type SubscribeAck struct {
	Type    MessageType `json:"type"`
	Success bool        `json:"success"`
	Topic   string      `json:"topic"`
	Error   string      `json:"error,omitempty"`
}

// RoomDataMessage 房间实时数据推送
type RoomDataMessage struct {
	Type             MessageType `json:"type"`
	RoomID           int64       `json:"roomId"`
	Name             string      `json:"name,omitempty"`
	Enabled          bool        `json:"enabled"`
	HeartRate        *int        `json:"heartRate,omitempty"`
	BreathRate       *int        `json:"breathRate,omitempty"`
	Distance         *int        `json:"distance,omitempty"`
	MattressDistance int         `json:"mattress_distance,omitempty"`
	PersonPose       PersonPose  `json:"person_pose,omitempty"`
	PersonnelID      *int64      `json:"personnel_id,omitempty"`
	PersonnelName    string      `json:"personnel_name,omitempty"`
	Time             int64       `json:"time,omitempty"`
	NetworkFailure   bool        `json:"networkFailure"`
	RadarFailure     bool        `json:"radarFailure"`
	RadarAbnormal    bool        `json:"radarAbnormal"`
}

// AlertMessage 报警推送
// 触发和处理共用该类型：触发时 Status 为 active，处理时为 handled/ignored。
type AlertMessage struct {
	Type               MessageType `json:"type"`
	RoomID             int64       `json:"roomId"`
	AlarmID            string      `json:"alarmId"`
	Level              AlarmLevel  `json:"level"`
	Message            string      `json:"message"`
	MedicalHistoryCode string      `json:"medicalHistoryCode,omitempty"`
	Status             AlarmStatus `json:"status,omitempty"`
}

// FaultMessage 故障标志推送（Type 为三种故障类型之一）
type FaultMessage struct {
	Type   MessageType `json:"type"`
	RoomID int64       `json:"roomId"`
}

// NewRoomDataMessage 从房间快照构建 roomData 消息
func NewRoomDataMessage(room *Room, personnelName string) *RoomDataMessage {
	return &RoomDataMessage{
		Type:             MsgRoomData,
		RoomID:           room.ID,
		Name:             room.Name,
		Enabled:          room.Enabled,
		HeartRate:        room.HeartRate,
		BreathRate:       room.BreathRate,
		Distance:         room.Distance,
		MattressDistance: room.MattressDistance,
		PersonPose:       room.PersonPose,
		PersonnelID:      room.OccupantID,
		PersonnelName:    personnelName,
		Time:             room.Time,
		NetworkFailure:   room.NetworkFailure,
		RadarFailure:     room.RadarFailure,
		RadarAbnormal:    room.RadarAbnormal,
	}
}
