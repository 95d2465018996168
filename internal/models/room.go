package models

// PersonPose 房间内人员姿态
type PersonPose string

const (
	PoseSitting PersonPose = "sitting"
	PoseLying   PersonPose = "lying"
)

// FaultFlag 房间故障标志（互斥，取最具体的一项）
type FaultFlag string

const (
	FaultNone           FaultFlag = ""
	FaultNetworkFailure FaultFlag = "networkFailure"
	FaultRadarFailure   FaultFlag = "radarFailure"
	FaultRadarAbnormal  FaultFlag = "radarAbnormal"
)

// Room 监护房间（对应 rooms 表）
type Room struct {
	ID               int64      `json:"id" db:"id"`
	Name             string     `json:"name" db:"name"`
	IP               string     `json:"ip" db:"ip"`
	RadarID          int64      `json:"radar_id" db:"radar_id"`
	RadarSN          string     `json:"radar_sn" db:"radar_sn"` // 雷达设备标识（MQTT 主题段）
	Enabled          bool       `json:"enabled" db:"enabled"`   // 是否布防
	MattressDistance int        `json:"mattress_distance" db:"mattress_distance"` // lying 姿态的参考距离（cm）
	PersonPose       PersonPose `json:"person_pose" db:"person_pose"`
	OccupantID       *int64     `json:"personnel_id,omitempty" db:"personnel_id"`
	Remark           string     `json:"remark" db:"remark"`

	// 实时字段（非持久化，由雷达数据更新）
	HeartRate  *int  `json:"heartRate,omitempty"`
	BreathRate *int  `json:"breathRate,omitempty"`
	Distance   *int  `json:"distance,omitempty"`
	Time       int64 `json:"time,omitempty"` // 最近一次数据的 Unix 时间戳

	// 故障标志（互斥）
	NetworkFailure bool `json:"networkFailure"`
	RadarFailure   bool `json:"radarFailure"`
	RadarAbnormal  bool `json:"radarAbnormal"`
}

// Fault 返回当前故障标志（radarAbnormal > radarFailure > networkFailure）
func (r *Room) Fault() FaultFlag {
	switch {
	case r.RadarAbnormal:
		return FaultRadarAbnormal
	case r.RadarFailure:
		return FaultRadarFailure
	case r.NetworkFailure:
		return FaultNetworkFailure
	}
	return FaultNone
}

// SetFault 设置故障标志，保证互斥
func (r *Room) SetFault(flag FaultFlag) {
	r.NetworkFailure = flag == FaultNetworkFailure
	r.RadarFailure = flag == FaultRadarFailure
	r.RadarAbnormal = flag == FaultRadarAbnormal
}

// HasFault 是否存在故障
func (r *Room) HasFault() bool {
	return r.Fault() != FaultNone
}
