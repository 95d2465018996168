package ingest

import (
	"sync"
	"time"

	"vitalhub/internal/models"

	"go.uber.org/zap"
)

// RoomSnapshot 房间状态快照（含入住人员姓名）
type RoomSnapshot struct {
	Room          models.Room
	PersonnelName string
}

type entry struct {
	room     models.Room
	occupant *models.Personnel
}

// Registry 房间运行时状态表
// 持有每个房间的实时字段、故障标志与入住人员阈值配置，
// 以房间 id 和雷达序列号双索引。所有方法并发安全，返回副本。
type Registry struct {
	mu     sync.RWMutex
	byID   map[int64]*entry
	bySN   map[string]*entry
	logger *zap.Logger
}

// NewRegistry 创建状态表
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byID:   make(map[int64]*entry),
		bySN:   make(map[string]*entry),
		logger: logger,
	}
}

// Load 从数据库快照初始化（启动时调用，覆盖全部状态）
func (r *Registry) Load(rooms []models.Room, occupants map[int64]*models.Personnel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[int64]*entry, len(rooms))
	r.bySN = make(map[string]*entry, len(rooms))
	for i := range rooms {
		e := &entry{room: rooms[i]}
		if rooms[i].OccupantID != nil {
			e.occupant = occupants[*rooms[i].OccupantID]
		}
		r.byID[rooms[i].ID] = e
		if rooms[i].RadarSN != "" {
			r.bySN[rooms[i].RadarSN] = e
		}
	}
}

// ApplySample 按雷达序列号写入一次采样
// 数据到达即清除 networkFailure；radarFailure/radarAbnormal 由调用方
// 根据载荷另行设置。返回更新后的房间副本与入住人员。
func (r *Registry) ApplySample(radarSN string, sample *models.VitalSample) (models.Room, *models.Personnel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.bySN[radarSN]
	if !ok {
		return models.Room{}, nil, false
	}

	e.room.HeartRate = sample.HeartRate
	e.room.BreathRate = sample.BreathRate
	e.room.Distance = sample.Distance
	e.room.Time = sample.Timestamp
	if e.room.NetworkFailure {
		e.room.SetFault(models.FaultNone)
	}

	sample.RoomID = e.room.ID
	return e.room, e.occupant, true
}

// SetFault 设置房间故障标志，返回更新后的副本与标志是否发生变化
func (r *Registry) SetFault(roomID int64, flag models.FaultFlag) (models.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[roomID]
	if !ok {
		return models.Room{}, false
	}
	if e.room.Fault() == flag {
		return e.room, false
	}
	e.room.SetFault(flag)
	return e.room, true
}

// SetOccupant 绑定入住人员（nil 表示清空），同时清空实时字段
func (r *Registry) SetOccupant(roomID int64, p *models.Personnel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[roomID]
	if !ok {
		return
	}
	e.occupant = p
	if p != nil {
		e.room.OccupantID = &p.ID
	} else {
		e.room.OccupantID = nil
	}
	e.room.HeartRate = nil
	e.room.BreathRate = nil
	e.room.Distance = nil
}

// SetEnabled 布防/撤防
func (r *Registry) SetEnabled(roomID int64, enabled bool) (models.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[roomID]
	if !ok {
		return models.Room{}, false
	}
	e.room.Enabled = enabled
	return e.room, true
}

// Get 查询房间状态副本
func (r *Registry) Get(roomID int64) (models.Room, *models.Personnel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byID[roomID]
	if !ok {
		return models.Room{}, nil, false
	}
	return e.room, e.occupant, true
}

// Snapshot 全部房间快照（按 id 无序，调用方自行排序）
func (r *Registry) Snapshot() []RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]RoomSnapshot, 0, len(r.byID))
	for _, e := range r.byID {
		s := RoomSnapshot{Room: e.room}
		if e.occupant != nil {
			s.PersonnelName = e.occupant.Name
		}
		snapshots = append(snapshots, s)
	}
	return snapshots
}

// StaleRooms 返回超时未收到数据且尚未标记网络故障的房间 id
// 从未收到过数据（Time 为 0）的房间不算超时。
func (r *Registry) StaleRooms(now time.Time, timeout time.Duration) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deadline := now.Add(-timeout).Unix()
	var stale []int64
	for id, e := range r.byID {
		if e.room.Time == 0 || e.room.NetworkFailure {
			continue
		}
		if e.room.Time < deadline {
			stale = append(stale, id)
		}
	}
	return stale
}
