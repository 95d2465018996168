package occupancy

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// 入住/退房操作的冲突错误，管理接口同步返回，不重试
var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrPersonnelNotFound   = errors.New("personnel not found")
	ErrAlreadyOccupied     = errors.New("room already occupied")
	ErrPersonAlreadyPlaced = errors.New("person already placed in another room")
	ErrInvalidTransition   = errors.New("invalid transition")
)

// Binding 房间与人员的绑定关系
type Binding struct {
	RoomID      int64
	PersonnelID int64
}

// StateMachine 入住状态机
// 唯一持有房间↔人员绑定关系的组件。不变式：
//   - 一个房间至多一名入住人员
//   - 一名人员至多绑定一个房间
//
// 所有操作在同一把锁下完成，换房是单个原子迁移，目标房间不可用时
// 原绑定保持不变。
type StateMachine struct {
	mu           sync.Mutex
	rooms        map[int64]struct{}
	personnel    map[int64]struct{}
	roomToPerson map[int64]int64
	personToRoom map[int64]int64
	logger       *zap.Logger
}

// NewStateMachine 创建入住状态机
func NewStateMachine(logger *zap.Logger) *StateMachine {
	return &StateMachine{
		rooms:        make(map[int64]struct{}),
		personnel:    make(map[int64]struct{}),
		roomToPerson: make(map[int64]int64),
		personToRoom: make(map[int64]int64),
		logger:       logger,
	}
}

// Load 从持久层加载已知房间、人员和现有绑定
func (m *StateMachine) Load(roomIDs, personnelIDs []int64, bindings []Binding) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range roomIDs {
		m.rooms[id] = struct{}{}
	}
	for _, id := range personnelIDs {
		m.personnel[id] = struct{}{}
	}
	for _, b := range bindings {
		m.roomToPerson[b.RoomID] = b.PersonnelID
		m.personToRoom[b.PersonnelID] = b.RoomID
	}
}

// AddRoom 注册房间
func (m *StateMachine) AddRoom(roomID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[roomID] = struct{}{}
}

// AddPersonnel 注册人员
func (m *StateMachine) AddPersonnel(personnelID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personnel[personnelID] = struct{}{}
}

// CheckIn 入住：房间必须为空，人员不能已绑定其他房间
func (m *StateMachine) CheckIn(roomID, personnelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkInLocked(roomID, personnelID); err != nil {
		return err
	}

	m.logger.Info("Person checked in",
		zap.Int64("room_id", roomID),
		zap.Int64("personnel_id", personnelID),
	)
	return nil
}

func (m *StateMachine) checkInLocked(roomID, personnelID int64) error {
	if _, ok := m.rooms[roomID]; !ok {
		return ErrRoomNotFound
	}
	if _, ok := m.personnel[personnelID]; !ok {
		return ErrPersonnelNotFound
	}
	if _, occupied := m.roomToPerson[roomID]; occupied {
		return ErrAlreadyOccupied
	}
	if _, placed := m.personToRoom[personnelID]; placed {
		return ErrPersonAlreadyPlaced
	}

	m.roomToPerson[roomID] = personnelID
	m.personToRoom[personnelID] = roomID
	return nil
}

// CheckOut 退房：房间必须已入住，返回退房人员 ID
func (m *StateMachine) CheckOut(roomID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	personnelID, err := m.checkOutLocked(roomID)
	if err != nil {
		return 0, err
	}

	m.logger.Info("Person checked out",
		zap.Int64("room_id", roomID),
		zap.Int64("personnel_id", personnelID),
	)
	return personnelID, nil
}

func (m *StateMachine) checkOutLocked(roomID int64) (int64, error) {
	if _, ok := m.rooms[roomID]; !ok {
		return 0, ErrRoomNotFound
	}
	personnelID, occupied := m.roomToPerson[roomID]
	if !occupied {
		return 0, ErrInvalidTransition
	}

	delete(m.roomToPerson, roomID)
	delete(m.personToRoom, personnelID)
	return personnelID, nil
}

// SwitchRoom 换房：单个原子迁移
// 先校验目标房间可用，任一步失败则原绑定保持不变。
func (m *StateMachine) SwitchRoom(fromRoomID, toRoomID, personnelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[fromRoomID]; !ok {
		return ErrRoomNotFound
	}
	if _, ok := m.rooms[toRoomID]; !ok {
		return ErrRoomNotFound
	}
	if _, ok := m.personnel[personnelID]; !ok {
		return ErrPersonnelNotFound
	}

	// 人员必须正绑定在源房间
	if current, occupied := m.roomToPerson[fromRoomID]; !occupied || current != personnelID {
		return ErrInvalidTransition
	}
	// 目标房间必须为空（先校验再迁移，失败不留半成品状态）
	if _, occupied := m.roomToPerson[toRoomID]; occupied {
		return ErrAlreadyOccupied
	}

	delete(m.roomToPerson, fromRoomID)
	m.roomToPerson[toRoomID] = personnelID
	m.personToRoom[personnelID] = toRoomID

	m.logger.Info("Person switched room",
		zap.Int64("from_room_id", fromRoomID),
		zap.Int64("to_room_id", toRoomID),
		zap.Int64("personnel_id", personnelID),
	)
	return nil
}

// OccupantOf 查询房间入住人员
func (m *StateMachine) OccupantOf(roomID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.roomToPerson[roomID]
	return id, ok
}

// RoomOf 查询人员所在房间
func (m *StateMachine) RoomOf(personnelID int64) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.personToRoom[personnelID]
	return id, ok
}

// Bindings 当前全部绑定关系的快照
func (m *StateMachine) Bindings() []Binding {
	m.mu.Lock()
	defer m.mu.Unlock()

	bindings := make([]Binding, 0, len(m.roomToPerson))
	for roomID, personnelID := range m.roomToPerson {
		bindings = append(bindings, Binding{RoomID: roomID, PersonnelID: personnelID})
	}
	return bindings
}
