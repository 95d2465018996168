package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalhub/internal/models"
)

func newTestRegistry() *Registry {
	r := NewRegistry(zap.NewNop())
	occupantID := int64(10)
	r.Load([]models.Room{
		{ID: 1, Name: "201", RadarSN: "RD-201", Enabled: true, OccupantID: &occupantID},
		{ID: 2, Name: "202", RadarSN: "RD-202", Enabled: false},
	}, map[int64]*models.Personnel{
		10: {ID: 10, Name: "张三"},
	})
	return r
}

func TestRegistry_ApplySample(t *testing.T) {
	r := newTestRegistry()

	hr := 70
	room, occupant, ok := r.ApplySample("RD-201", &models.VitalSample{
		HeartRate: &hr,
		Timestamp: 1700000000,
	})

	require.True(t, ok)
	assert.Equal(t, int64(1), room.ID)
	require.NotNil(t, room.HeartRate)
	assert.Equal(t, 70, *room.HeartRate)
	assert.Equal(t, int64(1700000000), room.Time)
	require.NotNil(t, occupant)
	assert.Equal(t, "张三", occupant.Name)
}

func TestRegistry_ApplySample_FillsRoomID(t *testing.T) {
	r := newTestRegistry()

	sample := &models.VitalSample{Timestamp: 1}
	_, _, ok := r.ApplySample("RD-202", sample)

	require.True(t, ok)
	assert.Equal(t, int64(2), sample.RoomID)
}

func TestRegistry_ApplySample_ClearsNetworkFailure(t *testing.T) {
	r := newTestRegistry()
	_, changed := r.SetFault(1, models.FaultNetworkFailure)
	require.True(t, changed)

	room, _, ok := r.ApplySample("RD-201", &models.VitalSample{Timestamp: 1})

	require.True(t, ok)
	assert.False(t, room.NetworkFailure)
}

func TestRegistry_ApplySample_UnknownSN(t *testing.T) {
	r := newTestRegistry()

	_, _, ok := r.ApplySample("RD-999", &models.VitalSample{})
	assert.False(t, ok)
}

func TestRegistry_SetFault_ChangeDetection(t *testing.T) {
	r := newTestRegistry()

	room, changed := r.SetFault(1, models.FaultRadarFailure)
	assert.True(t, changed)
	assert.True(t, room.RadarFailure)

	_, changed = r.SetFault(1, models.FaultRadarFailure)
	assert.False(t, changed)

	// 标志互斥：切换为 abnormal 后 failure 清除
	room, changed = r.SetFault(1, models.FaultRadarAbnormal)
	assert.True(t, changed)
	assert.True(t, room.RadarAbnormal)
	assert.False(t, room.RadarFailure)
}

func TestRegistry_SetOccupant(t *testing.T) {
	r := newTestRegistry()

	hr := 70
	_, _, ok := r.ApplySample("RD-202", &models.VitalSample{HeartRate: &hr})
	require.True(t, ok)

	p := &models.Personnel{ID: 20, Name: "李四"}
	r.SetOccupant(2, p)

	room, occupant, ok := r.Get(2)
	require.True(t, ok)
	require.NotNil(t, room.OccupantID)
	assert.Equal(t, int64(20), *room.OccupantID)
	assert.Equal(t, "李四", occupant.Name)
	// 换人后旧的实时读数不再有效
	assert.Nil(t, room.HeartRate)

	r.SetOccupant(2, nil)
	room, occupant, ok = r.Get(2)
	require.True(t, ok)
	assert.Nil(t, room.OccupantID)
	assert.Nil(t, occupant)
}

func TestRegistry_Snapshot(t *testing.T) {
	r := newTestRegistry()

	snapshots := r.Snapshot()
	require.Len(t, snapshots, 2)

	byID := map[int64]RoomSnapshot{}
	for _, s := range snapshots {
		byID[s.Room.ID] = s
	}
	assert.Equal(t, "张三", byID[1].PersonnelName)
	assert.Empty(t, byID[2].PersonnelName)
}

func TestRegistry_StaleRooms(t *testing.T) {
	r := newTestRegistry()
	now := time.Unix(1700000100, 0)

	// 房间 1：60 秒前有数据 → 超时；房间 2：从未有数据 → 不算
	_, _, ok := r.ApplySample("RD-201", &models.VitalSample{Timestamp: 1700000040})
	require.True(t, ok)

	stale := r.StaleRooms(now, 30*time.Second)
	assert.Equal(t, []int64{1}, stale)

	// 已标记网络故障的房间不再重复上报
	_, changed := r.SetFault(1, models.FaultNetworkFailure)
	require.True(t, changed)
	assert.Empty(t, r.StaleRooms(now, 30*time.Second))
}
