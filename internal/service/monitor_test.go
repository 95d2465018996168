package service

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalhub/internal/cache"
	mqttcommon "vitalhub/internal/common/mqtt"
	"vitalhub/internal/config"
	"vitalhub/internal/httpapi"
	"vitalhub/internal/models"
	"vitalhub/internal/occupancy"
)

type fakeSubscriber struct{}

func (fakeSubscriber) Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error {
	return nil
}

func (fakeSubscriber) Unsubscribe(topics ...string) error { return nil }

func testServiceConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Addr = ":0"
	cfg.Server.WSQueueSize = 64
	cfg.Radar.DataTopic = "radar/+/data"
	cfg.Alarm.Cache.RealtimeKeyPrefix = "vital:room:"
	cfg.Alarm.Cache.RealtimeSuffix = ":realtime"
	cfg.Alarm.Cache.RealtimeTTL = 60
	cfg.Alarm.Cache.StateKeyPrefix = "alarm:state:"
	cfg.Alarm.AlertPeriod = 3
	cfg.Alarm.CriticalMarginPercent = 20
	return cfg
}

var roomColumnsForTest = []string{
	"id", "name", "ip", "radar_id", "radar_sn", "enabled",
	"mattress_distance", "person_pose", "personnel_id", "remark",
}

var personnelColumnsForTest = []string{
	"id", "name", "id_number", "gender", "age", "occupation", "medical_history", "remark",
	"heart_rate_upper", "heart_rate_lower", "breath_upper", "breath_lower",
	"heart_rate_base", "breath_base",
	"heart_ratio_upper", "heart_ratio_lower", "breath_ratio_upper", "breath_ratio_lower",
}

// expectAssembleQueries 脚本化 assemble 的启动查询：
// alert_config、rooms、personnel（房间 1 已有 10 入住）。
func expectAssembleQueries(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT config_name, config_value FROM alert_config`).
		WillReturnRows(sqlmock.NewRows([]string{"config_name", "config_value"}))

	mock.ExpectQuery(`SELECT(.|\n)+FROM rooms`).
		WillReturnRows(sqlmock.NewRows(roomColumnsForTest).
			AddRow(1, "201", "", 101, "RD-201", true, 0, nil, 10, "").
			AddRow(2, "202", "", 102, "RD-202", true, 0, nil, nil, ""))

	mock.ExpectQuery(`SELECT(.|\n)+FROM personnel`).
		WillReturnRows(sqlmock.NewRows(personnelColumnsForTest).
			AddRow(10, "张三", "", nil, nil, nil, nil, nil,
				100, 50, nil, nil, nil, nil, nil, nil, nil, nil).
			AddRow(20, "李四", "", nil, nil, nil, nil, nil,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, nil))

	// 入住人员完整配置（含作息）
	mock.ExpectQuery(`SELECT(.|\n)+FROM personnel WHERE id`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows(personnelColumnsForTest).
			AddRow(10, "张三", "", nil, nil, nil, nil, nil,
				100, 50, nil, nil, nil, nil, nil, nil, nil, nil))
	mock.ExpectQuery(`SELECT(.|\n)+FROM personnel_schedules`).
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "personnel_id", "start_time", "end_time", "days_of_week"}))
}

func setupService(t *testing.T) (*MonitorService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	expectAssembleQueries(mock)

	s, err := assemble(testServiceConfig(), zap.NewNop(), db, redisClient, fakeSubscriber{})
	require.NoError(t, err)
	return s, mock
}

func TestAssemble_LoadsState(t *testing.T) {
	s, mock := setupService(t)

	pid, ok := s.occupancy.OccupantOf(1)
	require.True(t, ok)
	assert.Equal(t, int64(10), pid)

	_, ok = s.occupancy.OccupantOf(2)
	assert.False(t, ok)

	room, occupant, ok := s.registry.Get(1)
	require.True(t, ok)
	require.NotNil(t, room.OccupantID)
	require.NotNil(t, occupant)
	assert.Equal(t, "张三", occupant.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssemble_RestoresRealtimeFromCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	cfg := testServiceConfig()

	// 启动前已有缓存的采样
	hr := 72
	seeded := cache.NewRealtimeCache(cfg, redisClient, zap.NewNop())
	require.NoError(t, seeded.SetRealtime(context.Background(), &models.VitalSample{
		RoomID:    1,
		HeartRate: &hr,
		Timestamp: 1700000000,
	}))

	expectAssembleQueries(mock)

	s, err := assemble(cfg, zap.NewNop(), db, redisClient, fakeSubscriber{})
	require.NoError(t, err)

	room, _, ok := s.registry.Get(1)
	require.True(t, ok)
	require.NotNil(t, room.HeartRate)
	assert.Equal(t, 72, *room.HeartRate)
	assert.Equal(t, int64(1700000000), room.Time)

	// 未缓存的房间保持空白
	room2, _, ok := s.registry.Get(2)
	require.True(t, ok)
	assert.Nil(t, room2.HeartRate)
}

func TestCheckIn_PersistsAndUpdatesRegistry(t *testing.T) {
	s, mock := setupService(t)

	mock.ExpectQuery(`SELECT(.|\n)+FROM personnel WHERE id`).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows(personnelColumnsForTest).
			AddRow(20, "李四", "", nil, nil, nil, nil, nil,
				nil, nil, 24, 10, nil, nil, nil, nil, nil, nil))
	mock.ExpectQuery(`SELECT(.|\n)+FROM personnel_schedules`).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "personnel_id", "start_time", "end_time", "days_of_week"}))
	mock.ExpectExec(`UPDATE rooms SET personnel_id`).
		WithArgs(int64(20), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CheckIn(context.Background(), 2, 20)

	require.NoError(t, err)

	pid, ok := s.occupancy.OccupantOf(2)
	require.True(t, ok)
	assert.Equal(t, int64(20), pid)

	_, occupant, ok := s.registry.Get(2)
	require.True(t, ok)
	require.NotNil(t, occupant)
	assert.Equal(t, "李四", occupant.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckIn_OccupiedRoomRejected(t *testing.T) {
	s, _ := setupService(t)

	err := s.CheckIn(context.Background(), 1, 20)
	assert.ErrorIs(t, err, occupancy.ErrAlreadyOccupied)
}

func TestCheckIn_DBFailureRollsBack(t *testing.T) {
	s, mock := setupService(t)

	mock.ExpectQuery(`SELECT(.|\n)+FROM personnel WHERE id`).
		WithArgs(int64(20)).
		WillReturnError(errors.New("connection refused"))

	err := s.CheckIn(context.Background(), 2, 20)

	require.Error(t, err)
	assert.ErrorIs(t, err, httpapi.ErrUnavailable)

	// 回滚后房间仍空闲，可再次入住
	_, ok := s.occupancy.OccupantOf(2)
	assert.False(t, ok)
}

func TestCheckOut_PersistsAndClears(t *testing.T) {
	s, mock := setupService(t)

	mock.ExpectExec(`UPDATE rooms SET personnel_id`).
		WithArgs(nil, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.CheckOut(context.Background(), 1)

	require.NoError(t, err)
	_, ok := s.occupancy.OccupantOf(1)
	assert.False(t, ok)

	room, occupant, ok := s.registry.Get(1)
	require.True(t, ok)
	assert.Nil(t, room.OccupantID)
	assert.Nil(t, occupant)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOut_EmptyRoomRejected(t *testing.T) {
	s, _ := setupService(t)

	err := s.CheckOut(context.Background(), 2)
	assert.ErrorIs(t, err, occupancy.ErrInvalidTransition)
}

func TestSwitchRoom_MovesOccupant(t *testing.T) {
	s, mock := setupService(t)

	mock.ExpectExec(`UPDATE rooms SET personnel_id`).
		WithArgs(nil, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE rooms SET personnel_id`).
		WithArgs(int64(10), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SwitchRoom(context.Background(), 1, 2)

	require.NoError(t, err)

	_, ok := s.occupancy.OccupantOf(1)
	assert.False(t, ok)
	pid, ok := s.occupancy.OccupantOf(2)
	require.True(t, ok)
	assert.Equal(t, int64(10), pid)

	_, occupant, _ := s.registry.Get(2)
	require.NotNil(t, occupant)
	assert.Equal(t, "张三", occupant.Name)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetArmed_PersistsAndRearms(t *testing.T) {
	s, mock := setupService(t)

	mock.ExpectExec(`UPDATE rooms SET enabled`).
		WithArgs(false, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SetArmed(context.Background(), 1, false)

	require.NoError(t, err)
	room, _, ok := s.registry.Get(1)
	require.True(t, ok)
	assert.False(t, room.Enabled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetArmed_UnknownRoom(t *testing.T) {
	s, _ := setupService(t)

	err := s.SetArmed(context.Background(), 99, true)
	assert.ErrorIs(t, err, occupancy.ErrRoomNotFound)
}

func TestSwitchRoom_EmptySourceRejected(t *testing.T) {
	s, _ := setupService(t)

	err := s.SwitchRoom(context.Background(), 2, 1)
	assert.ErrorIs(t, err, occupancy.ErrInvalidTransition)
}

func TestSwitchRoom_DBFailureRestoresBinding(t *testing.T) {
	s, mock := setupService(t)

	mock.ExpectExec(`UPDATE rooms SET personnel_id`).
		WithArgs(nil, int64(1)).
		WillReturnError(errors.New("connection refused"))

	err := s.SwitchRoom(context.Background(), 1, 2)

	require.Error(t, err)
	assert.ErrorIs(t, err, httpapi.ErrUnavailable)

	// 回滚：人员仍在原房间
	pid, ok := s.occupancy.OccupantOf(1)
	require.True(t, ok)
	assert.Equal(t, int64(10), pid)
	_, ok = s.occupancy.OccupantOf(2)
	assert.False(t, ok)
}
