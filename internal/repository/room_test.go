package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRoomRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *RoomRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewRoomRepository(db, zap.NewNop())
	return db, mock, repo
}

var roomMockColumns = []string{
	"id", "name", "ip", "radar_id", "radar_sn", "enabled",
	"mattress_distance", "person_pose", "personnel_id", "remark",
}

func TestListRooms_Success(t *testing.T) {
	db, mock, repo := setupRoomRepo(t)
	defer db.Close()

	rows := sqlmock.NewRows(roomMockColumns).
		AddRow(1, "201", "192.168.1.10", 101, "RD-001", true, 120, "lying", 10, "").
		AddRow(2, "202", "192.168.1.11", 102, "RD-002", false, 0, nil, nil, "vacant")

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	rooms, err := repo.ListRooms(context.Background())

	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, int64(1), rooms[0].ID)
	assert.Equal(t, "RD-001", rooms[0].RadarSN)
	assert.True(t, rooms[0].Enabled)
	require.NotNil(t, rooms[0].OccupantID)
	assert.Equal(t, int64(10), *rooms[0].OccupantID)

	assert.Nil(t, rooms[1].OccupantID)
	assert.False(t, rooms[1].Enabled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRoom_NotFound(t *testing.T) {
	db, mock, repo := setupRoomRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	room, err := repo.GetRoom(context.Background(), 99)

	assert.Error(t, err)
	assert.Nil(t, room)
	assert.Contains(t, err.Error(), "room not found")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOccupant_Success(t *testing.T) {
	db, mock, repo := setupRoomRepo(t)
	defer db.Close()

	personnelID := int64(10)
	mock.ExpectExec(`UPDATE rooms SET personnel_id`).
		WithArgs(personnelID, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateOccupant(context.Background(), 1, &personnelID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOccupant_Clear(t *testing.T) {
	db, mock, repo := setupRoomRepo(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE rooms SET personnel_id`).
		WithArgs(nil, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateOccupant(context.Background(), 1, nil)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOccupant_RoomNotFound(t *testing.T) {
	db, mock, repo := setupRoomRepo(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE rooms SET personnel_id`).
		WithArgs(nil, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateOccupant(context.Background(), 99, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "room not found")

	assert.NoError(t, mock.ExpectationsWereMet())
}
