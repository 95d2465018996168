package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalhub/internal/models"
)

func TestLoadAlertConfig_MergesOverDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAlertConfigRepository(db, zap.NewNop())

	defaults := models.AlertConfig{
		AlertPeriod:           3,
		CriticalMarginPercent: 20,
		HeartBeatRatioUpper:   120,
		HeartBeatRatioLower:   80,
		BreathRatioUpper:      130,
		BreathRatioLower:      70,
	}

	rows := sqlmock.NewRows([]string{"config_name", "config_value"}).
		AddRow("alertPeriod", "5").
		AddRow("heartBeatRatioUpper", "115").
		AddRow("breathRatioLower", "not-a-number"). // 非法值保留默认
		AddRow("someFutureKey", "42")               // 未知键忽略

	mock.ExpectQuery(`SELECT config_name, config_value FROM alert_config`).
		WillReturnRows(rows)

	cfg, err := repo.LoadAlertConfig(context.Background(), defaults)

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.AlertPeriod)
	assert.Equal(t, 115, cfg.HeartBeatRatioUpper)
	assert.Equal(t, 70, cfg.BreathRatioLower)
	assert.Equal(t, 20, cfg.CriticalMarginPercent)
	assert.Equal(t, 80, cfg.HeartBeatRatioLower)
	assert.Equal(t, 130, cfg.BreathRatioUpper)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadAlertConfig_EmptyTableKeepsDefaults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAlertConfigRepository(db, zap.NewNop())

	defaults := models.AlertConfig{AlertPeriod: 3, CriticalMarginPercent: 20}

	mock.ExpectQuery(`SELECT config_name, config_value FROM alert_config`).
		WillReturnRows(sqlmock.NewRows([]string{"config_name", "config_value"}))

	cfg, err := repo.LoadAlertConfig(context.Background(), defaults)

	require.NoError(t, err)
	assert.Equal(t, defaults, cfg)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAlertConfig(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewAlertConfigRepository(db, zap.NewNop())

	mock.ExpectExec(`INSERT INTO alert_config`).
		WithArgs("alertPeriod", "5").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateAlertConfig(context.Background(), "alertPeriod", 5)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
