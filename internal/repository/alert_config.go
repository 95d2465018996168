package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"vitalhub/internal/models"

	"go.uber.org/zap"
)

// AlertConfigRepository 全局报警配置仓库
//
// alert_config 表为 config_name/config_value 键值行，未知键忽略，
// 缺失键保留传入的默认值。
type AlertConfigRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertConfigRepository 创建报警配置仓库
func NewAlertConfigRepository(db *sql.DB, logger *zap.Logger) *AlertConfigRepository {
	return &AlertConfigRepository{
		db:     db,
		logger: logger,
	}
}

// LoadAlertConfig 读取全局报警配置，合并到 defaults 上
func (r *AlertConfigRepository) LoadAlertConfig(ctx context.Context, defaults models.AlertConfig) (models.AlertConfig, error) {
	query := `SELECT config_name, config_value FROM alert_config`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return defaults, fmt.Errorf("failed to query alert config: %w", err)
	}
	defer rows.Close()

	cfg := defaults
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return defaults, fmt.Errorf("failed to scan alert config: %w", err)
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			r.logger.Warn("Invalid alert config value, skipped",
				zap.String("name", name),
				zap.String("value", value))
			continue
		}

		switch name {
		case "alertPeriod":
			cfg.AlertPeriod = n
		case "criticalMargin":
			cfg.CriticalMarginPercent = n
		case "heartBeatRatioUpper":
			cfg.HeartBeatRatioUpper = n
		case "heartBeatRatioLower":
			cfg.HeartBeatRatioLower = n
		case "breathRatioUpper":
			cfg.BreathRatioUpper = n
		case "breathRatioLower":
			cfg.BreathRatioLower = n
		default:
			r.logger.Debug("Unknown alert config key, skipped", zap.String("name", name))
		}
	}
	if err := rows.Err(); err != nil {
		return defaults, fmt.Errorf("failed to iterate alert config: %w", err)
	}

	return cfg, nil
}

// UpdateAlertConfig 写入单个配置项（upsert）
func (r *AlertConfigRepository) UpdateAlertConfig(ctx context.Context, name string, value int) error {
	query := `
		INSERT INTO alert_config (config_name, config_value)
		VALUES ($1, $2)
		ON CONFLICT (config_name) DO UPDATE SET config_value = EXCLUDED.config_value`

	if _, err := r.db.ExecContext(ctx, query, name, strconv.Itoa(value)); err != nil {
		return fmt.Errorf("failed to update alert config: %w", err)
	}
	return nil
}
