package threshold

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vitalhub/internal/models"
	"vitalhub/internal/schedule"

	"go.uber.org/zap"
)

// Result 一次评估的结论
type Result struct {
	Level   models.AlarmLevel
	Message string
}

// Engine 阈值评估引擎
// 把一次采样与人员阈值配置比对，得出报警级别：
//   - 超出绝对阈值且达到危急余量 → 1 级
//   - 超出绝对阈值 → 2 级
//   - 仅超出比例阈值（基线百分比） → 3 级
//
// 多项同时违规时取最严重级别。布防/无人/作息命中/故障时不评估。
// 生命体征恢复正常不会清除已有报警，报警只能由操作员处理。
type Engine struct {
	defaults models.AlertConfig
	state    *StateManager
	logger   *zap.Logger
}

// NewEngine 创建评估引擎
// defaults 来自 alert_config 表与服务配置合并后的全局默认值。
func NewEngine(defaults models.AlertConfig, state *StateManager, logger *zap.Logger) *Engine {
	return &Engine{
		defaults: defaults,
		state:    state,
		logger:   logger,
	}
}

// Evaluate 评估一次采样，返回 nil 表示无需报警
func (e *Engine) Evaluate(
	ctx context.Context,
	sample *models.VitalSample,
	occupant *models.Personnel,
	room *models.Room,
	now time.Time,
) (*Result, error) {
	// 不评估的前置条件：撤防、无人、故障、作息时间段内
	if !room.Enabled || room.OccupantID == nil || occupant == nil {
		return nil, e.rearm(ctx, room.ID)
	}
	if room.HasFault() {
		// 故障以状态标志呈现，不产生生命体征报警
		return nil, e.rearm(ctx, room.ID)
	}
	if schedule.IsSuppressed(occupant.Schedules, now) {
		return nil, e.rearm(ctx, room.ID)
	}

	heart := e.classifyVital(sample.HeartRate, vitalBounds{
		absUpper:   occupant.HeartRateUpper,
		absLower:   occupant.HeartRateLower,
		base:       occupant.HeartRateBase,
		ratioUpper: ratioOrDefault(occupant.HeartRatioUpper, e.defaults.HeartBeatRatioUpper),
		ratioLower: ratioOrDefault(occupant.HeartRatioLower, e.defaults.HeartBeatRatioLower),
		labelHigh:  "心率过高",
		labelLow:   "心率过低",
	})
	breath := e.classifyVital(sample.BreathRate, vitalBounds{
		absUpper:   occupant.BreathUpper,
		absLower:   occupant.BreathLower,
		base:       occupant.BreathBase,
		ratioUpper: ratioOrDefault(occupant.BreathRatioUpper, e.defaults.BreathRatioUpper),
		ratioLower: ratioOrDefault(occupant.BreathRatioLower, e.defaults.BreathRatioLower),
		labelHigh:  "呼吸过快",
		labelLow:   "呼吸过慢",
	})

	combined := combine(heart, breath)
	if combined == nil {
		// 正常样本，连续违规计数清零
		return nil, e.rearm(ctx, room.ID)
	}

	// alertPeriod：布防后前 N 个连续违规样本视为启动瞬态，不报警
	count, err := e.state.IncrViolations(ctx, room.ID)
	if err != nil {
		// 状态不可用时放行评估结果，报警不能因 Redis 故障丢失
		e.logger.Warn("Violation state unavailable, reporting without transient suppression",
			zap.Int64("room_id", room.ID),
			zap.Error(err),
		)
		return combined, nil
	}
	if count <= int64(e.defaults.AlertPeriod) {
		e.logger.Debug("Suppressing transient violation",
			zap.Int64("room_id", room.ID),
			zap.Int64("count", count),
			zap.Int("alert_period", e.defaults.AlertPeriod),
		)
		return nil, nil
	}

	return combined, nil
}

// Rearm 清零连续违规计数（入住/退房/重新布防时调用）
func (e *Engine) Rearm(ctx context.Context, roomID int64) error {
	return e.state.ResetViolations(ctx, roomID)
}

func (e *Engine) rearm(ctx context.Context, roomID int64) error {
	if err := e.state.ResetViolations(ctx, roomID); err != nil {
		e.logger.Warn("Failed to reset violation state",
			zap.Int64("room_id", roomID),
			zap.Error(err),
		)
	}
	return nil
}

type vitalBounds struct {
	absUpper   *int
	absLower   *int
	base       *int
	ratioUpper int // 百分比，0 表示不检查
	ratioLower int
	labelHigh  string
	labelLow   string
}

// classifyVital 单项体征分级，返回 nil 表示正常
func (e *Engine) classifyVital(value *int, b vitalBounds) *Result {
	if value == nil {
		return nil
	}
	v := *value

	margin := e.defaults.CriticalMarginPercent

	if b.absUpper != nil && v > *b.absUpper {
		level := models.LevelDanger
		if margin > 0 && v >= *b.absUpper*(100+margin)/100 {
			level = models.LevelExtreme
		}
		return &Result{
			Level:   level,
			Message: fmt.Sprintf("%s: %d（上限 %d）", b.labelHigh, v, *b.absUpper),
		}
	}
	if b.absLower != nil && v < *b.absLower {
		level := models.LevelDanger
		if margin > 0 && v <= *b.absLower*(100-margin)/100 {
			level = models.LevelExtreme
		}
		return &Result{
			Level:   level,
			Message: fmt.Sprintf("%s: %d（下限 %d）", b.labelLow, v, *b.absLower),
		}
	}

	// 绝对阈值未违规时才检查比例阈值
	if b.base != nil {
		if b.ratioUpper > 0 {
			limit := *b.base * b.ratioUpper / 100
			if v > limit {
				return &Result{
					Level:   models.LevelAbnormal,
					Message: fmt.Sprintf("%s: %d（基线上限 %d）", b.labelHigh, v, limit),
				}
			}
		}
		if b.ratioLower > 0 {
			limit := *b.base * b.ratioLower / 100
			if v < limit {
				return &Result{
					Level:   models.LevelAbnormal,
					Message: fmt.Sprintf("%s: %d（基线下限 %d）", b.labelLow, v, limit),
				}
			}
		}
	}

	return nil
}

// combine 合并多项结论，取最严重级别，消息拼接
func combine(results ...*Result) *Result {
	var combined *Result
	var msgs []string
	for _, r := range results {
		if r == nil {
			continue
		}
		msgs = append(msgs, r.Message)
		if combined == nil || r.Level.MoreSevere(combined.Level) {
			combined = &Result{Level: r.Level}
		}
	}
	if combined == nil {
		return nil
	}
	combined.Message = strings.Join(msgs, "；")
	return combined
}

func ratioOrDefault(personal *int, def int) int {
	if personal != nil {
		return *personal
	}
	return def
}
