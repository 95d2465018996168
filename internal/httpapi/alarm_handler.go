package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vitalhub/internal/models"
	"vitalhub/internal/repository"

	"go.uber.org/zap"
)

// AlarmService 报警查询与处理（由 service.MonitorService 实现）
type AlarmService interface {
	ResolveAlarm(ctx context.Context, alarmID string, status models.AlarmStatus, handlingMethod string) error
	ListHistory(ctx context.Context, filters repository.AlarmFilters) ([]models.Alarm, error)
	ActiveAlarms() []models.Alarm
}

// AlarmHandler 报警 Handler
type AlarmHandler struct {
	alarms AlarmService
	logger *zap.Logger
}

// NewAlarmHandler 创建报警 Handler
func NewAlarmHandler(alarms AlarmService, logger *zap.Logger) *AlarmHandler {
	return &AlarmHandler{
		alarms: alarms,
		logger: logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *AlarmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/alarms" && r.Method == http.MethodGet:
		h.ListActive(w, r)
	case path == "/history/alarms" && r.Method == http.MethodGet:
		h.ListHistory(w, r)
	case strings.HasPrefix(path, "/history/alarms/") && r.Method == http.MethodPut:
		alarmID := strings.TrimPrefix(path, "/history/alarms/")
		if alarmID == "" || strings.Contains(alarmID, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Resolve(w, r, alarmID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// ListActive 当前 active 报警
func (h *AlarmHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.alarms.ActiveAlarms()))
}

// ListHistory 报警历史查询
// 查询参数：room_id、level、status、start_time/end_time（Unix 秒）、
// page、page_size。
func (h *AlarmHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := repository.AlarmFilters{}

	if s := strings.TrimSpace(q.Get("room_id")); s != "" {
		roomID, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid room_id: "+s))
			return
		}
		filters.RoomID = &roomID
	}
	if s := strings.TrimSpace(q.Get("level")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < int(models.LevelExtreme) || n > int(models.LevelAbnormal) {
			writeJSON(w, http.StatusBadRequest, Fail("invalid level: "+s))
			return
		}
		level := models.AlarmLevel(n)
		filters.Level = &level
	}
	if s := strings.TrimSpace(q.Get("status")); s != "" {
		status := models.AlarmStatus(s)
		switch status {
		case models.AlarmActive, models.AlarmHandled, models.AlarmIgnored:
			filters.Status = &status
		default:
			writeJSON(w, http.StatusBadRequest, Fail("invalid status: "+s))
			return
		}
	}
	if s := strings.TrimSpace(q.Get("start_time")); s != "" {
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
			start := time.Unix(ts, 0)
			filters.StartTime = &start
		}
	}
	if s := strings.TrimSpace(q.Get("end_time")); s != "" {
		if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
			end := time.Unix(ts, 0)
			filters.EndTime = &end
		}
	}

	page := parseInt(q.Get("page"), 1)
	pageSize := parseInt(q.Get("page_size"), 20)
	if pageSize > 100 {
		pageSize = 100
	}
	filters.Limit = pageSize
	filters.Offset = (page - 1) * pageSize

	alarms, err := h.alarms.ListHistory(r.Context(), filters)
	if err != nil {
		h.logger.Error("Failed to list alarm history", zap.Error(err))
		writeError(w, err)
		return
	}
	if alarms == nil {
		alarms = []models.Alarm{}
	}

	writeJSON(w, http.StatusOK, Ok(alarms))
}

// Resolve 操作员处理报警
// 请求体：{"status": "handled"|"ignored", "handling_method": "..."}，
// status 缺省为 handled。
func (h *AlarmHandler) Resolve(w http.ResponseWriter, r *http.Request, alarmID string) {
	var req struct {
		Status         string `json:"status"`
		HandlingMethod string `json:"handling_method"`
	}
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if strings.TrimSpace(req.HandlingMethod) == "" {
		writeJSON(w, http.StatusBadRequest, Fail("handling_method is required"))
		return
	}

	status := models.AlarmHandled
	if req.Status != "" {
		switch models.AlarmStatus(req.Status) {
		case models.AlarmHandled:
		case models.AlarmIgnored:
			status = models.AlarmIgnored
		default:
			writeJSON(w, http.StatusBadRequest, Fail("invalid status: "+req.Status))
			return
		}
	}

	if err := h.alarms.ResolveAlarm(r.Context(), alarmID, status, req.HandlingMethod); err != nil {
		h.logger.Warn("Alarm resolution rejected",
			zap.String("alarm_id", alarmID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]string{"alarm_id": alarmID, "status": string(status)}))
}
