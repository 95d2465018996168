package httpapi

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"vitalhub/internal/ingest"
	"vitalhub/internal/models"

	"go.uber.org/zap"
)

// RoomService 房间占用操作（由 service.MonitorService 实现）
type RoomService interface {
	CheckIn(ctx context.Context, roomID, personnelID int64) error
	CheckOut(ctx context.Context, roomID int64) error
	SwitchRoom(ctx context.Context, fromRoomID, toRoomID int64) error
	SetArmed(ctx context.Context, roomID int64, enabled bool) error
	RoomSnapshots() []ingest.RoomSnapshot
}

// RoomHandler 房间管理 Handler
type RoomHandler struct {
	rooms  RoomService
	logger *zap.Logger
}

// NewRoomHandler 创建房间 Handler
func NewRoomHandler(rooms RoomService, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:  rooms,
		logger: logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *RoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/rooms" && r.Method == http.MethodGet:
		h.ListRooms(w, r)
	case strings.HasSuffix(path, "/checkin") && r.Method == http.MethodPost:
		h.withRoomID(w, r, strings.TrimSuffix(path, "/checkin"), h.CheckIn)
	case strings.HasSuffix(path, "/checkout") && r.Method == http.MethodPost:
		h.withRoomID(w, r, strings.TrimSuffix(path, "/checkout"), h.CheckOut)
	case strings.HasSuffix(path, "/switch") && r.Method == http.MethodPost:
		h.withRoomID(w, r, strings.TrimSuffix(path, "/switch"), h.SwitchRoom)
	case strings.HasSuffix(path, "/arm") && r.Method == http.MethodPost:
		h.withRoomID(w, r, strings.TrimSuffix(path, "/arm"), h.SetArmed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// withRoomID 从路径段解析房间 id 并分发
func (h *RoomHandler) withRoomID(
	w http.ResponseWriter,
	r *http.Request,
	prefix string,
	next func(http.ResponseWriter, *http.Request, int64),
) {
	idStr := strings.TrimPrefix(prefix, "/rooms/")
	if idStr == "" || strings.Contains(idStr, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	roomID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid room id: "+idStr))
		return
	}
	next(w, r, roomID)
}

// ListRooms 全部房间快照（含实时字段与故障标志）
func (h *RoomHandler) ListRooms(w http.ResponseWriter, r *http.Request) {
	snapshots := h.rooms.RoomSnapshots()

	out := make([]*models.RoomDataMessage, 0, len(snapshots))
	for i := range snapshots {
		out = append(out, models.NewRoomDataMessage(&snapshots[i].Room, snapshots[i].PersonnelName))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })

	writeJSON(w, http.StatusOK, Ok(out))
}

// CheckIn 人员入住
func (h *RoomHandler) CheckIn(w http.ResponseWriter, r *http.Request, roomID int64) {
	var req struct {
		PersonnelID int64 `json:"personnel_id"`
	}
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.PersonnelID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("personnel_id is required"))
		return
	}

	if err := h.rooms.CheckIn(r.Context(), roomID, req.PersonnelID); err != nil {
		h.logger.Warn("Check-in rejected",
			zap.Int64("room_id", roomID),
			zap.Int64("personnel_id", req.PersonnelID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]int64{"room_id": roomID, "personnel_id": req.PersonnelID}))
}

// CheckOut 人员退房
func (h *RoomHandler) CheckOut(w http.ResponseWriter, r *http.Request, roomID int64) {
	if err := h.rooms.CheckOut(r.Context(), roomID); err != nil {
		h.logger.Warn("Check-out rejected",
			zap.Int64("room_id", roomID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]int64{"room_id": roomID}))
}

// SetArmed 布防/撤防
func (h *RoomHandler) SetArmed(w http.ResponseWriter, r *http.Request, roomID int64) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, Fail("enabled is required"))
		return
	}

	if err := h.rooms.SetArmed(r.Context(), roomID, *req.Enabled); err != nil {
		h.logger.Warn("Arming change rejected",
			zap.Int64("room_id", roomID),
			zap.Bool("enabled", *req.Enabled),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{"room_id": roomID, "enabled": *req.Enabled}))
}

// SwitchRoom 换房（路径 id 为原房间）
func (h *RoomHandler) SwitchRoom(w http.ResponseWriter, r *http.Request, fromRoomID int64) {
	var req struct {
		ToRoomID int64 `json:"to_room_id"`
	}
	if err := readBodyJSON(r, 1<<16, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.ToRoomID <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("to_room_id is required"))
		return
	}
	if req.ToRoomID == fromRoomID {
		writeJSON(w, http.StatusBadRequest, Fail("to_room_id must differ from source room"))
		return
	}

	if err := h.rooms.SwitchRoom(r.Context(), fromRoomID, req.ToRoomID); err != nil {
		h.logger.Warn("Room switch rejected",
			zap.Int64("from_room_id", fromRoomID),
			zap.Int64("to_room_id", req.ToRoomID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]int64{"from_room_id": fromRoomID, "to_room_id": req.ToRoomID}))
}
