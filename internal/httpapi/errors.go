package httpapi

import (
	"errors"
	"net/http"

	"vitalhub/internal/alarmstore"
	"vitalhub/internal/occupancy"
)

// ErrUnavailable 下游依赖（数据库等）不可用，映射为 503
var ErrUnavailable = errors.New("dependency unavailable")

// statusFromError 业务错误到 HTTP 状态码的映射
func statusFromError(err error) int {
	switch {
	case errors.Is(err, occupancy.ErrRoomNotFound),
		errors.Is(err, occupancy.ErrPersonnelNotFound),
		errors.Is(err, alarmstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, occupancy.ErrAlreadyOccupied),
		errors.Is(err, occupancy.ErrPersonAlreadyPlaced),
		errors.Is(err, occupancy.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFromError(err), Fail(err.Error()))
}
