package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterRoutes 注册全部路由
func (r *Router) RegisterRoutes(rooms *RoomHandler, alarms *AlarmHandler, ws *WSHandler) {
	r.Handle("/rooms", rooms)
	r.Handle("/rooms/", rooms)

	r.Handle("/alarms", alarms)
	r.Handle("/history/alarms", alarms)
	r.Handle("/history/alarms/", alarms)

	r.Handle("/ws", ws)

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok("ok"))
	}))
}
