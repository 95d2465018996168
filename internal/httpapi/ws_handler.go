package httpapi

import (
	"net/http"
	"time"

	"vitalhub/internal/hub"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler WebSocket 接入点，升级后移交 hub 管理
type WSHandler struct {
	hub          *hub.Hub
	queueSize    int
	writeTimeout time.Duration
	pongTimeout  time.Duration
	logger       *zap.Logger

	upgrader websocket.Upgrader
}

// NewWSHandler 创建 WebSocket Handler
func NewWSHandler(h *hub.Hub, queueSize int, writeTimeout, pongTimeout time.Duration, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:          h,
		queueSize:    queueSize,
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 前端与服务端不同源部署
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP 升级连接并启动订阅客户端
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, h.hub, conn, h.queueSize, h.writeTimeout, h.pongTimeout, h.logger)
	client.Start()

	h.logger.Info("WebSocket client connected",
		zap.String("client_id", clientID),
		zap.String("remote_addr", r.RemoteAddr),
	)
}
