package hub

import (
	"encoding/json"
	"sync"
	"time"

	"vitalhub/internal/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Conn WebSocket 连接的最小接口（*websocket.Conn 满足，测试用假实现）
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// frame 出站帧；critical 标记报警帧，队列满时不可丢弃
type frame struct {
	data     []byte
	critical bool
}

// Client 一个订阅连接
// 出站队列有界：满时丢弃最旧的普通帧（roomData 只有最新值有意义）；
// 报警帧永不丢弃，队列被报警帧占满说明消费者已失速，直接断开。
type Client struct {
	id     string
	hub    *Hub
	conn   Conn
	logger *zap.Logger

	mu       sync.Mutex
	queue    []frame
	maxQueue int

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
	pongTimeout  time.Duration
}

// NewClient 创建订阅连接
func NewClient(
	id string,
	h *Hub,
	conn Conn,
	queueSize int,
	writeTimeout time.Duration,
	pongTimeout time.Duration,
	logger *zap.Logger,
) *Client {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Client{
		id:           id,
		hub:          h,
		conn:         conn,
		logger:       logger.With(zap.String("client_id", id)),
		maxQueue:     queueSize,
		notify:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
	}
}

// Start 启动读写循环
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// Close 关闭连接并清理订阅（幂等）
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.hub.UnsubscribeAll(c)
		c.logger.Debug("Client closed")
	})
}

// SendJSON 序列化后入队（订阅响应走这里）
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}
	// 响应帧不可丢弃
	c.enqueue(frame{data: data, critical: true})
}

// enqueue 出站帧入队，执行队列满时的丢弃策略
func (c *Client) enqueue(f frame) {
	c.mu.Lock()
	if len(c.queue) >= c.maxQueue {
		if !c.dropOldestNormalLocked() {
			c.mu.Unlock()
			if f.critical {
				// 队列全是报警帧还在涨：消费者已失速，断开比丢报警可取
				c.logger.Warn("Outbound queue full of alarms, disconnecting slow consumer")
				c.Close()
			}
			// 普通帧直接丢弃
			return
		}
	}
	c.queue = append(c.queue, f)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// dropOldestNormalLocked 丢弃最旧的普通帧，队列里只剩报警帧时返回 false
func (c *Client) dropOldestNormalLocked() bool {
	for i := range c.queue {
		if !c.queue[i].critical {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return true
		}
	}
	return false
}

// writePump 出站循环：按入队顺序写出，定期发 ping
func (c *Client) writePump() {
	pingPeriod := c.pongTimeout * 9 / 10
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.notify:
			if !c.flush() {
				return
			}
		}
	}
}

// flush 写出当前队列中的所有帧，连接出错返回 false
func (c *Client) flush() bool {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return true
		}
		f := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
			c.logger.Debug("Write failed, closing client", zap.Error(err))
			c.Close()
			return false
		}
	}
}

// readPump 入站循环：只处理订阅请求，连接关闭时清理全部订阅
func (c *Client) readPump() {
	defer c.Close()

	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req models.SubscribeRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Type != models.MsgSubscribe {
			c.SendJSON(&models.SubscribeAck{
				Type:    models.MsgSubscribe,
				Success: false,
				Error:   "malformed subscribe message",
			})
			continue
		}

		ack := &models.SubscribeAck{
			Type:    models.MsgSubscribe,
			Topic:   req.Topic,
			Success: true,
		}
		if err := c.hub.Subscribe(c, req.Topic); err != nil {
			ack.Success = false
			ack.Error = err.Error()
		}
		c.SendJSON(ack)
	}
}
