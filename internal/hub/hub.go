package hub

import (
	"encoding/json"
	"sync"

	"vitalhub/internal/models"

	"go.uber.org/zap"
)

// Hub 订阅分发中心
// 维护 连接→主题 与 主题→连接 双向索引（同一把锁下更新，保持一致）。
// 发布到单个房间主题的事件同时送达该主题订阅者和 "/rooms/all" 订阅者。
// 投递尽力而为：离线客户端错过的事件不补发。
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	clients map[*Client]map[string]struct{}
	logger  *zap.Logger
}

// NewHub 创建订阅分发中心
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]map[string]struct{}),
		logger:  logger,
	}
}

// Subscribe 订阅主题（幂等，重复订阅与订阅一次效果相同）
func (h *Hub) Subscribe(c *Client, topic string) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}

	if h.clients[c] == nil {
		h.clients[c] = make(map[string]struct{})
	}
	h.clients[c][topic] = struct{}{}

	h.logger.Debug("Client subscribed",
		zap.String("client_id", c.id),
		zap.String("topic", topic),
	)
	return nil
}

// UnsubscribeAll 移除连接的全部订阅（连接关闭时调用）
func (h *Hub) UnsubscribeAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range h.clients[c] {
		delete(h.topics[topic], c)
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(h.clients, c)
}

// Publish 发布事件到主题
// msg 序列化一次后入队到每个订阅连接；单个慢/死连接不影响其他订阅者。
func (h *Hub) Publish(topic string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal event",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	f := frame{data: data, critical: isCritical(msg)}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.topics[topic])+len(h.topics[TopicAllRooms]))
	for c := range h.topics[topic] {
		targets = append(targets, c)
	}
	if topic != TopicAllRooms {
		// 通配订阅者接收所有房间级事件（去重：已在具体主题中的不重复投递）
		for c := range h.topics[TopicAllRooms] {
			if _, dup := h.topics[topic][c]; !dup {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(f)
	}
}

// SubscriberCount 主题当前订阅连接数
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// CloseAll 关闭所有连接（服务停止时调用）
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Close()
	}
}

// isCritical 报警事件不允许静默丢弃
func isCritical(msg interface{}) bool {
	switch msg.(type) {
	case *models.AlertMessage, models.AlertMessage:
		return true
	}
	return false
}
