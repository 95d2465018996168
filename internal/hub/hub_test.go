package hub

import (
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"vitalhub/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn 测试用连接：记录写出的帧，读侧由 channel 驱动
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	reads   chan []byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan []byte, 8)}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-f.reads
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, data, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (f *fakeConn) SetWriteDeadline(t time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(h func(string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.reads)
	}
	return nil
}

func (f *fakeConn) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func newTestClient(t *testing.T, h *Hub, queueSize int) *Client {
	t.Helper()
	c := NewClient("test-client", h, newFakeConn(), queueSize, time.Second, time.Minute, zap.NewNop())
	t.Cleanup(c.Close)
	return c
}

// queuedFrames 直接读取出站队列（不启动写循环的测试用）
func queuedFrames(c *Client) []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]frame, len(c.queue))
	copy(out, c.queue)
	return out
}

func roomData(roomID int64) *models.RoomDataMessage {
	return &models.RoomDataMessage{Type: models.MsgRoomData, RoomID: roomID}
}

func alert(roomID int64) *models.AlertMessage {
	return &models.AlertMessage{Type: models.MsgAlertMessage, RoomID: roomID, Level: models.LevelDanger}
}

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		topic string
		valid bool
	}{
		{"/rooms/all", true},
		{"/rooms/1", true},
		{"/rooms/12345", true},
		{"/rooms/", false},
		{"/rooms/abc", false},
		{"/rooms/1x", false},
		{"/other/1", false},
		{"", false},
		{"rooms/1", false},
	}

	for _, tt := range tests {
		err := ValidateTopic(tt.topic)
		if tt.valid {
			assert.NoError(t, err, "topic %q", tt.topic)
		} else {
			assert.ErrorIs(t, err, ErrInvalidTopic, "topic %q", tt.topic)
		}
	}
}

func TestSubscribe_InvalidTopic(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newTestClient(t, h, 8)

	err := h.Subscribe(c, "/rooms/abc")
	assert.ErrorIs(t, err, ErrInvalidTopic)
	assert.Equal(t, 0, h.SubscriberCount("/rooms/abc"))
}

func TestSubscribe_Idempotent(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newTestClient(t, h, 8)

	require.NoError(t, h.Subscribe(c, "/rooms/5"))
	require.NoError(t, h.Subscribe(c, "/rooms/5"))

	assert.Equal(t, 1, h.SubscriberCount("/rooms/5"))

	h.Publish("/rooms/5", roomData(5))
	assert.Len(t, queuedFrames(c), 1, "duplicate subscription must not cause duplicate delivery")
}

func TestPublish_FanOutIsolation(t *testing.T) {
	h := NewHub(zap.NewNop())
	c5 := newTestClient(t, h, 8)
	c6 := newTestClient(t, h, 8)
	cAll := newTestClient(t, h, 8)

	require.NoError(t, h.Subscribe(c5, "/rooms/5"))
	require.NoError(t, h.Subscribe(c6, "/rooms/6"))
	require.NoError(t, h.Subscribe(cAll, TopicAllRooms))

	h.Publish("/rooms/5", roomData(5))

	assert.Len(t, queuedFrames(c5), 1)
	assert.Len(t, queuedFrames(c6), 0, "subscriber of /rooms/6 must not receive /rooms/5 events")
	assert.Len(t, queuedFrames(cAll), 1, "wildcard subscriber receives all room events")

	h.Publish("/rooms/6", roomData(6))

	assert.Len(t, queuedFrames(c5), 1)
	assert.Len(t, queuedFrames(c6), 1)
	assert.Len(t, queuedFrames(cAll), 2)
}

func TestPublish_WildcardAndSpecific_NoDuplicate(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newTestClient(t, h, 8)

	require.NoError(t, h.Subscribe(c, "/rooms/5"))
	require.NoError(t, h.Subscribe(c, TopicAllRooms))

	h.Publish("/rooms/5", roomData(5))
	assert.Len(t, queuedFrames(c), 1)
}

func TestUnsubscribeAll(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newTestClient(t, h, 8)

	require.NoError(t, h.Subscribe(c, "/rooms/5"))
	require.NoError(t, h.Subscribe(c, TopicAllRooms))

	h.UnsubscribeAll(c)

	assert.Equal(t, 0, h.SubscriberCount("/rooms/5"))
	assert.Equal(t, 0, h.SubscriberCount(TopicAllRooms))

	h.Publish("/rooms/5", roomData(5))
	assert.Len(t, queuedFrames(c), 0)
}

func TestEnqueue_DropsOldestRoomData(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newTestClient(t, h, 3)
	require.NoError(t, h.Subscribe(c, "/rooms/1"))

	for i := int64(1); i <= 4; i++ {
		h.Publish("/rooms/1", roomData(i))
	}

	frames := queuedFrames(c)
	require.Len(t, frames, 3, "queue stays bounded")

	// 最旧的一帧被丢弃，顺序保持
	var first models.RoomDataMessage
	require.NoError(t, json.Unmarshal(frames[0].data, &first))
	assert.Equal(t, int64(2), first.RoomID)
}

func TestEnqueue_NeverDropsAlarms(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := newTestClient(t, h, 3)
	require.NoError(t, h.Subscribe(c, "/rooms/1"))

	// 填满队列后到达的报警挤掉最旧的普通帧
	for i := 0; i < 3; i++ {
		h.Publish("/rooms/1", roomData(1))
	}
	h.Publish("/rooms/1", alert(1))

	frames := queuedFrames(c)
	require.Len(t, frames, 3)
	assert.True(t, frames[len(frames)-1].critical, "alarm frame must survive the drop policy")

	criticals := 0
	for _, f := range frames {
		if f.critical {
			criticals++
		}
	}
	assert.Equal(t, 1, criticals)
}

func TestEnqueue_QueueFullOfAlarms_DisconnectsSlowConsumer(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newFakeConn()
	c := NewClient("slow", h, conn, 2, time.Second, time.Minute, zap.NewNop())
	require.NoError(t, h.Subscribe(c, "/rooms/1"))

	for i := 0; i < 3; i++ {
		h.Publish("/rooms/1", alert(1))
	}

	select {
	case <-c.done:
		// 慢消费者被断开，报警未被静默丢弃
	default:
		t.Fatal("expected slow consumer to be disconnected")
	}
	assert.Equal(t, 0, h.SubscriberCount("/rooms/1"))
}

func TestClient_EndToEnd_SubscribeAndReceive(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newFakeConn()
	c := NewClient("e2e", h, conn, 8, time.Second, time.Minute, zap.NewNop())
	c.Start()
	defer c.Close()

	// 客户端发送订阅请求
	req, _ := json.Marshal(&models.SubscribeRequest{Type: models.MsgSubscribe, Topic: "/rooms/7"})
	conn.reads <- req

	// 等待订阅响应写出后再发布，避免与 ack 入队竞争
	require.Eventually(t, func() bool {
		return len(conn.frames()) >= 1
	}, time.Second, 10*time.Millisecond)

	var ack models.SubscribeAck
	require.NoError(t, json.Unmarshal(conn.frames()[0], &ack))
	assert.True(t, ack.Success)
	assert.Equal(t, "/rooms/7", ack.Topic)

	h.Publish("/rooms/7", roomData(7))

	require.Eventually(t, func() bool {
		return len(conn.frames()) >= 2
	}, time.Second, 10*time.Millisecond)

	var data models.RoomDataMessage
	require.NoError(t, json.Unmarshal(conn.frames()[1], &data))
	assert.Equal(t, int64(7), data.RoomID)
}

func TestClient_MalformedSubscribe_GetsFailureAck(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newFakeConn()
	c := NewClient("bad", h, conn, 8, time.Second, time.Minute, zap.NewNop())
	c.Start()
	defer c.Close()

	req, _ := json.Marshal(&models.SubscribeRequest{Type: models.MsgSubscribe, Topic: "/rooms/xyz"})
	conn.reads <- req

	require.Eventually(t, func() bool {
		return len(conn.frames()) >= 1
	}, time.Second, 10*time.Millisecond)

	var ack models.SubscribeAck
	require.NoError(t, json.Unmarshal(conn.frames()[0], &ack))
	assert.False(t, ack.Success)
	assert.NotEmpty(t, ack.Error)
}

func TestClient_Disconnect_CleansUpSubscriptions(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newFakeConn()
	c := NewClient("gone", h, conn, 8, time.Second, time.Minute, zap.NewNop())
	c.Start()

	require.NoError(t, h.Subscribe(c, "/rooms/3"))
	require.Equal(t, 1, h.SubscriberCount("/rooms/3"))

	// 模拟对端断开
	conn.Close()

	require.Eventually(t, func() bool {
		return h.SubscriberCount("/rooms/3") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestPublish_DeliveryOrderPerRoom(t *testing.T) {
	h := NewHub(zap.NewNop())
	conn := newFakeConn()
	c := NewClient("order", h, conn, 64, time.Second, time.Minute, zap.NewNop())
	c.Start()
	defer c.Close()

	require.NoError(t, h.Subscribe(c, "/rooms/1"))

	for i := int64(1); i <= 10; i++ {
		msg := roomData(1)
		msg.Time = i
		h.Publish("/rooms/1", msg)
	}

	require.Eventually(t, func() bool {
		return len(conn.frames()) == 10
	}, time.Second, 10*time.Millisecond)

	for i, raw := range conn.frames() {
		var msg models.RoomDataMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, int64(i+1), msg.Time, "events must arrive in publish order")
	}
}
