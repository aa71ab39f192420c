package service

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"sync"
	"time"

	"nbl_training_backend/internal/util"
	"nbl_training_backend/pkg/logger"
	"nbl_training_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	shardCount     = 32
	sendBuffer     = 256

	// PubSubChannel 多实例之间转发会话消息
	PubSubChannel = "nbl_session_channel"
)

// WSMessage 出入站统一格式 {"type": ..., "data": ...}
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// InboundMessage data 延迟到具体事件再解析
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EventHandler 处理客户端上行事件，同一连接的事件按接收顺序依次处理
type EventHandler interface {
	HandleEvent(ctx context.Context, c *Client, msg InboundMessage)
}

type Client struct {
	ID      string
	Hub     *TrainingHub
	Conn    *websocket.Conn
	Send    chan []byte
	Limiter *rate.Limiter
	// Claims 握手时的令牌，匿名连接为 nil
	Claims *util.Claims

	mu     sync.Mutex
	topics map[string]struct{}

	// sendMu 保护 Send 的关闭，关闭后的投递直接丢弃
	sendMu sync.RWMutex
	closed bool
}

func NewClient(hub *TrainingHub, conn *websocket.Conn) *Client {
	return &Client{
		ID:      uuid.NewString(),
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Limiter: rate.NewLimiter(rate.Limit(30), 50), // 每秒30条，允许突发50条
		topics:  make(map[string]struct{}),
	}
}

// close 只关闭一次 Send，writePump 随之退出
func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.ctx.Done():
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.String("clientId", c.ID))
			}
			break
		}

		if !c.Limiter.Allow() {
			continue
		}

		var msg InboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Hub.SendTo(c, errorMessage("malformed message"))
			continue
		}

		monitoring.WSMessageCounter.WithLabelValues(msg.Type, "in").Inc()
		if c.Hub.handler != nil {
			c.Hub.handler.HandleEvent(c.Hub.ctx, c, msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// 每条消息独立成帧，客户端按 JSON 逐条解析
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type shard struct {
	topics map[string]map[*Client]struct{}
	mu     sync.RWMutex
}

// TrainingHub 按会话主题分发实时结果。配置 Redis 时经 pub/sub 在实例间转发
type TrainingHub struct {
	shards      [shardCount]*shard
	register    chan *Client
	unregister  chan *Client
	Redis       *redis.Client
	handler     EventHandler
	checkOrigin func(origin string) bool

	clientsMu sync.RWMutex
	clients   map[*Client]struct{}

	pubsub *redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
}

func NewTrainingHub(rdb *redis.Client, checkOrigin func(origin string) bool) *TrainingHub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &TrainingHub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		Redis:       rdb,
		checkOrigin: checkOrigin,
		clients:     make(map[*Client]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{
			topics: make(map[string]map[*Client]struct{}),
		}
	}
	return h
}

func (h *TrainingHub) SetHandler(handler EventHandler) {
	h.handler = handler
}

// SessionTopic 会话房间名
func SessionTopic(sessionID string) string {
	return "session-" + sessionID
}

func (h *TrainingHub) getShard(topic string) *shard {
	f := fnv.New32a()
	f.Write([]byte(topic))
	return h.shards[f.Sum32()%shardCount]
}

// PubSubMessage Topic 为空表示广播给所有连接
type PubSubMessage struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

func (h *TrainingHub) Run() {
	if h.Redis != nil {
		h.pubsub = h.Redis.Subscribe(h.ctx, PubSubChannel)
		go func() {
			ch := h.pubsub.Channel()
			for msg := range ch {
				var psMsg PubSubMessage
				if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
					logger.Log.Error("PubSub unmarshal error", zap.Error(err))
					continue
				}
				h.deliverLocal(psMsg.Topic, psMsg.Payload)
			}
		}()
	}

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = struct{}{}
			h.clientsMu.Unlock()
			monitoring.WSConnections.Inc()

		case client := <-h.unregister:
			h.removeClient(client)

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *TrainingHub) removeClient(client *Client) {
	h.clientsMu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	h.clientsMu.Unlock()
	if !ok {
		return
	}

	for _, topic := range client.Topics() {
		h.Leave(client, topic)
	}
	client.close()
	monitoring.WSConnections.Dec()
}

// Stop 关闭所有连接并退出 Run
func (h *TrainingHub) Stop() {
	logger.Log.Info("TrainingHub stopping: closing connections...")

	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}

	// 先退订所有主题，再关闭连接
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		s.topics = make(map[string]map[*Client]struct{})
		s.mu.Unlock()
	}

	h.clientsMu.Lock()
	closed := len(h.clients)
	for client := range h.clients {
		client.close()
		delete(h.clients, client)
	}
	h.clientsMu.Unlock()

	monitoring.WSConnections.Set(0)
	logger.Log.Info("TrainingHub stopped", zap.Int("closedConnections", closed))
}

func (h *TrainingHub) Join(c *Client, topic string) {
	s := h.getShard(topic)
	s.mu.Lock()
	members, ok := s.topics[topic]
	if !ok {
		members = make(map[*Client]struct{})
		s.topics[topic] = members
	}
	members[c] = struct{}{}
	s.mu.Unlock()

	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()
}

func (h *TrainingHub) Leave(c *Client, topic string) {
	s := h.getShard(topic)
	s.mu.Lock()
	if members, ok := s.topics[topic]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(s.topics, topic)
		}
	}
	s.mu.Unlock()

	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()
}

// Members 当前实例上订阅该主题的连接数
func (h *TrainingHub) Members(topic string) int {
	s := h.getShard(topic)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics[topic])
}

// Publish 发送到主题的全部订阅者
func (h *TrainingHub) Publish(topic string, msg WSMessage) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Error("WSMessage marshal error", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	monitoring.WSMessageCounter.WithLabelValues(msg.Type, "out").Inc()

	if h.Redis == nil {
		h.deliverLocal(topic, msgBytes)
		return
	}

	payload, _ := json.Marshal(PubSubMessage{Topic: topic, Payload: msgBytes})
	if err := h.Redis.Publish(h.ctx, PubSubChannel, payload).Err(); err != nil {
		// Redis 不可用时至少送达本实例
		logger.Log.Warn("Redis publish failed, delivering locally", zap.Error(err))
		h.deliverLocal(topic, msgBytes)
	}
}

// Broadcast 发送给所有连接
func (h *TrainingHub) Broadcast(msg WSMessage) {
	h.Publish("", msg)
}

// SendTo 只发给单个连接，不经过 Redis
func (h *TrainingHub) SendTo(c *Client, msg WSMessage) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Error("WSMessage marshal error", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	monitoring.WSMessageCounter.WithLabelValues(msg.Type, "out").Inc()
	trySend(c, msgBytes)
}

func (h *TrainingHub) deliverLocal(topic string, payload []byte) {
	if topic == "" {
		h.clientsMu.RLock()
		for client := range h.clients {
			trySend(client, payload)
		}
		h.clientsMu.RUnlock()
		return
	}

	s := h.getShard(topic)
	s.mu.RLock()
	for client := range s.topics[topic] {
		trySend(client, payload)
	}
	s.mu.RUnlock()
}

// trySend 发送缓冲已满或连接已关闭时丢弃，避免慢连接阻塞分发
func trySend(c *Client, payload []byte) {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- payload:
	default:
	}
}

func (h *TrainingHub) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if h.checkOrigin == nil {
				return true
			}
			return h.checkOrigin(r.Header.Get("Origin"))
		},
	}
}

// ServeWs claims 为握手请求上已校验的令牌，匿名时为 nil
func ServeWs(hub *TrainingHub, w http.ResponseWriter, r *http.Request, claims *util.Claims) {
	up := hub.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}
	client := NewClient(hub, conn)
	client.Claims = claims
	select {
	case hub.register <- client:
	case <-hub.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func errorMessage(message string) WSMessage {
	return WSMessage{Type: "error", Data: map[string]interface{}{
		"success": false,
		"message": message,
	}}
}
