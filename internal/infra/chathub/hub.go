package chathub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"autoparts/internal/domain/model"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufferSize = 16
)

// 管理者の全会話購読
const AllConversations int64 = 0

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORSはecho側で制御する
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Client struct {
	conn  *websocket.Conn
	send  chan []byte
	topic int64
	once  sync.Once
	done  chan struct{}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// 会話(顧客のUserID)ごとに接続を束ねる
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	logger  *zap.Logger
}

func New(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		logger:  logger,
	}
}

// 保存済みメッセージを会話の購読者と全体購読者へ流す。遅いクライアントは切る。
func (h *Hub) Publish(msg model.ChatMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("chat message marshal failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	var slow []*Client
	for _, topic := range []int64{msg.UserID, AllConversations} {
		for c := range h.clients[topic] {
			select {
			case c.send <- data:
			default:
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("chat client too slow, disconnecting", zap.Int64("topic", c.topic))
		h.unregister(c)
	}
}

// 接続を登録してpumpを回す。接続が閉じるまで戻らない。
func (h *Hub) Serve(conn *websocket.Conn, topic int64) {
	c := &Client{
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		topic: topic,
		done:  make(chan struct{}),
	}
	h.register(c)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writePump(c)
	}()

	h.readPump(c)
	h.unregister(c)
	wg.Wait()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// シャットダウン時に全接続を閉じる
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[int64]map[*Client]struct{})
	h.mu.Unlock()

	for _, set := range all {
		for c := range set {
			c.close()
		}
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.topic]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.topic] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.topic]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.topic)
		}
	}
	h.mu.Unlock()
	c.close()
}

// クライアントからの送信は使わない。切断とpongの検知だけ。
func (h *Hub) readPump(c *Client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("chat websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
