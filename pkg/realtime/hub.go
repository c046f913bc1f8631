package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Client is one websocket subscriber to a topic.
type Client struct {
	conn  *websocket.Conn
	topic string
	send  chan []byte
	once  sync.Once
}

// Hub fans messages out to websocket clients grouped by topic.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]struct{}
	logger *zap.Logger
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{topics: make(map[string]map[*Client]struct{}), logger: logger}
}

// Serve registers conn under topic and blocks until the peer disconnects.
func (h *Hub) Serve(topic string, conn *websocket.Conn) {
	c := h.register(topic, conn)
	go h.writePump(c)
	h.readPump(c)
}

// Publish queues msg for every client subscribed to topic and returns how
// many clients accepted it. Clients whose buffer is full are dropped.
func (h *Hub) Publish(topic string, msg interface{}) (int, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("marshal realtime message: %w", err)
	}

	delivered := 0
	var slow []*Client

	// Sends happen under the read lock so unregister cannot close a channel
	// mid-send.
	h.mu.RLock()
	for c := range h.topics[topic] {
		select {
		case c.send <- payload:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow websocket client", zap.String("topic", topic))
		h.unregister(c)
	}
	return delivered, nil
}

// Count returns the number of clients subscribed to topic.
func (h *Hub) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	var clients []*Client
	for _, set := range h.topics {
		for c := range set {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

func (h *Hub) register(topic string, conn *websocket.Conn) *Client {
	c := &Client{conn: conn, topic: topic, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}
	total := len(h.topics[topic])
	h.mu.Unlock()

	h.logger.Debug("websocket subscribed", zap.String("topic", topic), zap.Int("subscribers", total))
	return c
}

func (h *Hub) unregister(c *Client) {
	c.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.topics[c.topic]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.topics, c.topic)
			}
		}
		close(c.send)
		h.mu.Unlock()
		h.logger.Debug("websocket unsubscribed", zap.String("topic", c.topic))
	})
}

func (h *Hub) readPump(c *Client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only goroutine writing to the connection.
func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}
