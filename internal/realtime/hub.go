package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	sendBuffer     = 256
	maxFrameLength = 4096
)

// Hub tracks connected WebSocket clients and the topics each one listens
// on. Deliver fans an envelope out to every client subscribed to its topic.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	perUser map[uuid.UUID]int
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		perUser: make(map[uuid.UUID]int),
		logger:  logger,
	}
}

// Client is one WebSocket connection. Its topic set is guarded by the hub lock.
type Client struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]struct{}
}

// ClientFrame is what a client may send: subscribe to or leave one
// channel or conversation topic.
type ClientFrame struct {
	Action         string     `json:"action"`
	ChannelID      *uuid.UUID `json:"channel_id,omitempty"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, orgID uuid.UUID) *Client {
	return &Client{
		UserID:         userID,
		OrganizationID: orgID,
		hub:            hub,
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		topics:         make(map[string]struct{}),
	}
}

// Register adds the client and subscribes it to its own user topic.
// Returns how many connections the user now has.
func (h *Hub) Register(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	h.perUser[c.UserID]++
	h.subscribeLocked(c, UserTopic(c.UserID))

	h.logger.Debug("ws client registered",
		zap.String("user_id", c.UserID.String()),
		zap.Int("clients", len(h.clients)),
	)
	return h.perUser[c.UserID]
}

// Unregister drops the client from every topic and closes its send queue.
// Returns how many connections the user still has.
func (h *Hub) Unregister(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return h.perUser[c.UserID]
	}
	for topic := range c.topics {
		h.unsubscribeLocked(c, topic)
	}
	delete(h.clients, c)
	close(c.send)

	h.perUser[c.UserID]--
	left := h.perUser[c.UserID]
	if left <= 0 {
		delete(h.perUser, c.UserID)
		left = 0
	}
	h.logger.Debug("ws client unregistered",
		zap.String("user_id", c.UserID.String()),
		zap.Int("clients", len(h.clients)),
	)
	return left
}

func (h *Hub) Subscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	h.subscribeLocked(c, topic)
}

func (h *Hub) Unsubscribe(c *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unsubscribeLocked(c, topic)
}

func (h *Hub) subscribeLocked(c *Client, topic string) {
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Client]struct{})
		h.topics[topic] = subs
	}
	subs[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

func (h *Hub) unsubscribeLocked(c *Client, topic string) {
	delete(c.topics, topic)
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Deliver queues frame for every subscriber of topic and returns how many
// clients accepted it. A client whose queue is full misses the frame; the
// store stays the source of truth and it catches up on the next fetch.
func (h *Hub) Deliver(topic string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.topics[topic] {
		select {
		case c.send <- frame:
			delivered++
		default:
			h.logger.Warn("ws send queue full, dropping frame",
				zap.String("user_id", c.UserID.String()),
				zap.String("topic", topic),
			)
		}
	}
	return delivered
}

// Connected reports whether the user has at least one open connection.
func (h *Hub) Connected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.perUser[userID] > 0
}

// Serve runs the client's pumps until the connection drops. onFrame is
// called for every well-formed client frame and onPong on every pong.
// Serve registers the client itself and unregisters it before returning;
// onClose gets the number of connections the user has left.
func (c *Client) Serve(onFrame func(*Client, ClientFrame), onPong func(*Client), onClose func(*Client, int)) {
	c.hub.Register(c)
	go c.writePump()
	c.readPump(onFrame, onPong)

	left := c.hub.Unregister(c)
	if onClose != nil {
		onClose(c, left)
	}
}

func (c *Client) readPump(onFrame func(*Client, ClientFrame), onPong func(*Client)) {
	defer c.conn.Close()

	c.conn.SetReadLimit(maxFrameLength)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		if onPong != nil {
			onPong(c)
		}
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Info("ws read error", zap.String("user_id", c.UserID.String()), zap.Error(err))
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if onFrame != nil {
			onFrame(c, frame)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Reply queues a direct frame for this client only (subscribe acks, errors).
func (c *Client) Reply(event string, payload any) {
	frame, err := NewEnvelope("", event, payload)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}
