package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/tpms-dashboard/backend/internal/logging"
	"github.com/tpms-dashboard/backend/internal/metrics"
	"github.com/tpms-dashboard/backend/internal/models"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypePing = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeTPMSData  = "tpms_data"
	MsgTypePong      = "pong"
	MsgTypeError     = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16

	// DefaultMaxMessageSize bounds client messages; clients only send pings.
	DefaultMaxMessageSize = 64 * 1024
)

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WebSocket error response
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
}

// Hub pushes tick updates to the websocket clients of each session.
// It implements session.Publisher.
type Hub struct {
	sessions       SessionManager
	upgrader       websocket.Upgrader
	maxMessageSize int64
	log            zerolog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates a hub. Sessions are resolved through sessions on connect.
func NewHub(sessions SessionManager, maxMessageSize int64, log zerolog.Logger) *Hub {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Hub{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		maxMessageSize: maxMessageSize,
		log:            logging.Component(log, "ws"),
		clients:        make(map[*wsClient]struct{}),
	}
}

// SetSessions sets the session lookup. Used when the hub is created before the manager.
func (h *Hub) SetSessions(sessions SessionManager) {
	h.sessions = sessions
}

// Publish sends update to every client subscribed to its session.
// Clients whose buffer is full are dropped.
func (h *Hub) Publish(update models.TickUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode tick update")
		return
	}
	data, err := json.Marshal(WSMessage{
		Type:      MsgTypeTPMSData,
		ID:        update.SessionID,
		Payload:   payload,
		Timestamp: update.At.UnixMilli(),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode websocket message")
		return
	}

	var slow []*wsClient
	h.mu.RLock()
	for c := range h.clients {
		if c.sessionID != update.SessionID {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn().Str("session", logging.ShortID(c.sessionID)).Msg("dropping slow websocket client")
		h.unregister(c)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClosed disconnects the clients of a closed session.
func (h *Hub) SessionClosed(sessionID string) {
	var gone []*wsClient
	h.mu.RLock()
	for c := range h.clients {
		if c.sessionID == sessionID {
			gone = append(gone, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range gone {
		h.unregister(c)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[*wsClient]struct{})
	for c := range all {
		close(c.send)
	}
	h.mu.Unlock()
	metrics.AddWSClients(-len(all))
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	metrics.AddWSClients(1)
	h.log.Info().Str("session", logging.ShortID(c.sessionID)).Int("clients", count).Msg("client connected")
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.AddWSClients(-1)
		h.log.Info().Str("session", logging.ShortID(c.sessionID)).Int("clients", count).Msg("client disconnected")
	}
}

// deliver queues data for c unless c is gone or saturated.
func (h *Hub) deliver(c *wsClient, msg WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// HandleWebSocket upgrades the connection and subscribes it to the session's ticks
func (h *Hub) HandleWebSocket(c echo.Context) error {
	sess, err := lookupSession(c, h.sessions)
	if err != nil {
		return err
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &wsClient{
		conn:      ws,
		sessionID: sess.ID,
		send:      make(chan []byte, sendBufferSize),
	}
	h.register(client)

	done := make(chan struct{})
	go func() {
		h.writePump(client)
		close(done)
	}()

	info, _ := json.Marshal(sess.Info())
	h.deliver(client, WSMessage{
		Type:      MsgTypeConnected,
		ID:        sess.ID,
		Payload:   info,
		Timestamp: time.Now().UnixMilli(),
	})

	h.readPump(client)
	h.unregister(client)
	<-done
	return nil
}

func (h *Hub) readPump(c *wsClient) {
	c.conn.SetReadLimit(h.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug().Err(err).Msg("connection error")
			}
			return
		}

		switch msg.Type {
		case MsgTypePing:
			// Respond with pong to keep connection alive
			h.deliver(c, WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()})
		default:
			payload, _ := json.Marshal(WSErrorResponse{
				Message: "Unknown message type: " + msg.Type,
				Code:    "INVALID_TYPE",
			})
			h.deliver(c, WSMessage{Type: MsgTypeError, Payload: payload, Timestamp: time.Now().UnixMilli()})
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
