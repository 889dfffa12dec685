// Package websocket runs the live interview channel: one Client per browser tab, grouped
// by interview session.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client message types.
const (
	TypeAnswer = "answer"
	TypeHint   = "hint"
)

// Server message types.
const (
	TypeAnswerSaved      = "answer_saved"
	TypeError            = "error"
	TypeSessionAbandoned = "session_abandoned"
	TypeSessionCompleted = "session_completed"
)

// Message is what the browser sends.
type Message struct {
	Type          string `json:"type"`
	QuestionID    string `json:"question_id,omitempty"`
	Text          string `json:"text,omitempty"`
	TimeSpent     int    `json:"time_spent,omitempty"`
	CurrentAnswer string `json:"current_answer,omitempty"`
}

// Reply is what the server pushes back.
type Reply struct {
	Type       string   `json:"type"`
	SessionID  string   `json:"session_id"`
	QuestionID string   `json:"question_id,omitempty"`
	Hint       string   `json:"hint,omitempty"`
	Error      string   `json:"error,omitempty"`
	Answered   int      `json:"answered,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

type sessionReply struct {
	sessionID string
	payload   []byte
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan sessionReply
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	Hub            *Hub
	Conn           *websocket.Conn
	Send           chan []byte
	UserID         string
	SessionID      string
	MessageHandler func(*Client, Message)

	mu     sync.Mutex
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan sessionReply, 16),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and session broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Client registered", "user_id", client.UserID, "session_id", client.SessionID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			slog.Info("Client unregistered", "user_id", client.UserID, "session_id", client.SessionID)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.SessionID != msg.sessionID {
					continue
				}
				if !client.safeSend(msg.payload) {
					delete(h.clients, client)
					client.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, userID, sessionID string) *Client {
	client := &Client{
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, sendBuffer),
		UserID:    userID,
		SessionID: sessionID,
	}
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
	return client
}

// ClientCount returns the number of connections attached to a session.
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.SessionID == sessionID {
			n++
		}
	}
	return n
}

// NotifySession pushes reply to every connection watching the session. It never blocks
// the caller; a full queue drops the notification.
func (h *Hub) NotifySession(sessionID string, reply Reply) {
	reply.SessionID = sessionID
	payload, err := json.Marshal(reply)
	if err != nil {
		slog.Error("Failed to marshal session notification", "error", err)
		return
	}
	select {
	case h.broadcast <- sessionReply{sessionID: sessionID, payload: payload}:
	default:
		slog.Warn("Hub broadcast queue full, dropping notification", "session_id", sessionID, "type", reply.Type)
	}
}

// safeSend queues payload without blocking. It reports false when the client is gone or
// its buffer is full.
func (c *Client) safeSend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Reply sends a message to this client only.
func (c *Client) Reply(reply Reply) {
	reply.SessionID = c.SessionID
	payload, err := json.Marshal(reply)
	if err != nil {
		slog.Error("Failed to marshal reply", "error", err)
		return
	}
	if !c.safeSend(payload) {
		slog.Warn("Dropped reply for slow or closed client", "session_id", c.SessionID, "type", reply.Type)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			slog.Error("Failed to unmarshal message", "error", err)
			c.Reply(Reply{Type: TypeError, Error: "invalid message"})
			continue
		}

		slog.Debug("Message received", "type", msg.Type, "session_id", c.SessionID)
		if c.MessageHandler == nil {
			c.Reply(Reply{Type: TypeError, Error: "live channel unavailable"})
			continue
		}
		// answers of one client are applied in order
		c.MessageHandler(c, msg)
	}
}

func (c *Client) WritePump() {
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
