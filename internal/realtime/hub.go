// Package realtime pushes live state to connected clients over websockets
// and receives their notification interactions. The hub doubles as the
// local notification surface and the navigation sink.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bookverse-notifications/internal/channels"
	"bookverse-notifications/internal/common/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event types written to clients.
const (
	EventPreferences = "preferences"
	EventCounts      = "inbox.counts"
	EventScheduled   = "notification.scheduled"
	EventCancelled   = "notification.cancelled"
	EventCleared     = "notification.cleared"
	EventNavigate    = "navigate"
)

// EventInteraction is the only message type clients send.
const EventInteraction = "interaction"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type interactionPayload struct {
	NotificationID string `json:"notificationId"`
	ActionID       string `json:"actionId"`
}

type navigation struct {
	Destination string            `json:"destination"`
	Params      map[string]string `json:"params,omitempty"`
}

type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	done   chan struct{}
}

// Done is closed once the client is unregistered.
func (c *Client) Done() <-chan struct{} { return c.done }

type Hub struct {
	upgrader websocket.Upgrader

	unregister chan *Client

	mu          sync.RWMutex
	userClients map[string]map[*Client]bool

	interactions chan channels.Interaction
	stopped      chan struct{}
	logger       logger.Logger
}

// NewHub accepts upgrades from allowedOrigins; empty or "*" allows any.
func NewHub(allowedOrigins []string, log logger.Logger) *Hub {
	h := &Hub{
		unregister:   make(chan *Client),
		userClients:  make(map[string]map[*Client]bool),
		interactions: make(chan channels.Interaction, sendBuffer),
		stopped:      make(chan struct{}),
		logger:       logger.Component(log, "realtime"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(set) == 0 || set[origin]
	}
}

// Run removes disconnected clients until ctx ends, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.stopped)
			h.mu.Lock()
			for _, clients := range h.userClients {
				for c := range clients {
					close(c.Send)
					close(c.done)
				}
			}
			h.userClients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case c := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.userClients[c.UserID]; ok && clients[c] {
				delete(clients, c)
				if len(clients) == 0 {
					delete(h.userClients, c.UserID)
				}
				close(c.Send)
				close(c.done)
				h.logger.Debug("client unregistered", map[string]interface{}{"userId": c.UserID, "clientId": c.ID})
			}
			h.mu.Unlock()
		}
	}
}

// Serve upgrades the request and pumps messages for userID until the
// connection drops.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) (*Client, error) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	if !h.attach(c) {
		conn.Close()
		return nil, http.ErrServerClosed
	}
	go c.writePump()
	go c.readPump(h)
	return c, nil
}

// attach registers c before any event can target it.
func (h *Hub) attach(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.stopped:
		return false
	default:
	}
	if _, ok := h.userClients[c.UserID]; !ok {
		h.userClients[c.UserID] = make(map[*Client]bool)
	}
	h.userClients[c.UserID][c] = true
	h.logger.Debug("client registered", map[string]interface{}{"userId": c.UserID, "clientId": c.ID})
	return true
}

// Connected reports how many clients userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

// SendToUser writes ev to every client of userID. Slow clients miss events
// rather than block the sender.
func (h *Hub) SendToUser(userID string, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", map[string]interface{}{"type": ev.Type, "error": err})
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.userClients[userID] {
		select {
		case c.Send <- msg:
		default:
			h.logger.Warn("client send buffer full, event dropped", map[string]interface{}{
				"userId":   userID,
				"clientId": c.ID,
				"type":     ev.Type,
			})
		}
	}
}

// ==========================
// channels.LocalSurface
// ==========================

func (h *Hub) Schedule(_ context.Context, n channels.LocalNotification) error {
	h.SendToUser(n.UserID, Event{Type: EventScheduled, Payload: n})
	return nil
}

func (h *Hub) Cancel(_ context.Context, userID, notificationID string) error {
	h.SendToUser(userID, Event{Type: EventCancelled, Payload: map[string]string{"notificationId": notificationID}})
	return nil
}

func (h *Hub) CancelAll(_ context.Context, userID string) error {
	h.SendToUser(userID, Event{Type: EventCleared, Payload: map[string]string{}})
	return nil
}

func (h *Hub) Interactions() <-chan channels.Interaction {
	return h.interactions
}

// ==========================
// channels.Navigator
// ==========================

func (h *Hub) Navigate(_ context.Context, userID, destination string, params map[string]string) error {
	h.SendToUser(userID, Event{Type: EventNavigate, Payload: navigation{Destination: destination, Params: params}})
	return nil
}

// ==========================
// Pumps
// ==========================

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stopped:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket closed unexpectedly", map[string]interface{}{"userId": c.UserID, "error": err})
			}
			return
		}
		h.handleInbound(c, data)
	}
}

func (h *Hub) handleInbound(c *Client, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != EventInteraction {
		h.logger.Debug("ignoring client message", map[string]interface{}{"userId": c.UserID})
		return
	}
	var p interactionPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.NotificationID == "" {
		return
	}
	select {
	case h.interactions <- channels.Interaction{UserID: c.UserID, NotificationID: p.NotificationID, ActionID: p.ActionID}:
	case <-h.stopped:
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
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
