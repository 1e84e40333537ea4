// Package hub implements the server side of the push channel: a registry of
// authenticated websocket connections keyed by user, fanning typed events out
// to every open session of a user.
package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yourorg/taskboard/internal/config"
	"github.com/yourorg/taskboard/internal/realtime"
)

// Hub tracks live push channels. A user may hold several (one per open
// session); sends go to all of them. Slow or dead connections are dropped
// rather than blocking the sender.
type Hub struct {
	cfg    config.HubConfig
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[int64]map[*channel]struct{}
	closed   bool
}

type channel struct {
	userID int64
	conn   *websocket.Conn
	send   chan outbound
	quit   chan struct{}
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// New creates an empty hub.
func New(cfg config.HubConfig, logger *zap.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[int64]map[*channel]struct{}),
	}
}

// Register adopts an upgraded websocket connection for the user and starts
// its read/write pumps. The hub owns the connection from here on.
func (h *Hub) Register(userID int64, conn *websocket.Conn) {
	ch := &channel{
		userID: userID,
		conn:   conn,
		send:   make(chan outbound, h.cfg.SendBuffer),
		quit:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	set, ok := h.sessions[userID]
	if !ok {
		set = make(map[*channel]struct{})
		h.sessions[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("push channel registered", zap.Int64("userID", userID))
	go h.writePump(ch)
	go h.readPump(ch)
}

// SendToUser delivers one event to every open channel of the user. Delivery
// is best-effort: a channel with a full send buffer is dropped.
func (h *Hub) SendToUser(userID int64, event string, data interface{}) {
	h.mu.RLock()
	channels := make([]*channel, 0, len(h.sessions[userID]))
	for ch := range h.sessions[userID] {
		channels = append(channels, ch)
	}
	h.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch.send <- outbound{Event: event, Data: data}:
		default:
			h.logger.Warn("push channel send buffer full, dropping connection",
				zap.Int64("userID", userID))
			h.unregister(ch)
		}
	}
}

// Broadcast delivers one event to every connected user. Used for system
// messages.
func (h *Hub) Broadcast(event string, data interface{}) {
	h.mu.RLock()
	users := make([]int64, 0, len(h.sessions))
	for userID := range h.sessions {
		users = append(users, userID)
	}
	h.mu.RUnlock()

	for _, userID := range users {
		h.SendToUser(userID, event, data)
	}
}

// ConnectionCount reports how many channels the user currently holds.
func (h *Hub) ConnectionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Close drops every channel and rejects future registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*channel
	for _, set := range h.sessions {
		for ch := range set {
			all = append(all, ch)
		}
	}
	h.sessions = make(map[int64]map[*channel]struct{})
	h.mu.Unlock()

	for _, ch := range all {
		close(ch.quit)
	}
}

// unregister removes the channel from the registry and signals its pumps to
// exit. The send channel is never closed; concurrent senders only ever see a
// full buffer.
func (h *Hub) unregister(ch *channel) {
	h.mu.Lock()
	set, ok := h.sessions[ch.userID]
	removed := false
	if ok {
		if _, present := set[ch]; present {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.sessions, ch.userID)
			}
			removed = true
		}
	}
	h.mu.Unlock()

	if removed {
		close(ch.quit)
	}
}

// writePump serializes envelopes onto the wire and keeps the connection
// alive with periodic pings.
func (h *Hub) writePump(ch *channel) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		ch.conn.Close()
	}()

	for {
		select {
		case env := <-ch.send:
			ch.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := ch.conn.WriteJSON(env); err != nil {
				h.logger.Debug("push write failed", zap.Int64("userID", ch.userID), zap.Error(err))
				h.unregister(ch)
				return
			}
		case <-ticker.C:
			ch.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := ch.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(ch)
				return
			}
		case <-ch.quit:
			ch.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			ch.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump discards inbound frames (clients never send over this channel;
// all client-initiated actions go over REST) and enforces pong deadlines.
func (h *Hub) readPump(ch *channel) {
	defer func() {
		h.unregister(ch)
		ch.conn.Close()
	}()

	ch.conn.SetReadLimit(1024)
	ch.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ch.conn.SetPongHandler(func(string) error {
		return ch.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		if _, _, err := ch.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Event name re-exports so server code has one import for push vocabulary.
const (
	EventReceiveNotification = realtime.EventReceiveNotification
	EventReceiveUnreadCount  = realtime.EventReceiveUnreadCount
	EventTodoCreated         = realtime.EventTodoCreated
	EventTodoUpdated         = realtime.EventTodoUpdated
	EventTodoCompleted       = realtime.EventTodoCompleted
)
