package websocket

import (
	"context"
	"sync"

	"github.com/richxcame/truckroute/pkg/logger"
	"go.uber.org/zap"
)

// MessageHandler handles a message type sent by clients.
type MessageHandler func(*Client, *Message)

// Hub tracks connected clients grouped by navigation session.
type Hub struct {
	clients  map[string]*Client
	sessions map[string]map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	broadcast  chan *sessionMessage

	handlers map[string]MessageHandler

	mu sync.RWMutex
}

type sessionMessage struct {
	sessionID string
	message   *Message
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		sessions:   make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan *sessionMessage, 256),
		handlers:   make(map[string]MessageHandler),
	}
}

// Run processes registrations and broadcasts until ctx is done. All client
// channels are closed on exit.
func (h *Hub) Run(ctx context.Context) {
	logger.Info("WebSocket hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			logger.Info("WebSocket hub stopped")
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	room, ok := h.sessions[client.SessionID]
	if !ok {
		room = make(map[string]*Client)
		h.sessions[client.SessionID] = room
	}
	room[client.ID] = client

	logger.Debug("websocket client registered",
		zap.String("client_id", client.ID),
		zap.String("session_id", client.SessionID),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	if room, ok := h.sessions[client.SessionID]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.sessions, client.SessionID)
		}
	}
	client.close()

	logger.Debug("websocket client unregistered",
		zap.String("client_id", client.ID),
		zap.String("session_id", client.SessionID),
	)
}

func (h *Hub) deliver(msg *sessionMessage) {
	h.mu.RLock()
	room := h.sessions[msg.sessionID]
	targets := make([]*Client, 0, len(room))
	for _, client := range room {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		if !client.SendMessage(msg.message) {
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.close()
	}
	h.clients = make(map[string]*Client)
	h.sessions = make(map[string]map[string]*Client)
}

// HandleMessage routes an incoming client message to its handler.
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, exists := h.handlers[msg.Type]
	h.mu.RUnlock()

	if !exists {
		logger.Debug("no handler for websocket message", zap.String("type", msg.Type))
		return
	}
	handler(client, msg)
}

// RegisterHandler registers a message handler for a specific type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
}

// SendToSession queues a message for every client watching the session.
// It never blocks; when the queue is full the message is dropped.
func (h *Hub) SendToSession(sessionID string, msg *Message) bool {
	select {
	case h.broadcast <- &sessionMessage{sessionID: sessionID, message: msg}:
		return true
	default:
		logger.Warn("websocket broadcast queue full, dropping message",
			zap.String("session_id", sessionID),
			zap.String("type", msg.Type),
		)
		return false
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SessionClientCount returns the number of clients watching a session.
func (h *Hub) SessionClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
