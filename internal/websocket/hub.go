package websocket

import (
	"encoding/json"
	"sync"

	"moodchat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

// Hub fans outbound frames to registered connections. It is transport only:
// who is online and which user owns which connection is the presence
// registry's business, not the hub's.
type Hub struct {
	// Registered clients keyed by connection id.
	clients map[uuid.UUID]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]*Client),
		logger:     log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConnID] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"conn_id": client.ConnID})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ConnID]; ok {
				delete(h.clients, client.ConnID)
				close(client.Send)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"conn_id": client.ConnID})
			}
			h.mu.Unlock()
		}
	}
}

func encodeFrame(frameType string, data interface{}) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"type": frameType,
		"data": data,
	})
	return payload
}

// BroadcastAll sends a frame to every connected client.
func (h *Hub) BroadcastAll(frameType string, data interface{}) {
	payload := encodeFrame(frameType, data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping frame", map[string]interface{}{
				"conn_id": client.ConnID,
				"type":    frameType,
			})
		}
	}
}

// SendToConn sends a frame to one connection. Unknown connections are a
// no-op; the client may have dropped between lookup and send.
func (h *Hub) SendToConn(connID uuid.UUID, frameType string, data interface{}) {
	payload := encodeFrame(frameType, data)

	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.Send <- payload:
	default:
		h.logger.Warn("Hub", "Client send buffer full, dropping frame", map[string]interface{}{
			"conn_id": connID,
			"type":    frameType,
		})
	}
}
