package websocket

import (
	"context"
	"encoding/json"
	"time"

	"moodchat-be/internal/constant"
	"moodchat-be/internal/dto"
	"moodchat-be/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is a middleman between the websocket connection and the hub. Every
// inbound frame is forwarded to the gateway; the gateway owns all outbound
// signaling.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// ConnID identifies this transport link for its lifetime.
	ConnID uuid.UUID

	// Gateway receives the decoded inbound frames.
	Gateway service.IChatService

	// Buffered channel of outbound frames.
	Send chan []byte
}

// readPump pumps frames from the websocket connection into the gateway.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Gateway.Leave(context.Background(), c.ConnID)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"conn_id": c.ConnID,
					"error":   err.Error(),
				})
			}
			break
		}
		c.dispatch(raw)
	}
}

func (c *Client) dispatch(raw []byte) {
	var frame dto.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.Hub.SendToConn(c.ConnID, constant.FrameRejected, dto.Rejection{
			Kind:   constant.RejectInvalidPayload,
			Detail: "frame is not valid JSON",
		})
		return
	}

	ctx := context.Background()
	switch frame.Type {
	case constant.FrameJoin:
		var req dto.JoinRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			c.Hub.SendToConn(c.ConnID, constant.FrameRejected, dto.Rejection{
				Kind:   constant.RejectInvalidPayload,
				Detail: "malformed join payload",
			})
			return
		}
		_ = c.Gateway.Join(ctx, c.ConnID, req)
	case constant.FrameMessage:
		var req dto.SendMessageRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			c.Hub.SendToConn(c.ConnID, constant.FrameRejected, dto.Rejection{
				Kind:   constant.RejectInvalidPayload,
				Detail: "malformed message payload",
			})
			return
		}
		_ = c.Gateway.SendMessage(ctx, c.ConnID, req)
	default:
		c.Hub.SendToConn(c.ConnID, constant.FrameRejected, dto.Rejection{
			Kind:   constant.RejectInvalidPayload,
			Detail: "unknown frame type",
		})
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)

			// Flush any frames queued behind this one.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
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

// ServeWs wires one upgraded connection into the hub and runs its pumps.
// Blocks until the connection drops.
func ServeWs(hub *Hub, gateway service.IChatService, conn *websocket.Conn) {
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		ConnID:  uuid.New(),
		Gateway: gateway,
		Send:    make(chan []byte, 256),
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
