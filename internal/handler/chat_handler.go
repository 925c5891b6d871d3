package handler

import (
	"moodchat-be/internal/pkg/logger"
	"moodchat-be/internal/service"
	internalWS "moodchat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ChatHandler struct {
	gateway service.IChatService
	hub     *internalWS.Hub
	logger  logger.ILogger
}

func NewChatHandler(gateway service.IChatService, hub *internalWS.Hub, log logger.ILogger) *ChatHandler {
	return &ChatHandler{
		gateway: gateway,
		hub:     hub,
		logger:  log,
	}
}

// ServeWs upgrades the connection and hands it to the hub. Identity arrives
// in the first join frame, not at upgrade time.
func (h *ChatHandler) ServeWs(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("ChatHandler", "Starting WebSocket session", nil)
			internalWS.ServeWs(h.hub, h.gateway, conn)
			h.logger.Info("ChatHandler", "WebSocket session ended", nil)
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *ChatHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *ChatHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/ws", h.ServeWs)
}
