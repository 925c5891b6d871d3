package bootstrap

import (
	"log"

	"moodchat-be/internal/config"
	"moodchat-be/internal/handler"
	"moodchat-be/internal/pkg/logger"
	"moodchat-be/internal/presence"
	"moodchat-be/internal/ratelimit"
	"moodchat-be/internal/repository/memory"
	"moodchat-be/internal/repository/unitofwork"
	"moodchat-be/internal/service"
	"moodchat-be/internal/websocket"
	"moodchat-be/pkg/classifier"
	pktNats "moodchat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

type Container struct {
	// Handlers
	ChatHandler *handler.ChatHandler

	// Background Services (Exposed for main.go to run)
	LobbyService    service.ILobbyService
	ClassifyService service.IClassifyService

	// WebSockets & infrastructure
	WebSocketHub  *websocket.Hub
	NatsPublisher *pktNats.Publisher
	Logger        logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS (best effort; reporting consumers live outside this process)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// 3. In-memory state (rebuilt from zero on every boot)
	registry := presence.NewRegistry()
	limiter := ratelimit.NewLimiter(cfg.Chat.RateLimitMax, cfg.Chat.RateLimitWindow)
	replayCache := memory.NewReplayCache(cfg.Chat.ReplayTTL)

	// 4. WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(wsLogger)
	go wsHub.Run()

	// 5. Services
	lobbyService := service.NewLobbyService(uowFactory, registry, natsPub, sysLogger)

	chatService := service.NewChatService(
		uowFactory,
		lobbyService,
		registry,
		limiter,
		replayCache,
		pubSub,
		wsHub,
		sysLogger,
		cfg.Chat.ReplayLimit,
	)

	moodProvider := classifier.NewHTTPClient(cfg.Classifier.BaseURL, cfg.Classifier.Timeout)
	classifyService := service.NewClassifyService(
		uowFactory,
		moodProvider,
		pubSub,
		wsHub,
		natsPub,
		sysLogger,
		cfg.Classifier.DrainInterval,
		cfg.Classifier.BatchSize,
		cfg.Classifier.Workers,
	)

	// 6. Handlers
	chatHandler := handler.NewChatHandler(chatService, wsHub, sysLogger)

	return &Container{
		ChatHandler:     chatHandler,
		LobbyService:    lobbyService,
		ClassifyService: classifyService,
		WebSocketHub:    wsHub,
		NatsPublisher:   natsPub,
		Logger:          sysLogger,
	}
}
