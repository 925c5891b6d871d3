package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"moodchat-be/internal/constant"
	"moodchat-be/internal/dto"
	"moodchat-be/internal/model"
	"moodchat-be/internal/pkg/logger"
	"moodchat-be/internal/presence"
	"moodchat-be/internal/ratelimit"
	"moodchat-be/internal/repository/memory"
	"moodchat-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Emitter is the outbound side of the gateway. Implemented by the websocket
// hub; faked in tests.
type Emitter interface {
	SendToConn(connID uuid.UUID, frameType string, data interface{})
	BroadcastAll(frameType string, data interface{})
}

// IChatService is the connection gateway: it validates inbound payloads,
// coordinates the lobby, limiter and persistence, and emits every outbound
// frame itself. Transport code only forwards raw frames here.
type IChatService interface {
	Join(ctx context.Context, connID uuid.UUID, req dto.JoinRequest) error
	SendMessage(ctx context.Context, connID uuid.UUID, req dto.SendMessageRequest) error
	Leave(ctx context.Context, connID uuid.UUID) error
}

type chatService struct {
	uowFactory  unitofwork.RepositoryFactory
	lobby       ILobbyService
	registry    *presence.Registry
	limiter     *ratelimit.Limiter
	replayCache *memory.ReplayCache
	pubSub      *gochannel.GoChannel
	emitter     Emitter
	validate    *validator.Validate
	logger      logger.ILogger
	replayLimit int
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	lobby ILobbyService,
	registry *presence.Registry,
	limiter *ratelimit.Limiter,
	replayCache *memory.ReplayCache,
	pubSub *gochannel.GoChannel,
	emitter Emitter,
	log logger.ILogger,
	replayLimit int,
) IChatService {
	return &chatService{
		uowFactory:  uowFactory,
		lobby:       lobby,
		registry:    registry,
		limiter:     limiter,
		replayCache: replayCache,
		pubSub:      pubSub,
		emitter:     emitter,
		validate:    validator.New(),
		logger:      log,
		replayLimit: replayLimit,
	}
}

func (s *chatService) Join(ctx context.Context, connID uuid.UUID, req dto.JoinRequest) error {
	req.UserId = strings.TrimSpace(req.UserId)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := s.validate.Struct(req); err != nil {
		s.reject(connID, constant.RejectInvalidPayload, "display name must be 1-20 characters", 0)
		return nil
	}

	result, err := s.lobby.StartConnection(ctx, connID, req.UserId, req.DisplayName)
	if err != nil {
		s.serverError(connID, "Join", err)
		return err
	}

	recent, err := s.recentMessages(ctx)
	if err != nil {
		s.serverError(connID, "Join", err)
		return err
	}

	s.emitter.SendToConn(connID, constant.FrameAck, dto.JoinAck{
		UserId:          result.Entry.UserId,
		DisplayName:     result.Entry.DisplayName,
		ExperimentGroup: result.Entry.ExperimentGroup,
		SessionId:       result.Entry.SessionId,
		OnlineUsers:     s.registry.OnlineUsers(),
		RecentMessages:  recent,
	})
	s.emitter.BroadcastAll(constant.FramePresenceChanged, dto.PresenceChanged{
		OnlineUsers: s.registry.OnlineUsers(),
	})
	return nil
}

func (s *chatService) SendMessage(ctx context.Context, connID uuid.UUID, req dto.SendMessageRequest) error {
	entry, ok := s.registry.Lookup(connID)
	if !ok {
		// Not yet joined: drop silently, no signal back.
		s.logger.Debug("Chat", "Message from unjoined connection dropped", map[string]interface{}{
			"conn_id": connID.String(),
		})
		return ErrNotJoined
	}

	if strings.TrimSpace(req.UserId) != entry.UserId {
		s.reject(connID, constant.RejectInvalidPayload, "payload identity does not match connection", 0)
		return ErrIdentityMismatch
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		s.reject(connID, constant.RejectInvalidPayload, "message text must not be empty", 0)
		return ErrInvalidPayload
	}

	if res := s.limiter.Admit(entry.UserId, time.Now()); !res.Allowed {
		s.reject(connID, constant.RejectRateLimited, "too many messages", res.RetryAfter.Milliseconds())
		return &RateLimitedError{RetryAfter: res.RetryAfter}
	}

	msg := &model.Message{
		Id:          uuid.New(),
		UserId:      entry.UserId,
		DisplayName: entry.DisplayName, // snapshot; later renames never rewrite history
		Text:        text,
		Mood:        constant.MoodNeutral,
		Intensity:   0,
		CreatedAt:   time.Now(),
	}
	job := &model.ClassificationJob{
		Id:        uuid.New(),
		MessageId: msg.Id,
		Status:    constant.JobStatusPending,
		CreatedAt: msg.CreatedAt,
	}

	// Message and job land together or not at all.
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		s.serverError(connID, "SendMessage", err)
		return err
	}
	if err := uow.MessageRepository().Create(ctx, msg); err != nil {
		_ = uow.Rollback()
		s.serverError(connID, "SendMessage", err)
		return err
	}
	if err := uow.JobRepository().Create(ctx, job); err != nil {
		_ = uow.Rollback()
		s.serverError(connID, "SendMessage", err)
		return err
	}
	if err := uow.Commit(); err != nil {
		s.serverError(connID, "SendMessage", err)
		return err
	}

	s.replayCache.Invalidate()

	s.emitter.BroadcastAll(constant.FrameMessageCreated, toMessageResponse(msg))

	if s.pubSub != nil {
		wake := message.NewMessage(watermill.NewUUID(), []byte(msg.Id.String()))
		if err := s.pubSub.Publish(TopicMessageCreated, wake); err != nil {
			// The ticker will pick the job up; a lost wake-up is only latency.
			s.logger.Warn("Chat", "Failed to publish wake-up", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (s *chatService) Leave(ctx context.Context, connID uuid.UUID) error {
	result, err := s.lobby.EndConnection(ctx, connID)
	if err != nil {
		if errors.Is(err, ErrNotJoined) {
			return nil
		}
		s.logger.Error("Chat", "Failed to end connection", map[string]interface{}{
			"conn_id": connID.String(),
			"error":   err.Error(),
		})
		return err
	}

	if result.SessionClosed {
		s.logger.Info("Chat", "Session closed", map[string]interface{}{
			"user_id":    result.Entry.UserId,
			"session_id": result.Entry.SessionId.String(),
		})
	}
	s.emitter.BroadcastAll(constant.FramePresenceChanged, dto.PresenceChanged{
		OnlineUsers: s.registry.OnlineUsers(),
	})
	return nil
}

func (s *chatService) recentMessages(ctx context.Context) ([]dto.MessageResponse, error) {
	if cached, ok := s.replayCache.Get(); ok {
		return toMessageResponses(cached), nil
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.MessageRepository().ListRecent(ctx, s.replayLimit)
	if err != nil {
		return nil, err
	}
	s.replayCache.Set(messages)
	return toMessageResponses(messages), nil
}

func (s *chatService) reject(connID uuid.UUID, kind, detail string, retryAfterMs int64) {
	s.emitter.SendToConn(connID, constant.FrameRejected, dto.Rejection{
		Kind:         kind,
		Detail:       detail,
		RetryAfterMs: retryAfterMs,
	})
}

func (s *chatService) serverError(connID uuid.UUID, op string, err error) {
	s.logger.Error("Chat", "Operation failed", map[string]interface{}{
		"op":    op,
		"error": err.Error(),
	})
	s.emitter.SendToConn(connID, constant.FrameServerError, map[string]interface{}{
		"detail": "internal error",
	})
}

func toMessageResponse(m *model.Message) dto.MessageResponse {
	return dto.MessageResponse{
		Id:          m.Id,
		UserId:      m.UserId,
		DisplayName: m.DisplayName,
		Text:        m.Text,
		Mood:        m.Mood,
		Intensity:   m.Intensity,
		CreatedAt:   m.CreatedAt,
	}
}

func toMessageResponses(models []*model.Message) []dto.MessageResponse {
	out := make([]dto.MessageResponse, len(models))
	for i, m := range models {
		out[i] = toMessageResponse(m)
	}
	return out
}
