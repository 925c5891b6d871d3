package service

import (
	"context"
	"sync"
	"time"

	"moodchat-be/internal/assign"
	"moodchat-be/internal/model"
	"moodchat-be/internal/pkg/logger"
	"moodchat-be/internal/presence"
	"moodchat-be/internal/repository/unitofwork"
	"moodchat-be/pkg/events"
	pktNats "moodchat-be/pkg/nats"

	"github.com/google/uuid"
)

// ILobbyService owns the session lifecycle: one OPEN session per user,
// spanning all of that user's concurrent connections, closed only when the
// last connection drops.
type ILobbyService interface {
	StartConnection(ctx context.Context, connID uuid.UUID, userID, displayName string) (*StartResult, error)
	EndConnection(ctx context.Context, connID uuid.UUID) (*EndResult, error)
	ReconcileOpenSessions(ctx context.Context) (int64, error)
}

type StartResult struct {
	Entry          presence.Entry
	SessionCreated bool
}

type EndResult struct {
	Entry         presence.Entry
	Remaining     int
	SessionClosed bool
}

type lobbyService struct {
	uowFactory     unitofwork.RepositoryFactory
	registry       *presence.Registry
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger

	// Per-user locks linearize the read-then-write session transitions for
	// one user while leaving different users fully independent. Entries are
	// never freed; one mutex per ever-seen user is the accepted bound, same
	// as the rate windows.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewLobbyService(
	uowFactory unitofwork.RepositoryFactory,
	registry *presence.Registry,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) ILobbyService {
	return &lobbyService{
		uowFactory:     uowFactory,
		registry:       registry,
		eventPublisher: eventPublisher,
		logger:         log,
		locks:          make(map[string]*sync.Mutex),
	}
}

func (s *lobbyService) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[userID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[userID] = mu
	}
	return mu
}

func (s *lobbyService) StartConnection(ctx context.Context, connID uuid.UUID, userID, displayName string) (*StartResult, error) {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	uow := s.uowFactory.NewUnitOfWork(ctx)

	group := assign.Group(userID)
	if err := uow.UserRepository().Upsert(ctx, &model.User{
		Id:              userID,
		DisplayName:     displayName,
		ExperimentGroup: group,
		LastActiveAt:    now,
	}); err != nil {
		return nil, err
	}

	// The persisted group always wins; recomputation is only a consistency
	// check, never a re-assignment.
	user, err := uow.UserRepository().FindById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil && user.ExperimentGroup != "" {
		if user.ExperimentGroup != group {
			s.logger.Warn("Lobby", "Stored experiment group diverges from recomputation", map[string]interface{}{
				"user_id": userID,
				"stored":  user.ExperimentGroup,
				"hashed":  group,
			})
		}
		group = user.ExperimentGroup
	}

	session, err := uow.SessionRepository().FindOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	created := false
	if session == nil {
		session = &model.ChatSession{
			Id:        uuid.New(),
			UserId:    userID,
			StartedAt: now,
		}
		if err := uow.SessionRepository().Create(ctx, session); err != nil {
			return nil, err
		}
		created = true
	}

	entry := presence.Entry{
		UserId:          userID,
		DisplayName:     displayName,
		ExperimentGroup: group,
		SessionId:       session.Id,
	}
	s.registry.Add(connID, entry)

	if created {
		s.publishEvent(ctx, events.TypeSessionStarted, map[string]interface{}{
			"session_id": session.Id.String(),
			"user_id":    userID,
			"started_at": session.StartedAt,
		})
	}

	return &StartResult{Entry: entry, SessionCreated: created}, nil
}

func (s *lobbyService) EndConnection(ctx context.Context, connID uuid.UUID) (*EndResult, error) {
	entry, ok := s.registry.Lookup(connID)
	if !ok {
		return nil, ErrNotJoined
	}

	mu := s.userLock(entry.UserId)
	mu.Lock()
	defer mu.Unlock()

	// Re-check under the user lock; a concurrent end for the same conn may
	// have won.
	entry, remaining, ok := s.registry.Remove(connID)
	if !ok {
		return nil, ErrNotJoined
	}

	result := &EndResult{Entry: entry, Remaining: remaining}
	if remaining > 0 {
		return result, nil
	}

	now := time.Now()
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SessionRepository().Close(ctx, entry.SessionId, now); err != nil {
		return nil, err
	}
	if err := uow.UserRepository().TouchLastActive(ctx, entry.UserId, now); err != nil {
		return nil, err
	}
	result.SessionClosed = true

	s.publishEvent(ctx, events.TypeSessionEnded, map[string]interface{}{
		"session_id": entry.SessionId.String(),
		"user_id":    entry.UserId,
		"ended_at":   now,
	})

	return result, nil
}

// ReconcileOpenSessions force-closes sessions a previous process left open.
// Presence is rebuilt from zero on every boot, so any open row at startup
// has no live connection behind it.
func (s *lobbyService) ReconcileOpenSessions(ctx context.Context) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	n, err := uow.SessionRepository().CloseAllOpen(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("Lobby", "Force-closed orphaned sessions at startup", map[string]interface{}{"count": n})
	}
	return n, nil
}

func (s *lobbyService) publishEvent(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("Lobby", "Failed to publish event", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}
