// Package memory holds the process-local stores: the go-cache replay window
// used in production and a full in-memory implementation of the persistence
// contracts used as a test double by the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"moodchat-be/internal/constant"
	"moodchat-be/internal/model"
	"moodchat-be/internal/repository/contract"
	"moodchat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]*model.User
	sessions map[uuid.UUID]*model.ChatSession
	messages map[uuid.UUID]*model.Message
	msgOrder []uuid.UUID
	jobs     map[uuid.UUID]*model.ClassificationJob
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*model.User),
		sessions: make(map[uuid.UUID]*model.ChatSession),
		messages: make(map[uuid.UUID]*model.Message),
		jobs:     make(map[uuid.UUID]*model.ClassificationJob),
	}
}

// --- contract.UserRepository ---

type userRepo struct{ s *Store }

func (r userRepo) Upsert(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.users[user.Id]; ok {
		existing.DisplayName = user.DisplayName
		existing.LastActiveAt = user.LastActiveAt
		existing.UpdatedAt = time.Now()
		user.ExperimentGroup = existing.ExperimentGroup
		return nil
	}
	cp := *user
	cp.CreatedAt = time.Now()
	r.s.users[user.Id] = &cp
	return nil
}

func (r userRepo) FindById(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r userRepo) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		u.LastActiveAt = at
	}
	return nil
}

// --- contract.SessionRepository ---

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(ctx context.Context, session *model.ChatSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *session
	r.s.sessions[session.Id] = &cp
	return nil
}

func (r sessionRepo) FindOpenByUser(ctx context.Context, userId string) (*model.ChatSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, s := range r.s.sessions {
		if s.UserId == userId && s.EndedAt == nil {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r sessionRepo) Close(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sessions[id]
	if !ok || s.EndedAt != nil {
		return nil
	}
	at := endedAt
	s.EndedAt = &at
	s.DurationMs = endedAt.Sub(s.StartedAt).Milliseconds()
	return nil
}

func (r sessionRepo) CloseAllOpen(ctx context.Context, endedAt time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, s := range r.s.sessions {
		if s.EndedAt == nil {
			at := endedAt
			s.EndedAt = &at
			s.DurationMs = endedAt.Sub(s.StartedAt).Milliseconds()
			n++
		}
	}
	return n, nil
}

// --- contract.MessageRepository ---

type messageRepo struct{ s *Store }

func (r messageRepo) Create(ctx context.Context, message *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *message
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.s.messages[message.Id] = &cp
	r.s.msgOrder = append(r.s.msgOrder, message.Id)
	return nil
}

func (r messageRepo) FindById(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.messages[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r messageRepo) ListRecent(ctx context.Context, limit int) ([]*model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	start := len(r.s.msgOrder) - limit
	if start < 0 {
		start = 0
	}
	out := make([]*model.Message, 0, len(r.s.msgOrder)-start)
	for _, id := range r.s.msgOrder[start:] {
		cp := *r.s.messages[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (r messageRepo) UpdateClassification(ctx context.Context, id uuid.UUID, mood string, intensity float64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.messages[id]; ok {
		stamped := at
		m.Mood = mood
		m.Intensity = intensity
		m.ClassifiedAt = &stamped
	}
	return nil
}

// --- contract.JobRepository ---

type jobRepo struct{ s *Store }

func (r jobRepo) Create(ctx context.Context, job *model.ClassificationJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *job
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.s.jobs[job.Id] = &cp
	return nil
}

func (r jobRepo) FindByMessageId(ctx context.Context, messageId uuid.UUID) (*model.ClassificationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, j := range r.s.jobs {
		if j.MessageId == messageId {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (r jobRepo) ClaimOldestPending(ctx context.Context) (*model.ClassificationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var pending []*model.ClassificationJob
	for _, j := range r.s.jobs {
		if j.Status == constant.JobStatusPending {
			pending = append(pending, j)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	sort.Slice(pending, func(i, k int) bool {
		if !pending[i].CreatedAt.Equal(pending[k].CreatedAt) {
			return pending[i].CreatedAt.Before(pending[k].CreatedAt)
		}
		return pending[i].Id.String() < pending[k].Id.String()
	})
	j := pending[0]
	j.Status = constant.JobStatusProcessing
	j.Attempts++
	cp := *j
	return &cp, nil
}

func (r jobRepo) Update(ctx context.Context, job *model.ClassificationJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if j, ok := r.s.jobs[job.Id]; ok {
		j.Status = job.Status
		j.Attempts = job.Attempts
		j.LastError = job.LastError
	}
	return nil
}

func (r jobRepo) RequeueProcessing(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, j := range r.s.jobs {
		if j.Status == constant.JobStatusProcessing {
			j.Status = constant.JobStatusPending
			n++
		}
	}
	return n, nil
}

func (r jobRepo) CountByStatus(ctx context.Context, status string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, j := range r.s.jobs {
		if j.Status == status {
			n++
		}
	}
	return n, nil
}

// --- unitofwork wiring ---

type unitOfWork struct{ s *Store }

func (u unitOfWork) Begin(ctx context.Context) error { return nil }
func (u unitOfWork) Commit() error                   { return nil }
func (u unitOfWork) Rollback() error                 { return nil }

func (u unitOfWork) UserRepository() contract.UserRepository       { return userRepo{u.s} }
func (u unitOfWork) SessionRepository() contract.SessionRepository { return sessionRepo{u.s} }
func (u unitOfWork) MessageRepository() contract.MessageRepository { return messageRepo{u.s} }
func (u unitOfWork) JobRepository() contract.JobRepository         { return jobRepo{u.s} }

type repositoryFactory struct{ s *Store }

func NewRepositoryFactory(s *Store) unitofwork.RepositoryFactory {
	return repositoryFactory{s: s}
}

func (f repositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return unitOfWork{s: f.s}
}
