package unitofwork

import (
	"context"

	"moodchat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	SessionRepository() contract.SessionRepository
	MessageRepository() contract.MessageRepository
	JobRepository() contract.JobRepository
}

// RepositoryFactory hands out fresh units of work so services never share
// transaction state.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
