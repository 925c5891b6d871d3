package contract

import (
	"context"
	"time"

	"moodchat-be/internal/model"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.ChatSession) error
	// FindOpenByUser returns the user's session with no end time, or nil.
	FindOpenByUser(ctx context.Context, userId string) (*model.ChatSession, error)
	// Close stamps the end time and derived duration. Closing an already
	// closed session is a no-op.
	Close(ctx context.Context, id uuid.UUID, endedAt time.Time) error
	// CloseAllOpen force-closes every open session. Used by the startup
	// reconciliation pass after a crash left rows open with no live
	// connection behind them.
	CloseAllOpen(ctx context.Context, endedAt time.Time) (int64, error)
}
