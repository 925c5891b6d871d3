package contract

import (
	"context"
	"time"

	"moodchat-be/internal/model"
)

type UserRepository interface {
	// Upsert creates the user on first join. On later joins the display name
	// and last-active timestamp are overwritten; the experiment group is
	// never changed once persisted.
	Upsert(ctx context.Context, user *model.User) error
	FindById(ctx context.Context, id string) (*model.User, error)
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}
