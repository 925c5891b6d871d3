package contract

import (
	"context"
	"time"

	"moodchat-be/internal/model"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	FindById(ctx context.Context, id uuid.UUID) (*model.Message, error)
	// ListRecent returns the newest `limit` messages in chronological order.
	ListRecent(ctx context.Context, limit int) ([]*model.Message, error)
	// UpdateClassification writes the mood fields exactly once, after a
	// successful classification.
	UpdateClassification(ctx context.Context, id uuid.UUID, mood string, intensity float64, at time.Time) error
}
