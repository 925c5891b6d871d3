package implementation

import (
	"context"
	"errors"
	"time"

	"moodchat-be/internal/model"
	"moodchat-be/internal/repository/contract"
	"moodchat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepositoryImpl struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{db: db}
}

func (r *MessageRepositoryImpl) Create(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *MessageRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var m model.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*model.Message, error) {
	var models []*model.Message
	query := r.db.WithContext(ctx)
	for _, spec := range []specification.Specification{
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{N: limit},
	} {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	// Fetched newest-first; serve oldest-first for replay.
	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	return models, nil
}

func (r *MessageRepositoryImpl) UpdateClassification(ctx context.Context, id uuid.UUID, mood string, intensity float64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"mood":          mood,
			"intensity":     intensity,
			"classified_at": at,
		}).Error
}
