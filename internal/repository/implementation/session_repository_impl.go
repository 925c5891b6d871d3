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

type SessionRepositoryImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) contract.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

func (r *SessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, session *model.ChatSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepositoryImpl) FindOpenByUser(ctx context.Context, userId string) (*model.ChatSession, error) {
	var m model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.ByUserID{UserID: userId},
		specification.OpenSession{},
	)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *SessionRepositoryImpl) Close(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	var m model.ChatSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if m.EndedAt != nil {
		return nil
	}
	return r.db.WithContext(ctx).Model(&model.ChatSession{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(map[string]interface{}{
			"ended_at":    endedAt,
			"duration_ms": endedAt.Sub(m.StartedAt).Milliseconds(),
		}).Error
}

func (r *SessionRepositoryImpl) CloseAllOpen(ctx context.Context, endedAt time.Time) (int64, error) {
	var open []*model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specification.OpenSession{})
	if err := query.Find(&open).Error; err != nil {
		return 0, err
	}
	for _, s := range open {
		if err := r.Close(ctx, s.Id, endedAt); err != nil {
			return 0, err
		}
	}
	return int64(len(open)), nil
}
