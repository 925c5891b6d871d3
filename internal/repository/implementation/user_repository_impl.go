package implementation

import (
	"context"
	"errors"
	"time"

	"moodchat-be/internal/model"
	"moodchat-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepositoryImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) contract.UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) Upsert(ctx context.Context, user *model.User) error {
	// Experiment group is write-once: the conflict update deliberately leaves
	// it out so recomputation on a later login can never re-assign.
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "last_active_at", "updated_at"}),
	}).Create(user).Error
}

func (r *UserRepositoryImpl) FindById(ctx context.Context, id string) (*model.User, error) {
	var m model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *UserRepositoryImpl) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_active_at", at).Error
}
