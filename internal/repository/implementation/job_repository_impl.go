package implementation

import (
	"context"
	"errors"

	"moodchat-be/internal/constant"
	"moodchat-be/internal/model"
	"moodchat-be/internal/repository/contract"
	"moodchat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobRepositoryImpl struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) contract.JobRepository {
	return &JobRepositoryImpl{db: db}
}

func (r *JobRepositoryImpl) Create(ctx context.Context, job *model.ClassificationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *JobRepositoryImpl) FindByMessageId(ctx context.Context, messageId uuid.UUID) (*model.ClassificationJob, error) {
	var m model.ClassificationJob
	if err := r.db.WithContext(ctx).Where("message_id = ?", messageId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ClaimOldestPending uses a compare-and-swap on the status column instead of
// row locks, so the claim stays exclusive under concurrent drain loops and
// works on every dialect the repo is tested against.
func (r *JobRepositoryImpl) ClaimOldestPending(ctx context.Context) (*model.ClassificationJob, error) {
	for {
		var candidate model.ClassificationJob
		query := r.db.WithContext(ctx)
		for _, spec := range []specification.Specification{
			specification.ByStatus{Status: constant.JobStatusPending},
			specification.OrderBy{Field: "created_at"},
			specification.OrderBy{Field: "id"},
			specification.Limit{N: 1},
		} {
			query = spec.Apply(query)
		}
		if err := query.First(&candidate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}

		res := r.db.WithContext(ctx).Model(&model.ClassificationJob{}).
			Where("id = ? AND status = ?", candidate.Id, constant.JobStatusPending).
			Updates(map[string]interface{}{
				"status":   constant.JobStatusProcessing,
				"attempts": gorm.Expr("attempts + 1"),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Another claimer won the race; try the next candidate.
			continue
		}

		candidate.Status = constant.JobStatusProcessing
		candidate.Attempts++
		return &candidate, nil
	}
}

func (r *JobRepositoryImpl) Update(ctx context.Context, job *model.ClassificationJob) error {
	return r.db.WithContext(ctx).Model(&model.ClassificationJob{}).
		Where("id = ?", job.Id).
		Updates(map[string]interface{}{
			"status":     job.Status,
			"attempts":   job.Attempts,
			"last_error": job.LastError,
		}).Error
}

func (r *JobRepositoryImpl) RequeueProcessing(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.ClassificationJob{}).
		Where("status = ?", constant.JobStatusProcessing).
		Update("status", constant.JobStatusPending)
	return res.RowsAffected, res.Error
}

func (r *JobRepositoryImpl) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ClassificationJob{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
