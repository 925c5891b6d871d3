package contract

import (
	"context"

	"moodchat-be/internal/model"

	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *model.ClassificationJob) error
	FindByMessageId(ctx context.Context, messageId uuid.UUID) (*model.ClassificationJob, error)
	// ClaimOldestPending atomically flips the oldest PENDING job (creation
	// time, then id) to PROCESSING and increments its attempt counter. The
	// claim is exclusive: under concurrent drain loops at most one caller
	// gets any given job. Returns nil when no job is pending.
	ClaimOldestPending(ctx context.Context) (*model.ClassificationJob, error)
	Update(ctx context.Context, job *model.ClassificationJob) error
	// RequeueProcessing flips PROCESSING jobs back to PENDING. Run once at
	// startup: a crash mid-flight must not strand jobs.
	RequeueProcessing(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}
