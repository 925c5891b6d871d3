package model

import (
	"time"

	"github.com/google/uuid"
)

// ClassificationJob is created in the same transaction as its message (1:1).
// Status moves PENDING -> PROCESSING -> {DONE | PENDING | FAILED}; attempts
// only ever increase. Rows are never deleted.
type ClassificationJob struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	MessageId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Status    string    `gorm:"type:varchar(20);not null;index"`
	Attempts  int       `gorm:"not null;default:0"`
	LastError string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ClassificationJob) TableName() string {
	return "classification_jobs"
}
