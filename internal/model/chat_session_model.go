package model

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession spans the time a user is continuously present via at least one
// connection. At most one row per user may have a NULL EndedAt.
type ChatSession struct {
	Id         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserId     string     `gorm:"type:varchar(128);not null;index"`
	StartedAt  time.Time  `gorm:"not null"`
	EndedAt    *time.Time `gorm:"index"`
	DurationMs int64      `gorm:"not null;default:0"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
