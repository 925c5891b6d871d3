package model

import (
	"time"

	"github.com/google/uuid"
)

// Message text and the display-name snapshot are immutable after insert.
// The classification fields start at the neutral default and are written at
// most once, by the classification pipeline.
type Message struct {
	Id           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserId       string     `gorm:"type:varchar(128);not null;index"`
	DisplayName  string     `gorm:"type:varchar(20);not null"`
	Text         string     `gorm:"type:text;not null"`
	Mood         string     `gorm:"type:varchar(50);not null;default:'neutral'"`
	Intensity    float64    `gorm:"not null;default:0"`
	ClassifiedAt *time.Time
	CreatedAt    time.Time  `gorm:"autoCreateTime;index"`
}

func (Message) TableName() string {
	return "messages"
}
