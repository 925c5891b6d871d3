package model

import (
	"time"
)

// User is keyed by the opaque identifier the client presents on join. It is
// stable across reconnects and process restarts; rows are never deleted.
type User struct {
	Id              string    `gorm:"type:varchar(128);primaryKey"`
	DisplayName     string    `gorm:"type:varchar(20);not null"`
	ExperimentGroup string    `gorm:"type:varchar(20);not null"`
	LastActiveAt    time.Time `gorm:"not null"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
