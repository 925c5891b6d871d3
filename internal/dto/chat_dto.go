package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Inbound frame envelope. Data is decoded per Type.
type InboundFrame struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

type JoinRequest struct {
	UserId      string `json:"user_id" validate:"required,max=128"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=20"`
}

type SendMessageRequest struct {
	UserId string `json:"user_id" validate:"required,max=128"`
	Text   string `json:"text" validate:"required,min=1"`
}

type OnlineUser struct {
	UserId          string `json:"user_id"`
	DisplayName     string `json:"display_name"`
	ExperimentGroup string `json:"experiment_group"`
}

type MessageResponse struct {
	Id          uuid.UUID `json:"id"`
	UserId      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	Mood        string    `json:"mood"`
	Intensity   float64   `json:"intensity"`
	CreatedAt   time.Time `json:"created_at"`
}

type JoinAck struct {
	UserId          string            `json:"user_id"`
	DisplayName     string            `json:"display_name"`
	ExperimentGroup string            `json:"experiment_group"`
	SessionId       uuid.UUID         `json:"session_id"`
	OnlineUsers     []OnlineUser      `json:"online_users"`
	RecentMessages  []MessageResponse `json:"recent_messages"`
}

type PresenceChanged struct {
	OnlineUsers []OnlineUser `json:"online_users"`
}

type ClassificationUpdated struct {
	MessageId uuid.UUID `json:"message_id"`
	Mood      string    `json:"mood"`
	Intensity float64   `json:"intensity"`
}

type Rejection struct {
	Kind         string `json:"kind"`
	Detail       string `json:"detail"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}
