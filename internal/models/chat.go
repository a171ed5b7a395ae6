package models

import "time"

type ChatSender string

const (
	SenderUser ChatSender = "user"
	SenderAI   ChatSender = "ai"
)

// ChatLog is one line of an AI conversation. UserID is nil for guests.
type ChatLog struct {
	ID        string         `db:"id" bson:"_id,omitempty" json:"id"`
	UserID    *string        `db:"user_id" bson:"user_id" json:"user_id"`
	Sender    ChatSender     `db:"sender" bson:"sender" json:"sender"`
	Message   string         `db:"message" bson:"message" json:"message"`
	Sentiment map[string]any `db:"-" bson:"sentiment,omitempty" json:"sentiment,omitempty"`
	CreatedAt time.Time      `db:"created_at" bson:"created_at" json:"created_at"`
}

type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type ChatResponse struct {
	Response string `json:"response"`
	Analysis any    `json:"analysis"`
	IsGuest  bool   `json:"is_guest"`
}

type GroundingResponse struct {
	Exercise string `json:"exercise"`
}

// RealtimeEvent is the envelope sent over room and notification sockets.
type RealtimeEvent struct {
	Type      string         `json:"type"`
	RoomID    string         `json:"room_id,omitempty"`
	SenderID  string         `json:"sender_id,omitempty"`
	Text      string         `json:"text,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

const (
	EventEmergencyMatch = "emergency_match"
	EventRoomMessage    = "message"
	EventRoomClosed     = "room_closed"
)
