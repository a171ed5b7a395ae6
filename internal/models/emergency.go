package models

import (
	"strings"
	"time"
)

type EmergencyStatus string

const (
	EmergencyPending   EmergencyStatus = "pending"
	EmergencyResolved  EmergencyStatus = "resolved"
	EmergencyCancelled EmergencyStatus = "cancelled"
)

type EmergencyRequest struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Description string          `db:"description" json:"description"`
	Status      EmergencyStatus `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

type TriggerRequest struct {
	Description string `json:"description" validate:"required,min=1,max=1000"`
}

// TriggerResult is returned to the caller after the request is stored and a
// peer claim was attempted.
type TriggerResult struct {
	Message            string  `json:"message"`
	EmergencyRequestID string  `json:"emergency_request_id"`
	RoomID             *string `json:"room_id"`
	Matched            bool    `json:"matched"`
	AnonymousID        string  `json:"anonymous_id"`

	ResponderID string `json:"-"`
}

// AnonymousID derives the handle shown to the matched peer from the request id.
func AnonymousID(requestID string) string {
	first, _, _ := strings.Cut(requestID, "-")
	return "user-" + first
}

type RoomStatus string

const (
	RoomActive RoomStatus = "active"
	RoomClosed RoomStatus = "closed"
)

type ChatRoom struct {
	ID          string     `db:"id" json:"id"`
	InitiatorID string     `db:"initiator_id" json:"initiator_id"`
	ResponderID string     `db:"responder_id" json:"responder_id"`
	Status      RoomStatus `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ClosedAt    *time.Time `db:"closed_at" json:"closed_at"`
}

func (r *ChatRoom) HasParticipant(userID string) bool {
	return userID != "" && (r.InitiatorID == userID || r.ResponderID == userID)
}
