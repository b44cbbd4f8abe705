package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketResolved EventType = "ticket_resolved"
	EventReplySent      EventType = "reply_sent"
	EventUserBanned     EventType = "user_banned"
	EventSettingToggled EventType = "setting_toggled"
)

// Event represents a domain event emitted by the workflow engine.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerID     string `json:"owner_id"`
	BodyPreview string `json:"body_preview"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	OwnerID string `json:"owner_id"`
	Via     string `json:"via"` // resolve, ban or reply
}

// ReplySentPayload payload.
type ReplySentPayload struct {
	RecipientID string `json:"recipient_id"`
	BodyPreview string `json:"body_preview"`
}

// UserBannedPayload payload.
type UserBannedPayload struct {
	UserID string `json:"user_id"`
}

// SettingToggledPayload payload.
type SettingToggledPayload struct {
	Name     string `json:"name"`
	NewValue bool   `json:"new_value"`
}
