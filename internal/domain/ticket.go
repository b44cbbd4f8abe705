package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusResolved TicketStatus = "RESOLVED"
)

// Ticket is the aggregate for user-submitted problem reports. IDs are
// sequential, assigned exactly once at creation, and never reused.
type Ticket struct {
	ID        int64        `json:"id"`
	OwnerID   string       `json:"user_id"`
	Body      string       `json:"text"`
	CreatedAt time.Time    `json:"timestamp"`
	Status    TicketStatus `json:"status"`
}

// UnmarshalJSON tolerates documents written by earlier versions, which use
// zone-less timestamps and lowercase status values.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	type ticket Ticket
	aux := struct {
		*ticket
		CreatedAt FlexTime `json:"timestamp"`
		Status    string   `json:"status"`
	}{ticket: (*ticket)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.CreatedAt = aux.CreatedAt.Time
	t.Status = TicketStatus(strings.ToUpper(aux.Status))
	return nil
}

// Resolved reports whether the ticket reached its terminal state.
func (t *Ticket) Resolved() bool {
	return t.Status == TicketStatusResolved
}
