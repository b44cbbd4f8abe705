package dto

import (
	"time"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
	"github.com/siberialabel/telegram-support-bot/internal/engine"
	"github.com/siberialabel/telegram-support-bot/internal/transport"
)

// InboundEventRequest is the webhook payload the chat transport posts for
// every update it wants the engine to process.
type InboundEventRequest struct {
	SenderID  string     `json:"sender_id"`
	Kind      string     `json:"kind"`
	Command   string     `json:"command,omitempty"`
	Action    string     `json:"action,omitempty"`
	TicketID  int64      `json:"ticket_id,omitempty"`
	Setting   string     `json:"setting,omitempty"`
	Text      string     `json:"text,omitempty"`
	Username  string     `json:"username,omitempty"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ToInboundEvent converts the request to the engine's event type.
func (r InboundEventRequest) ToInboundEvent() transport.InboundEvent {
	ev := transport.InboundEvent{
		SenderID:  r.SenderID,
		Kind:      transport.EventKind(r.Kind),
		Command:   transport.Command(r.Command),
		Action:    transport.AdminAction(r.Action),
		TicketID:  r.TicketID,
		Setting:   r.Setting,
		Text:      r.Text,
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
	if r.Timestamp != nil {
		ev.Timestamp = *r.Timestamp
	}
	return ev
}

// DirectiveSummary identifies an enqueued outbound directive.
type DirectiveSummary struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	RecipientID string `json:"recipient_id"`
	TicketID    int64  `json:"ticket_id,omitempty"`
}

// HandleResultResponse is what one processed event produced.
type HandleResultResponse struct {
	Kind       string             `json:"kind"`
	Admin      bool               `json:"admin"`
	Ticket     *TicketResponse    `json:"ticket,omitempty"`
	User       *UserResponse      `json:"user,omitempty"`
	Tickets    []TicketResponse   `json:"tickets,omitempty"`
	Users      []UserResponse     `json:"users,omitempty"`
	Stats      *StatsResponse     `json:"stats,omitempty"`
	Settings   *SettingsResponse  `json:"settings,omitempty"`
	Directives []DirectiveSummary `json:"directives,omitempty"`
}

// FromResult maps an engine result to the response shape.
func FromResult(res *engine.Result) HandleResultResponse {
	out := HandleResultResponse{
		Kind:  string(res.Kind),
		Admin: res.Admin,
	}
	if res.Ticket != nil {
		t := TicketFromDomain(res.Ticket)
		out.Ticket = &t
	}
	if res.User != nil {
		u := UserFromDomain(res.User)
		out.User = &u
	}
	for i := range res.Tickets {
		out.Tickets = append(out.Tickets, TicketFromDomain(&res.Tickets[i]))
	}
	for i := range res.Users {
		out.Users = append(out.Users, UserFromDomain(&res.Users[i]))
	}
	if res.Stats != nil {
		out.Stats = &StatsResponse{
			TotalUsers:      res.Stats.TotalUsers,
			TotalReports:    res.Stats.TotalReports,
			ResolvedReports: res.Stats.ResolvedReports,
			BannedUsers:     res.Stats.BannedUsers,
		}
	}
	if res.Settings != nil {
		out.Settings = &SettingsResponse{
			AutoRespond:    res.Settings.AutoRespond,
			NotifyNewUsers: res.Settings.NotifyNewUsers,
		}
	}
	for _, d := range res.Directives {
		out.Directives = append(out.Directives, DirectiveSummary{
			ID:          d.ID,
			Kind:        string(d.Kind),
			RecipientID: d.RecipientID,
			TicketID:    d.TicketID,
		})
	}
	return out
}

// TicketResponse is the wire shape of a ticket.
type TicketResponse struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// TicketFromDomain maps a ticket.
func TicketFromDomain(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:        t.ID,
		OwnerID:   t.OwnerID,
		Body:      t.Body,
		CreatedAt: t.CreatedAt,
		Status:    string(t.Status),
	}
}

// UserResponse is the wire shape of a user.
type UserResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	ReportsSent  int       `json:"reports_sent"`
	Banned       bool      `json:"banned"`
}

// UserFromDomain maps a user.
func UserFromDomain(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LastActivity: u.LastActivity,
		ReportsSent:  u.ReportsSent,
		Banned:       u.Banned,
	}
}

// StatsResponse is the admin panel counters view.
type StatsResponse struct {
	TotalUsers      int64 `json:"total_users"`
	TotalReports    int64 `json:"total_reports"`
	ResolvedReports int64 `json:"resolved_reports"`
	BannedUsers     int64 `json:"banned_users"`
}

// SettingsResponse is the process-wide flags view.
type SettingsResponse struct {
	AutoRespond    bool `json:"auto_respond"`
	NotifyNewUsers bool `json:"notify_new_users"`
}
