package transport

import (
	"context"
	"time"
)

// EventKind classifies an inbound chat event.
type EventKind string

const (
	EventKindCommand     EventKind = "command"
	EventKindFreeText    EventKind = "free_text"
	EventKindAdminAction EventKind = "admin_action"
)

// Command enumerates the recognized menu commands. Anything else arriving as
// free text while the sender is idle is simply not interpreted.
type Command string

const (
	CommandStart         Command = "start"
	CommandHelp          Command = "help"
	CommandReport        Command = "report"
	CommandMyStats       Command = "my_stats"
	CommandCancel        Command = "cancel"
	CommandAdminReports  Command = "admin_reports"
	CommandAdminStats    Command = "admin_stats"
	CommandAdminUsers    Command = "admin_users"
	CommandAdminSettings Command = "admin_settings"
)

// AdminAction enumerates per-ticket admin operations and setting toggles.
type AdminAction string

const (
	ActionResolve AdminAction = "resolve"
	ActionBan     AdminAction = "ban"
	ActionReply   AdminAction = "reply"
	ActionDetails AdminAction = "details"
	ActionToggle  AdminAction = "toggle"
)

// InboundEvent is the transport-neutral representation of one chat update.
type InboundEvent struct {
	SenderID  string      `json:"sender_id"`
	Kind      EventKind   `json:"kind"`
	Command   Command     `json:"command,omitempty"`
	Action    AdminAction `json:"action,omitempty"`
	TicketID  int64       `json:"ticket_id,omitempty"`
	Setting   string      `json:"setting,omitempty"`
	Text      string      `json:"text,omitempty"`
	Username  string      `json:"username,omitempty"`
	FirstName string      `json:"first_name,omitempty"`
	LastName  string      `json:"last_name,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// DirectiveKind classifies outbound instructions emitted by the engine.
type DirectiveKind string

const (
	DirectiveNotifyAdminNewTicket DirectiveKind = "notify_admin_new_ticket"
	DirectiveNotifyAdminNewUser   DirectiveKind = "notify_admin_new_user"
	DirectiveAcknowledgeTicket    DirectiveKind = "acknowledge_ticket"
	DirectiveDeliverReply         DirectiveKind = "deliver_reply"
	DirectiveNotifyBanned         DirectiveKind = "notify_banned"
)

// Directive instructs the transport collaborator to deliver something to a
// recipient. The engine decides what happens; rendering is the transport's.
type Directive struct {
	ID          string        `json:"id"`
	Kind        DirectiveKind `json:"kind"`
	RecipientID string        `json:"recipient_id"`
	SubjectID   string        `json:"subject_id,omitempty"`
	TicketID    int64         `json:"ticket_id,omitempty"`
	Text        string        `json:"text,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Deliverer is the outbound-delivery capability the transport provides.
type Deliverer interface {
	Deliver(ctx context.Context, d Directive) error
}

// DelivererFunc adapts a function to the Deliverer interface.
type DelivererFunc func(ctx context.Context, d Directive) error

func (f DelivererFunc) Deliver(ctx context.Context, d Directive) error {
	return f(ctx, d)
}
