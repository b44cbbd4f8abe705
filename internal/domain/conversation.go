package domain

// ConversationMode determines how the next free-text input from a user is
// interpreted. At most one mode is active per user at a time.
type ConversationMode string

const (
	ModeIdle              ConversationMode = "IDLE"
	ModeAwaitingReport    ConversationMode = "AWAITING_REPORT_TEXT"
	ModeAwaitingReplyText ConversationMode = "AWAITING_REPLY_TEXT"
)

// ConversationState is the per-user session mode. ReplyTicketID is set only
// while the mode is ModeAwaitingReplyText.
type ConversationState struct {
	Mode          ConversationMode `json:"mode"`
	ReplyTicketID int64            `json:"reply_ticket_id,omitempty"`
}

// IdleState is the zero conversation state.
func IdleState() ConversationState {
	return ConversationState{Mode: ModeIdle}
}
