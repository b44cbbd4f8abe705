package dto

import "time"

// AdminLoginRequest payload.
type AdminLoginRequest struct {
	Password string `json:"password"`
}

// AdminLoginResponse payload.
type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReplyRequest payload for replying to a ticket.
type ReplyRequest struct {
	Text string `json:"text"`
}

// TicketDetailResponse pairs a ticket with its owner.
type TicketDetailResponse struct {
	Ticket TicketResponse `json:"ticket"`
	Owner  UserResponse   `json:"owner"`
}
