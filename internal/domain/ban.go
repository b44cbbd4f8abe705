package domain

import "time"

// Ban records a permanently blocked user. Bans never auto-expire; presence
// alone rejects the user's messages before any other processing.
type Ban struct {
	UserID   string    `json:"user_id"`
	BannedAt time.Time `json:"banned_at"`
}
