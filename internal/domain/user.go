package domain

import (
	"encoding/json"
	"time"
)

// User is the domain model for end-users interacting with the support bot.
// Users are created on first observed interaction and never deleted.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username,omitempty"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	ReportsSent  int       `json:"reports_sent"`
	Banned       bool      `json:"is_banned"`
}

// UnmarshalJSON tolerates the zone-less last_activity timestamps written by
// earlier versions.
func (u *User) UnmarshalJSON(data []byte) error {
	type user User
	aux := struct {
		*user
		LastActivity FlexTime `json:"last_activity"`
	}{user: (*user)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.LastActivity = aux.LastActivity.Time
	return nil
}

// DisplayName returns the best available human-readable name.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}
