package domain

// SettingName identifies a toggleable process-wide flag.
type SettingName string

const (
	SettingAutoRespond    SettingName = "auto_respond"
	SettingNotifyNewUsers SettingName = "notify_new_users"
)

// Settings holds the process-wide flags mutated only by the admin policy.
type Settings struct {
	AutoRespond    bool `json:"auto_respond"`
	NotifyNewUsers bool `json:"notify_new_users"`
}

// DefaultSettings matches the out-of-the-box configuration.
func DefaultSettings() Settings {
	return Settings{AutoRespond: true, NotifyNewUsers: true}
}

// Get returns the flag value for a setting name.
func (s Settings) Get(name SettingName) (bool, bool) {
	switch name {
	case SettingAutoRespond:
		return s.AutoRespond, true
	case SettingNotifyNewUsers:
		return s.NotifyNewUsers, true
	default:
		return false, false
	}
}
