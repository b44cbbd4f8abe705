package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
	"github.com/siberialabel/telegram-support-bot/internal/events"
	"github.com/siberialabel/telegram-support-bot/internal/store"
	apperrors "github.com/siberialabel/telegram-support-bot/pkg/util"
)

// AdminPolicy holds the single designated administrator identity, configured
// at deployment and never assigned dynamically.
type AdminPolicy struct {
	adminID    string
	store      store.Store
	dispatcher events.Dispatcher
}

// NewAdminPolicy constructs the policy.
func NewAdminPolicy(adminID string, st store.Store, dispatcher events.Dispatcher) *AdminPolicy {
	return &AdminPolicy{adminID: adminID, store: st, dispatcher: dispatcher}
}

// IsAdmin reports whether the given identity is the administrator.
func (p *AdminPolicy) IsAdmin(userID string) bool {
	return userID != "" && userID == p.adminID
}

// AdminID returns the configured administrator identity.
func (p *AdminPolicy) AdminID() string {
	return p.adminID
}

// Settings returns the current process-wide flags.
func (p *AdminPolicy) Settings(ctx context.Context) (domain.Settings, error) {
	settings, err := p.store.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, apperrors.NewStoreUnavailable(err)
	}
	return settings, nil
}

// ToggleSetting flips the named boolean flag and persists it. Non-admin
// actors get Unauthorized and the setting stays unchanged.
func (p *AdminPolicy) ToggleSetting(ctx context.Context, name domain.SettingName, actorID string) (domain.Settings, error) {
	if !p.IsAdmin(actorID) {
		return domain.Settings{}, apperrors.NewUnauthorized("administrator required")
	}

	settings, err := p.store.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, apperrors.NewStoreUnavailable(err)
	}
	current, known := settings.Get(name)
	if !known {
		return domain.Settings{}, apperrors.NewValidationError("unknown setting", map[string]any{"name": string(name)})
	}
	if err := p.store.SetSetting(ctx, name, !current); err != nil {
		return domain.Settings{}, apperrors.NewStoreUnavailable(err)
	}

	p.publish(ctx, events.Event{
		Type:    events.EventSettingToggled,
		ActorID: actorID,
		Payload: events.SettingToggledPayload{Name: string(name), NewValue: !current},
	})

	return p.store.GetSettings(ctx)
}

func (p *AdminPolicy) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = p.dispatcher.Publish(ctx, event)
}
