package engine

import (
	"context"
	"time"

	"github.com/siberialabel/telegram-support-bot/internal/store"
)

// RateLimiter gates ticket creation per user. The check always reads durable
// ticket timestamps from the store, never a cache that could go stale across
// restarts.
type RateLimiter struct {
	store    store.Store
	cooldown time.Duration
}

// NewRateLimiter constructs the limiter. A non-positive cooldown disables it.
func NewRateLimiter(st store.Store, cooldown time.Duration) *RateLimiter {
	return &RateLimiter{store: st, cooldown: cooldown}
}

// Cooldown returns the configured window.
func (r *RateLimiter) Cooldown() time.Duration {
	return r.cooldown
}

// CanSubmit reports whether the user may create a ticket at the given time.
// A user with no prior tickets is always allowed. Denial happens exactly when
// the user's latest ticket was created within [now - cooldown, now].
func (r *RateLimiter) CanSubmit(ctx context.Context, userID string, now time.Time) (bool, error) {
	if r.cooldown <= 0 {
		return true, nil
	}
	last, found, err := r.store.LastTicketTime(ctx, userID)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	if last.After(now) {
		return true, nil
	}
	return now.Sub(last) > r.cooldown, nil
}
