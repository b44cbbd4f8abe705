package engine

import (
	"context"
	"time"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
	"github.com/siberialabel/telegram-support-bot/internal/store"
	apperrors "github.com/siberialabel/telegram-support-bot/pkg/util"
)

// Conversation tracks the per-user mode that decides how the next free-text
// message is interpreted. State is keyed by user identity, so one user's
// pending report never intercepts another user's text. There are no implicit
// timeouts: a pending mode holds until satisfied or cancelled.
type Conversation struct {
	store   store.Store
	limiter *RateLimiter
	admin   *AdminPolicy
}

// NewConversation constructs the state machine.
func NewConversation(st store.Store, limiter *RateLimiter, admin *AdminPolicy) *Conversation {
	return &Conversation{store: st, limiter: limiter, admin: admin}
}

// State returns the user's current mode; unknown users are Idle.
func (c *Conversation) State(ctx context.Context, userID string) (domain.ConversationState, error) {
	state, err := c.store.GetConversation(ctx, userID)
	if err != nil {
		return domain.ConversationState{}, apperrors.NewStoreUnavailable(err)
	}
	return state, nil
}

// BeginReport moves the user from Idle to AwaitingReportText, but only when
// the rate limiter currently allows a submission; otherwise the user stays
// Idle and RateLimited surfaces the cooldown notice.
func (c *Conversation) BeginReport(ctx context.Context, userID string, now time.Time) error {
	allowed, err := c.limiter.CanSubmit(ctx, userID, now)
	if err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	if !allowed {
		return apperrors.NewRateLimited("submission cooldown active", map[string]any{
			"cooldown_seconds": int(c.limiter.Cooldown().Seconds()),
		})
	}
	return c.set(ctx, userID, domain.ConversationState{Mode: domain.ModeAwaitingReport})
}

// BeginReply moves the administrator to AwaitingReplyTo(ticketID). The
// transition is authorization-gated and the ticket must exist.
func (c *Conversation) BeginReply(ctx context.Context, actorID string, ticketID int64) error {
	if !c.admin.IsAdmin(actorID) {
		return apperrors.NewUnauthorized("administrator required")
	}
	if _, err := c.store.GetTicket(ctx, ticketID); err != nil {
		if err == store.ErrNotFound {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.NewStoreUnavailable(err)
	}
	return c.set(ctx, actorID, domain.ConversationState{
		Mode:          domain.ModeAwaitingReplyText,
		ReplyTicketID: ticketID,
	})
}

// Cancel resets any state to Idle with no side effect.
func (c *Conversation) Cancel(ctx context.Context, userID string) error {
	return c.set(ctx, userID, domain.IdleState())
}

// Complete resets to Idle after a terminal action (ticket submitted or reply
// sent).
func (c *Conversation) Complete(ctx context.Context, userID string) error {
	return c.set(ctx, userID, domain.IdleState())
}

func (c *Conversation) set(ctx context.Context, userID string, state domain.ConversationState) error {
	if err := c.store.SetConversation(ctx, userID, state); err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	return nil
}
