package engine

import (
	"context"
	"testing"
	"time"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
	"github.com/siberialabel/telegram-support-bot/internal/events"
	"github.com/siberialabel/telegram-support-bot/internal/store"
)

func newTestConversation(t *testing.T) (*Conversation, store.Store) {
	t.Helper()
	st := setupStore(t)
	limiter := NewRateLimiter(st, 300*time.Second)
	admin := NewAdminPolicy(testAdminID, st, events.NewInMemoryDispatcher())
	return NewConversation(st, limiter, admin), st
}

func TestConversationDefaultsToIdle(t *testing.T) {
	conv, _ := newTestConversation(t)
	state, err := conv.State(context.Background(), "u1")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Mode != domain.ModeIdle {
		t.Errorf("expected idle, got %s", state.Mode)
	}
}

func TestBeginReportTransition(t *testing.T) {
	conv, _ := newTestConversation(t)
	ctx := context.Background()

	if err := conv.BeginReport(ctx, "u1", time.Now()); err != nil {
		t.Fatalf("BeginReport: %v", err)
	}
	state, _ := conv.State(ctx, "u1")
	if state.Mode != domain.ModeAwaitingReport {
		t.Errorf("expected awaiting report, got %s", state.Mode)
	}
}

func TestBeginReportDeniedDuringCooldown(t *testing.T) {
	conv, st := newTestConversation(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := st.CreateTicket(ctx, "u1", "recent", now); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	err := conv.BeginReport(ctx, "u1", now.Add(10*time.Second))
	assertCode(t, err, "RATE_LIMITED")

	// denied entry must leave the user idle
	state, _ := conv.State(ctx, "u1")
	if state.Mode != domain.ModeIdle {
		t.Errorf("expected idle after denial, got %s", state.Mode)
	}
}

func TestBeginReplyGates(t *testing.T) {
	conv, st := newTestConversation(t)
	ctx := context.Background()

	err := conv.BeginReply(ctx, "u1", 1)
	assertCode(t, err, "UNAUTHORIZED")

	err = conv.BeginReply(ctx, testAdminID, 42)
	assertCode(t, err, "NOT_FOUND")

	if _, err := st.CreateTicket(ctx, "u1", "report", time.Now()); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if err := conv.BeginReply(ctx, testAdminID, 1); err != nil {
		t.Fatalf("BeginReply: %v", err)
	}
	state, _ := conv.State(ctx, testAdminID)
	if state.Mode != domain.ModeAwaitingReplyText || state.ReplyTicketID != 1 {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestCancelResetsAnyState(t *testing.T) {
	conv, _ := newTestConversation(t)
	ctx := context.Background()

	if err := conv.BeginReport(ctx, "u1", time.Now()); err != nil {
		t.Fatalf("BeginReport: %v", err)
	}
	if err := conv.Cancel(ctx, "u1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	state, _ := conv.State(ctx, "u1")
	if state.Mode != domain.ModeIdle {
		t.Errorf("expected idle after cancel, got %s", state.Mode)
	}

	// cancelling while already idle is fine
	if err := conv.Cancel(ctx, "u1"); err != nil {
		t.Fatalf("Cancel while idle: %v", err)
	}
}

func TestConversationStateIsPerUser(t *testing.T) {
	conv, _ := newTestConversation(t)
	ctx := context.Background()

	if err := conv.BeginReport(ctx, "u1", time.Now()); err != nil {
		t.Fatalf("BeginReport: %v", err)
	}
	state, _ := conv.State(ctx, "u2")
	if state.Mode != domain.ModeIdle {
		t.Errorf("u1's pending report leaked into u2's state: %s", state.Mode)
	}
}
