package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/siberialabel/telegram-support-bot/internal/store"
)

func setupStore(t *testing.T) store.Store {
	t.Helper()
	fs, err := store.OpenFileStore(filepath.Join(t.TempDir(), "bot_data.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open file store: %v", err)
	}
	t.Cleanup(fs.Close)
	return fs
}

func TestRateLimiterAllowsFreshUser(t *testing.T) {
	st := setupStore(t)
	limiter := NewRateLimiter(st, 300*time.Second)

	allowed, err := limiter.CanSubmit(context.Background(), "u1", time.Now())
	if err != nil {
		t.Fatalf("CanSubmit: %v", err)
	}
	if !allowed {
		t.Error("expected user with no tickets to be allowed")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	st := setupStore(t)
	limiter := NewRateLimiter(st, 300*time.Second)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if _, err := st.CreateTicket(ctx, "u1", "first", created); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	cases := []struct {
		name    string
		at      time.Time
		allowed bool
	}{
		{"immediately after", created, false},
		{"inside window", created.Add(100 * time.Second), false},
		{"exactly at boundary", created.Add(300 * time.Second), false},
		{"one second past", created.Add(301 * time.Second), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			allowed, err := limiter.CanSubmit(ctx, "u1", tc.at)
			if err != nil {
				t.Fatalf("CanSubmit: %v", err)
			}
			if allowed != tc.allowed {
				t.Errorf("at %v: expected allowed=%v, got %v", tc.at, tc.allowed, allowed)
			}
		})
	}
}

func TestRateLimiterUsesLatestTicket(t *testing.T) {
	st := setupStore(t)
	limiter := NewRateLimiter(st, 300*time.Second)
	ctx := context.Background()

	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(400 * time.Second)
	if _, err := st.CreateTicket(ctx, "u1", "first", first); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := st.CreateTicket(ctx, "u1", "second", second); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	// first ticket is long expired but the second still gates
	allowed, err := limiter.CanSubmit(ctx, "u1", second.Add(10*time.Second))
	if err != nil {
		t.Fatalf("CanSubmit: %v", err)
	}
	if allowed {
		t.Error("expected denial while latest ticket is inside the window")
	}
}

func TestRateLimiterIsolatesUsers(t *testing.T) {
	st := setupStore(t)
	limiter := NewRateLimiter(st, 300*time.Second)
	ctx := context.Background()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if _, err := st.CreateTicket(ctx, "u1", "first", created); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	allowed, err := limiter.CanSubmit(ctx, "u2", created.Add(time.Second))
	if err != nil {
		t.Fatalf("CanSubmit: %v", err)
	}
	if !allowed {
		t.Error("one user's cooldown must not gate another user")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	st := setupStore(t)
	limiter := NewRateLimiter(st, 0)
	ctx := context.Background()

	created := time.Now()
	if _, err := st.CreateTicket(ctx, "u1", "first", created); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	allowed, err := limiter.CanSubmit(ctx, "u1", created)
	if err != nil {
		t.Fatalf("CanSubmit: %v", err)
	}
	if !allowed {
		t.Error("non-positive cooldown must disable the limiter")
	}
}
