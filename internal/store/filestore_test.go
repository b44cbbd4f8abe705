package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
)

func setupFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bot_data.json")
	fs, err := OpenFileStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open file store: %v", err)
	}
	t.Cleanup(fs.Close)
	return fs, path
}

func TestFileStoreDefaults(t *testing.T) {
	fs, _ := setupFileStore(t)
	ctx := context.Background()

	settings, err := fs.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !settings.AutoRespond || !settings.NotifyNewUsers {
		t.Errorf("expected both default settings enabled, got %+v", settings)
	}

	stats, err := fs.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalReports != 0 || stats.ResolvedReports != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}

	if _, err := fs.GetUser(ctx, "u1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestFileStoreTicketIDsStartAtOne(t *testing.T) {
	fs, _ := setupFileStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := int64(1); i <= 3; i++ {
		ticket, err := fs.CreateTicket(ctx, "u1", "help", now)
		if err != nil {
			t.Fatalf("CreateTicket: %v", err)
		}
		if ticket.ID != i {
			t.Errorf("expected ticket id %d, got %d", i, ticket.ID)
		}
		if ticket.Status != domain.TicketStatusOpen {
			t.Errorf("expected new ticket open, got %s", ticket.Status)
		}
	}
}

func TestFileStoreConcurrentTicketIDs(t *testing.T) {
	fs, _ := setupFileStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	const workers = 20
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := fs.CreateTicket(ctx, "u1", "concurrent", now)
			if err != nil {
				t.Errorf("CreateTicket: %v", err)
				return
			}
			ids <- ticket.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		if seen[id] {
			t.Errorf("duplicate ticket id %d", id)
		}
		seen[id] = true
	}
	for i := int64(1); i <= workers; i++ {
		if !seen[i] {
			t.Errorf("missing ticket id %d", i)
		}
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	fs, path := setupFileStore(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	user := &domain.User{ID: "u1", Username: "alice", LastActivity: now, ReportsSent: 1}
	if err := fs.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	ticket, err := fs.CreateTicket(ctx, "u1", "broken everything", now)
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if err := fs.UpdateTicketStatus(ctx, ticket.ID, domain.TicketStatusResolved); err != nil {
		t.Fatalf("UpdateTicketStatus: %v", err)
	}
	if err := fs.BanUser(ctx, "u2", now); err != nil {
		t.Fatalf("BanUser: %v", err)
	}
	if err := fs.SetSetting(ctx, domain.SettingAutoRespond, false); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := fs.BumpStat(ctx, StatTotalReports); err != nil {
		t.Fatalf("BumpStat: %v", err)
	}
	if err := fs.SetConversation(ctx, "u1", domain.ConversationState{
		Mode:          domain.ModeAwaitingReplyText,
		ReplyTicketID: ticket.ID,
	}); err != nil {
		t.Fatalf("SetConversation: %v", err)
	}

	reopened, err := OpenFileStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(reopened.Close)

	got, err := reopened.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser after reopen: %v", err)
	}
	if got.Username != "alice" || got.ReportsSent != 1 {
		t.Errorf("user did not survive reopen: %+v", got)
	}

	gotTicket, err := reopened.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket after reopen: %v", err)
	}
	if gotTicket.Status != domain.TicketStatusResolved {
		t.Errorf("expected resolved ticket, got %s", gotTicket.Status)
	}

	banned, err := reopened.IsBanned(ctx, "u2")
	if err != nil || !banned {
		t.Errorf("expected u2 banned after reopen, got %v %v", banned, err)
	}

	settings, _ := reopened.GetSettings(ctx)
	if settings.AutoRespond {
		t.Error("auto_respond toggle did not survive reopen")
	}

	state, err := reopened.GetConversation(ctx, "u1")
	if err != nil {
		t.Fatalf("GetConversation after reopen: %v", err)
	}
	if state.Mode != domain.ModeAwaitingReplyText || state.ReplyTicketID != ticket.ID {
		t.Errorf("conversation state did not survive reopen: %+v", state)
	}

	// next allocation must continue after the persisted counter
	next, err := reopened.CreateTicket(ctx, "u1", "again", now)
	if err != nil {
		t.Fatalf("CreateTicket after reopen: %v", err)
	}
	if next.ID != ticket.ID+1 {
		t.Errorf("expected ticket id %d after reopen, got %d", ticket.ID+1, next.ID)
	}
}

func TestFileStoreLastTicketTime(t *testing.T) {
	fs, _ := setupFileStore(t)
	ctx := context.Background()

	if _, found, err := fs.LastTicketTime(ctx, "u1"); err != nil || found {
		t.Fatalf("expected no ticket time for fresh user, got found=%v err=%v", found, err)
	}

	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(10 * time.Minute)
	if _, err := fs.CreateTicket(ctx, "u1", "one", first); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := fs.CreateTicket(ctx, "u1", "two", second); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := fs.CreateTicket(ctx, "u2", "other", second.Add(time.Hour)); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	last, found, err := fs.LastTicketTime(ctx, "u1")
	if err != nil {
		t.Fatalf("LastTicketTime: %v", err)
	}
	if !found || !last.Equal(second) {
		t.Errorf("expected latest time %v, got %v found=%v", second, last, found)
	}
}

func TestFileStoreListTickets(t *testing.T) {
	fs, _ := setupFileStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		if _, err := fs.CreateTicket(ctx, "u1", "report", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("CreateTicket: %v", err)
		}
	}
	if err := fs.UpdateTicketStatus(ctx, 2, domain.TicketStatusResolved); err != nil {
		t.Fatalf("UpdateTicketStatus: %v", err)
	}

	open, err := fs.ListTickets(ctx, TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen},
		Limit:    2,
	})
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(open))
	}
	// most recent first
	if open[0].ID != 4 || open[1].ID != 3 {
		t.Errorf("unexpected ordering: %d, %d", open[0].ID, open[1].ID)
	}
}

func TestFileStoreLoadsLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot_data.json")
	legacy := `{
  "users": {
    "101": {"username": "alice", "first_name": "Alice", "last_name": "", "last_activity": "2024-05-01T12:00:00.123456", "reports_sent": 2, "is_banned": false}
  },
  "reports": {
    "1": {"id": 1, "user_id": "101", "text": "cannot log in", "timestamp": "2024-05-01T12:00:00.123456", "status": "resolved"},
    "2": {"id": 2, "user_id": "101", "text": "still broken", "timestamp": "2024-05-01T12:10:00", "status": "open"}
  },
  "next_report_id": 3,
  "banned_users": {"202": "2024-04-30T09:15:00"},
  "settings": {"auto_respond": true, "notify_new_users": false},
  "stats": {"total_reports": 2, "resolved_reports": 1}
}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	fs, err := OpenFileStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	t.Cleanup(fs.Close)
	ctx := context.Background()

	user, err := fs.GetUser(ctx, "101")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.ID != "101" || user.Username != "alice" || user.ReportsSent != 2 {
		t.Errorf("unexpected user: %+v", user)
	}
	wantActivity := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
	if !user.LastActivity.Equal(wantActivity) {
		t.Errorf("expected last_activity %v, got %v", wantActivity, user.LastActivity)
	}

	first, err := fs.GetTicket(ctx, 1)
	if err != nil {
		t.Fatalf("GetTicket 1: %v", err)
	}
	if first.Status != domain.TicketStatusResolved {
		t.Errorf("expected ticket 1 resolved, got %s", first.Status)
	}
	second, err := fs.GetTicket(ctx, 2)
	if err != nil {
		t.Fatalf("GetTicket 2: %v", err)
	}
	if second.Status != domain.TicketStatusOpen {
		t.Errorf("expected ticket 2 open, got %s", second.Status)
	}

	last, found, err := fs.LastTicketTime(ctx, "101")
	if err != nil || !found {
		t.Fatalf("LastTicketTime: found=%v err=%v", found, err)
	}
	if want := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC); !last.Equal(want) {
		t.Errorf("expected last ticket at %v, got %v", want, last)
	}

	banned, err := fs.IsBanned(ctx, "202")
	if err != nil || !banned {
		t.Fatalf("expected 202 banned, got %v %v", banned, err)
	}

	settings, err := fs.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !settings.AutoRespond || settings.NotifyNewUsers {
		t.Errorf("unexpected settings: %+v", settings)
	}

	stats, err := fs.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalReports != 2 || stats.ResolvedReports != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	ticket, err := fs.CreateTicket(ctx, "101", "and again", time.Now().UTC())
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.ID != 3 {
		t.Errorf("expected id sequence to continue at 3, got %d", ticket.ID)
	}
}
