package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
)

// document is the on-disk layout. It mirrors the single JSON database the
// bot has always persisted: one object holding every entity map.
type document struct {
	Users        map[string]*domain.User             `json:"users"`
	Tickets      map[string]*domain.Ticket           `json:"reports"`
	NextTicketID int64                               `json:"next_report_id"`
	Bans         map[string]domain.FlexTime          `json:"banned_users"`
	Settings     domain.Settings                     `json:"settings"`
	Stats        domain.Stats                        `json:"stats"`
	Sessions     map[string]domain.ConversationState `json:"sessions"`
}

func newDocument() document {
	return document{
		Users:        map[string]*domain.User{},
		Tickets:      map[string]*domain.Ticket{},
		NextTicketID: 1,
		Bans:         map[string]domain.FlexTime{},
		Settings:     domain.DefaultSettings(),
		Stats:        domain.Stats{},
		Sessions:     map[string]domain.ConversationState{},
	}
}

// FileStore persists the whole document to a single JSON file. Each mutation
// is applied to a private copy, written to a temp file, and renamed over the
// live file before the in-memory state is swapped; a crash mid-write leaves
// the previous committed document intact.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	doc    document
	logger *zap.Logger
}

// OpenFileStore loads the document at path, creating a fresh one when the
// file does not exist yet.
func OpenFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	fs := &FileStore{path: path, doc: newDocument(), logger: logger}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("store file absent, starting empty", zap.String("path", path))
			return fs, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if err := json.Unmarshal(raw, &fs.doc); err != nil {
		return nil, fmt.Errorf("parse store file: %w", err)
	}
	fs.normalize()
	logger.Info("store loaded",
		zap.String("path", path),
		zap.Int("users", len(fs.doc.Users)),
		zap.Int("tickets", len(fs.doc.Tickets)))
	return fs, nil
}

// normalize repairs fields older documents may lack.
func (fs *FileStore) normalize() {
	if fs.doc.Users == nil {
		fs.doc.Users = map[string]*domain.User{}
	}
	if fs.doc.Tickets == nil {
		fs.doc.Tickets = map[string]*domain.Ticket{}
	}
	if fs.doc.Bans == nil {
		fs.doc.Bans = map[string]domain.FlexTime{}
	}
	if fs.doc.Sessions == nil {
		fs.doc.Sessions = map[string]domain.ConversationState{}
	}
	for id, user := range fs.doc.Users {
		if user.ID == "" {
			user.ID = id
		}
	}
	if fs.doc.NextTicketID < 1 {
		var max int64
		for _, t := range fs.doc.Tickets {
			if t.ID > max {
				max = t.ID
			}
		}
		fs.doc.NextTicketID = max + 1
	}
}

// mutate applies fn to a deep copy of the document, commits the copy to disk,
// and only then swaps it in. Callers hold no partial state on failure.
func (fs *FileStore) mutate(fn func(*document) error) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	work, err := cloneDocument(fs.doc)
	if err != nil {
		return err
	}
	if err := fn(&work); err != nil {
		return err
	}
	if err := fs.persist(work); err != nil {
		return err
	}
	fs.doc = work
	return nil
}

func cloneDocument(doc document) (document, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return document{}, err
	}
	clone := newDocument()
	if err := json.Unmarshal(raw, &clone); err != nil {
		return document{}, err
	}
	return clone, nil
}

func (fs *FileStore) persist(doc document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func (fs *FileStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	user, ok := fs.doc.Users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (fs *FileStore) UpsertUser(ctx context.Context, user *domain.User) error {
	return fs.mutate(func(doc *document) error {
		copied := *user
		doc.Users[user.ID] = &copied
		return nil
	})
}

func (fs *FileStore) ListRecentUsers(ctx context.Context, limit int) ([]domain.User, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	users := make([]domain.User, 0, len(fs.doc.Users))
	for _, u := range fs.doc.Users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].LastActivity.After(users[j].LastActivity)
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (fs *FileStore) CountUsers(ctx context.Context) (int64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return int64(len(fs.doc.Users)), nil
}

func (fs *FileStore) CreateTicket(ctx context.Context, ownerID, body string, now time.Time) (*domain.Ticket, error) {
	var created *domain.Ticket
	err := fs.mutate(func(doc *document) error {
		ticket := &domain.Ticket{
			ID:        doc.NextTicketID,
			OwnerID:   ownerID,
			Body:      body,
			CreatedAt: now,
			Status:    domain.TicketStatusOpen,
		}
		doc.Tickets[strconv.FormatInt(ticket.ID, 10)] = ticket
		doc.NextTicketID++

		owner, ok := doc.Users[ownerID]
		if !ok {
			owner = &domain.User{ID: ownerID}
			doc.Users[ownerID] = owner
		}
		owner.ReportsSent++
		owner.LastActivity = now
		doc.Stats.TotalReports++

		created = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	copied := *created
	return &copied, nil
}

func (fs *FileStore) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	ticket, ok := fs.doc.Tickets[strconv.FormatInt(id, 10)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *ticket
	return &copied, nil
}

func (fs *FileStore) UpdateTicketStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	return fs.mutate(func(doc *document) error {
		ticket, ok := doc.Tickets[strconv.FormatInt(id, 10)]
		if !ok {
			return ErrNotFound
		}
		ticket.Status = status
		return nil
	})
}

func (fs *FileStore) ResolveTicket(ctx context.Context, id int64) (bool, error) {
	changed := false
	err := fs.mutate(func(doc *document) error {
		ticket, ok := doc.Tickets[strconv.FormatInt(id, 10)]
		if !ok {
			return ErrNotFound
		}
		if ticket.Status == domain.TicketStatusResolved {
			return nil
		}
		ticket.Status = domain.TicketStatusResolved
		doc.Stats.ResolvedReports++
		changed = true
		return nil
	})
	return changed, err
}

func (fs *FileStore) ListTickets(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	tickets := make([]domain.Ticket, 0, len(fs.doc.Tickets))
	for _, t := range fs.doc.Tickets {
		if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		tickets = append(tickets, *t)
	}
	sort.Slice(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.After(tickets[j].CreatedAt)
	})
	if filter.Limit > 0 && len(tickets) > filter.Limit {
		tickets = tickets[:filter.Limit]
	}
	return tickets, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (fs *FileStore) LastTicketTime(ctx context.Context, ownerID string) (time.Time, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	var last time.Time
	found := false
	for _, t := range fs.doc.Tickets {
		if t.OwnerID != ownerID {
			continue
		}
		if !found || t.CreatedAt.After(last) {
			last = t.CreatedAt
			found = true
		}
	}
	return last, found, nil
}

func (fs *FileStore) BanUser(ctx context.Context, id string, now time.Time) error {
	return fs.mutate(func(doc *document) error {
		if _, banned := doc.Bans[id]; banned {
			return nil
		}
		doc.Bans[id] = domain.FlexTime{Time: now}
		if user, ok := doc.Users[id]; ok {
			user.Banned = true
		}
		return nil
	})
}

func (fs *FileStore) IsBanned(ctx context.Context, id string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, banned := fs.doc.Bans[id]
	return banned, nil
}

func (fs *FileStore) CountBans(ctx context.Context) (int64, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return int64(len(fs.doc.Bans)), nil
}

func (fs *FileStore) GetSettings(ctx context.Context) (domain.Settings, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.doc.Settings, nil
}

func (fs *FileStore) SetSetting(ctx context.Context, name domain.SettingName, value bool) error {
	return fs.mutate(func(doc *document) error {
		switch name {
		case domain.SettingAutoRespond:
			doc.Settings.AutoRespond = value
		case domain.SettingNotifyNewUsers:
			doc.Settings.NotifyNewUsers = value
		default:
			return fmt.Errorf("unknown setting %q", name)
		}
		return nil
	})
}

func (fs *FileStore) GetStats(ctx context.Context) (domain.Stats, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.doc.Stats, nil
}

func (fs *FileStore) BumpStat(ctx context.Context, name StatName) error {
	return fs.mutate(func(doc *document) error {
		switch name {
		case StatTotalReports:
			doc.Stats.TotalReports++
		case StatResolvedReports:
			doc.Stats.ResolvedReports++
		default:
			return fmt.Errorf("unknown stat %q", name)
		}
		return nil
	})
}

func (fs *FileStore) GetConversation(ctx context.Context, userID string) (domain.ConversationState, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	state, ok := fs.doc.Sessions[userID]
	if !ok {
		return domain.IdleState(), nil
	}
	return state, nil
}

func (fs *FileStore) SetConversation(ctx context.Context, userID string, state domain.ConversationState) error {
	return fs.mutate(func(doc *document) error {
		if state.Mode == domain.ModeIdle {
			delete(doc.Sessions, userID)
			return nil
		}
		doc.Sessions[userID] = state
		return nil
	})
}

func (fs *FileStore) Ping(ctx context.Context) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, err := os.Stat(filepath.Dir(fs.path))
	return err
}

func (fs *FileStore) Close() {}
