package store

import (
	"context"
	"errors"
	"time"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
)

// ErrNotFound is returned when a referenced entity does not exist. Callers
// map it to the NOT_FOUND domain error.
var ErrNotFound = errors.New("entity not found")

// StatName identifies an aggregate counter.
type StatName string

const (
	StatTotalReports    StatName = "total_reports"
	StatResolvedReports StatName = "resolved_reports"
)

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	OwnerID  *string
	Statuses []domain.TicketStatus
	Limit    int
}

// Store is the single source of truth for all persisted entities. Every
// mutating operation is atomic with respect to concurrent callers and
// all-or-nothing with respect to durability: a failed call leaves no partial
// state behind, and a successful call survives process restart.
type Store interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
	ListRecentUsers(ctx context.Context, limit int) ([]domain.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// CreateTicket is the whole durable footprint of one submission: it
	// atomically allocates the next sequential id, appends the ticket,
	// increments the owner's reports_sent (creating the owner record if
	// absent) and bumps total_reports. Concurrent calls never produce
	// duplicate or gapped ids, and a failure applies none of it.
	CreateTicket(ctx context.Context, ownerID, body string, now time.Time) (*domain.Ticket, error)
	GetTicket(ctx context.Context, id int64) (*domain.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id int64, status domain.TicketStatus) error
	// ResolveTicket atomically marks the ticket resolved and bumps
	// resolved_reports. It reports false without error when the ticket was
	// already resolved, so repeated calls cannot push resolved_reports past
	// total_reports.
	ResolveTicket(ctx context.Context, id int64) (bool, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// LastTicketTime returns the most recent creation timestamp among the
	// owner's tickets. The second result is false when the owner has none.
	LastTicketTime(ctx context.Context, ownerID string) (time.Time, bool, error)

	BanUser(ctx context.Context, id string, now time.Time) error
	IsBanned(ctx context.Context, id string) (bool, error)
	CountBans(ctx context.Context) (int64, error)

	GetSettings(ctx context.Context) (domain.Settings, error)
	SetSetting(ctx context.Context, name domain.SettingName, value bool) error

	GetStats(ctx context.Context) (domain.Stats, error)
	BumpStat(ctx context.Context, name StatName) error

	GetConversation(ctx context.Context, userID string) (domain.ConversationState, error)
	SetConversation(ctx context.Context, userID string, state domain.ConversationState) error

	Ping(ctx context.Context) error
	Close()
}
