package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
)

// PgStore implements Store on a Postgres pool. Ticket ids come from a
// counters row updated in the same transaction as the insert, so allocation
// is linearizable and gap-free under concurrent submits.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore wraps an established pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT u.id, u.username, u.first_name, u.last_name, u.last_activity, u.reports_sent,
               EXISTS (SELECT 1 FROM bans b WHERE b.user_id = u.id)
        FROM users u WHERE u.id = $1`
	var user domain.User
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.LastActivity,
		&user.ReportsSent,
		&user.Banned,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *PgStore) UpsertUser(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, username, first_name, last_name, last_activity, reports_sent)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (id) DO UPDATE SET
            username = EXCLUDED.username,
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            last_activity = EXCLUDED.last_activity,
            reports_sent = EXCLUDED.reports_sent`
	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.LastActivity,
		user.ReportsSent,
	)
	return err
}

func (s *PgStore) ListRecentUsers(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT u.id, u.username, u.first_name, u.last_name, u.last_activity, u.reports_sent,
               EXISTS (SELECT 1 FROM bans b WHERE b.user_id = u.id)
        FROM users u ORDER BY u.last_activity DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.FirstName,
			&user.LastName,
			&user.LastActivity,
			&user.ReportsSent,
			&user.Banned,
		); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *PgStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (s *PgStore) CreateTicket(ctx context.Context, ownerID, body string, now time.Time) (*domain.Ticket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id int64
	const allocate = `UPDATE counters SET value = value + 1 WHERE name = 'ticket_id' RETURNING value`
	if err := tx.QueryRow(ctx, allocate).Scan(&id); err != nil {
		return nil, fmt.Errorf("allocate ticket id: %w", err)
	}

	ticket := &domain.Ticket{
		ID:        id,
		OwnerID:   ownerID,
		Body:      body,
		CreatedAt: now,
		Status:    domain.TicketStatusOpen,
	}
	const insert = `INSERT INTO tickets (id, owner_id, body, created_at, status) VALUES ($1,$2,$3,$4,$5)`
	if _, err := tx.Exec(ctx, insert, ticket.ID, ticket.OwnerID, ticket.Body, ticket.CreatedAt, ticket.Status); err != nil {
		return nil, err
	}

	const upsertOwner = `
        INSERT INTO users (id, username, first_name, last_name, last_activity, reports_sent)
        VALUES ($1, '', '', '', $2, 1)
        ON CONFLICT (id) DO UPDATE SET
            reports_sent = users.reports_sent + 1,
            last_activity = EXCLUDED.last_activity`
	if _, err := tx.Exec(ctx, upsertOwner, ownerID, now); err != nil {
		return nil, err
	}

	const bumpTotal = `UPDATE counters SET value = value + 1 WHERE name = 'total_reports'`
	if _, err := tx.Exec(ctx, bumpTotal); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *PgStore) ResolveTicket(ctx context.Context, id int64) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	const mark = `UPDATE tickets SET status = $1 WHERE id = $2 AND status <> $1`
	cmd, err := tx.Exec(ctx, mark, domain.TicketStatusResolved, id)
	if err != nil {
		return false, err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, id).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, ErrNotFound
		}
		return false, tx.Commit(ctx)
	}

	const bump = `UPDATE counters SET value = value + 1 WHERE name = 'resolved_reports'`
	if _, err := tx.Exec(ctx, bump); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PgStore) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT id, owner_id, body, created_at, status FROM tickets WHERE id = $1`
	var ticket domain.Ticket
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.Body,
		&ticket.CreatedAt,
		&ticket.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *PgStore) UpdateTicketStatus(ctx context.Context, id int64, status domain.TicketStatus) error {
	cmd, err := s.pool.Exec(ctx, `UPDATE tickets SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) ListTickets(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, owner_id, body, created_at, status FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY created_at DESC LIMIT %d",
		base, strings.Join(clauses, " AND "), limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(&ticket.ID, &ticket.OwnerID, &ticket.Body, &ticket.CreatedAt, &ticket.Status); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

func (s *PgStore) LastTicketTime(ctx context.Context, ownerID string) (time.Time, bool, error) {
	const query = `SELECT created_at FROM tickets WHERE owner_id = $1 ORDER BY created_at DESC LIMIT 1`
	var last time.Time
	err := s.pool.QueryRow(ctx, query, ownerID).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return last, true, nil
}

func (s *PgStore) BanUser(ctx context.Context, id string, now time.Time) error {
	const query = `INSERT INTO bans (user_id, banned_at) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query, id, now)
	return err
}

func (s *PgStore) IsBanned(ctx context.Context, id string) (bool, error) {
	var banned bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bans WHERE user_id = $1)`, id).Scan(&banned)
	return banned, err
}

func (s *PgStore) CountBans(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bans`).Scan(&count)
	return count, err
}

func (s *PgStore) GetSettings(ctx context.Context) (domain.Settings, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, value FROM settings`)
	if err != nil {
		return domain.Settings{}, err
	}
	defer rows.Close()

	settings := domain.DefaultSettings()
	for rows.Next() {
		var name string
		var value bool
		if err := rows.Scan(&name, &value); err != nil {
			return domain.Settings{}, err
		}
		switch domain.SettingName(name) {
		case domain.SettingAutoRespond:
			settings.AutoRespond = value
		case domain.SettingNotifyNewUsers:
			settings.NotifyNewUsers = value
		}
	}
	return settings, rows.Err()
}

func (s *PgStore) SetSetting(ctx context.Context, name domain.SettingName, value bool) error {
	if _, known := domain.DefaultSettings().Get(name); !known {
		return fmt.Errorf("unknown setting %q", name)
	}
	const query = `
        INSERT INTO settings (name, value) VALUES ($1, $2)
        ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`
	_, err := s.pool.Exec(ctx, query, string(name), value)
	return err
}

func (s *PgStore) GetStats(ctx context.Context) (domain.Stats, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, value FROM counters WHERE name IN ('total_reports','resolved_reports')`)
	if err != nil {
		return domain.Stats{}, err
	}
	defer rows.Close()

	var stats domain.Stats
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return domain.Stats{}, err
		}
		switch StatName(name) {
		case StatTotalReports:
			stats.TotalReports = value
		case StatResolvedReports:
			stats.ResolvedReports = value
		}
	}
	return stats, rows.Err()
}

func (s *PgStore) BumpStat(ctx context.Context, name StatName) error {
	cmd, err := s.pool.Exec(ctx, `UPDATE counters SET value = value + 1 WHERE name = $1`, string(name))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("unknown stat %q", name)
	}
	return nil
}

func (s *PgStore) GetConversation(ctx context.Context, userID string) (domain.ConversationState, error) {
	const query = `SELECT mode, reply_ticket_id FROM sessions WHERE user_id = $1`
	var state domain.ConversationState
	err := s.pool.QueryRow(ctx, query, userID).Scan(&state.Mode, &state.ReplyTicketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.IdleState(), nil
	}
	if err != nil {
		return domain.ConversationState{}, err
	}
	return state, nil
}

func (s *PgStore) SetConversation(ctx context.Context, userID string, state domain.ConversationState) error {
	if state.Mode == domain.ModeIdle {
		_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
		return err
	}
	const query = `
        INSERT INTO sessions (user_id, mode, reply_ticket_id) VALUES ($1,$2,$3)
        ON CONFLICT (user_id) DO UPDATE SET mode = EXCLUDED.mode, reply_ticket_id = EXCLUDED.reply_ticket_id`
	_, err := s.pool.Exec(ctx, query, userID, state.Mode, state.ReplyTicketID)
	return err
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgStore) Close() {
	s.pool.Close()
}
