package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
	"github.com/siberialabel/telegram-support-bot/internal/store"
	"github.com/siberialabel/telegram-support-bot/internal/transport"
	apperrors "github.com/siberialabel/telegram-support-bot/pkg/util"
)

// listLimit caps the admin panel listings, matching the bot's five-row menus.
const listLimit = 5

// ResultKind names the outcome of one handled event.
type ResultKind string

const (
	ResultNoop           ResultKind = "noop"
	ResultWelcome        ResultKind = "welcome"
	ResultHelp           ResultKind = "help"
	ResultAwaitingReport ResultKind = "awaiting_report"
	ResultAwaitingReply  ResultKind = "awaiting_reply"
	ResultCancelled      ResultKind = "cancelled"
	ResultTicketCreated  ResultKind = "ticket_created"
	ResultTicketResolved ResultKind = "ticket_resolved"
	ResultUserBanned     ResultKind = "user_banned"
	ResultReplySent      ResultKind = "reply_sent"
	ResultTicketDetails  ResultKind = "ticket_details"
	ResultUserStats      ResultKind = "user_stats"
	ResultSystemStats    ResultKind = "system_stats"
	ResultOpenTickets    ResultKind = "open_tickets"
	ResultRecentUsers    ResultKind = "recent_users"
	ResultSettings       ResultKind = "settings"
)

// Result is what one inbound event produced: a classification the transport
// can render, optional payload data, and outbound directives to execute.
type Result struct {
	Kind       ResultKind
	Admin      bool
	Ticket     *domain.Ticket
	User       *domain.User
	Tickets    []domain.Ticket
	Users      []domain.User
	Stats      *SystemStats
	Settings   *domain.Settings
	Directives []transport.Directive
}

// Engine classifies inbound events and delegates to the ticket lifecycle,
// the conversation state machine and the admin policy.
type Engine struct {
	store   store.Store
	tickets *TicketService
	conv    *Conversation
	admin   *AdminPolicy
	logger  *zap.Logger
	clock   func() time.Time
}

// NewEngine wires the facade.
func NewEngine(st store.Store, tickets *TicketService, conv *Conversation, admin *AdminPolicy, logger *zap.Logger) *Engine {
	return &Engine{
		store:   st,
		tickets: tickets,
		conv:    conv,
		admin:   admin,
		logger:  logger,
		clock:   time.Now,
	}
}

// Tickets exposes the lifecycle service for callers that act outside the
// conversational flow (the admin console).
func (e *Engine) Tickets() *TicketService {
	return e.tickets
}

// Conversation exposes the state machine.
func (e *Engine) Conversation() *Conversation {
	return e.conv
}

// Admin exposes the admin policy.
func (e *Engine) Admin() *AdminPolicy {
	return e.admin
}

// HandleEvent processes one inbound chat event. Ban enforcement happens
// before anything else; unknown free text while Idle is a no-op, not an
// error.
func (e *Engine) HandleEvent(ctx context.Context, ev transport.InboundEvent) (*Result, error) {
	if ev.SenderID == "" {
		return nil, apperrors.NewValidationError("sender_id required", nil)
	}
	now := ev.Timestamp
	if now.IsZero() {
		now = e.clock()
	}

	observed := e.observeUser(ctx, ev, now)
	isAdmin := e.admin.IsAdmin(ev.SenderID)

	if !isAdmin {
		banned, err := e.store.IsBanned(ctx, ev.SenderID)
		if err != nil {
			return nil, apperrors.NewStoreUnavailable(err)
		}
		if banned {
			return nil, apperrors.NewForbidden("user is banned")
		}
	}

	var (
		result *Result
		err    error
	)
	switch ev.Kind {
	case transport.EventKindCommand:
		result, err = e.handleCommand(ctx, ev, now, isAdmin)
	case transport.EventKindAdminAction:
		result, err = e.handleAdminAction(ctx, ev, now)
	case transport.EventKindFreeText:
		result, err = e.handleFreeText(ctx, ev, now)
	default:
		return nil, apperrors.NewValidationError("unknown event kind", map[string]any{"kind": string(ev.Kind)})
	}
	if err != nil {
		return nil, err
	}

	result.Admin = isAdmin
	result.Directives = append(observed, result.Directives...)
	return result, nil
}

func (e *Engine) handleCommand(ctx context.Context, ev transport.InboundEvent, now time.Time, isAdmin bool) (*Result, error) {
	switch ev.Command {
	case transport.CommandStart:
		return &Result{Kind: ResultWelcome}, nil
	case transport.CommandHelp:
		return &Result{Kind: ResultHelp}, nil
	case transport.CommandReport:
		if err := e.conv.BeginReport(ctx, ev.SenderID, now); err != nil {
			return nil, err
		}
		return &Result{Kind: ResultAwaitingReport}, nil
	case transport.CommandCancel:
		if err := e.conv.Cancel(ctx, ev.SenderID); err != nil {
			return nil, err
		}
		return &Result{Kind: ResultCancelled}, nil
	case transport.CommandMyStats:
		user, err := e.tickets.UserStats(ctx, ev.SenderID)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultUserStats, User: user}, nil
	case transport.CommandAdminReports:
		if !isAdmin {
			return nil, apperrors.NewUnauthorized("administrator required")
		}
		tickets, err := e.tickets.OpenTickets(ctx, listLimit)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultOpenTickets, Tickets: tickets}, nil
	case transport.CommandAdminStats:
		if !isAdmin {
			return nil, apperrors.NewUnauthorized("administrator required")
		}
		stats, err := e.tickets.SystemStats(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultSystemStats, Stats: stats}, nil
	case transport.CommandAdminUsers:
		if !isAdmin {
			return nil, apperrors.NewUnauthorized("administrator required")
		}
		users, err := e.tickets.RecentUsers(ctx, listLimit)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultRecentUsers, Users: users}, nil
	case transport.CommandAdminSettings:
		if !isAdmin {
			return nil, apperrors.NewUnauthorized("administrator required")
		}
		settings, err := e.admin.Settings(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultSettings, Settings: &settings}, nil
	default:
		return nil, apperrors.NewValidationError("unknown command", map[string]any{"command": string(ev.Command)})
	}
}

func (e *Engine) handleAdminAction(ctx context.Context, ev transport.InboundEvent, now time.Time) (*Result, error) {
	switch ev.Action {
	case transport.ActionResolve:
		ticket, err := e.tickets.Resolve(ctx, ev.TicketID, ev.SenderID)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultTicketResolved, Ticket: ticket}, nil
	case transport.ActionBan:
		ticket, directives, err := e.tickets.Ban(ctx, ev.TicketID, ev.SenderID, now)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultUserBanned, Ticket: ticket, Directives: directives}, nil
	case transport.ActionReply:
		if err := e.conv.BeginReply(ctx, ev.SenderID, ev.TicketID); err != nil {
			return nil, err
		}
		return &Result{Kind: ResultAwaitingReply}, nil
	case transport.ActionDetails:
		if !e.admin.IsAdmin(ev.SenderID) {
			return nil, apperrors.NewUnauthorized("administrator required")
		}
		ticket, owner, err := e.tickets.Details(ctx, ev.TicketID)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultTicketDetails, Ticket: ticket, User: owner}, nil
	case transport.ActionToggle:
		settings, err := e.admin.ToggleSetting(ctx, domain.SettingName(ev.Setting), ev.SenderID)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: ResultSettings, Settings: &settings}, nil
	default:
		return nil, apperrors.NewValidationError("unknown admin action", map[string]any{"action": string(ev.Action)})
	}
}

func (e *Engine) handleFreeText(ctx context.Context, ev transport.InboundEvent, now time.Time) (*Result, error) {
	state, err := e.conv.State(ctx, ev.SenderID)
	if err != nil {
		return nil, err
	}

	switch state.Mode {
	case domain.ModeAwaitingReport:
		ticket, directives, err := e.tickets.Submit(ctx, ev.SenderID, ev.Text, now)
		if err != nil {
			return nil, err
		}
		if err := e.conv.Complete(ctx, ev.SenderID); err != nil {
			e.logger.Error("reset conversation", zap.String("user_id", ev.SenderID), zap.Error(err))
		}
		return &Result{Kind: ResultTicketCreated, Ticket: ticket, Directives: directives}, nil

	case domain.ModeAwaitingReplyText:
		ticket, directives, err := e.tickets.Reply(ctx, state.ReplyTicketID, ev.SenderID, ev.Text, now)
		if err != nil {
			return nil, err
		}
		if err := e.conv.Complete(ctx, ev.SenderID); err != nil {
			e.logger.Error("reset conversation", zap.String("user_id", ev.SenderID), zap.Error(err))
		}
		return &Result{Kind: ResultReplySent, Ticket: ticket, Directives: directives}, nil

	default:
		// uninterpreted free text while idle
		return &Result{Kind: ResultNoop}, nil
	}
}

// observeUser upserts the sender's profile on every interaction and emits a
// new-user notification when the notify_new_users flag is on.
func (e *Engine) observeUser(ctx context.Context, ev transport.InboundEvent, now time.Time) []transport.Directive {
	user, err := e.store.GetUser(ctx, ev.SenderID)
	firstSeen := false
	if err != nil {
		if err != store.ErrNotFound {
			e.logger.Error("load user", zap.String("user_id", ev.SenderID), zap.Error(err))
			return nil
		}
		firstSeen = true
		user = &domain.User{ID: ev.SenderID}
	}

	if ev.Username != "" {
		user.Username = ev.Username
	}
	if ev.FirstName != "" {
		user.FirstName = ev.FirstName
	}
	if ev.LastName != "" {
		user.LastName = ev.LastName
	}
	user.LastActivity = now

	if err := e.store.UpsertUser(ctx, user); err != nil {
		e.logger.Error("upsert user", zap.String("user_id", ev.SenderID), zap.Error(err))
		return nil
	}

	if !firstSeen || e.admin.IsAdmin(ev.SenderID) {
		return nil
	}
	settings, err := e.store.GetSettings(ctx)
	if err != nil || !settings.NotifyNewUsers {
		return nil
	}
	return []transport.Directive{newDirective(transport.Directive{
		Kind:        transport.DirectiveNotifyAdminNewUser,
		RecipientID: e.admin.AdminID(),
		SubjectID:   ev.SenderID,
	}, now)}
}
