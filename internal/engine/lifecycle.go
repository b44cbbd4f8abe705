package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siberialabel/telegram-support-bot/internal/domain"
	"github.com/siberialabel/telegram-support-bot/internal/events"
	"github.com/siberialabel/telegram-support-bot/internal/observability"
	"github.com/siberialabel/telegram-support-bot/internal/store"
	"github.com/siberialabel/telegram-support-bot/internal/transport"
	apperrors "github.com/siberialabel/telegram-support-bot/pkg/util"
)

// TicketService coordinates the ticket lifecycle: creation under the rate
// limiter's gate, and the admin actions that drive tickets to Resolved.
type TicketService struct {
	store      store.Store
	limiter    *RateLimiter
	admin      *AdminPolicy
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      store.Store
	Limiter    *RateLimiter
	Admin      *AdminPolicy
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// SystemStats is the aggregate view shown on the admin panel.
type SystemStats struct {
	TotalUsers      int64
	TotalReports    int64
	ResolvedReports int64
	BannedUsers     int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		store:      deps.Store,
		limiter:    deps.Limiter,
		admin:      deps.Admin,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Submit creates a ticket for a user. Banned users get Forbidden before any
// other processing, users inside the cooldown window get RateLimited. The
// returned directives tell the transport whom to notify.
func (s *TicketService) Submit(ctx context.Context, userID, body string, now time.Time) (*domain.Ticket, []transport.Directive, error) {
	banned, err := s.store.IsBanned(ctx, userID)
	if err != nil {
		return nil, nil, apperrors.NewStoreUnavailable(err)
	}
	if banned {
		return nil, nil, apperrors.NewForbidden("user is banned")
	}

	allowed, err := s.limiter.CanSubmit(ctx, userID, now)
	if err != nil {
		return nil, nil, apperrors.NewStoreUnavailable(err)
	}
	if !allowed {
		return nil, nil, apperrors.NewRateLimited("submission cooldown active", map[string]any{
			"cooldown_seconds": int(s.limiter.Cooldown().Seconds()),
		})
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil, apperrors.NewValidationError("report text required", nil)
	}

	// one store call covers the ticket, the owner's reports_sent and the
	// total_reports counter, so a persistence failure applies none of them
	ticket, err := s.store.CreateTicket(ctx, userID, body, now)
	if err != nil {
		return nil, nil, apperrors.NewStoreUnavailable(err)
	}

	directives := []transport.Directive{newDirective(transport.Directive{
		Kind:        transport.DirectiveNotifyAdminNewTicket,
		RecipientID: s.admin.AdminID(),
		TicketID:    ticket.ID,
	}, now)}

	settings, err := s.store.GetSettings(ctx)
	if err == nil && settings.AutoRespond {
		directives = append(directives, newDirective(transport.Directive{
			Kind:        transport.DirectiveAcknowledgeTicket,
			RecipientID: userID,
			TicketID:    ticket.ID,
		}, now))
	}

	s.metrics.TicketCreated()
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  userID,
		Payload: events.TicketCreatedPayload{
			OwnerID:     userID,
			BodyPreview: stringPreview(body, 120),
		},
	})

	return ticket, directives, nil
}

// Resolve sets the ticket Resolved. Resolving an already-resolved ticket is
// a no-op success.
func (s *TicketService) Resolve(ctx context.Context, ticketID int64, actorID string) (*domain.Ticket, error) {
	if !s.admin.IsAdmin(actorID) {
		return nil, apperrors.NewUnauthorized("administrator required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.resolveTicket(ctx, ticket, actorID, "resolve"); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Ban resolves the owning ticket and permanently blocks its owner. The
// returned directive tells the transport to notify the banned user.
func (s *TicketService) Ban(ctx context.Context, ticketID int64, actorID string, now time.Time) (*domain.Ticket, []transport.Directive, error) {
	if !s.admin.IsAdmin(actorID) {
		return nil, nil, apperrors.NewUnauthorized("administrator required")
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.resolveTicket(ctx, ticket, actorID, "ban"); err != nil {
		return nil, nil, err
	}
	if err := s.store.BanUser(ctx, ticket.OwnerID, now); err != nil {
		return nil, nil, apperrors.NewStoreUnavailable(err)
	}

	s.metrics.UserBanned()
	s.publish(ctx, events.Event{
		Type:     events.EventUserBanned,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.UserBannedPayload{UserID: ticket.OwnerID},
	})

	directives := []transport.Directive{newDirective(transport.Directive{
		Kind:        transport.DirectiveNotifyBanned,
		RecipientID: ticket.OwnerID,
		TicketID:    ticket.ID,
	}, now)}
	return ticket, directives, nil
}

// Reply resolves the ticket and yields a directive delivering text to its
// owner. Delivery failures are the transport's to report back to the actor.
func (s *TicketService) Reply(ctx context.Context, ticketID int64, actorID, text string, now time.Time) (*domain.Ticket, []transport.Directive, error) {
	if !s.admin.IsAdmin(actorID) {
		return nil, nil, apperrors.NewUnauthorized("administrator required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, apperrors.NewValidationError("reply text required", nil)
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.resolveTicket(ctx, ticket, actorID, "reply"); err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.Event{
		Type:     events.EventReplySent,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload: events.ReplySentPayload{
			RecipientID: ticket.OwnerID,
			BodyPreview: stringPreview(text, 120),
		},
	})

	directives := []transport.Directive{newDirective(transport.Directive{
		Kind:        transport.DirectiveDeliverReply,
		RecipientID: ticket.OwnerID,
		TicketID:    ticket.ID,
		Text:        text,
	}, now)}
	return ticket, directives, nil
}

// Details returns the ticket together with its owner.
func (s *TicketService) Details(ctx context.Context, ticketID int64) (*domain.Ticket, *domain.User, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	owner, err := s.store.GetUser(ctx, ticket.OwnerID)
	if err != nil {
		// owner record may predate user tracking; fall back to the bare id
		owner = &domain.User{ID: ticket.OwnerID}
	}
	return ticket, owner, nil
}

// OpenTickets lists open tickets, most recent first.
func (s *TicketService) OpenTickets(ctx context.Context, limit int) ([]domain.Ticket, error) {
	return s.store.ListTickets(ctx, store.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusOpen},
		Limit:    limit,
	})
}

// SystemStats aggregates the admin panel counters.
func (s *TicketService) SystemStats(ctx context.Context) (*SystemStats, error) {
	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	users, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	bans, err := s.store.CountBans(ctx)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return &SystemStats{
		TotalUsers:      users,
		TotalReports:    stats.TotalReports,
		ResolvedReports: stats.ResolvedReports,
		BannedUsers:     bans,
	}, nil
}

// RecentUsers lists users by last activity.
func (s *TicketService) RecentUsers(ctx context.Context, limit int) ([]domain.User, error) {
	return s.store.ListRecentUsers(ctx, limit)
}

// UserStats returns the per-user activity view.
func (s *TicketService) UserStats(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	banned, err := s.store.IsBanned(ctx, userID)
	if err == nil {
		user.Banned = banned
	}
	return user, nil
}

func (s *TicketService) getTicket(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return ticket, nil
}

// resolveTicket moves an open ticket to Resolved. The store bumps the
// resolved counter in the same operation, and already-resolved tickets pass
// through untouched, which keeps resolved_reports from ever exceeding
// total_reports.
func (s *TicketService) resolveTicket(ctx context.Context, ticket *domain.Ticket, actorID, via string) error {
	if ticket.Resolved() {
		return nil
	}
	changed, err := s.store.ResolveTicket(ctx, ticket.ID)
	if err != nil {
		if err == store.ErrNotFound {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
		}
		return apperrors.NewStoreUnavailable(err)
	}
	ticket.Status = domain.TicketStatusResolved
	if !changed {
		return nil
	}

	s.metrics.TicketResolved()
	s.publish(ctx, events.Event{
		Type:     events.EventTicketResolved,
		TicketID: ticket.ID,
		ActorID:  actorID,
		Payload:  events.TicketResolvedPayload{OwnerID: ticket.OwnerID, Via: via},
	})
	return nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func newDirective(d transport.Directive, now time.Time) transport.Directive {
	d.ID = uuid.NewString()
	d.CreatedAt = now
	return d
}

// stringPreview truncates on rune boundaries so multi-byte text never turns
// into invalid UTF-8 in event payloads.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
