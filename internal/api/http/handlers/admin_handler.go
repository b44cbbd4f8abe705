package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/siberialabel/telegram-support-bot/internal/api/dto"
	"github.com/siberialabel/telegram-support-bot/internal/auth"
	"github.com/siberialabel/telegram-support-bot/internal/domain"
	"github.com/siberialabel/telegram-support-bot/internal/engine"
	"github.com/siberialabel/telegram-support-bot/internal/transport"
	apperrors "github.com/siberialabel/telegram-support-bot/pkg/util"
)

// AdminHandler exposes the admin console: login, ticket actions, listings
// and settings toggles.
type AdminHandler struct {
	engine       *engine.Engine
	tokens       *auth.TokenManager
	deliverer    transport.Deliverer
	adminID      string
	passwordHash string
}

// NewAdminHandler constructs handler.
func NewAdminHandler(eng *engine.Engine, tokens *auth.TokenManager, deliverer transport.Deliverer, adminID, passwordHash string) *AdminHandler {
	return &AdminHandler{
		engine:       eng,
		tokens:       tokens,
		deliverer:    deliverer,
		adminID:      adminID,
		passwordHash: passwordHash,
	}
}

// Login POST /auth/admin/login.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if h.passwordHash == "" {
		return apperrors.NewUnauthorized("admin login disabled")
	}
	if err := auth.ComparePassword(h.passwordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(h.adminID)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.AdminLoginResponse{Token: token, ExpiresAt: expiresAt}})
}

// ListTickets GET /admin/tickets.
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 20)
	tickets, err := h.engine.Tickets().OpenTickets(c.UserContext(), limit)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.TicketFromDomain(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /admin/tickets/:id.
func (h *AdminHandler) GetTicket(c *fiber.Ctx) error {
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, owner, err := h.engine.Tickets().Details(c.UserContext(), ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		Ticket: dto.TicketFromDomain(ticket),
		Owner:  dto.UserFromDomain(owner),
	}})
}

// ResolveTicket POST /admin/tickets/:id/resolve.
func (h *AdminHandler) ResolveTicket(c *fiber.Ctx) error {
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.engine.Tickets().Resolve(c.UserContext(), ticketID, h.actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// BanOwner POST /admin/tickets/:id/ban.
func (h *AdminHandler) BanOwner(c *fiber.Ctx) error {
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, directives, err := h.engine.Tickets().Ban(c.UserContext(), ticketID, h.actorID(c), time.Now())
	if err != nil {
		return err
	}
	h.deliver(c, directives)
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// ReplyTicket POST /admin/tickets/:id/reply. Delivery runs synchronously so
// a failure is surfaced to the acting administrator, not swallowed.
func (h *AdminHandler) ReplyTicket(c *fiber.Ctx) error {
	ticketID, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.NewValidationError("text required", nil)
	}

	ticket, directives, err := h.engine.Tickets().Reply(c.UserContext(), ticketID, h.actorID(c), req.Text, time.Now())
	if err != nil {
		return err
	}
	for _, d := range directives {
		if err := h.deliverer.Deliver(c.UserContext(), d); err != nil {
			return apperrors.NewDeliveryFailed(d.RecipientID, err)
		}
	}
	return c.JSON(fiber.Map{"data": dto.TicketFromDomain(ticket)})
}

// Stats GET /admin/stats.
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.engine.Tickets().SystemStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StatsResponse{
		TotalUsers:      stats.TotalUsers,
		TotalReports:    stats.TotalReports,
		ResolvedReports: stats.ResolvedReports,
		BannedUsers:     stats.BannedUsers,
	}})
}

// ListUsers GET /admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	limit := parseInt(c.Query("limit"), 20)
	users, err := h.engine.Tickets().RecentUsers(c.UserContext(), limit)
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.UserFromDomain(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetSettings GET /admin/settings.
func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.engine.Admin().Settings(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SettingsResponse{
		AutoRespond:    settings.AutoRespond,
		NotifyNewUsers: settings.NotifyNewUsers,
	}})
}

// ToggleSetting POST /admin/settings/:name/toggle.
func (h *AdminHandler) ToggleSetting(c *fiber.Ctx) error {
	name := domain.SettingName(c.Params("name"))
	settings, err := h.engine.Admin().ToggleSetting(c.UserContext(), name, h.actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SettingsResponse{
		AutoRespond:    settings.AutoRespond,
		NotifyNewUsers: settings.NotifyNewUsers,
	}})
}

func (h *AdminHandler) actorID(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return principal.AdminID
	}
	return ""
}

func (h *AdminHandler) deliver(c *fiber.Ctx, directives []transport.Directive) {
	for _, d := range directives {
		// a failed courtesy notification must not fail the admin action
		_ = h.deliverer.Deliver(c.UserContext(), d)
	}
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", nil)
	}
	return id, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
