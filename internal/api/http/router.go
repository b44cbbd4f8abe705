package http

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/siberialabel/telegram-support-bot/internal/api/http/handlers"
	"github.com/siberialabel/telegram-support-bot/internal/auth"
	"github.com/siberialabel/telegram-support-bot/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Events          *handlers.EventsHandler
	Admin           *handlers.AdminHandler
	AdminMiddleware *auth.AdminMiddleware
	Metrics         *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	app.Post("/events", cfg.Events.Handle)

	authGroup := app.Group("/auth")
	authGroup.Post("/admin/login", cfg.Admin.Login)

	admin := app.Group("/admin", cfg.AdminMiddleware.Handle)
	admin.Get("/tickets", cfg.Admin.ListTickets)
	admin.Get("/tickets/:id", cfg.Admin.GetTicket)
	admin.Post("/tickets/:id/resolve", cfg.Admin.ResolveTicket)
	admin.Post("/tickets/:id/ban", cfg.Admin.BanOwner)
	admin.Post("/tickets/:id/reply", cfg.Admin.ReplyTicket)
	admin.Get("/stats", cfg.Admin.Stats)
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Get("/settings", cfg.Admin.GetSettings)
	admin.Post("/settings/:name/toggle", cfg.Admin.ToggleSetting)
}
