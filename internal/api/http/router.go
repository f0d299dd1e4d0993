package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/repair-service/internal/api/http/handlers"
	"github.com/spec-kit/repair-service/internal/auth"
	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Escalations    *handlers.EscalationHandler
	Notifications  *handlers.NotificationsHandler
	Statistics     *handlers.StatisticsHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))

	app.Post("/auth/login", cfg.Users.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Post("/auth/password/change", cfg.Users.ChangePassword)

	protected.Get("/users/me", cfg.Users.Me)
	protected.Get("/users", cfg.Users.List)
	protected.Post("/users", cfg.Users.Register)

	tickets := protected.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", auth.RequirePermission(domain.PermCreateRequest), cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", auth.RequirePermission(domain.PermEditRequest), cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequirePermission(domain.PermDeleteRequest), cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/status", cfg.Tickets.ChangeStatus)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/parts", cfg.Tickets.ListParts)
	tickets.Post("/:id/parts", auth.RequirePermission(domain.PermEditRequest), cfg.Tickets.AddPart)
	tickets.Get("/:id/history", cfg.Escalations.History)
	tickets.Post("/:id/extend", auth.RequirePermission(domain.PermQualityControl), cfg.Escalations.ExtendDeadline)
	tickets.Post("/:id/assign", auth.RequirePermission(domain.PermAssignMaster, domain.PermQualityControl), cfg.Escalations.AssignMaster)
	tickets.Post("/:id/notes", auth.RequirePermission(domain.PermQualityControl), cfg.Escalations.AddNote)

	protected.Get("/escalations/overdue", auth.RequirePermission(domain.PermQualityControl, domain.PermViewStatistics), cfg.Escalations.Overdue)

	protected.Post("/parts", cfg.Tickets.RegisterPart)
	protected.Get("/parts/low-stock", auth.RequirePermission(domain.PermViewStatistics), cfg.Tickets.LowStock)

	protected.Get("/statistics", auth.RequirePermission(domain.PermViewStatistics), cfg.Statistics.Summary)

	protected.Get("/notifications", cfg.Notifications.List)
	protected.Get("/notifications/unread-count", cfg.Notifications.UnreadCount)
	protected.Post("/notifications/:id/read", cfg.Notifications.MarkRead)
}
