package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Dashboard      *handlers.DashboardHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimit      fiber.Handler
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	limit := cfg.RateLimit
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}
	authenticated := []fiber.Handler{cfg.AuthMiddleware.Handle, limit}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", limit, cfg.Users.Register)
	authGroup.Post("/login", limit, cfg.Users.Login)
	authGroup.Get("/me", append(authenticated, cfg.Users.Me)...)

	tickets := app.Group("/tickets", authenticated...)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/notes", cfg.Tickets.AppendNote)
	tickets.Patch("/:id/status", cfg.Tickets.SetStatus)

	app.Get("/dashboard", append(authenticated,
		auth.RequirePermission(auth.ActionViewDashboard),
		cfg.Dashboard.Dashboard)...)

	users := app.Group("/users", append(authenticated, auth.RequirePermission(auth.ActionManageRoles))...)
	users.Get("/", cfg.Users.List)
	users.Get("/:id", cfg.Users.Get)
	users.Patch("/:id/role", cfg.Users.UpdateRole)
}
