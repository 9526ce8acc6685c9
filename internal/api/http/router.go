package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-assistant/internal/api/http/handlers"
	"github.com/spec-kit/ticket-assistant/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health            *handlers.HealthHandler
	Users             *handlers.UsersHandler
	Tickets           *handlers.TicketsHandler
	ModeratorRequests *handlers.ModeratorRequestsHandler
	AuthMiddleware    *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api")
	api.Get("/health", cfg.Health.Status)

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", cfg.Users.Signup)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/logout", cfg.Users.Logout)

	account := authGroup.Group("", cfg.AuthMiddleware.Handle)
	account.Get("/me", cfg.Users.Me)
	account.Patch("/status", cfg.Users.UpdatePresence)
	account.Get("/moderators/:id/skills", auth.RequireStaff(), cfg.Users.ModeratorSkills)
	account.Get("/users", auth.RequireAdmin(), cfg.Users.ListUsers)
	account.Post("/update-user", auth.RequireAdmin(), cfg.Users.UpdateUser)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/recent", auth.RequireStaff(), cfg.Tickets.RecentTickets)
	tickets.Get("/counts", cfg.Tickets.Counts)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/comments", cfg.Tickets.ListComments)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)

	modRequests := api.Group("/mod-requests", cfg.AuthMiddleware.Handle)
	modRequests.Post("/", cfg.ModeratorRequests.Create)
	modRequests.Get("/", cfg.ModeratorRequests.ListPending)
	modRequests.Get("/me", cfg.ModeratorRequests.Mine)
	modRequests.Post("/:id/decide", cfg.ModeratorRequests.Decide)
}
