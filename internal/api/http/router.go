package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/case-service/internal/api/http/handlers"
	"github.com/spec-kit/case-service/internal/auth"
	"github.com/spec-kit/case-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Cases          *handlers.CasesHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	cases := api.Group("/cases")
	cases.Post("/", cfg.Cases.CreateCase)
	cases.Get("/", cfg.Cases.ListCases)
	cases.Get("/:id", cfg.Cases.GetCase)
	cases.Patch("/:id", cfg.Cases.UpdateCase)
	cases.Get("/:id/transitions", cfg.Cases.AvailableTransitions)
	cases.Post("/:id/transitions", cfg.Cases.Transition)
	cases.Post("/:id/assign", auth.RequireRole(domain.RoleManager, domain.RoleAdmin), cfg.Cases.Assign)
	cases.Get("/:id/audit", cfg.Cases.AuditTrail)

	api.Get("/dashboard/sla", auth.RequireRole(domain.RoleAnalyst, domain.RoleManager, domain.RoleAdmin), cfg.Cases.SLADashboard)

	api.Get("/users/me", cfg.Users.Me)
	api.Post("/users", auth.RequireRole(domain.RoleAdmin), cfg.Users.CreateUser)
}
