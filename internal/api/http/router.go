package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/visit-service/internal/api/http/handlers"
	"github.com/spec-kit/visit-service/internal/auth"
	"github.com/spec-kit/visit-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Appointments   *handlers.AppointmentsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	schedule := auth.RequireRole(auth.RoleOfficer, auth.RoleAdmin)

	api.Get("/appointments", cfg.Appointments.List)
	api.Post("/appointments", schedule, cfg.Appointments.Create)
	api.Get("/appointments/:id", cfg.Appointments.Get)
	api.Put("/appointments/:id", schedule, cfg.Appointments.Update)
	api.Post("/appointments/:id/cancel", schedule, cfg.Appointments.Cancel)

	api.Get("/custodied-persons/:id/appointments", cfg.Appointments.ListForCustodiedPerson)
	api.Get("/visitors/:id/appointments", cfg.Appointments.ListForVisitor)
}
