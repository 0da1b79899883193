package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gate/internal/api/http/handlers"
	"github.com/spec-kit/auth-gate/internal/auth"
	"github.com/spec-kit/auth-gate/internal/domain"
	"github.com/spec-kit/auth-gate/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Content       *handlers.ContentHandler
	Users         *handlers.UsersHandler
	Authenticator *auth.Authenticator
	Policy        *auth.Policy
	Metrics       *observability.Metrics
}

// DefaultRules is the access policy for the routes registered by RegisterRoutes.
// Paths not listed require an authenticated caller.
func DefaultRules() []auth.Rule {
	return []auth.Rule{
		{Pattern: "/health/**", Requirement: auth.Public()},
		{Pattern: "/metrics", Requirement: auth.Public()},
		{Pattern: "/api/auth/**", Requirement: auth.Public()},
		{Pattern: "/api/test/all", Requirement: auth.Public()},
		{Pattern: "/api/test/user", Requirement: auth.AnyRole(domain.RoleUser, domain.RoleModerator, domain.RoleAdmin)},
		{Pattern: "/api/test/mod", Requirement: auth.AnyRole(domain.RoleModerator)},
		{Pattern: "/api/test/admin", Requirement: auth.AnyRole(domain.RoleAdmin)},
		{Pattern: "/api/test/**", Requirement: auth.Public()},
	}
}

// RegisterRoutes installs the authentication and policy stages, then wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.Authenticator.Handle, cfg.Policy.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Handler())

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/signin", cfg.Auth.Signin)

	content := api.Group("/test")
	content.Get("/all", cfg.Content.All)
	content.Get("/user", cfg.Content.User)
	content.Get("/mod", cfg.Content.Moderator)
	content.Get("/admin", cfg.Content.Admin)

	api.Get("/users/me", cfg.Users.Me)
}
