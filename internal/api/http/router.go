package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/clickcoin/user-directory/internal/api/http/handlers"
	"github.com/clickcoin/user-directory/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/signin", cfg.Auth.Signin)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	users := api.Group("/users")
	users.Post("/", cfg.Users.Create)
	users.Get("/", cfg.Users.List)
	users.Get("/published", cfg.Users.ListPublished)
	users.Get("/:id", cfg.Users.Get)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)
	users.Delete("/", cfg.Users.DeleteAll)
}
