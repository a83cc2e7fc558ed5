package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bozorly/bozorly_api/internal/auth"
)

// RegisterAuthRoutes wires registration and login endpoints.
func RegisterAuthRoutes(router fiber.Router, h *auth.Handler, sessionAuth fiber.Handler) {
	grp := router.Group("/auth")
	grp.Post("/register", h.Register)
	grp.Post("/login/method", h.LoginMethod)
	grp.Post("/login", h.Login)
	grp.Post("/logout", sessionAuth, h.Logout)
}
