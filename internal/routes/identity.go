package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bozorly/bozorly_api/internal/identity"
)

// RegisterIdentityRoutes wires profile endpoints onto an authenticated group.
func RegisterIdentityRoutes(router fiber.Router, h *identity.Handler) {
	router.Get("/me", h.Me)
	router.Patch("/me/profile", h.UpdateProfile)
}
