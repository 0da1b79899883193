package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gate/internal/api/dto"
	"github.com/spec-kit/auth-gate/internal/auth"
)

// UsersHandler exposes the authenticated caller.
type UsersHandler struct{}

// NewUsersHandler constructs handler.
func NewUsersHandler() *UsersHandler {
	return &UsersHandler{}
}

// Me handles GET /api/users/me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	authentication := auth.AuthenticationFrom(c)
	if authentication == nil {
		return auth.Reject(c.Path(), auth.OutcomeRejectUnauthenticated)
	}

	identity := authentication.Identity
	return c.JSON(dto.IdentityResponse{
		ID:       identity.ID,
		Username: identity.Username,
		Email:    identity.Email,
		Roles:    roleNames(authentication.Roles),
	})
}
