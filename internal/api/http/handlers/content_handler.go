package handlers

import "github.com/gofiber/fiber/v2"

// ContentHandler serves the per-role demo boards. Access control happens in
// the policy stage, so each handler only renders.
type ContentHandler struct{}

// NewContentHandler constructs handler.
func NewContentHandler() *ContentHandler {
	return &ContentHandler{}
}

// All handles GET /api/test/all.
func (h *ContentHandler) All(c *fiber.Ctx) error {
	return c.SendString("Public Content.")
}

// User handles GET /api/test/user.
func (h *ContentHandler) User(c *fiber.Ctx) error {
	return c.SendString("User Content.")
}

// Moderator handles GET /api/test/mod.
func (h *ContentHandler) Moderator(c *fiber.Ctx) error {
	return c.SendString("Moderator Board.")
}

// Admin handles GET /api/test/admin.
func (h *ContentHandler) Admin(c *fiber.Ctx) error {
	return c.SendString("Admin Board.")
}
