package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	applog "menusync/internal/log"
)

// AdminTokenHeader carries the plaintext token checked against ADMIN_TOKEN_HASH.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken guards mutating endpoints. An empty hash disables them.
func RequireAdminToken(hash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := strings.TrimSpace(c.Get(AdminTokenHeader))
		if hash == "" || tok == "" {
			applog.Security(c, "access.denied.admin", map[string]any{"reason": "missing"})
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(tok)); err != nil {
			applog.Security(c, "access.denied.admin", map[string]any{"reason": "mismatch"})
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
		}
		return c.Next()
	}
}
