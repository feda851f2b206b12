package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if rid, ok := c.Locals("requestid").(string); ok {
		data["RequestID"] = rid
	}
	data["Now"] = time.Now().UTC().Format(time.RFC3339)
	return c.Render(tmpl, data)
}
