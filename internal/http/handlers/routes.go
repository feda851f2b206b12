package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	applog "menusync/internal/log"
)

type AppOptions struct {
	TemplatesDir string
	AccessLog    bool
	// CleanupMax bounds cleanup calls per client per minute; 0 means 5.
	CleanupMax int
}

// ErrorHandler answers with a fixed message; the cause is only logged.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	msg := "Something went wrong. Please try again."
	if code < fiber.StatusInternalServerError {
		msg = "bad request"
		if fe != nil {
			msg = fe.Message
		}
	} else {
		applog.Error(c, "server.error", err, nil)
	}
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(code).JSON(fiber.Map{"error": msg})
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}

func NewApp(d *Deps, opts AppOptions) *fiber.App {
	engine := html.New(opts.TemplatesDir, ".html")
	app := fiber.New(fiber.Config{Views: engine, ErrorHandler: ErrorHandler})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	app.Use(recover.New())
	app.Use(requestid.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	Register(app, d, opts)
	return app
}

func Register(app *fiber.App, d *Deps, opts AppOptions) {
	n := opts.CleanupMax
	if n <= 0 {
		n = 5
	}
	cleanupLimiter := limiter.New(limiter.Config{
		Max:        n,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|cleanup"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.cleanup.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/", d.DashboardHandler.Home)

	api := app.Group("/api/v1/envs/:env")
	api.Get("/summary", d.AdminHandler.Summary)
	api.Get("/snapshot", d.AdminHandler.Snapshot)
	api.Get("/sync-log", d.AdminHandler.SyncLog)
	api.Get("/duplicates", d.AdminHandler.Duplicates)
	api.Post("/cleanup", cleanupLimiter, RequireAdminToken(d.AdminTokenHash), d.AdminHandler.Cleanup)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "not found")
	})
}
