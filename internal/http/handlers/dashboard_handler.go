package handlers

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"menusync/internal/config"
	"menusync/internal/domain"
	applog "menusync/internal/log"
	"menusync/internal/repos"
)

type DashboardHandler struct {
	Cache *repos.Cache
	Cfg   config.Config
}

type envPanel struct {
	Label     string
	Env       domain.Environment
	Summary   domain.Summary
	Recent    []domain.SyncLogEntry
	Dashboard string
	Token     string
}

// label title-cases an environment name. A Caser is not safe for concurrent use.
func label(env domain.Environment) string {
	return cases.Title(language.English).String(env.String())
}

// GET /
func (h *DashboardHandler) Home(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var panels []envPanel
	for _, env := range domain.Environments {
		s, err := h.Cache.Summary(ctx, env)
		if err != nil {
			applog.Error(c, "dashboard.summary.fail", err, map[string]any{"env": env})
			return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load summary"})
		}
		recent, err := h.Cache.SyncLog.Recent(ctx, env, 10)
		if err != nil {
			applog.Error(c, "dashboard.synclog.fail", err, map[string]any{"env": env})
			return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load sync log"})
		}
		panels = append(panels, envPanel{
			Label:     label(env),
			Env:       env,
			Summary:   s,
			Recent:    recent,
			Dashboard: h.Cfg.DashboardURL(env, "items/library"),
			Token:     h.Cfg.MaskedToken(env),
		})
	}
	return render(c, "dashboard", fiber.Map{"Panels": panels, "Default": label(h.Cfg.Default)})
}
