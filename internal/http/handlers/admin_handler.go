package handlers

import (
	"github.com/gofiber/fiber/v2"

	"menusync/internal/domain"
	"menusync/internal/errs"
	applog "menusync/internal/log"
	"menusync/internal/repos"
	"menusync/internal/services"
	"menusync/internal/validate"
)

type AdminHandler struct {
	Cache *repos.Cache
	Dups  *services.DuplicateService
}

// envParam reads :env; on failure the 400 response has already been written.
func envParam(c *fiber.Ctx) (domain.Environment, bool) {
	env, ok := validate.Environment(c.Params("env"))
	if !ok {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown environment"})
		return "", false
	}
	return env, true
}

// fail maps an error to a status and a fixed message. Details go to the log only.
func fail(c *fiber.Ctx, action string, err error, env domain.Environment) error {
	applog.Error(c, action, err, map[string]any{"env": env})
	switch {
	case errs.IsDuplicatesPresent(err):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "duplicate names present; run cleanup first"})
	case errs.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errs.IsBackend(err):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "remote catalog request failed"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

// GET /api/v1/envs/:env/summary
func (h *AdminHandler) Summary(c *fiber.Ctx) error {
	env, ok := envParam(c)
	if !ok {
		return nil
	}
	s, err := h.Cache.Summary(c.UserContext(), env)
	if err != nil {
		return fail(c, "admin.summary.fail", err, env)
	}
	return c.JSON(s)
}

// GET /api/v1/envs/:env/snapshot
func (h *AdminHandler) Snapshot(c *fiber.Ctx) error {
	env, ok := envParam(c)
	if !ok {
		return nil
	}
	s, err := h.Cache.Snapshot(c.UserContext(), env)
	if err != nil {
		return fail(c, "admin.snapshot.fail", err, env)
	}
	return c.JSON(s)
}

// GET /api/v1/envs/:env/sync-log?limit=N
func (h *AdminHandler) SyncLog(c *fiber.Ctx) error {
	env, ok := envParam(c)
	if !ok {
		return nil
	}
	rows, err := h.Cache.SyncLog.Recent(c.UserContext(), env, validate.Limit(c.Query("limit"), 50, 500))
	if err != nil {
		return fail(c, "admin.synclog.fail", err, env)
	}
	if rows == nil {
		rows = []domain.SyncLogEntry{}
	}
	return c.JSON(fiber.Map{"environment": env, "entries": rows})
}

// GET /api/v1/envs/:env/duplicates scans the remote catalog.
func (h *AdminHandler) Duplicates(c *fiber.Ctx) error {
	env, ok := envParam(c)
	if !ok {
		return nil
	}
	d, err := h.Dups.FindDuplicates(c.UserContext(), env)
	if err != nil {
		return fail(c, "admin.duplicates.fail", err, env)
	}
	return c.JSON(fiber.Map{"environment": env, "count": d.Count(), "duplicates": d})
}

// POST /api/v1/envs/:env/cleanup
func (h *AdminHandler) Cleanup(c *fiber.Ctx) error {
	env, ok := envParam(c)
	if !ok {
		return nil
	}
	res, err := h.Dups.Cleanup(c.UserContext(), env)
	if err != nil {
		if errs.IsBackend(err) && len(res.Groups) > 0 {
			applog.Error(c, "admin.cleanup.partial", err, map[string]any{"env": env, "deleted": res.DeletedCount()})
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "cleanup incomplete", "result": res})
		}
		return fail(c, "admin.cleanup.fail", err, env)
	}
	applog.Audit(c, "admin.cleanup", map[string]any{"env": env, "groups": len(res.Groups), "deleted": res.DeletedCount()})
	return c.JSON(res)
}
