package handlers

import (
	"menusync/internal/config"
	"menusync/internal/repos"
	"menusync/internal/services"
)

type Deps struct {
	AdminHandler     *AdminHandler
	DashboardHandler *DashboardHandler
	AdminTokenHash   string
}

func NewDeps(cache *repos.Cache, dups *services.DuplicateService, cfg config.Config) *Deps {
	return &Deps{
		AdminHandler:     &AdminHandler{Cache: cache, Dups: dups},
		DashboardHandler: &DashboardHandler{Cache: cache, Cfg: cfg},
		AdminTokenHash:   cfg.AdminTokenHash,
	}
}
