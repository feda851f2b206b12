package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"menusync/internal/domain"
	"menusync/internal/repos"
)

const (
	CategoryIDsFile = "category_ids.json"
	ItemIDsFile     = "menu_item_ids.json"
)

type ExportService struct {
	Cache *repos.Cache
}

func NewExportService(cache *repos.Cache) *ExportService { return &ExportService{Cache: cache} }

// WriteJSON writes the name -> remote id maps for env into dir and returns
// the written paths.
func (s *ExportService) WriteJSON(ctx context.Context, env domain.Environment, dir string) ([]string, error) {
	snap, err := s.Cache.Snapshot(ctx, env)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	files := []struct {
		name string
		m    map[string]string
	}{{CategoryIDsFile, snap.Categories}, {ItemIDsFile, snap.Items}}
	for _, f := range files {
		b, err := json.MarshalIndent(f.m, "", "  ")
		if err != nil {
			return nil, err
		}
		p := filepath.Join(dir, f.name)
		if err := os.WriteFile(p, append(b, '\n'), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}
