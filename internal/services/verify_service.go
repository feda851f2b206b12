package services

import (
	"context"
	"fmt"
	"sort"

	"menusync/internal/backend"
	"menusync/internal/domain"
	applog "menusync/internal/log"
	"menusync/internal/manifest"
	"menusync/internal/repos"
	"menusync/internal/stores"
	"menusync/internal/validate"
)

// VerifyReport compares a manifest with what the environment holds.
// WrongCategory maps item name to the category the manifest expects.
type VerifyReport struct {
	Environment       domain.Environment `json:"environment"`
	Locations         int                `json:"locations"`
	Categories        int                `json:"categories"`
	Items             int                `json:"items"`
	MissingStores     []string           `json:"missing_stores,omitempty"`
	MissingCategories []string           `json:"missing_categories,omitempty"`
	MissingItems      []string           `json:"missing_items,omitempty"`
	WrongCategory     map[string]string  `json:"wrong_category,omitempty"`
	Duplicates        domain.Duplicates  `json:"duplicates"`
}

func (r VerifyReport) OK() bool {
	return len(r.MissingStores) == 0 && len(r.MissingCategories) == 0 &&
		len(r.MissingItems) == 0 && len(r.WrongCategory) == 0 && r.Duplicates.Empty()
}

// VerifyService checks credentials and manifest coverage without writing
// anything remotely.
type VerifyService struct {
	Backends backend.Resolver
	Cache    *repos.Cache
}

func NewVerifyService(b backend.Resolver, cache *repos.Cache) *VerifyService {
	return &VerifyService{Backends: b, Cache: cache}
}

// Verify lists locations first, so a rejected token fails before any
// catalog read. A store counts as present with or without the test suffix.
func (s *VerifyService) Verify(ctx context.Context, env domain.Environment, m *manifest.Manifest) (VerifyReport, error) {
	rep := VerifyReport{Environment: env}
	cat, err := s.Backends.For(env)
	if err != nil {
		return rep, err
	}
	locs, err := cat.ListLocations(ctx)
	if err != nil {
		return rep, fmt.Errorf("authenticate: %w", err)
	}
	rep.Locations = len(locs)
	have := map[string]bool{}
	for _, l := range locs {
		have[l.Name] = true
	}
	for _, st := range m.Stores {
		plain := stores.FormatName(st.Store(), false)
		if !have[plain] && !have[stores.FormatName(st.Store(), true)] {
			rep.MissingStores = append(rep.MissingStores, plain)
		}
	}

	idx, err := scanEnv(ctx, cat, s.Cache, env)
	if err != nil {
		return rep, err
	}
	rep.Categories = len(idx.categories)
	rep.Items = len(idx.items)
	rep.Duplicates = idx.duplicates()

	for _, c := range m.Categories {
		name, ok := validate.Name(c.Name)
		if !ok || len(idx.byName(domain.EntityCategory, name)) == 0 {
			rep.MissingCategories = append(rep.MissingCategories, c.Name)
		}
	}
	for _, it := range m.Items {
		name, ok := validate.Name(it.Name)
		if !ok {
			rep.MissingItems = append(rep.MissingItems, it.Name)
			continue
		}
		found := idx.byName(domain.EntityItem, name)
		if len(found) == 0 {
			rep.MissingItems = append(rep.MissingItems, it.Name)
			continue
		}
		if it.Category == "" {
			continue
		}
		if !inCategory(idx, found[0].CategoryID(), it.Category) {
			if rep.WrongCategory == nil {
				rep.WrongCategory = map[string]string{}
			}
			rep.WrongCategory[it.Name] = it.Category
		}
	}
	sort.Strings(rep.MissingStores)

	applog.Audit(nil, "catalog.verify", map[string]any{
		"env": env, "ok": rep.OK(), "locations": rep.Locations,
		"missing_categories": len(rep.MissingCategories), "missing_items": len(rep.MissingItems),
		"duplicates": rep.Duplicates.Count(),
	})
	return rep, nil
}

func inCategory(idx *catalogIndex, categoryID, want string) bool {
	name, ok := validate.Name(want)
	if !ok || categoryID == "" {
		return false
	}
	for _, c := range idx.byName(domain.EntityCategory, name) {
		if c.ID == categoryID {
			return true
		}
	}
	return false
}
