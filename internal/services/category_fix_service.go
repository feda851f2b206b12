package services

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"menusync/internal/backend"
	"menusync/internal/domain"
	"menusync/internal/errs"
	applog "menusync/internal/log"
	"menusync/internal/repos"
)

// CategoryFixService moves items to other categories, echoing each item's
// full payload so only the category reference changes.
type CategoryFixService struct {
	Backends backend.Resolver
	Cache    *repos.Cache
}

func NewCategoryFixService(b backend.Resolver, cache *repos.Cache) *CategoryFixService {
	return &CategoryFixService{Backends: b, Cache: cache}
}

type FixReport struct {
	Updated   []string `json:"updated"`
	Unchanged []string `json:"unchanged"`
}

// Reassign applies item name -> category name. Names must resolve to exactly
// one remote entity, so duplicates block the fix like they block creation.
func (s *CategoryFixService) Reassign(ctx context.Context, env domain.Environment, assignments map[string]string) (FixReport, error) {
	var rep FixReport
	cat, err := s.Backends.For(env)
	if err != nil {
		return rep, err
	}
	idx, err := scanEnv(ctx, cat, s.Cache, env)
	if err != nil {
		return rep, err
	}
	if d := idx.duplicates(); !d.Empty() {
		return rep, &errs.DuplicatesPresentError{Environment: env.String(), Items: d.Items, Categories: d.Categories}
	}

	names := make([]string, 0, len(assignments))
	for n := range assignments {
		names = append(names, n)
	}
	sort.Strings(names)

	var batch []backend.Object
	for _, itemName := range names {
		items := idx.byName(domain.EntityItem, itemName)
		if len(items) == 0 {
			return rep, errs.NewNotFoundError("item", itemName)
		}
		cats := idx.byName(domain.EntityCategory, assignments[itemName])
		if len(cats) == 0 {
			return rep, errs.NewNotFoundError("category", assignments[itemName])
		}
		item := items[0]
		if item.ItemData.CategoryID == cats[0].ID {
			rep.Unchanged = append(rep.Unchanged, itemName)
			continue
		}
		item.ItemData.CategoryID = cats[0].ID
		batch = append(batch, item)
	}
	if len(batch) == 0 {
		return rep, nil
	}

	objs, _, err := cat.BatchUpsert(ctx, uuid.NewString(), batch)
	if err != nil {
		return rep, err
	}
	for _, o := range objs {
		if o.Type != backend.TypeItem {
			continue
		}
		rec := itemRecord(env, o)
		if prev, err := s.Cache.Items.GetByName(ctx, env, o.Name()); err == nil {
			rec.SourceURL = prev.SourceURL
		}
		if _, err := s.Cache.UpsertItem(ctx, rec); err != nil {
			return rep, err
		}
		rep.Updated = append(rep.Updated, o.Name())
		applog.Audit(nil, "category.reassign", map[string]any{"env": env, "name": o.Name(), "category_id": o.CategoryID()})
	}
	return rep, nil
}
