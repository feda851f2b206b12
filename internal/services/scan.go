package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"menusync/internal/backend"
	"menusync/internal/domain"
	"menusync/internal/repos"
)

// catalogIndex is one read of every live category and item in an environment.
type catalogIndex struct {
	categories []backend.Object
	items      []backend.Object
}

// scanCatalog reads the environment. known lists category ids seen before
// (usually the cache), which the item-derived fallback fetches directly so
// categories no item points to are still found.
func scanCatalog(ctx context.Context, cat backend.Catalog, known []string) (*catalogIndex, error) {
	items, err := cat.ListObjects(ctx, backend.TypeItem)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	cats, err := cat.ListObjects(ctx, backend.TypeCategory)
	if errors.Is(err, backend.ErrListingUnsupported) {
		cats, err = deriveCategories(ctx, cat, known)
	}
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return &catalogIndex{categories: live(cats, backend.TypeCategory), items: live(items, backend.TypeItem)}, nil
}

// scanEnv scans env with the cached category ids as the fallback hint.
func scanEnv(ctx context.Context, cat backend.Catalog, cache *repos.Cache, env domain.Environment) (*catalogIndex, error) {
	known, err := knownCategoryIDs(ctx, cache, env)
	if err != nil {
		return nil, err
	}
	return scanCatalog(ctx, cat, known)
}

// knownCategoryIDs returns the remote ids the cache holds for env.
func knownCategoryIDs(ctx context.Context, cache *repos.Cache, env domain.Environment) ([]string, error) {
	if cache == nil {
		return nil, nil
	}
	cats, err := cache.Categories.List(ctx, env)
	if err != nil {
		return nil, fmt.Errorf("cached categories: %w", err)
	}
	ids := make([]string, 0, len(cats))
	for _, c := range cats {
		ids = append(ids, c.RemoteID)
	}
	return ids, nil
}

// deriveCategories finds categories through the items that reference them:
// search items, batch get them with related objects, then fetch every
// referenced or known category the related set did not include.
func deriveCategories(ctx context.Context, cat backend.Catalog, known []string) ([]backend.Object, error) {
	summaries, err := cat.SearchItems(ctx)
	if err != nil {
		return nil, err
	}
	var res backend.BatchGetResult
	if len(summaries) > 0 {
		ids := make([]string, 0, len(summaries))
		for _, s := range summaries {
			ids = append(ids, s.ID)
		}
		if res, err = cat.BatchGet(ctx, ids); err != nil {
			return nil, err
		}
	}

	found := map[string]backend.Object{}
	for _, o := range append(res.Objects, res.RelatedObjects...) {
		if o.Type == backend.TypeCategory {
			found[o.ID] = o
		}
	}
	refs := append([]string(nil), known...)
	for _, o := range res.Objects {
		refs = append(refs, o.CategoryID())
	}
	var missing []string
	seen := map[string]bool{}
	for _, ref := range refs {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		if _, ok := found[ref]; !ok {
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 {
		more, err := cat.BatchGet(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, o := range more.Objects {
			if o.Type == backend.TypeCategory {
				found[o.ID] = o
			}
		}
	}

	out := make([]backend.Object, 0, len(found))
	for _, o := range found {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func live(objs []backend.Object, typ backend.ObjectType) []backend.Object {
	out := objs[:0:0]
	for _, o := range objs {
		if o.Type == typ && !o.IsDeleted {
			out = append(out, o)
		}
	}
	return out
}

func (x *catalogIndex) objects(typ domain.EntityType) []backend.Object {
	if typ == domain.EntityCategory {
		return x.categories
	}
	return x.items
}

// byName returns the members sharing name, highest version first.
func (x *catalogIndex) byName(typ domain.EntityType, name string) []backend.Object {
	var out []backend.Object
	for _, o := range x.objects(typ) {
		if o.Name() == name {
			out = append(out, o)
		}
	}
	sortAuthoritative(out)
	return out
}

func (x *catalogIndex) byID(typ domain.EntityType, id string) (backend.Object, bool) {
	for _, o := range x.objects(typ) {
		if o.ID == id {
			return o, true
		}
	}
	return backend.Object{}, false
}

func (x *catalogIndex) duplicates() domain.Duplicates {
	return domain.Duplicates{
		Categories: duplicateGroups(x.categories),
		Items:      duplicateGroups(x.items),
	}
}

// duplicateGroups maps each name held by more than one object to its ids, sorted.
func duplicateGroups(objs []backend.Object) map[string][]string {
	groups := map[string][]string{}
	for _, o := range objs {
		groups[o.Name()] = append(groups[o.Name()], o.ID)
	}
	out := map[string][]string{}
	for name, ids := range groups {
		if len(ids) > 1 {
			sort.Strings(ids)
			out[name] = ids
		}
	}
	return out
}

// sortAuthoritative orders by version descending, then id ascending.
func sortAuthoritative(objs []backend.Object) {
	sort.SliceStable(objs, func(i, j int) bool {
		if objs[i].Version != objs[j].Version {
			return objs[i].Version > objs[j].Version
		}
		return objs[i].ID < objs[j].ID
	})
}
