package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"menusync/internal/backend"
	"menusync/internal/domain"
	"menusync/internal/errs"
	applog "menusync/internal/log"
	"menusync/internal/repos"
	"menusync/internal/validate"
)

// ReconcileService creates a named category or item only when no remote
// entity of that name exists. The name check, not the idempotency key, is
// what makes repeated runs safe.
type ReconcileService struct {
	Backends backend.Resolver
	Cache    *repos.Cache
	Currency string

	// NewKey mints idempotency keys; uuid.NewString when nil.
	NewKey func() string
}

func NewReconcileService(b backend.Resolver, cache *repos.Cache, currency string) *ReconcileService {
	if currency == "" {
		currency = "USD"
	}
	return &ReconcileService{Backends: b, Cache: cache, Currency: currency}
}

type ItemInput struct {
	Name          string
	CategoryID    string
	Description   string
	PriceAmount   int64
	VariationName string
	ImageURL      string
}

func (s *ReconcileService) key() string {
	if s.NewKey != nil {
		return s.NewKey()
	}
	return uuid.NewString()
}

// gate scans the environment and refuses to continue while any name is duplicated.
func (s *ReconcileService) gate(ctx context.Context, env domain.Environment) (backend.Catalog, *catalogIndex, error) {
	cat, err := s.Backends.For(env)
	if err != nil {
		return nil, nil, err
	}
	idx, err := scanEnv(ctx, cat, s.Cache, env)
	if err != nil {
		return nil, nil, err
	}
	if d := idx.duplicates(); !d.Empty() {
		return nil, nil, &errs.DuplicatesPresentError{Environment: env.String(), Items: d.Items, Categories: d.Categories}
	}
	return cat, idx, nil
}

// adopt records an existing remote entity unless the cache already agrees.
func (s *ReconcileService) adopt(ctx context.Context, env domain.Environment, typ domain.EntityType, o backend.Object, sourceURL string) error {
	cached, ok, err := s.Cache.Get(ctx, env, typ, o.Name())
	if err != nil {
		return err
	}
	if ok && cached == o.ID {
		return nil
	}
	if typ == domain.EntityCategory {
		_, err = s.Cache.UpsertCategory(ctx, categoryRecord(env, o))
		return err
	}
	rec := itemRecord(env, o)
	rec.SourceURL = sourceURL
	_, err = s.Cache.UpsertItem(ctx, rec)
	return err
}

func (s *ReconcileService) EnsureCategory(ctx context.Context, env domain.Environment, name, description string) (string, bool, error) {
	name, ok := validate.Name(name)
	if !ok {
		return "", false, fmt.Errorf("invalid category name %q", name)
	}
	cat, idx, err := s.gate(ctx, env)
	if err != nil {
		return "", false, err
	}
	if found := idx.byName(domain.EntityCategory, name); len(found) > 0 {
		if err := s.adopt(ctx, env, domain.EntityCategory, found[0], ""); err != nil {
			return found[0].ID, false, err
		}
		applog.Info(nil, "reconcile.category.exists", map[string]any{"env": env, "name": name, "remote_id": found[0].ID})
		return found[0].ID, false, nil
	}

	key := s.key()
	obj := backend.Object{
		Type:         backend.TypeCategory,
		ID:           backend.PlaceholderPrefix + key,
		CategoryData: &backend.CategoryData{Name: name, Description: description},
	}
	created, err := s.create(ctx, env, cat, key, obj)
	if err != nil {
		return "", false, err
	}
	applog.Audit(nil, "reconcile.category.create", map[string]any{"env": env, "name": name, "remote_id": created.ID})
	_, err = s.Cache.UpsertCategory(ctx, categoryRecord(env, created))
	return created.ID, true, err
}

func (s *ReconcileService) EnsureItem(ctx context.Context, env domain.Environment, in ItemInput) (string, bool, error) {
	name, ok := validate.Name(in.Name)
	if !ok {
		return "", false, fmt.Errorf("invalid item name %q", in.Name)
	}
	if in.PriceAmount < 0 {
		return "", false, fmt.Errorf("item %s: negative price %d", name, in.PriceAmount)
	}
	cat, idx, err := s.gate(ctx, env)
	if err != nil {
		return "", false, err
	}
	if found := idx.byName(domain.EntityItem, name); len(found) > 0 {
		if err := s.adopt(ctx, env, domain.EntityItem, found[0], in.ImageURL); err != nil {
			return found[0].ID, false, err
		}
		applog.Info(nil, "reconcile.item.exists", map[string]any{"env": env, "name": name, "remote_id": found[0].ID})
		return found[0].ID, false, nil
	}
	if in.CategoryID != "" {
		if _, ok := idx.byID(domain.EntityCategory, in.CategoryID); !ok {
			// item-derived discovery cannot see categories that no item references yet
			o, err := cat.GetObject(ctx, in.CategoryID)
			if err != nil && !errs.IsBackend(err) {
				return "", false, err
			}
			if err != nil || o.Type != backend.TypeCategory || o.IsDeleted {
				return "", false, errs.NewNotFoundError("category", in.CategoryID)
			}
		}
	}

	desc, cut := validate.Description(in.Description)
	if cut {
		applog.L().Warn().Str("env", env.String()).Str("name", name).Msg("item description truncated")
	}
	variation := in.VariationName
	if variation == "" {
		variation = "Regular"
	}
	key := s.key()
	itemID := backend.PlaceholderPrefix + key
	obj := backend.Object{
		Type: backend.TypeItem,
		ID:   itemID,
		ItemData: &backend.ItemData{
			Name:        name,
			Description: desc,
			CategoryID:  in.CategoryID,
			Variations: []backend.Object{{
				Type: backend.TypeItemVariation,
				ID:   itemID + "-variation",
				ItemVariationData: &backend.ItemVariationData{
					ItemID:      itemID,
					Name:        variation,
					PricingType: backend.PricingFixed,
					PriceMoney:  &backend.Money{Amount: in.PriceAmount, Currency: s.Currency},
				},
			}},
		},
	}
	created, err := s.create(ctx, env, cat, key, obj)
	if err != nil {
		return "", false, err
	}
	applog.Audit(nil, "reconcile.item.create", map[string]any{"env": env, "name": name, "remote_id": created.ID})
	rec := itemRecord(env, created)
	rec.SourceURL = in.ImageURL
	_, err = s.Cache.UpsertItem(ctx, rec)
	return created.ID, true, err
}

// create issues one single-object upsert and returns the stored object.
// Failures are logged to the sync log and returned unchanged.
func (s *ReconcileService) create(ctx context.Context, env domain.Environment, cat backend.Catalog, key string, obj backend.Object) (backend.Object, error) {
	objs, _, err := cat.BatchUpsert(ctx, key, []backend.Object{obj})
	if err == nil {
		for _, o := range objs {
			if o.Type == obj.Type && o.Name() == obj.Name() {
				return o, nil
			}
		}
		err = &errs.BackendError{Op: "batch-upsert", Err: fmt.Errorf("response missing %s %q", obj.Type, obj.Name())}
	}
	if lerr := s.Cache.SyncLog.Append(ctx, domain.SyncLogEntry{
		Environment:  env,
		Operation:    domain.OpCreate,
		ObjectType:   entityType(obj.Type),
		Status:       domain.StatusError,
		ErrorMessage: err.Error(),
	}); lerr != nil {
		applog.Error(nil, "synclog.append", lerr, map[string]any{"env": env})
	}
	applog.Error(nil, "reconcile.create", err, map[string]any{"env": env, "name": obj.Name()})
	return backend.Object{}, err
}
