package services

import (
	"context"
	"fmt"

	"menusync/internal/domain"
	"menusync/internal/errs"
	applog "menusync/internal/log"
	"menusync/internal/manifest"
	"menusync/internal/stores"
)

type SetupOptions struct {
	Images     bool
	TestStores bool   // append the test suffix to created store names
	ExportDir  string // skip export when empty
}

type SetupReport struct {
	Environment        domain.Environment `json:"environment"`
	LocationsCreated   int                `json:"locations_created"`
	LocationsSynced    int                `json:"locations_synced"`
	CategoriesCreated  int                `json:"categories_created"`
	CategoriesExisting int                `json:"categories_existing"`
	ItemsCreated       int                `json:"items_created"`
	ItemsExisting      int                `json:"items_existing"`
	ImagesAttached     int                `json:"images_attached"`
	Exported           []string           `json:"exported,omitempty"`
}

// SetupService is the production-safe end to end flow: refuse on
// duplicates, then reconcile every manifest entry in order.
type SetupService struct {
	Duplicates *DuplicateService
	Reconcile  *ReconcileService
	Locations  *LocationService
	Images     *ImageService
	Export     *ExportService
}

func (s *SetupService) Run(ctx context.Context, env domain.Environment, m *manifest.Manifest, opts SetupOptions) (SetupReport, error) {
	rep := SetupReport{Environment: env}

	dups, err := s.Duplicates.FindDuplicates(ctx, env)
	if err != nil {
		return rep, err
	}
	if !dups.Empty() {
		return rep, &errs.DuplicatesPresentError{Environment: env.String(), Items: dups.Items, Categories: dups.Categories}
	}

	if len(m.Stores) > 0 {
		list := make([]stores.Store, len(m.Stores))
		for i, st := range m.Stores {
			list[i] = st.Store()
		}
		n, err := s.Locations.EnsureStores(ctx, env, list, opts.TestStores)
		rep.LocationsCreated = n
		if err != nil {
			return rep, err
		}
	}
	locs, err := s.Locations.Sync(ctx, env)
	if err != nil {
		return rep, err
	}
	rep.LocationsSynced = len(locs)

	catIDs := map[string]string{}
	for _, c := range m.Categories {
		id, created, err := s.Reconcile.EnsureCategory(ctx, env, c.Name, c.Description)
		if err != nil {
			return rep, fmt.Errorf("category %s: %w", c.Name, err)
		}
		catIDs[c.Name] = id
		if created {
			rep.CategoriesCreated++
		} else {
			rep.CategoriesExisting++
		}
	}

	for _, it := range m.Items {
		var catID string
		if it.Category != "" {
			var ok bool
			if catID, ok = catIDs[it.Category]; !ok {
				return rep, fmt.Errorf("item %s: %w", it.Name, errs.NewNotFoundError("category", it.Category))
			}
		}
		id, created, err := s.Reconcile.EnsureItem(ctx, env, ItemInput{
			Name:          it.Name,
			CategoryID:    catID,
			Description:   it.Description,
			PriceAmount:   int64(it.Price),
			VariationName: it.Variation,
			ImageURL:      it.ImageURL,
		})
		if err != nil {
			return rep, fmt.Errorf("item %s: %w", it.Name, err)
		}
		if created {
			rep.ItemsCreated++
		} else {
			rep.ItemsExisting++
		}

		if opts.Images && it.ImageURL != "" && s.Images != nil {
			if _, err := s.Images.Process(ctx, env, it.Name, id, it.ImageURL); err != nil {
				// an image failure leaves the item usable; report and continue
				applog.Error(nil, "setup.image", err, map[string]any{"env": env, "name": it.Name})
				continue
			}
			rep.ImagesAttached++
		}
	}

	if opts.ExportDir != "" {
		paths, err := s.Export.WriteJSON(ctx, env, opts.ExportDir)
		if err != nil {
			return rep, err
		}
		rep.Exported = paths
	}
	applog.Audit(nil, "setup.done", map[string]any{
		"env": env, "categories_created": rep.CategoriesCreated, "items_created": rep.ItemsCreated,
	})
	return rep, nil
}
