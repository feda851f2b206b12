package services_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menusync/internal/backend"
	"menusync/internal/domain"
	"menusync/internal/errs"
	"menusync/internal/manifest"
	"menusync/internal/services"
	"menusync/internal/stores"
)

const menu = `
categories:
  - name: Wraps
  - name: Salads
items:
  - name: Buffalo Wrap
    category: Wraps
    price: 11.49
  - name: Kale Caesar
    category: Salads
    price: 12.49
  - name: Cookie
    price: 2
stores:
  - number: 8
    name: Midtown East
`

func newSetup(f *fixture) *services.SetupService {
	return &services.SetupService{
		Duplicates: f.dups,
		Reconcile:  f.reconcile,
		Locations:  services.NewLocationService(f.backends(), f.cache),
		Export:     services.NewExportService(f.cache),
	}
}

func TestSetup_RunTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m, err := manifest.Parse([]byte(menu))
	require.NoError(t, err)
	out := t.TempDir()
	svc := newSetup(f)

	rep, err := svc.Run(ctx, domain.Sandbox, m, services.SetupOptions{ExportDir: out, TestStores: true})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.LocationsCreated)
	assert.Equal(t, 1, rep.LocationsSynced)
	assert.Equal(t, 2, rep.CategoriesCreated)
	assert.Equal(t, 3, rep.ItemsCreated)
	assert.Len(t, rep.Exported, 2)

	rep, err = svc.Run(ctx, domain.Sandbox, m, services.SetupOptions{ExportDir: out, TestStores: true})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.LocationsCreated)
	assert.Equal(t, 0, rep.CategoriesCreated)
	assert.Equal(t, 2, rep.CategoriesExisting)
	assert.Equal(t, 0, rep.ItemsCreated)
	assert.Equal(t, 3, rep.ItemsExisting)
	assert.Equal(t, 5, f.sandbox.Upserts())

	b, err := os.ReadFile(filepath.Join(out, services.ItemIDsFile))
	require.NoError(t, err)
	var ids map[string]string
	require.NoError(t, json.Unmarshal(b, &ids))
	assert.Len(t, ids, 3)
	assert.Contains(t, string(b), "\n  \"Buffalo Wrap\"")

	locs, err := f.cache.Locations.List(ctx, domain.Sandbox)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "#8 Midtown East"+stores.TestSuffix, locs[0].Name)
	assert.Equal(t, "8", locs[0].StoreNumber)
}

func TestSetup_RefusesWithDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.production.Inject(category("Wraps"))
	f.production.Inject(category("Wraps"))
	m, err := manifest.Parse([]byte(menu))
	require.NoError(t, err)

	_, err = newSetup(f).Run(ctx, domain.Production, m, services.SetupOptions{})
	require.Error(t, err)
	assert.True(t, errs.IsDuplicatesPresent(err))
	assert.Equal(t, 0, f.production.Upserts())
}

func TestCategoryFix_Reassign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	wraps, _, err := f.reconcile.EnsureCategory(ctx, domain.Sandbox, "Wraps", "")
	require.NoError(t, err)
	salads, _, err := f.reconcile.EnsureCategory(ctx, domain.Sandbox, "Salads", "")
	require.NoError(t, err)
	id, _, err := f.reconcile.EnsureItem(ctx, domain.Sandbox, services.ItemInput{Name: "Caesar", CategoryID: wraps, PriceAmount: 999})
	require.NoError(t, err)
	_, _, err = f.reconcile.EnsureItem(ctx, domain.Sandbox, services.ItemInput{Name: "Cobb", CategoryID: salads, PriceAmount: 1099})
	require.NoError(t, err)

	fix := services.NewCategoryFixService(f.backends(), f.cache)
	rep, err := fix.Reassign(ctx, domain.Sandbox, map[string]string{"Caesar": "Salads", "Cobb": "Salads"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Caesar"}, rep.Updated)
	assert.Equal(t, []string{"Cobb"}, rep.Unchanged)

	obj, err := f.sandbox.GetObject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, salads, obj.ItemData.CategoryID)
	assert.EqualValues(t, 999, obj.ItemData.Variations[0].ItemVariationData.PriceMoney.Amount)

	rec, err := f.cache.Items.GetByName(ctx, domain.Sandbox, "Caesar")
	require.NoError(t, err)
	assert.Equal(t, salads, rec.CategoryRemoteID)

	_, err = fix.Reassign(ctx, domain.Sandbox, map[string]string{"Caesar": "Soups"})
	assert.True(t, errs.IsNotFound(err))
}

func TestLocationSync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sandbox.SetLocations(
		backend.Location{ID: "L1", Name: "#3 Tribeca", Address: &backend.Address{AddressLine1: "1 Main", Locality: "New York"}},
		backend.Location{ID: "L2", Name: "Default Test Account"},
	)

	locs, err := services.NewLocationService(f.backends(), f.cache).Sync(ctx, domain.Sandbox)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "3", locs[0].StoreNumber)
	assert.Equal(t, "1 Main, New York", locs[0].Address)
	assert.Empty(t, locs[1].StoreNumber)

	s, err := f.cache.Summary(ctx, domain.Sandbox)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Locations)
	ps, err := f.cache.Summary(ctx, domain.Production)
	require.NoError(t, err)
	assert.Equal(t, 0, ps.Locations)
}
