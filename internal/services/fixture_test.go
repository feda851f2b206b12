package services_test

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"menusync/internal/backend"
	"menusync/internal/backend/memory"
	"menusync/internal/domain"
	"menusync/internal/repos"
	"menusync/internal/services"
)

type fixture struct {
	sandbox    *memory.Catalog
	production *memory.Catalog
	db         *sqlx.DB
	cache      *repos.Cache
	reconcile  *services.ReconcileService
	dups       *services.DuplicateService
}

func newFixture(t *testing.T, opts ...memory.Option) *fixture {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		sandbox:    memory.New(opts...),
		production: memory.New(append([]memory.Option{memory.WithIDPrefix("PRD")}, opts...)...),
		db:         db,
		cache:      repos.NewCache(db),
	}
	backends := backend.Static{domain.Sandbox: f.sandbox, domain.Production: f.production}
	f.reconcile = services.NewReconcileService(backends, f.cache, "USD")
	f.dups = services.NewDuplicateService(backends, f.cache)
	return f
}

func (f *fixture) backends() backend.Resolver {
	return backend.Static{domain.Sandbox: f.sandbox, domain.Production: f.production}
}

func category(name string) backend.Object {
	return backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: name}}
}

func item(name, categoryID string, price int64) backend.Object {
	return backend.Object{
		Type: backend.TypeItem,
		ItemData: &backend.ItemData{
			Name:       name,
			CategoryID: categoryID,
			Variations: []backend.Object{{
				Type: backend.TypeItemVariation,
				ItemVariationData: &backend.ItemVariationData{
					Name: "Regular", PricingType: backend.PricingFixed,
					PriceMoney: &backend.Money{Amount: price, Currency: "USD"},
				},
			}},
		},
	}
}
