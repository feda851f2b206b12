package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menusync/internal/backend"
	"menusync/internal/backend/memory"
	"menusync/internal/errs"
)

func TestBatchUpsert_ResolvesPlaceholdersAndReplays(t *testing.T) {
	ctx := context.Background()
	c := memory.New()

	cat := backend.Object{Type: backend.TypeCategory, ID: "#cat", CategoryData: &backend.CategoryData{Name: "Wraps"}}
	item := backend.Object{
		Type: backend.TypeItem, ID: "#item",
		ItemData: &backend.ItemData{
			Name: "Buffalo Wrap", CategoryID: "#cat",
			Variations: []backend.Object{{
				Type: backend.TypeItemVariation, ID: "#item-variation",
				ItemVariationData: &backend.ItemVariationData{
					ItemID: "#item", Name: "Regular", PricingType: backend.PricingFixed,
					PriceMoney: &backend.Money{Amount: 1149, Currency: "USD"},
				},
			}},
		},
	}
	objs, ids, err := c.BatchUpsert(ctx, "k1", []backend.Object{cat, item})
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Len(t, ids, 3)
	assert.False(t, backend.IsPlaceholderID(objs[0].ID))
	assert.Equal(t, objs[0].ID, objs[1].ItemData.CategoryID)
	assert.Equal(t, objs[1].ID, objs[1].ItemData.Variations[0].ItemVariationData.ItemID)

	again, _, err := c.BatchUpsert(ctx, "k1", []backend.Object{cat, item})
	require.NoError(t, err)
	assert.Equal(t, objs[0].ID, again[0].ID, "same key replays the first response")
	assert.Equal(t, 1, c.Upserts())
}

func TestBatchUpsert_VersionMismatch(t *testing.T) {
	ctx := context.Background()
	c := memory.New()
	cur := c.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "Sides"}})

	stale := cur
	stale.Version = cur.Version + 5
	_, _, err := c.BatchUpsert(ctx, "k", []backend.Object{stale})
	var be *errs.BackendError
	require.ErrorAs(t, err, &be)
	first, ok := be.First()
	require.True(t, ok)
	assert.Equal(t, "VERSION_MISMATCH", first.Code)
}

func TestBatchDelete_Partial(t *testing.T) {
	ctx := context.Background()
	c := memory.New()
	a := c.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "A"}})
	b := c.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "B"}})
	c.FailDelete(b.ID, errs.APIError{Category: "API_ERROR", Code: "INTERNAL_SERVER_ERROR"})

	deleted, err := c.BatchDelete(ctx, []string{a.ID, b.ID})
	assert.True(t, errs.IsBackend(err))
	assert.Equal(t, []string{a.ID}, deleted)
	assert.False(t, c.Has(a.ID))
	assert.True(t, c.Has(b.ID))
}

func TestWithoutCategoryListing(t *testing.T) {
	c := memory.New(memory.WithoutCategoryListing())
	_, err := c.ListObjects(context.Background(), backend.TypeCategory)
	assert.ErrorIs(t, err, backend.ErrListingUnsupported)
}
