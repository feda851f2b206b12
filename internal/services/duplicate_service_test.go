package services_test

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menusync/internal/backend"
	"menusync/internal/backend/memory"
	"menusync/internal/domain"
	"menusync/internal/errs"
)

func TestFindDuplicates_Completeness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a1 := f.sandbox.Inject(category("A"))
	a2 := f.sandbox.Inject(category("A"))
	f.sandbox.Inject(category("C"))
	b1 := f.sandbox.Inject(item("B", "", 100))
	b2 := f.sandbox.Inject(item("B", "", 100))
	b3 := f.sandbox.Inject(item("B", "", 100))
	f.sandbox.Inject(item("D", "", 100))
	f.production.Inject(category("C"))

	d, err := f.dups.FindDuplicates(ctx, domain.Sandbox)
	require.NoError(t, err)

	wantB := []string{b1.ID, b2.ID, b3.ID}
	sort.Strings(wantB)
	assert.Equal(t, map[string][]string{"A": {a1.ID, a2.ID}}, d.Categories)
	assert.Equal(t, map[string][]string{"B": wantB}, d.Items)
	assert.Equal(t, 2, d.Count())

	pd, err := f.dups.FindDuplicates(ctx, domain.Production)
	require.NoError(t, err)
	assert.True(t, pd.Empty(), "C exists once per environment")
}

func TestCleanup_KeepsHighestVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	old := f.sandbox.Inject(item("Soup", "", 500))
	newest := f.sandbox.Inject(item("Soup", "", 500))
	mid := f.sandbox.Inject(backend.Object{
		Type: backend.TypeItem, Version: newest.Version - 1, ItemData: &backend.ItemData{Name: "Soup"},
	})

	res, err := f.dups.Cleanup(ctx, domain.Sandbox)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	g := res.Groups[0]
	assert.Equal(t, newest.ID, g.Kept)
	assert.ElementsMatch(t, []string{old.ID, mid.ID}, g.Deleted)
	assert.True(t, res.Complete())
	assert.Equal(t, 2, res.DeletedCount())
	assert.Equal(t, 1, f.sandbox.Deletes(), "one batch delete for all candidates")

	assert.True(t, f.sandbox.Has(newest.ID))
	assert.False(t, f.sandbox.Has(old.ID))
	assert.False(t, f.sandbox.Has(mid.ID))

	id, ok, err := f.cache.Get(ctx, domain.Sandbox, domain.EntityItem, "Soup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, newest.ID, id)

	d, err := f.dups.FindDuplicates(ctx, domain.Sandbox)
	require.NoError(t, err)
	assert.True(t, d.Empty())
}

func TestCleanup_EqualVersionsKeepSmallestID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.sandbox.Inject(backend.Object{Type: backend.TypeCategory, Version: 7, CategoryData: &backend.CategoryData{Name: "Tie"}})
	second := f.sandbox.Inject(backend.Object{Type: backend.TypeCategory, Version: 7, CategoryData: &backend.CategoryData{Name: "Tie"}})
	require.Less(t, first.ID, second.ID)

	res, err := f.dups.Cleanup(ctx, domain.Sandbox)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, first.ID, res.Groups[0].Kept)
	assert.Equal(t, []string{second.ID}, res.Groups[0].Deleted)
}

func TestCleanup_NothingToDo(t *testing.T) {
	f := newFixture(t)
	f.sandbox.Inject(category("Only"))

	res, err := f.dups.Cleanup(context.Background(), domain.Sandbox)
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.Equal(t, 0, f.sandbox.Deletes())
}

func TestCleanup_PartialFailureIsSurfaced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	w1 := f.sandbox.Inject(category("Wraps"))
	w2 := f.sandbox.Inject(category("Wraps"))
	s1 := f.sandbox.Inject(item("Soup", "", 500))
	s2 := f.sandbox.Inject(item("Soup", "", 500))
	f.sandbox.FailDelete(w1.ID, errs.APIError{Category: "INVALID_REQUEST_ERROR", Code: "NOT_FOUND", Detail: "gone"})

	res, err := f.dups.Cleanup(ctx, domain.Sandbox)
	require.Error(t, err)
	assert.True(t, errs.IsBackend(err))
	assert.False(t, res.Complete())
	require.Len(t, res.Groups, 2)

	wraps, soup := res.Groups[0], res.Groups[1]
	assert.Equal(t, "Wraps", wraps.Name)
	assert.Equal(t, w2.ID, wraps.Kept)
	assert.Equal(t, []string{w1.ID}, wraps.Failed)
	assert.Empty(t, wraps.Deleted)
	assert.Equal(t, s2.ID, soup.Kept)
	assert.Equal(t, []string{s1.ID}, soup.Deleted)

	// only the fully cleaned group is mirrored locally
	_, ok, err := f.cache.Get(ctx, domain.Sandbox, domain.EntityCategory, "Wraps")
	require.NoError(t, err)
	assert.False(t, ok)
	id, ok, err := f.cache.Get(ctx, domain.Sandbox, domain.EntityItem, "Soup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s2.ID, id)
}

func TestWrapsRaceScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id1, created, err := f.reconcile.EnsureCategory(ctx, domain.Sandbox, "Wraps", "d")
	require.NoError(t, err)
	require.True(t, created)

	// a concurrent run created the same name and bumped past our version
	raced := f.sandbox.Inject(backend.Object{Type: backend.TypeCategory, CategoryData: &backend.CategoryData{Name: "Wraps", Description: "d"}})
	id2 := raced.ID

	d, err := f.dups.FindDuplicates(ctx, domain.Sandbox)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"Wraps": {id1, id2}}, d.Categories)
	assert.Empty(t, d.Items)

	res, err := f.dups.Cleanup(ctx, domain.Sandbox)
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, id2, res.Groups[0].Kept)
	assert.Equal(t, []string{id1}, res.Groups[0].Deleted)
	assert.False(t, f.sandbox.Has(id1))

	got, created, err := f.reconcile.EnsureCategory(ctx, domain.Sandbox, "Wraps", "d")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id2, got)
}

func TestFindDuplicates_ItemDerivedCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, memory.WithoutCategoryListing())
	c1 := f.sandbox.Inject(category("Bowls"))
	c2 := f.sandbox.Inject(category("Bowls"))
	f.sandbox.Inject(item("Harvest", c1.ID, 1300))
	f.sandbox.Inject(item("Poke", c2.ID, 1400))

	d, err := f.dups.FindDuplicates(ctx, domain.Sandbox)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"Bowls": {c1.ID, c2.ID}}, d.Categories)
}
