package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/catalog"
	"github.com/roach88/shrimpzone/internal/money"
	"github.com/roach88/shrimpzone/internal/store"
	"github.com/roach88/shrimpzone/internal/testutil"
)

func newMenu(t *testing.T) *testutil.FakeAPI {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	fake.AddCategory("cat-shrimp", "Shrimp")
	fake.AddCategory("cat-sides", "Sides")
	fake.AddMeal("m-1", "Garlic Shrimp", "12.50", "cat-shrimp")
	fake.AddMeal("m-2", "Shrimp Tacos", "9.00", "cat-shrimp")
	fake.AddMeal("m-3", "Fries", "3.25", "cat-sides")
	return fake
}

func newClient(t *testing.T, fake *testutil.FakeAPI) *api.Client {
	t.Helper()
	client, err := api.NewClient(fake.URL())
	require.NoError(t, err)
	return client
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func mealIDs(meals []api.Meal) []string {
	out := make([]string, len(meals))
	for i, m := range meals {
		out[i] = m.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	fake := newMenu(t)
	svc := catalog.NewService(newClient(t, fake))
	ctx := context.Background()

	tests := []struct {
		name   string
		filter catalog.Filter
		want   []string
	}{
		{"no filter", catalog.Filter{}, []string{"m-1", "m-2", "m-3"}},
		{"all means every category", catalog.Filter{Category: "all"}, []string{"m-1", "m-2", "m-3"}},
		{"category", catalog.Filter{Category: "cat-sides"}, []string{"m-3"}},
		{"search", catalog.Filter{SearchTerm: "  tacos "}, []string{"m-2"}},
		{"category and search", catalog.Filter{Category: "cat-shrimp", SearchTerm: "garlic"}, []string{"m-1"}},
		{"paged", catalog.Filter{Page: 2, Limit: 2}, []string{"m-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.Filter(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mealIDs(page.Data))
		})
	}
}

func TestFilterRemembersPrices(t *testing.T) {
	fake := newMenu(t)
	svc := catalog.NewService(newClient(t, fake))

	_, ok := svc.UnitPrice("m-1")
	assert.False(t, ok)

	_, err := svc.Filter(context.Background(), catalog.Filter{Category: "cat-shrimp"})
	require.NoError(t, err)

	price, ok := svc.UnitPrice("m-1")
	require.True(t, ok)
	assert.Zero(t, price.Cmp(money.MustParse("12.50")))
	name, ok := svc.Name("m-2")
	require.True(t, ok)
	assert.Equal(t, "Shrimp Tacos", name)

	_, ok = svc.UnitPrice("m-3")
	assert.False(t, ok, "meal outside the filter is unknown")
}

func TestBrowseCachesMeals(t *testing.T) {
	fake := newMenu(t)
	st := openStore(t)
	clock := testutil.NewFakeClock(time.Time{})
	svc := catalog.NewService(newClient(t, fake), catalog.WithCache(st), catalog.WithClock(clock.Now))
	ctx := context.Background()

	menu, err := svc.Browse(ctx, catalog.Filter{Category: catalog.AllCategories})
	require.NoError(t, err)
	assert.Len(t, menu.Categories, 2)
	assert.Equal(t, []string{"m-1", "m-2", "m-3"}, mealIDs(menu.Meals))
	assert.Equal(t, 3, menu.Total)
	assert.Equal(t, 1, menu.Pages)
	assert.Equal(t, "Sides", menu.CategoryName("cat-sides"))
	assert.Equal(t, "cat-unknown", menu.CategoryName("cat-unknown"))

	assert.Equal(t, 1, fake.RequestCount(testutil.RouteCategories))
	assert.Equal(t, 1, fake.RequestCount(testutil.RouteFilterMeals))

	cached, err := st.Meals(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m-1", "m-2", "m-3"}, mealIDs(cached))

	// A fresh service warmed from the cache prices meals without the network.
	offline := catalog.NewService(newClient(t, fake), catalog.WithCache(st))
	require.NoError(t, offline.Warm(ctx))
	price, ok := offline.UnitPrice("m-3")
	require.True(t, ok)
	assert.Zero(t, price.Cmp(money.MustParse("3.25")))
}

func TestBrowseFailsWhenEitherRequestFails(t *testing.T) {
	for _, route := range []string{testutil.RouteCategories, testutil.RouteFilterMeals} {
		t.Run(route, func(t *testing.T) {
			fake := newMenu(t)
			st := openStore(t)
			svc := catalog.NewService(newClient(t, fake), catalog.WithCache(st))
			fake.Fail(route, http.StatusInternalServerError, "boom")

			_, err := svc.Browse(context.Background(), catalog.Filter{})
			require.Error(t, err)
			assert.True(t, api.IsServerRejected(err))

			cached, err := st.Meals(context.Background())
			require.NoError(t, err)
			assert.Empty(t, cached)
		})
	}
}

type brokenCache struct{}

func (brokenCache) PutMeals(context.Context, []api.Meal, time.Time) error {
	return errors.New("disk full")
}

func (brokenCache) Meals(context.Context) ([]api.Meal, error) {
	return nil, errors.New("disk full")
}

func TestBrowseToleratesCacheFailure(t *testing.T) {
	fake := newMenu(t)
	svc := catalog.NewService(newClient(t, fake), catalog.WithCache(brokenCache{}))

	menu, err := svc.Browse(context.Background(), catalog.Filter{})
	require.NoError(t, err)
	assert.Len(t, menu.Meals, 3)

	err = svc.Warm(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestBrowseEmptyMenu(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	svc := catalog.NewService(newClient(t, fake))

	menu, err := svc.Browse(context.Background(), catalog.Filter{})
	require.NoError(t, err)
	assert.NotNil(t, menu.Meals)
	assert.Empty(t, menu.Meals)
	assert.Equal(t, 0, menu.Total)
}

func TestWarmWithoutCache(t *testing.T) {
	svc := catalog.NewService(nil)
	assert.NoError(t, svc.Warm(context.Background()))
}

func TestNormalizeSearch(t *testing.T) {
	// "e" followed by a combining acute accent composes to "é".
	assert.Equal(t, "café", catalog.NormalizeSearch(" café "))
	assert.Equal(t, "", catalog.NormalizeSearch("   "))
}
