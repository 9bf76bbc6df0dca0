package wishlist_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/testutil"
	"github.com/roach88/shrimpzone/internal/wishlist"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func setup(t *testing.T) (*testutil.FakeAPI, string, *wishlist.Service) {
	t.Helper()
	fake := testutil.NewFakeAPI(t)
	fake.AddMeal("m-1", "Garlic Shrimp", "12.50", "cat-shrimp")
	fake.AddMeal("m-2", "Fries", "3.25", "cat-sides")
	token := fake.IssueToken("a@b.com")

	client, err := api.NewClient(fake.URL(), api.WithTokenSource(staticToken(token)))
	require.NoError(t, err)
	return fake, token, wishlist.NewService(client)
}

func ids(meals []api.Meal) []string {
	out := make([]string, len(meals))
	for i, m := range meals {
		out[i] = m.ID
	}
	return out
}

func TestAddListRemoveClear(t *testing.T) {
	fake, token, svc := setup(t)
	ctx := context.Background()

	meals, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, meals)

	require.NoError(t, svc.Add(ctx, "m-2"))
	require.NoError(t, svc.Add(ctx, "m-1"))
	meals, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m-2", "m-1"}, ids(meals))

	require.NoError(t, svc.Remove(ctx, "m-2"))
	assert.Equal(t, []string{"m-1"}, fake.Wishlist(token))

	require.NoError(t, svc.Clear(ctx))
	assert.Empty(t, fake.Wishlist(token))
}

func TestToggle(t *testing.T) {
	fake, token, svc := setup(t)
	ctx := context.Background()

	saved, err := svc.Toggle(ctx, "m-1")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, []string{"m-1"}, fake.Wishlist(token))

	saved, err = svc.Toggle(ctx, "m-1")
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Empty(t, fake.Wishlist(token))
}

func TestServerRejection(t *testing.T) {
	_, _, svc := setup(t)
	ctx := context.Background()
	require.NoError(t, svc.Add(ctx, "m-1"))

	err := svc.Add(ctx, "m-1")
	require.Error(t, err)
	assert.True(t, api.IsServerRejected(err))
	assert.Contains(t, err.Error(), "Product already in wishlist")

	err = svc.Remove(ctx, "m-2")
	require.Error(t, err)
	assert.True(t, api.IsServerRejected(err))
}

func TestRequiresSession(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	client, err := api.NewClient(fake.URL())
	require.NoError(t, err)
	svc := wishlist.NewService(client)

	_, err = svc.List(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsNotAuthenticated(err))
	assert.Empty(t, fake.Requests(), "no request without a token")
}

func TestEmptyProductID(t *testing.T) {
	fake, _, svc := setup(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Add(ctx, ""), wishlist.ErrEmptyProductID)
	assert.ErrorIs(t, svc.Remove(ctx, ""), wishlist.ErrEmptyProductID)
	_, err := svc.Toggle(ctx, "")
	assert.ErrorIs(t, err, wishlist.ErrEmptyProductID)
	assert.Empty(t, fake.Requests())
}

func TestToggleListFailure(t *testing.T) {
	fake, _, svc := setup(t)
	fake.Fail(testutil.RouteGetWishlist, http.StatusInternalServerError, "down")

	_, err := svc.Toggle(context.Background(), "m-1")
	require.Error(t, err)
	assert.Equal(t, 0, fake.RequestCount(testutil.RouteWishlistAdd))
}
