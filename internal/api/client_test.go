package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/ids"
	"github.com/roach88/shrimpzone/internal/testutil"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no session")
	}
	return string(s), nil
}

func newClient(t *testing.T, fake *testutil.FakeAPI, token string, opts ...api.Option) *api.Client {
	t.Helper()
	opts = append([]api.Option{api.WithTokenSource(staticToken(token))}, opts...)
	c, err := api.NewClient(fake.URL(), opts...)
	require.NoError(t, err)
	return c
}

func seedMenu(fake *testutil.FakeAPI) {
	fake.AddCategory("cat-1", "Shrimp")
	fake.AddCategory("cat-2", "Sides")
	fake.AddMeal("meal-a", "Garlic Shrimp", "5.00", "cat-1")
	fake.AddMeal("meal-b", "Cajun Fries", "3.50", "cat-2")
	fake.AddMeal("meal-c", "Shrimp Tacos", "12.25", "cat-1")
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := api.NewClient("ftp://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestCartRoundTrip(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	seedMenu(fake)
	token := fake.IssueToken("a@b.com")
	c := newClient(t, fake, token)
	ctx := context.Background()

	cart, err := c.AddToCart(ctx, "meal-a", 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "meal-a", cart.Items[0].ProductID())
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "10.00", cart.TotalAmount.String())

	cart, err = c.UpdateCart(ctx, "meal-a", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	cart, err = c.GetCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "25.00", cart.TotalAmount.String())

	cart, err = c.RemoveFromCart(ctx, "meal-a")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = c.AddToCart(ctx, "meal-b", 1)
	require.NoError(t, err)
	cart, err = c.ClearCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalAmount.IsZero())
}

func TestAuthenticatedCallsSendBearerAndRequestID(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	token := fake.IssueToken("a@b.com")
	c := newClient(t, fake, token, api.WithIDGenerator(ids.NewFixedGenerator("req-1")))

	_, err := c.GetCart(context.Background())
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer "+token, reqs[0].Auth)
	assert.Equal(t, "req-1", reqs[0].RequestID)
}

func TestMissingTokenFailsLocally(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	c := newClient(t, fake, "")

	_, err := c.AddToCart(context.Background(), "meal-a", 1)

	require.Error(t, err)
	assert.True(t, api.IsNotAuthenticated(err))
	assert.Empty(t, fake.Requests(), "no request may be sent without a token")
}

func TestUnauthorizedResponseIsNotAuthenticated(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	c := newClient(t, fake, "stale-token")

	_, err := c.GetCart(context.Background())

	require.Error(t, err)
	assert.True(t, api.IsNotAuthenticated(err))
	var ae *api.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.Status)
	assert.Equal(t, "Unauthorized", ae.Message)
}

func TestServerRejection(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	token := fake.IssueToken("a@b.com")
	c := newClient(t, fake, token)

	_, err := c.AddToCart(context.Background(), "no-such-meal", 1)

	require.Error(t, err)
	assert.True(t, api.IsServerRejected(err))
	var ae *api.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "Product not found", ae.Reason())
	assert.Equal(t, "add to cart: SERVER_REJECTED: Product not found (status=404)", err.Error())
}

func TestSuccessFalseIsRejected(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	c := newClient(t, fake, "")

	_, err := c.RequestLoginCode(context.Background(), "a@b.com")
	require.NoError(t, err)

	_, err = c.VerifyLoginCode(context.Background(), "a@b.com", "000000")
	require.Error(t, err)
	assert.True(t, api.IsServerRejected(err))
	var ae *api.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Invalid OTP", ae.Message)
}

func TestNetworkFailure(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	url := fake.URL()
	fake.Close()

	c, err := api.NewClient(url, api.WithTokenSource(staticToken("t")))
	require.NoError(t, err)

	_, err = c.GetCart(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsNetworkFailure(err))
}

func TestCancelledContextIsNetworkFailure(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	token := fake.IssueToken("a@b.com")
	release := fake.Hold(testutil.RouteGetCart)
	defer release()
	c := newClient(t, fake, token)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.GetCart(ctx)

	require.Error(t, err)
	assert.True(t, api.IsNetworkFailure(err))
	assert.True(t, api.IsContextError(err))
}

func TestLoginAndVerify(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	fake.SetNow(func() time.Time { return now })
	c := newClient(t, fake, "")
	ctx := context.Background()

	issued, err := c.RequestLoginCode(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", issued.Email)
	assert.True(t, issued.ExpiresAt.Equal(now.Add(5*time.Minute)))

	verified, err := c.VerifyLoginCode(ctx, "a@b.com", testutil.DefaultCode)
	require.NoError(t, err)
	assert.NotEmpty(t, verified.Token)
	assert.Equal(t, "a@b.com", verified.User.Email)
}

func TestRegister(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	c := newClient(t, fake, "")

	msg, err := c.Register(context.Background(), "new@b.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", msg)

	_, err = c.Register(context.Background(), "new@b.com", "")
	require.Error(t, err)
	assert.True(t, api.IsServerRejected(err))
}

func TestCatalog(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	seedMenu(fake)
	c := newClient(t, fake, "")
	ctx := context.Background()

	categories, err := c.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Shrimp", categories[0].Name)

	page, err := c.FilterMeals(ctx, api.MealFilter{Category: "cat-1", SearchTerm: "taco"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "meal-c", page.Data[0].ID)
	assert.Equal(t, "12.25", page.Data[0].Price.String())

	page, err = c.FilterMeals(ctx, api.MealFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Data, 1)

	var filterPath string
	for _, r := range fake.Requests() {
		if r.Route == testutil.RouteFilterMeals {
			filterPath = r.Path
		}
	}
	assert.True(t, strings.HasPrefix(filterPath, "/api/products/filter"))
}

func TestWishlist(t *testing.T) {
	fake := testutil.NewFakeAPI(t)
	seedMenu(fake)
	token := fake.IssueToken("a@b.com")
	c := newClient(t, fake, token)
	ctx := context.Background()

	require.NoError(t, c.AddToWishlist(ctx, "meal-a"))
	require.NoError(t, c.AddToWishlist(ctx, "meal-b"))

	list, err := c.GetWishlist(ctx)
	require.NoError(t, err)
	require.Len(t, list.Products, 2)

	require.NoError(t, c.RemoveFromWishlist(ctx, "meal-a"))
	assert.Equal(t, []string{"meal-b"}, fake.Wishlist(token))

	require.NoError(t, c.ClearWishlist(ctx))
	assert.Empty(t, fake.Wishlist(token))
}

func TestCartItemAccessors(t *testing.T) {
	item := api.CartItem{ID: "item-1", Meal: "meal-9", Quantity: 2}
	assert.Equal(t, "meal-9", item.ProductID())
	assert.Equal(t, "Product meal-9", item.DisplayName())

	bare := api.CartItem{ID: "item-2"}
	assert.Equal(t, "item-2", bare.ProductID())
}

func TestCartItemUnitPrice(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		priced bool
	}{
		{
			name:   "stored price wins over product",
			raw:    `{"_id":"i","product":{"_id":"m","price":9},"quantity":1,"price":5}`,
			want:   "5.00",
			priced: true,
		},
		{
			name:   "stored zero is a price",
			raw:    `{"_id":"i","product":{"_id":"m","price":9},"quantity":1,"price":0}`,
			want:   "0.00",
			priced: true,
		},
		{
			name:   "product price when none stored",
			raw:    `{"_id":"i","product":{"_id":"m","price":9},"quantity":1}`,
			want:   "9.00",
			priced: true,
		},
		{
			name: "unpriced",
			raw:  `{"_id":"i","meal":"m","quantity":1,"price":null}`,
			want: "0.00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item api.CartItem
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &item))
			price, ok := item.UnitPrice()
			assert.Equal(t, tt.priced, ok)
			assert.Equal(t, tt.want, price.String())
		})
	}
}
