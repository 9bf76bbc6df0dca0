package checkout_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/checkout"
	"github.com/roach88/shrimpzone/internal/ids"
	"github.com/roach88/shrimpzone/internal/money"
	"github.com/roach88/shrimpzone/internal/testutil"
)

func completeForm() checkout.Form {
	return checkout.Form{
		FirstName:      "Bubba",
		LastName:       "Blue",
		Email:          "bubba@shrimp.zone",
		Phone:          "555-0100",
		Address:        "1 Dock St",
		City:           "Bayou La Batre",
		ZipCode:        "36509",
		CardNumber:     "4242 4242 4242 4242",
		ExpiryMonth:    "12",
		ExpiryYear:     "2030",
		CVV:            "123",
		CardholderName: "Bubba Blue",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, completeForm().Validate())

	form := completeForm()
	form.LastName = "   "
	form.CVV = ""
	form.DeliveryInstructions = ""

	err := form.Validate()
	var ve *checkout.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"last name", "CVV"}, ve.Missing)
	assert.Equal(t, "Please fill in all required fields: last name, CVV", err.Error())

	err = checkout.Form{}.Validate()
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Missing, 12, "every field but delivery instructions is required")
	assert.Equal(t, "first name", ve.Missing[0])
	assert.Equal(t, "cardholder name", ve.Missing[11])
}

func TestFormatCardNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"4", "4"},
		{"424", "424"},
		{"4a2-4", "424"},
		{"4242", "4242"},
		{"42424", "4242 4"},
		{"4242424242424242", "4242 4242 4242 4242"},
		{"4242-4242 4242x4242", "4242 4242 4242 4242"},
		{"42424242424242421234", "4242 4242 4242 4242"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, checkout.FormatCardNumber(tt.in))
		})
	}
}

func TestMaskCardNumber(t *testing.T) {
	assert.Equal(t, "••••••••••••4242", checkout.MaskCardNumber("4242 4242 4242 4242"))
	assert.Equal(t, "123", checkout.MaskCardNumber("123"))
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name       string
		subtotal   string
		tax, total string
		fee, rate  money.Amount
	}{
		{"defaults", "15.00", "1.20", "20.19", checkout.DefaultDeliveryFee, checkout.DefaultTaxRate},
		{"empty", "0", "0.00", "3.99", checkout.DefaultDeliveryFee, checkout.DefaultTaxRate},
		{"tax rounds half up", "1.5625", "0.13", "5.68", checkout.DefaultDeliveryFee, checkout.DefaultTaxRate},
		{"custom fees", "20.00", "2.00", "22.00", money.Zero, money.MustParse("0.10")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := checkout.Summarize(cart.Totals{Items: 2, Price: money.MustParse(tt.subtotal)}, tt.fee, tt.rate)
			assert.Equal(t, 2, s.Items)
			assert.Equal(t, tt.tax, s.Tax.String())
			assert.Equal(t, tt.total, s.Total.String())
		})
	}
}

type fixture struct {
	fake    *testutil.FakeAPI
	token   string
	ctl     *cart.Controller
	service *checkout.Service
}

func newFixture(t *testing.T, opts ...checkout.Option) *fixture {
	t.Helper()
	f := &fixture{fake: testutil.NewFakeAPI(t)}
	f.fake.AddMeal("meal-a", "Garlic Shrimp", "5.00", "cat-1")
	f.fake.AddMeal("meal-b", "Cajun Fries", "3.50", "cat-2")
	f.token = f.fake.IssueToken("a@b.com")

	client, err := api.NewClient(f.fake.URL(), api.WithTokenSource(staticToken(f.token)))
	require.NoError(t, err)
	f.ctl = cart.NewController(client)
	t.Cleanup(f.ctl.Close)

	opts = append([]checkout.Option{checkout.WithDelay(0)}, opts...)
	f.service = checkout.NewService(f.ctl, opts...)
	return f
}

func TestPlaceOrder(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	f := newFixture(t,
		checkout.WithClock(clock.Now),
		checkout.WithIDGenerator(ids.NewFixedGenerator("order-1")))
	f.fake.SetCartQuantity(f.token, "meal-a", 2)
	f.fake.SetCartQuantity(f.token, "meal-b", 1)

	receipt, err := f.service.PlaceOrder(context.Background(), completeForm())
	require.NoError(t, err)

	assert.Equal(t, "order-1", receipt.OrderID)
	assert.Equal(t, testutil.Epoch, receipt.PlacedAt)
	assert.Len(t, receipt.Lines, 2)
	assert.Equal(t, 3, receipt.Summary.Items)
	assert.Equal(t, "13.50", receipt.Summary.Subtotal.String())
	assert.Equal(t, "1.08", receipt.Summary.Tax.String())
	assert.Equal(t, "18.57", receipt.Summary.Total.String())
	assert.Equal(t, "••••••••••••4242", receipt.Card)

	assert.Equal(t, 0, f.fake.CartQuantity(f.token, "meal-a"), "server cart cleared")
	assert.Empty(t, f.ctl.Local())
}

func TestPlaceOrderInvalidFormMakesNoRequest(t *testing.T) {
	f := newFixture(t)
	f.fake.SetCartQuantity(f.token, "meal-a", 1)

	form := completeForm()
	form.City = ""
	_, err := f.service.PlaceOrder(context.Background(), form)

	var ve *checkout.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, f.fake.Requests())
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.PlaceOrder(context.Background(), completeForm())
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	assert.Equal(t, 0, f.fake.RequestCount(testutil.RouteClearCart))
}

func TestPlaceOrderLoadedEmptyCartMakesNoRequest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctl.Refresh(context.Background()))
	before := len(f.fake.Requests())

	_, err := f.service.PlaceOrder(context.Background(), completeForm())
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	assert.Len(t, f.fake.Requests(), before)
	assert.Equal(t, 1, f.fake.RequestCount(testutil.RouteGetCart))
}

func TestPlaceOrderUsesLoadedCart(t *testing.T) {
	f := newFixture(t)
	f.fake.SetCartQuantity(f.token, "meal-a", 2)
	require.NoError(t, f.ctl.Refresh(context.Background()))

	receipt, err := f.service.PlaceOrder(context.Background(), completeForm())
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Summary.Items)
	assert.Equal(t, 1, f.fake.RequestCount(testutil.RouteGetCart))
	assert.Equal(t, 1, f.fake.RequestCount(testutil.RouteClearCart))
}

func TestPlaceOrderCancelledDuringDelay(t *testing.T) {
	f := newFixture(t, checkout.WithDelay(time.Minute))
	f.fake.SetCartQuantity(f.token, "meal-a", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.service.PlaceOrder(ctx, completeForm())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, f.fake.CartQuantity(f.token, "meal-a"), "cart kept")
	assert.Equal(t, 0, f.fake.RequestCount(testutil.RouteClearCart))
}

func TestPlaceOrderClearFails(t *testing.T) {
	f := newFixture(t)
	f.fake.SetCartQuantity(f.token, "meal-a", 1)
	f.fake.Fail(testutil.RouteClearCart, 500, "Failed to clear cart")

	_, err := f.service.PlaceOrder(context.Background(), completeForm())
	require.Error(t, err)
	assert.True(t, api.IsServerRejected(err))
	assert.False(t, errors.Is(err, checkout.ErrEmptyCart))
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	f.fake.SetCartQuantity(f.token, "meal-a", 3)

	summary, lines, err := f.service.Quote(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Garlic Shrimp", lines[0].Name)
	assert.Equal(t, "15.00", summary.Subtotal.String())
	assert.Equal(t, "20.19", summary.Total.String())
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }
