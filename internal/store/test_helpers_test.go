package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/money"
)

// testEpoch is a fixed wall time for records written by tests.
var testEpoch = time.Date(2025, time.March, 14, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestMeal creates a meal with minimal required fields.
func createTestMeal(id, name, price, category string) api.Meal {
	return api.Meal{
		ID:       id,
		Name:     name,
		Price:    money.MustParse(price),
		Category: category,
	}
}

// createTestMutation creates a settled mutation.
func createTestMutation(id string, seq int64, kind cart.Kind, productID string, state cart.State) cart.Mutation {
	quantity := 1
	if kind == cart.KindRemove {
		quantity = 0
	}
	return cart.Mutation{
		ID:        id,
		Seq:       seq,
		Kind:      kind,
		ProductID: productID,
		Quantity:  quantity,
		State:     state,
		StartedAt: testEpoch.Add(time.Duration(seq) * time.Second),
		SettledAt: testEpoch.Add(time.Duration(seq)*time.Second + 250*time.Millisecond),
	}
}

// confirmingGateway answers every cart request with a cart of one line
// holding the requested quantity.
type confirmingGateway struct{}

func (confirmingGateway) cartWith(productID string, quantity int) *api.Cart {
	c := &api.Cart{}
	if quantity > 0 {
		price := money.MustParse("5.00")
		c.Items = []api.CartItem{{ID: "item-" + productID, Meal: productID, Quantity: quantity, Price: &price}}
	}
	return c
}

func (confirmingGateway) GetCart(context.Context) (*api.Cart, error) { return &api.Cart{}, nil }

func (g confirmingGateway) AddToCart(_ context.Context, productID string, quantity int) (*api.Cart, error) {
	return g.cartWith(productID, quantity), nil
}

func (g confirmingGateway) UpdateCart(_ context.Context, productID string, quantity int) (*api.Cart, error) {
	return g.cartWith(productID, quantity), nil
}

func (confirmingGateway) RemoveFromCart(context.Context, string) (*api.Cart, error) {
	return &api.Cart{}, nil
}

func (confirmingGateway) ClearCart(context.Context) (*api.Cart, error) { return &api.Cart{}, nil }
