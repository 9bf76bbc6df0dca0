package api

import (
	"context"
	"net/http"
	"net/url"
)

// GetCart fetches the signed-in user's cart.
func (c *Client) GetCart(ctx context.Context) (*Cart, error) {
	var resp CartResponse
	err := c.do(ctx, call{
		op: "fetch cart", method: http.MethodGet,
		path: "/api/cart/get-cart", authed: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// AddToCart adds quantity units of a product.
func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) (*Cart, error) {
	var resp CartResponse
	err := c.do(ctx, call{
		op: "add to cart", method: http.MethodPost,
		path: "/api/cart/add-to-cart", authed: true,
		body: CartItemRequest{ProductID: productID, Quantity: quantity},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// UpdateCart sets the quantity of a product already in the cart.
func (c *Client) UpdateCart(ctx context.Context, productID string, quantity int) (*Cart, error) {
	var resp CartResponse
	err := c.do(ctx, call{
		op: "update cart", method: http.MethodPut,
		path: "/api/cart/update-cart", authed: true,
		body: CartItemRequest{ProductID: productID, Quantity: quantity},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// RemoveFromCart deletes a product's line from the cart.
func (c *Client) RemoveFromCart(ctx context.Context, productID string) (*Cart, error) {
	var resp CartResponse
	err := c.do(ctx, call{
		op: "remove from cart", method: http.MethodDelete,
		path: "/api/cart/remove-from-cart/" + url.PathEscape(productID), authed: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) (*Cart, error) {
	var resp CartResponse
	err := c.do(ctx, call{
		op: "clear cart", method: http.MethodDelete,
		path: "/api/cart/clear-cart", authed: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
