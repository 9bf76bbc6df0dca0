package api

import (
	"context"
	"net/http"
	"net/url"
)

// GetWishlist fetches the signed-in user's wishlist.
func (c *Client) GetWishlist(ctx context.Context) (*Wishlist, error) {
	var resp WishlistResponse
	err := c.do(ctx, call{
		op: "fetch wishlist", method: http.MethodGet,
		path: "/api/wishlist/", authed: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// AddToWishlist saves a product.
func (c *Client) AddToWishlist(ctx context.Context, productID string) error {
	var resp WishlistActionResponse
	return c.do(ctx, call{
		op: "add to wishlist", method: http.MethodPost,
		path: "/api/wishlist/add", authed: true,
		body: WishlistRequest{ProductID: productID},
	}, &resp)
}

// RemoveFromWishlist drops a product.
func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) error {
	var resp WishlistActionResponse
	return c.do(ctx, call{
		op: "remove from wishlist", method: http.MethodDelete,
		path: "/api/wishlist/remove/" + url.PathEscape(productID), authed: true,
	}, &resp)
}

// ClearWishlist drops every product.
func (c *Client) ClearWishlist(ctx context.Context) error {
	var resp WishlistActionResponse
	return c.do(ctx, call{
		op: "clear wishlist", method: http.MethodDelete,
		path: "/api/wishlist/clear", authed: true,
	}, &resp)
}
