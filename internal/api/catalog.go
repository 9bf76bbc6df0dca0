package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Categories lists every menu category.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var resp CategoriesResponse
	err := c.do(ctx, call{
		op: "fetch categories", method: http.MethodGet,
		path: "/api/categories/all-categories",
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// FilterMeals returns one page of meals matching f.
func (c *Client) FilterMeals(ctx context.Context, f MealFilter) (*MealPage, error) {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.SearchTerm != "" {
		q.Set("searchTerm", f.SearchTerm)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	var resp MealPage
	err := c.do(ctx, call{
		op: "filter meals", method: http.MethodGet,
		path: "/api/products/filter", query: q,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
