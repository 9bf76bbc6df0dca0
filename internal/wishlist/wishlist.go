// Package wishlist manages the meals a signed-in customer saved for later.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/shrimpzone/internal/api"
)

// Gateway is the server side of the wishlist.
type Gateway interface {
	GetWishlist(ctx context.Context) (*api.Wishlist, error)
	AddToWishlist(ctx context.Context, productID string) error
	RemoveFromWishlist(ctx context.Context, productID string) error
	ClearWishlist(ctx context.Context) error
}

// ErrEmptyProductID is returned for a blank product id. No request is made.
var ErrEmptyProductID = errors.New("empty product id")

// Service reads and edits the wishlist. Every call goes to the server;
// nothing is cached.
type Service struct {
	gw Gateway
}

// NewService creates a wishlist service.
func NewService(gw Gateway) *Service {
	return &Service{gw: gw}
}

// List returns the saved meals in the order they were saved.
func (s *Service) List(ctx context.Context) ([]api.Meal, error) {
	w, err := s.gw.GetWishlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	if w.Products == nil {
		return []api.Meal{}, nil
	}
	return w.Products, nil
}

// Contains reports whether productID is saved.
func (s *Service) Contains(ctx context.Context, productID string) (bool, error) {
	meals, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(meals, func(m api.Meal) bool { return m.ID == productID }), nil
}

// Add saves productID.
func (s *Service) Add(ctx context.Context, productID string) error {
	if productID == "" {
		return ErrEmptyProductID
	}
	if err := s.gw.AddToWishlist(ctx, productID); err != nil {
		return fmt.Errorf("add %s to wishlist: %w", productID, err)
	}
	slog.Debug("wishlist add", "product", productID)
	return nil
}

// Remove drops productID.
func (s *Service) Remove(ctx context.Context, productID string) error {
	if productID == "" {
		return ErrEmptyProductID
	}
	if err := s.gw.RemoveFromWishlist(ctx, productID); err != nil {
		return fmt.Errorf("remove %s from wishlist: %w", productID, err)
	}
	slog.Debug("wishlist remove", "product", productID)
	return nil
}

// Clear drops every saved meal.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.gw.ClearWishlist(ctx); err != nil {
		return fmt.Errorf("clear wishlist: %w", err)
	}
	return nil
}

// Toggle saves productID when it is absent and drops it when present. It
// returns whether the product is saved afterwards.
func (s *Service) Toggle(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, ErrEmptyProductID
	}
	saved, err := s.Contains(ctx, productID)
	if err != nil {
		return false, err
	}
	if saved {
		return false, s.Remove(ctx, productID)
	}
	return true, s.Add(ctx, productID)
}
