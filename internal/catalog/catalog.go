// Package catalog reads the menu and remembers what each meal costs.
//
// Prices seen in any response, or loaded from the local cache, back the
// cart's PriceBook so totals can be shown for lines whose stored price the
// server left out.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/money"
)

// AllCategories is the category selector value meaning "no filter".
const AllCategories = "all"

// Gateway is the server side of the menu.
type Gateway interface {
	Categories(ctx context.Context) ([]api.Category, error)
	FilterMeals(ctx context.Context, f api.MealFilter) (*api.MealPage, error)
}

// Cache persists meals between runs.
type Cache interface {
	PutMeals(ctx context.Context, meals []api.Meal, fetchedAt time.Time) error
	Meals(ctx context.Context) ([]api.Meal, error)
}

// Filter selects meals. An empty Category or AllCategories matches every
// category; zero Page and Limit leave paging to the server.
type Filter struct {
	Category   string
	SearchTerm string
	Page       int
	Limit      int
}

// Menu is one browse result.
type Menu struct {
	Categories []api.Category `json:"categories"`
	Meals      []api.Meal     `json:"meals"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Pages      int            `json:"pages"`
}

// CategoryName returns the name of the category with the given id, or the id
// itself when it is unknown.
func (m *Menu) CategoryName(id string) string {
	for _, c := range m.Categories {
		if c.ID == id {
			return c.Name
		}
	}
	return id
}

// Service reads the menu.
//
// Thread-safety: Service is safe for concurrent use.
type Service struct {
	gw    Gateway
	cache Cache
	now   func() time.Time

	mu     sync.RWMutex
	prices map[string]money.Amount
	names  map[string]string
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores every fetched meal in c.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock overrides the wall clock (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a catalog service.
func NewService(gw Gateway, opts ...Option) *Service {
	s := &Service{
		gw:     gw,
		now:    time.Now,
		prices: make(map[string]money.Amount),
		names:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ cart.PriceBook = (*Service)(nil)

// Warm loads cached meals into the price book. It is a no-op without a cache.
func (s *Service) Warm(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	meals, err := s.cache.Meals(ctx)
	if err != nil {
		return fmt.Errorf("load cached meals: %w", err)
	}
	s.remember(meals)
	slog.Debug("catalog warmed", "meals", len(meals))
	return nil
}

// Categories lists every menu category.
func (s *Service) Categories(ctx context.Context) ([]api.Category, error) {
	cats, err := s.gw.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	return cats, nil
}

// Filter returns one page of meals matching f.
func (s *Service) Filter(ctx context.Context, f Filter) (*api.MealPage, error) {
	page, err := s.gw.FilterMeals(ctx, f.query())
	if err != nil {
		return nil, fmt.Errorf("filter meals: %w", err)
	}
	s.remember(page.Data)
	return page, nil
}

// Browse fetches categories and one page of meals concurrently and caches
// the meals. A cache failure is logged, not returned.
func (s *Service) Browse(ctx context.Context, f Filter) (*Menu, error) {
	var (
		cats []api.Category
		page *api.MealPage
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		cats, err = s.Categories(egCtx)
		return err
	})
	eg.Go(func() error {
		var err error
		page, err = s.Filter(egCtx, f)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if s.cache != nil && len(page.Data) > 0 {
		if err := s.cache.PutMeals(ctx, page.Data, s.now()); err != nil {
			slog.Warn("cache meals failed", "meals", len(page.Data), "error", err)
		}
	}

	meals := page.Data
	if meals == nil {
		meals = []api.Meal{}
	}
	return &Menu{
		Categories: cats,
		Meals:      meals,
		Total:      page.Total,
		Page:       page.Page,
		Pages:      page.Pages,
	}, nil
}

// UnitPrice returns the last known price of productID.
func (s *Service) UnitPrice(productID string) (money.Amount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[productID]
	return p, ok
}

// Name returns the last known name of productID.
func (s *Service) Name(productID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.names[productID]
	return n, ok
}

func (s *Service) remember(meals []api.Meal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range meals {
		if m.ID == "" {
			continue
		}
		s.prices[m.ID] = m.Price
		s.names[m.ID] = m.Name
	}
}

func (f Filter) query() api.MealFilter {
	category := strings.TrimSpace(f.Category)
	if strings.EqualFold(category, AllCategories) {
		category = ""
	}
	return api.MealFilter{
		Category:   category,
		SearchTerm: NormalizeSearch(f.SearchTerm),
		Page:       max(f.Page, 0),
		Limit:      max(f.Limit, 0),
	}
}

// NormalizeSearch trims a search term and puts it in Unicode NFC form so
// composed and decomposed input match the same meals.
func NormalizeSearch(term string) string {
	return norm.NFC.String(strings.TrimSpace(term))
}
