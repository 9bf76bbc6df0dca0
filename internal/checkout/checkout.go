// Package checkout validates the order form and places orders.
//
// There is no payment processing: placing an order waits a short simulated
// delay, then empties the server cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/ids"
	"github.com/roach88/shrimpzone/internal/money"
)

// ErrEmptyCart is returned when placing an order with nothing in the cart.
var ErrEmptyCart = errors.New("cart is empty")

// Defaults for Summary.
var (
	DefaultDeliveryFee = money.New(399, -2)
	DefaultTaxRate     = money.New(8, -2)
)

// DefaultDelay is how long PlaceOrder pretends to talk to a payment provider.
const DefaultDelay = 2 * time.Second

// Summary is the price breakdown of an order.
type Summary struct {
	Items       int          `json:"items"`
	Subtotal    money.Amount `json:"subtotal"`
	DeliveryFee money.Amount `json:"deliveryFee"`
	Tax         money.Amount `json:"tax"`
	Total       money.Amount `json:"total"`
}

// Receipt confirms a placed order.
type Receipt struct {
	OrderID  string      `json:"orderId"`
	Lines    []cart.Line `json:"lines"`
	Summary  Summary     `json:"summary"`
	PlacedAt time.Time   `json:"placedAt"`
	Card     string      `json:"card"`
}

// Cart is the part of the cart controller checkout needs.
type Cart interface {
	Refresh(ctx context.Context) error
	Clear(ctx context.Context) error
	Local() []cart.Line
	Loaded() bool
	TotalsOf(lines []cart.Line) cart.Totals
}

// Service places orders.
type Service struct {
	cart  Cart
	fee   money.Amount
	rate  money.Amount
	delay time.Duration
	now   func() time.Time
	ids   ids.Generator
}

// Option configures a Service.
type Option func(*Service)

// WithFees overrides the delivery fee and tax rate.
func WithFees(fee, rate money.Amount) Option {
	return func(s *Service) {
		s.fee = fee
		s.rate = rate
	}
}

// WithDelay overrides the simulated processing delay.
func WithDelay(d time.Duration) Option {
	return func(s *Service) { s.delay = d }
}

// WithClock overrides the wall clock (for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the order id generator (for testing).
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Service) { s.ids = g }
}

// NewService creates a checkout service over c.
func NewService(c Cart, opts ...Option) *Service {
	s := &Service{
		cart:  c,
		fee:   DefaultDeliveryFee,
		rate:  DefaultTaxRate,
		delay: DefaultDelay,
		now:   time.Now,
		ids:   ids.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize prices totals with the service's fee and tax rate.
func (s *Service) Summarize(t cart.Totals) Summary {
	return Summarize(t, s.fee, s.rate)
}

// Summarize adds delivery and tax to a cart's totals. Tax is rounded to
// the cent.
func Summarize(t cart.Totals, fee, rate money.Amount) Summary {
	tax := t.Price.Mul(rate).Round()
	return Summary{
		Items:       t.Items,
		Subtotal:    t.Price,
		DeliveryFee: fee,
		Tax:         tax,
		Total:       t.Price.Add(fee).Add(tax),
	}
}

// Quote refreshes the cart and returns what the order would cost.
func (s *Service) Quote(ctx context.Context) (Summary, []cart.Line, error) {
	if err := s.cart.Refresh(ctx); err != nil {
		return Summary{}, nil, fmt.Errorf("quote: %w", err)
	}
	lines := s.cart.Local()
	return s.Summarize(s.cart.TotalsOf(lines)), lines, nil
}

// orderLines returns the confirmed cart and its summary, fetching the cart
// only when it has never been loaded.
func (s *Service) orderLines(ctx context.Context) (Summary, []cart.Line, error) {
	if !s.cart.Loaded() {
		return s.Quote(ctx)
	}
	lines := s.cart.Local()
	return s.Summarize(s.cart.TotalsOf(lines)), lines, nil
}

// PlaceOrder validates form, checks the cart has something in it, waits
// the simulated delay and clears the cart. An already loaded cart is used
// as it stands, so validation failures and an empty cart are reported
// without any network call. An unloaded cart is fetched first.
func (s *Service) PlaceOrder(ctx context.Context, form Form) (*Receipt, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	summary, lines, err := s.orderLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("place order: %w", ctx.Err())
		}
	}

	if err := s.cart.Clear(ctx); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	r := &Receipt{
		OrderID:  s.ids.Generate(),
		Lines:    lines,
		Summary:  summary,
		PlacedAt: s.now(),
		Card:     MaskCardNumber(form.CardNumber),
	}
	slog.Info("order placed", "order_id", r.OrderID, "items", summary.Items, "total", summary.Total.String())
	return r, nil
}
