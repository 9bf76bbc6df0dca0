package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/ids"
	"github.com/roach88/shrimpzone/internal/notify"
)

// ErrNotInCart is returned when removing a product the confirmed cart does
// not contain. No request is made.
var ErrNotInCart = errors.New("product not in cart")

// ErrClosed is returned once the controller has been closed. Mutations that
// were in flight when Close was called return it after their response
// arrives; the response itself is discarded.
var ErrClosed = errors.New("cart controller closed")

// Gateway is the server side of the cart.
type Gateway interface {
	GetCart(ctx context.Context) (*api.Cart, error)
	AddToCart(ctx context.Context, productID string, quantity int) (*api.Cart, error)
	UpdateCart(ctx context.Context, productID string, quantity int) (*api.Cart, error)
	RemoveFromCart(ctx context.Context, productID string) (*api.Cart, error)
	ClearCart(ctx context.Context) (*api.Cart, error)
}

// Journal records settled mutations.
type Journal interface {
	RecordMutation(ctx context.Context, m Mutation) error
}

// View is a consistent snapshot of the controller.
type View struct {
	Local      []Line
	Optimistic []Line
	Pending    []Mutation
}

// Controller owns the customer's cart.
//
// Reads are served from memory. AddItem and RemoveItem project their effect
// before the request is sent and block until the server answers; run them on
// their own goroutines to overlap clicks.
//
// Thread-safety: Controller is safe for concurrent use. The internal mutex is
// never held across a gateway call.
type Controller struct {
	gw      Gateway
	sink    notify.Sink
	prices  PriceBook
	journal Journal
	policy  Policy
	ids     ids.Generator
	now     func() time.Time
	locks   *keyedLock
	seq     atomic.Int64

	mu        sync.Mutex
	local     []Line
	loaded    bool
	pending   []*Mutation
	closed    bool
	observers map[int]func(View)
	nextObs   int
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotifier sets where failure messages go. Default: notify.Discard.
func WithNotifier(s notify.Sink) Option {
	return func(c *Controller) { c.sink = s }
}

// WithPriceBook supplies catalog prices for Totals.
func WithPriceBook(p PriceBook) Option {
	return func(c *Controller) { c.prices = p }
}

// WithJournal records every settled mutation in j.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithPolicy sets the overlapping-mutation policy.
func WithPolicy(p Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithIDGenerator overrides the mutation id generator (for testing).
func WithIDGenerator(g ids.Generator) Option {
	return func(c *Controller) { c.ids = g }
}

// WithClock overrides the wall clock (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller with an empty confirmed cart. Call
// Refresh to load the server's cart.
func NewController(gw Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:        gw,
		sink:      notify.Discard,
		policy:    PolicyLastResponseWins,
		ids:       ids.UUIDv7Generator{},
		now:       time.Now,
		locks:     newKeyedLock(),
		observers: make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddItem adds one unit of productID.
func (c *Controller) AddItem(ctx context.Context, productID string) (Mutation, error) {
	return c.mutate(ctx, KindAdd, productID)
}

// RemoveItem removes one unit of productID, deleting the line at zero.
func (c *Controller) RemoveItem(ctx context.Context, productID string) (Mutation, error) {
	return c.mutate(ctx, KindRemove, productID)
}

func (c *Controller) mutate(ctx context.Context, kind Kind, productID string) (Mutation, error) {
	if productID == "" {
		return Mutation{}, errors.New("empty product id")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Mutation{}, ErrClosed
	}
	if kind == KindRemove && quantityOf(c.local, productID) < 1 {
		c.mu.Unlock()
		return Mutation{}, fmt.Errorf("remove %s: %w", productID, ErrNotInCart)
	}
	m := &Mutation{
		ID:        c.ids.Generate(),
		Seq:       c.seq.Add(1),
		Kind:      kind,
		ProductID: productID,
		State:     StateOptimistic,
		StartedAt: c.now(),
	}
	if kind == KindAdd {
		m.Quantity = 1
	}
	c.pending = append(c.pending, m)
	c.mu.Unlock()
	c.publish()

	slog.Debug("mutation started", "id", m.ID, "seq", m.Seq, "kind", kind, "product", productID)

	// Under PolicySerializePerProduct the product stays locked until m has
	// settled, so the next mutation reads the cart m produced.
	if c.policy == PolicySerializePerProduct {
		release, err := c.locks.acquire(ctx, productID)
		if err != nil {
			return c.settle(ctx, m, nil, err)
		}
		defer release()
	}

	cart, err := c.issue(ctx, m)
	return c.settle(ctx, m, cart, err)
}

// issue sends the request for m.
func (c *Controller) issue(ctx context.Context, m *Mutation) (*api.Cart, error) {
	if m.Kind == KindAdd {
		return c.gw.AddToCart(ctx, m.ProductID, 1)
	}

	// The new quantity is taken from the confirmed cart at the moment the
	// request goes out, not from the optimistic one.
	c.mu.Lock()
	n := quantityOf(c.local, m.ProductID)
	if n > 0 {
		m.Quantity = n - 1
	}
	c.mu.Unlock()
	switch {
	case n < 1:
		return nil, ErrNotInCart
	case n > 1:
		return c.gw.UpdateCart(ctx, m.ProductID, n-1)
	default:
		return c.gw.RemoveFromCart(ctx, m.ProductID)
	}
}

func (c *Controller) settle(ctx context.Context, m *Mutation, cart *api.Cart, err error) (Mutation, error) {
	c.mu.Lock()
	c.removePending(m)
	m.SettledAt = c.now()
	if err == nil {
		m.State = StateConfirmed
	} else {
		m.State = StateRolledBack
		m.Failure = failureMessage(m, err)
	}
	closed := c.closed
	if !closed && err == nil {
		c.local = linesFromCart(cart)
		c.loaded = true
	}
	snapshot := *m
	c.mu.Unlock()

	slog.Debug("mutation settled",
		"id", m.ID,
		"seq", m.Seq,
		"state", m.State,
		"discarded", closed,
		"error", err)

	if closed {
		return snapshot, ErrClosed
	}

	if c.journal != nil {
		if jerr := c.journal.RecordMutation(context.WithoutCancel(ctx), snapshot); jerr != nil {
			slog.Warn("journal mutation failed", "id", m.ID, "error", jerr)
		}
	}
	// A caller that gave up does not need telling. A transport timeout also
	// matches context.DeadlineExceeded, so only the caller's ctx decides.
	if err != nil && ctx.Err() == nil && !errors.Is(err, ErrNotInCart) {
		c.sink.Notify(notify.Notification{
			Level:   notify.LevelError,
			Message: snapshot.Failure,
			At:      snapshot.SettledAt,
		})
	}
	c.publish()

	if err != nil {
		return snapshot, fmt.Errorf("%s %s: %w", m.Kind, m.ProductID, err)
	}
	return snapshot, nil
}

func (c *Controller) removePending(m *Mutation) {
	for i, p := range c.pending {
		if p == m {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// failureMessage is the customer-facing text for a rolled back mutation.
func failureMessage(m *Mutation, err error) string {
	switch {
	case errors.Is(err, ErrNotInCart):
		return "Item is no longer in your cart"
	case api.IsNotAuthenticated(err) && m.Kind == KindAdd:
		return "Sign in to add items to your cart"
	case api.IsNotAuthenticated(err):
		return "Sign in to update your cart"
	case m.Kind == KindAdd:
		return "Failed to add item to cart"
	case m.Quantity > 0:
		return "Failed to update cart item"
	default:
		return "Failed to remove item from cart"
	}
}

// Refresh replaces the confirmed cart with the server's.
func (c *Controller) Refresh(ctx context.Context) error {
	cart, err := c.gw.GetCart(ctx)
	if err != nil {
		return fmt.Errorf("refresh cart: %w", err)
	}
	return c.replace(cart)
}

// Clear empties the server cart.
func (c *Controller) Clear(ctx context.Context) error {
	cart, err := c.gw.ClearCart(ctx)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return c.replace(cart)
}

func (c *Controller) replace(cart *api.Cart) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.local = linesFromCart(cart)
	c.loaded = true
	c.mu.Unlock()
	c.publish()
	return nil
}

// Loaded reports whether the confirmed cart has come from the server at
// least once.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Local returns the last server-confirmed cart.
func (c *Controller) Local() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Line(nil), c.local...)
}

// Optimistic returns the confirmed cart with every in-flight mutation applied.
func (c *Controller) Optimistic() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return project(c.local, c.pending)
}

// Quantity returns the optimistic quantity of productID.
func (c *Controller) Quantity(productID string) int {
	return quantityOf(c.Optimistic(), productID)
}

// Pending returns the in-flight mutations in the order they were made.
func (c *Controller) Pending() []Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *Controller) pendingLocked() []Mutation {
	out := make([]Mutation, len(c.pending))
	for i, m := range c.pending {
		out[i] = *m
	}
	return out
}

// Totals sums the optimistic cart.
func (c *Controller) Totals() Totals {
	return totals(c.Optimistic(), c.prices)
}

// TotalsOf sums lines using the controller's price book.
func (c *Controller) TotalsOf(lines []Line) Totals {
	return totals(lines, c.prices)
}

// View returns a consistent snapshot of both cart views.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	return View{
		Local:      append([]Line(nil), c.local...),
		Optimistic: project(c.local, c.pending),
		Pending:    c.pendingLocked(),
	}
}

// Subscribe calls fn with a fresh View after every change. Calls may arrive
// from any goroutine that changed the cart. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

func (c *Controller) publish() {
	c.mu.Lock()
	if c.closed || len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}
	v := c.viewLocked()
	fns := make([]func(View), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Close stops the controller. Responses that arrive afterwards are
// discarded and observers are no longer called.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.observers = make(map[int]func(View))
}
