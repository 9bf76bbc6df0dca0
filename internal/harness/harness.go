package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/catalog"
	"github.com/roach88/shrimpzone/internal/ids"
	"github.com/roach88/shrimpzone/internal/notify"
	"github.com/roach88/shrimpzone/internal/store"
	"github.com/roach88/shrimpzone/internal/testutil"
)

// DefaultTimeout bounds how long a step waits for a click to start or settle.
const DefaultTimeout = 5 * time.Second

// customerEmail is the account every scenario runs as.
const customerEmail = "harness@shrimpzone.test"

// staticToken is a TokenSource for a session that never ends.
type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type outcome struct {
	m   cart.Mutation
	err error
}

// click is one add or remove, possibly running in the background.
type click struct {
	label   string
	kind    cart.Kind
	product string
	id      string
	done    chan outcome
	out     *outcome
	settled bool
}

// Harness runs one scenario against a fresh fake server and database.
type Harness struct {
	scenario *Scenario
	policy   cart.Policy
	fake     *testutil.FakeAPI
	store    *store.Store
	ctl      *cart.Controller
	tray     *notify.Tray
	token    string
	logger   *slog.Logger
	timeout  time.Duration

	seq      int64
	seen     map[string]bool
	clicks   map[string]*click
	started  []*click
	releases map[string]func()
	baseline int
}

// Option configures Run.
type Option func(*Harness)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Harness) { h.timeout = d }
}

// WithLogger sets the logger for step progress. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// Run executes a scenario and returns the result. An error means the
// scenario could not be run at all; failed expectations and assertions are
// reported in Result.Errors.
//
// Execution flow:
//  1. Start a fake server with the menu and the initial cart
//  2. Open an in-memory database and wire a cart controller to both
//  3. Browse the menu and load the cart
//  4. Run the steps, tracing every click
//  5. Evaluate the assertions
func Run(t testing.TB, scenario *Scenario, opts ...Option) (*Result, error) {
	policy, err := cart.ParsePolicy(scenario.Policy)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewFakeClock(time.Time{})
	fake := testutil.NewFakeAPI(t)
	defer fake.Close()
	fake.SetNow(clock.Now)
	for _, item := range scenario.Menu {
		fake.AddMeal(item.ID, item.Name, item.Price, item.Category)
	}
	token := fake.IssueToken(customerEmail)
	for id, n := range scenario.Cart {
		fake.SetCartQuantity(token, id, n)
	}

	client, err := api.NewClient(fake.URL(), api.WithTokenSource(staticToken(token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	menu := catalog.NewService(client, catalog.WithCache(st), catalog.WithClock(clock.Now))
	tray := notify.NewTray(notify.WithClock(clock.Now))
	ctl := cart.NewController(client,
		cart.WithNotifier(tray),
		cart.WithPriceBook(menu),
		cart.WithJournal(st),
		cart.WithPolicy(policy),
		cart.WithClock(clock.Now),
		cart.WithIDGenerator(ids.NewSequence("mut")),
	)
	defer ctl.Close()

	h := &Harness{
		scenario: scenario,
		policy:   policy,
		fake:     fake,
		store:    st,
		ctl:      ctl,
		tray:     tray,
		token:    token,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:  DefaultTimeout,
		seen:     make(map[string]bool),
		clicks:   make(map[string]*click),
		releases: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(h)
	}

	ctx := context.Background()
	if _, err := menu.Browse(ctx, catalog.Filter{Limit: len(scenario.Menu)}); err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}
	if err := ctl.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	h.baseline = len(fake.Requests())

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			h.releaseAll()
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	if err := h.finish(result); err != nil {
		return nil, err
	}
	h.collect(result)

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, i int, step Step, result *Result) error {
	switch {
	case step.Add != "":
		return h.click(ctx, i, cart.KindAdd, step.Add, step, result)
	case step.Remove != "":
		return h.click(ctx, i, cart.KindRemove, step.Remove, step, result)
	case step.Await != "":
		c := h.clicks[step.Await]
		if c == nil {
			return fmt.Errorf("await of unknown label %q", step.Await)
		}
		if err := h.await(c); err != nil {
			return err
		}
		h.settle(i, c, step.Expect, result)
	case step.Hold != "":
		if _, held := h.releases[step.Hold]; held {
			return fmt.Errorf("route %s is already held", step.Hold)
		}
		h.releases[step.Hold] = h.fake.Hold(routes[step.Hold])
	case step.Release != "":
		release, held := h.releases[step.Release]
		if !held {
			return fmt.Errorf("release of route %s that is not held", step.Release)
		}
		release()
		delete(h.releases, step.Release)
	case step.Fail != nil:
		f := step.Fail
		if f.Once {
			h.fake.FailOnce(routes[f.Route], f.Status, f.Message)
		} else {
			h.fake.Fail(routes[f.Route], f.Status, f.Message)
		}
	case step.Heal:
		h.fake.ClearFailures()
	case step.Refresh:
		err := h.ctl.Refresh(ctx)
		h.record(result, TraceEvent{Type: EventRefresh, Error: errorCode(err), Confirmed: quantities(h.ctl.Local())})
	case step.Clear:
		err := h.ctl.Clear(ctx)
		h.record(result, TraceEvent{Type: EventClear, Error: errorCode(err), Confirmed: quantities(h.ctl.Local())})
	}

	h.logger.Info("step completed", "step", i)
	h.checkCarts(i, step.Expect, result)
	return nil
}

// click starts an add or remove. Without a label it waits for the click
// to settle.
func (h *Harness) click(ctx context.Context, i int, kind cart.Kind, product string, step Step, result *Result) error {
	c := &click{label: step.As, kind: kind, product: product, done: make(chan outcome, 1)}
	change := h.ctl.AddItem
	if kind == cart.KindRemove {
		change = h.ctl.RemoveItem
	}

	if c.label == "" {
		go func() {
			m, err := change(ctx, product)
			c.done <- outcome{m, err}
		}()
		if err := h.await(c); err != nil {
			return err
		}
		c.id = c.out.m.ID
		if c.id != "" {
			h.record(result, TraceEvent{Type: EventStarted, ID: c.id, Kind: kind.String(), ProductID: product})
		}
		h.settle(i, c, step.Expect, result)
		h.checkCarts(i, step.Expect, result)
		return nil
	}

	queued := h.policy == cart.PolicySerializePerProduct && h.hasPending(product)
	before := len(h.fake.Requests())
	go func() {
		m, err := change(ctx, product)
		c.done <- outcome{m, err}
	}()
	if err := h.waitStarted(c, queued, before); err != nil {
		return err
	}
	h.clicks[c.label] = c
	h.started = append(h.started, c)

	if c.id != "" {
		h.record(result, TraceEvent{
			Type:       EventStarted,
			Label:      c.label,
			ID:         c.id,
			Kind:       kind.String(),
			ProductID:  product,
			Optimistic: quantities(h.ctl.Optimistic()),
		})
	}
	h.logger.Info("click started", "step", i, "label", c.label, "id", c.id)
	h.checkCarts(i, step.Expect, result)
	return nil
}

// waitStarted returns once c is pending and its request reached the server,
// or it is queued behind another click of the same product, or it is done.
func (h *Harness) waitStarted(c *click, queued bool, before int) error {
	deadline := time.NewTimer(h.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case o := <-c.done:
			c.out = &o
			c.id = o.m.ID
			return nil
		case <-deadline.C:
			return fmt.Errorf("%s %s did not start within %s", c.kind, c.product, h.timeout)
		case <-tick.C:
		}
		id, pending := h.newPending(c.product)
		if pending && (queued || h.sentSince(before, c.product)) {
			c.id = id
			return nil
		}
	}
}

func (h *Harness) await(c *click) error {
	if c.settled {
		return fmt.Errorf("%q was already awaited", c.label)
	}
	if c.out != nil {
		return nil
	}
	deadline := time.NewTimer(h.timeout)
	defer deadline.Stop()
	select {
	case o := <-c.done:
		c.out = &o
		return nil
	case <-deadline.C:
		return fmt.Errorf("%s %s did not settle within %s", c.kind, c.product, h.timeout)
	}
}

// settle traces a finished click and checks the step's expectations.
func (h *Harness) settle(i int, c *click, expect *Expect, result *Result) {
	c.settled = true
	m := c.out.m
	e := TraceEvent{
		Type:      EventSettled,
		Label:     c.label,
		ID:        m.ID,
		Kind:      c.kind.String(),
		ProductID: c.product,
		Error:     errorCode(c.out.err),
		Confirmed: quantities(h.ctl.Local()),
	}
	if m.ID != "" {
		quantity := m.Quantity
		e.Quantity = &quantity
		e.State = m.State.String()
		e.Failure = m.Failure
	}
	h.record(result, e)
	h.logger.Info("click settled", "step", i, "label", c.label, "id", m.ID, "state", e.State)

	if expect == nil {
		return
	}
	if expect.State != "" && expect.State != e.State {
		result.AddError(fmt.Sprintf("steps[%d]: expected state %q, got %q", i, expect.State, e.State))
	}
	if expect.Failure != "" && expect.Failure != e.Failure {
		result.AddError(fmt.Sprintf("steps[%d]: expected failure %q, got %q", i, expect.Failure, e.Failure))
	}
}

func (h *Harness) checkCarts(i int, expect *Expect, result *Result) {
	if expect == nil {
		return
	}
	if expect.Optimistic != nil {
		if diff := cartDiff(expect.Optimistic, quantities(h.ctl.Optimistic())); diff != "" {
			result.AddError(fmt.Sprintf("steps[%d]: optimistic cart mismatch (-want +got):\n%s", i, diff))
		}
	}
	if expect.Confirmed != nil {
		if diff := cartDiff(expect.Confirmed, quantities(h.ctl.Local())); diff != "" {
			result.AddError(fmt.Sprintf("steps[%d]: confirmed cart mismatch (-want +got):\n%s", i, diff))
		}
	}
}

// finish settles background clicks the scenario never awaited.
func (h *Harness) finish(result *Result) error {
	h.releaseAll()
	for _, c := range h.started {
		if c.settled {
			continue
		}
		result.AddError(fmt.Sprintf("%q was never awaited", c.label))
		if err := h.await(c); err != nil {
			return err
		}
		h.settle(-1, c, nil, result)
	}
	return nil
}

func (h *Harness) releaseAll() {
	for name, release := range h.releases {
		release()
		delete(h.releases, name)
	}
}

func (h *Harness) collect(result *Result) {
	for _, r := range h.fake.Requests()[h.baseline:] {
		result.Requests = append(result.Requests, RequestEvent{Route: r.Route, Path: r.Path, Body: r.Body})
	}

	server := make(map[string]int)
	for _, item := range h.scenario.Menu {
		if n := h.fake.CartQuantity(h.token, item.ID); n > 0 {
			server[item.ID] = n
		}
	}
	result.Final = Carts{
		Server:     server,
		Confirmed:  quantities(h.ctl.Local()),
		Optimistic: quantities(h.ctl.Optimistic()),
	}

	for _, n := range h.tray.Active() {
		result.Notices = append(result.Notices, n.Message)
	}
}

func (h *Harness) record(result *Result, e TraceEvent) {
	h.seq++
	e.Seq = h.seq
	if e.ID != "" {
		h.seen[e.ID] = true
	}
	result.Trace = append(result.Trace, e)
}

func (h *Harness) hasPending(product string) bool {
	for _, m := range h.ctl.Pending() {
		if m.ProductID == product {
			return true
		}
	}
	return false
}

// newPending finds a pending click of product that is not traced yet.
func (h *Harness) newPending(product string) (string, bool) {
	for _, m := range h.ctl.Pending() {
		if m.ProductID == product && !h.seen[m.ID] {
			return m.ID, true
		}
	}
	return "", false
}

// sentSince reports whether a request about product arrived after the
// first before requests.
func (h *Harness) sentSince(before int, product string) bool {
	for _, r := range h.fake.Requests()[before:] {
		if strings.HasSuffix(r.Path, "/"+product) || strings.Contains(r.Body, `"`+product+`"`) {
			return true
		}
	}
	return false
}

func quantities(lines []cart.Line) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.ProductID] = l.Quantity
	}
	return out
}

func cartDiff(want, got map[string]int) string {
	return cmp.Diff(want, got, cmpopts.EquateEmpty())
}

// errorCode classifies a click or reload failure for the trace.
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case api.CodeOf(err) != "":
		return string(api.CodeOf(err))
	case errors.Is(err, cart.ErrNotInCart):
		return "NOT_IN_CART"
	case api.IsContextError(err):
		return "CANCELLED"
	}
	return "ERROR"
}
