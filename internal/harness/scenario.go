package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shrimpzone/internal/cart"
	"github.com/roach88/shrimpzone/internal/money"
	"github.com/roach88/shrimpzone/internal/testutil"
)

// Scenario is a scripted cart session.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario shows.
	Description string `yaml:"description"`

	// Policy is the mutation policy; empty means last-response-wins.
	Policy string `yaml:"policy,omitempty"`

	// Menu lists the meals the server sells.
	Menu []MenuItem `yaml:"menu"`

	// Cart is the server cart before the first step, by product id.
	Cart map[string]int `yaml:"cart,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// MenuItem is a meal on the fake server.
type MenuItem struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Category string `yaml:"category,omitempty"`
}

// Step is one scripted action. Exactly one of the action fields is set.
type Step struct {
	Add     string    `yaml:"add,omitempty"`
	Remove  string    `yaml:"remove,omitempty"`
	Await   string    `yaml:"await,omitempty"`
	Hold    string    `yaml:"hold,omitempty"`
	Release string    `yaml:"release,omitempty"`
	Fail    *FailSpec `yaml:"fail,omitempty"`
	Heal    bool      `yaml:"heal,omitempty"`
	Refresh bool      `yaml:"refresh,omitempty"`
	Clear   bool      `yaml:"clear,omitempty"`

	// As runs an add or remove in the background under this label.
	As string `yaml:"as,omitempty"`

	// Expect is checked once the step is done.
	Expect *Expect `yaml:"expect,omitempty"`
}

// FailSpec injects a server failure.
type FailSpec struct {
	Route   string `yaml:"route"`
	Status  int    `yaml:"status"`
	Message string `yaml:"message,omitempty"`
	Once    bool   `yaml:"once,omitempty"`
}

// Expect describes the outcome of a step. Blank fields are not checked.
type Expect struct {
	// State and Failure apply to the mutation a step settled.
	State   string `yaml:"state,omitempty"`
	Failure string `yaml:"failure,omitempty"`

	// Optimistic and Confirmed are the carts right after the step.
	Optimistic map[string]int `yaml:"optimistic,omitempty"`
	Confirmed  map[string]int `yaml:"confirmed,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Label, Kind, Product, State and Failure select settled mutations
	// (trace_contains, trace_count).
	Label   string `yaml:"label,omitempty"`
	Kind    string `yaml:"kind,omitempty"`
	Product string `yaml:"product,omitempty"`
	State   string `yaml:"state,omitempty"`
	Failure string `yaml:"failure,omitempty"`

	// Count is the expected number of matches (trace_count, requests).
	Count int `yaml:"count,omitempty"`

	// Labels is the expected settle order (trace_order).
	Labels []string `yaml:"labels,omitempty"`

	// Table, Where and Expect query the local database (final_state).
	Table  string         `yaml:"table,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// Cart and Items compare a whole cart (cart).
	Cart  string         `yaml:"cart,omitempty"`
	Items map[string]int `yaml:"items,omitempty"`

	// Route is the route counted (requests).
	Route string `yaml:"route,omitempty"`

	// Messages are the expected notifications (notices).
	Messages []string `yaml:"messages,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertCart          = "cart"
	AssertRequests      = "requests"
	AssertNotices       = "notices"
)

// Carts an assertion can name.
const (
	CartServer     = "server"
	CartConfirmed  = "confirmed"
	CartOptimistic = "optimistic"
)

// routes maps scenario route names to FakeAPI routes.
var routes = map[string]string{
	"add_to_cart":      testutil.RouteAddToCart,
	"update_cart":      testutil.RouteUpdateCart,
	"remove_from_cart": testutil.RouteRemoveFromCart,
	"get_cart":         testutil.RouteGetCart,
	"clear_cart":       testutil.RouteClearCart,
}

// RouteNames lists the route names scenarios may use, sorted.
func RouteNames() []string {
	names := make([]string, 0, len(routes))
	for name := range routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so that typos do not silently skip checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and cross references.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := cart.ParsePolicy(s.Policy); err != nil {
		return err
	}
	if len(s.Menu) == 0 {
		return fmt.Errorf("menu list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	meals := make(map[string]bool, len(s.Menu))
	for i, item := range s.Menu {
		if item.ID == "" || item.Name == "" {
			return fmt.Errorf("menu[%d]: id and name are required", i)
		}
		if meals[item.ID] {
			return fmt.Errorf("menu[%d]: duplicate id %q", i, item.ID)
		}
		if _, err := money.Parse(item.Price); err != nil {
			return fmt.Errorf("menu[%d]: %w", i, err)
		}
		meals[item.ID] = true
	}
	for id, n := range s.Cart {
		if !meals[id] {
			return fmt.Errorf("cart: %q is not on the menu", id)
		}
		if n < 1 {
			return fmt.Errorf("cart: quantity of %q must be at least 1", id)
		}
	}

	labels := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(step, meals, labels); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, meals, labels map[string]bool) error {
	actions := 0
	for _, set := range []bool{
		step.Add != "", step.Remove != "", step.Await != "",
		step.Hold != "", step.Release != "", step.Fail != nil,
		step.Heal, step.Refresh, step.Clear,
	} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("exactly one action is required, found %d", actions)
	}

	switch {
	case step.Add != "" || step.Remove != "":
		product := step.Add + step.Remove
		if !meals[product] {
			return fmt.Errorf("%q is not on the menu", product)
		}
		if step.As != "" {
			if labels[step.As] {
				return fmt.Errorf("label %q is used twice", step.As)
			}
			labels[step.As] = true
		}
		return nil
	case step.As != "":
		return fmt.Errorf("as only applies to add and remove")
	case step.Await != "":
		if !labels[step.Await] {
			return fmt.Errorf("await of unknown label %q", step.Await)
		}
	case step.Hold != "":
		return checkRoute(step.Hold)
	case step.Release != "":
		return checkRoute(step.Release)
	case step.Fail != nil:
		if step.Fail.Status < 400 {
			return fmt.Errorf("fail: status must be an error status, got %d", step.Fail.Status)
		}
		return checkRoute(step.Fail.Route)
	}
	return nil
}

func checkRoute(name string) error {
	if _, ok := routes[name]; !ok {
		return fmt.Errorf("unknown route %q (want one of %v)", name, RouteNames())
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Label == "" && a.Kind == "" && a.Product == "" {
			return fmt.Errorf("assertions[%d]: label, kind or product is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Labels) < 2 {
			return fmt.Errorf("assertions[%d]: at least two labels are required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertCart:
		switch a.Cart {
		case CartServer, CartConfirmed, CartOptimistic:
		default:
			return fmt.Errorf("assertions[%d]: cart must be server, confirmed or optimistic, got %q", index, a.Cart)
		}
	case AssertRequests:
		if err := checkRoute(a.Route); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertNotices:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
