package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: One add of one meal
menu:
  - { id: m-1, name: Garlic Shrimp, price: "12.50" }
steps:
  - add: m-1
assertions:
  - type: trace_contains
    product: m-1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "One add of one meal", s.Description)
	assert.Empty(t, s.Policy)
	require.Len(t, s.Menu, 1)
	assert.Equal(t, MenuItem{ID: "m-1", Name: "Garlic Shrimp", Price: "12.50"}, s.Menu[0])
	require.Len(t, s.Steps, 1)
	assert.Equal(t, "m-1", s.Steps[0].Add)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertTraceContains, s.Assertions[0].Type)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_FullStep(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: full
description: Every step field
policy: serialize-per-product
menu:
  - { id: m-1, name: Garlic Shrimp, price: "12.50", category: cat-shrimp }
cart: { m-1: 2 }
steps:
  - fail: { route: update_cart, status: 503, message: busy, once: true }
  - remove: m-1
    as: first
    expect: { optimistic: { m-1: 1 } }
  - await: first
    expect:
      state: rolled_back
      failure: Failed to update cart item
      confirmed: { m-1: 2 }
  - heal: true
  - refresh: true
assertions:
  - type: final_state
    table: mutations
    where: { id: mut-1 }
    expect: { quantity: 1 }
`))
	require.NoError(t, err)

	assert.Equal(t, "serialize-per-product", s.Policy)
	assert.Equal(t, map[string]int{"m-1": 2}, s.Cart)
	assert.Equal(t, &FailSpec{Route: "update_cart", Status: 503, Message: "busy", Once: true}, s.Steps[0].Fail)
	assert.Equal(t, "first", s.Steps[1].As)
	assert.Equal(t, map[string]int{"m-1": 1}, s.Steps[1].Expect.Optimistic)
	assert.Equal(t, "rolled_back", s.Steps[2].Expect.State)
	assert.True(t, s.Steps[3].Heal)
	assert.True(t, s.Steps[4].Refresh)
	assert.Equal(t, map[string]any{"quantity": 1}, s.Assertions[0].Expect)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "\nflow: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	const menu = `
menu:
  - { id: m-1, name: Garlic Shrimp, price: "12.50" }
`
	const asserts = `
assertions:
  - type: notices
`
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\n" + menu + "steps:\n  - add: m-1\n" + asserts,
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\n" + menu + "steps:\n  - add: m-1\n" + asserts,
			want: "description is required",
		},
		{
			name: "unknown policy",
			yaml: "name: n\ndescription: d\npolicy: first-wins\n" + menu + "steps:\n  - add: m-1\n" + asserts,
			want: "first-wins",
		},
		{
			name: "empty menu",
			yaml: "name: n\ndescription: d\nsteps:\n  - add: m-1\n" + asserts,
			want: "menu list is required",
		},
		{
			name: "bad price",
			yaml: "name: n\ndescription: d\nmenu:\n  - { id: m-1, name: X, price: cheap }\nsteps:\n  - add: m-1\n" + asserts,
			want: "menu[0]",
		},
		{
			name: "duplicate meal",
			yaml: "name: n\ndescription: d\nmenu:\n  - { id: m-1, name: X, price: \"1\" }\n  - { id: m-1, name: Y, price: \"2\" }\nsteps:\n  - add: m-1\n" + asserts,
			want: `duplicate id "m-1"`,
		},
		{
			name: "cart meal off menu",
			yaml: "name: n\ndescription: d\n" + menu + "cart: { m-9: 1 }\nsteps:\n  - add: m-1\n" + asserts,
			want: `"m-9" is not on the menu`,
		},
		{
			name: "cart quantity zero",
			yaml: "name: n\ndescription: d\n" + menu + "cart: { m-1: 0 }\nsteps:\n  - add: m-1\n" + asserts,
			want: "must be at least 1",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d\n" + menu + asserts,
			want: "steps list is required",
		},
		{
			name: "no assertions",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - add: m-1\n",
			want: "assertions list is required",
		},
		{
			name: "two actions",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - add: m-1\n    heal: true\n" + asserts,
			want: "exactly one action is required, found 2",
		},
		{
			name: "no action",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - as: x\n" + asserts,
			want: "exactly one action is required, found 0",
		},
		{
			name: "add off menu",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - add: m-2\n" + asserts,
			want: `steps[0]: "m-2" is not on the menu`,
		},
		{
			name: "label reused",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - { add: m-1, as: a }\n  - { add: m-1, as: a }\n" + asserts,
			want: `label "a" is used twice`,
		},
		{
			name: "as on hold",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - { hold: add_to_cart, as: a }\n" + asserts,
			want: "as only applies to add and remove",
		},
		{
			name: "await before click",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - await: a\n  - { add: m-1, as: a }\n" + asserts,
			want: `await of unknown label "a"`,
		},
		{
			name: "unknown route",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - hold: checkout\n" + asserts,
			want: `unknown route "checkout"`,
		},
		{
			name: "fail with success status",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - fail: { route: add_to_cart, status: 200 }\n" + asserts,
			want: "status must be an error status, got 200",
		},
		{
			name: "assertion without type",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - add: m-1\nassertions:\n  - count: 1\n",
			want: "assertions[0]: type is required",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - add: m-1\nassertions:\n  - type: trace_sum\n",
			want: `unknown assertion type "trace_sum"`,
		},
		{
			name: "trace_order with one label",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - add: m-1\nassertions:\n  - { type: trace_order, labels: [a] }\n",
			want: "at least two labels",
		},
		{
			name: "final_state without expect",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - add: m-1\nassertions:\n  - { type: final_state, table: mutations }\n",
			want: "expect is required for final_state",
		},
		{
			name: "cart assertion with bad cart",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - add: m-1\nassertions:\n  - { type: cart, cart: pending }\n",
			want: `got "pending"`,
		},
		{
			name: "requests with unknown route",
			yaml: "name: n\ndescription: d\n" + menu + "steps:\n  - add: m-1\nassertions:\n  - { type: requests, route: login, count: 1 }\n",
			want: `unknown route "login"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRouteNames_Sorted(t *testing.T) {
	assert.Equal(t,
		[]string{"add_to_cart", "clear_cart", "get_cart", "remove_from_cart", "update_cart"},
		RouteNames())
}
