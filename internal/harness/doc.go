// Package harness runs cart scenarios against a fake storefront API.
//
// A scenario drives a real cart.Controller through a script of clicks,
// server holds and injected failures, then checks the trace of started and
// settled mutations, the final carts and the local journal.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: overlapping_add_and_remove
//	description: "An add and a remove of one product overlap"
//	policy: last-response-wins
//	menu:
//	  - { id: m-1, name: Garlic Shrimp, price: "12.50" }
//	cart: { m-1: 2 }
//	steps:
//	  - hold: update_cart
//	  - remove: m-1
//	    as: r1
//	    expect: { optimistic: { m-1: 1 } }
//	  - release: update_cart
//	  - await: r1
//	    expect: { state: confirmed, confirmed: { m-1: 1 } }
//	assertions:
//	  - type: cart
//	    cart: server
//	    items: { m-1: 1 }
//
// A step does exactly one thing:
//
//   - add, remove: click once on a product. With "as" the click runs in the
//     background under that label; without it the step waits for it to settle.
//   - await: wait for a background click to settle.
//   - hold, release: block and unblock responses on a route.
//   - fail: make a route answer with an error; heal removes every failure.
//   - refresh, clear: reload or empty the cart.
//
// Routes are named add_to_cart, update_cart, remove_from_cart, get_cart and
// clear_cart.
//
// # Assertion Types
//
//   - trace_contains: a settled mutation matches label, kind, product, state
//     and failure (blank fields match anything)
//   - trace_order: labels settled in the given order
//   - trace_count: exactly N settled mutations match
//   - final_state: a row of a local database table has the expected values
//   - cart: the server, confirmed or optimistic cart has exactly these items
//   - requests: a route was called N times while the steps ran
//   - notices: the notification tray shows exactly these messages
//
// # Deterministic Runs
//
// Every run uses a stopped clock, sequential mutation ids (mut-1, mut-2, ...)
// and a fresh in-memory database. A background click is only considered
// started once it is pending and its request has reached the server (or it
// is queued behind another click of the same product), so traces are the
// same from run to run and can be compared with golden files.
package harness
