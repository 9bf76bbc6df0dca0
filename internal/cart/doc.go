// Package cart keeps the customer's cart in step with the server while
// hiding network latency.
//
// The Controller holds two views of the cart:
//
//   - Local: the last cart the server confirmed. Only a successful response
//     replaces it.
//   - Optimistic: Local with every in-flight mutation applied in the order
//     it was issued. It is recomputed on every read and never stored, so a
//     failed mutation disappears from it the moment it leaves the pending set.
//
// Each mutation moves through Idle → Optimistic → {Confirmed | RolledBack}.
// Confirmed replaces Local with the server's cart; RolledBack leaves Local
// untouched and raises a notification.
//
// # Overlapping mutations
//
// Under PolicyLastResponseWins (the default) overlapping mutations run
// independently and Local becomes whichever server response resolved last.
// Two quick adds therefore issue two requests whose responses may arrive out
// of order; the displayed quantity can briefly disagree with the click count.
//
// PolicySerializePerProduct queues mutations of the same product behind one
// another while still projecting each click immediately.
package cart
