// Package store provides SQLite-backed local state for the shrimpzone client.
//
// The store keeps three things between invocations:
//   - Session: the signed-in customer and bearer token (at most one)
//   - Meals: the menu as last fetched, used to price optimistic cart lines
//   - Mutations: a journal of settled cart mutations, oldest first
//
// The server remains the source of truth for the cart itself; nothing here
// is consulted to decide what the cart contains.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store satisfies session.Store and cart.Journal.
package store
