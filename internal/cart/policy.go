package cart

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Policy decides how overlapping mutations of one product interact.
type Policy int

const (
	// PolicyLastResponseWins issues every mutation as soon as it is made.
	// Local state becomes whichever server response resolves last.
	PolicyLastResponseWins Policy = iota

	// PolicySerializePerProduct waits for the previous mutation of the same
	// product to settle before issuing the next one.
	PolicySerializePerProduct
)

func (p Policy) String() string {
	switch p {
	case PolicyLastResponseWins:
		return "last-response-wins"
	case PolicySerializePerProduct:
		return "serialize-per-product"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy is the inverse of Policy.String. An empty string is the default.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "last-response-wins":
		return PolicyLastResponseWins, nil
	case "serialize-per-product":
		return PolicySerializePerProduct, nil
	}
	return 0, fmt.Errorf("unknown mutation policy %q", s)
}

// keyedLock is a context-aware mutex per key. Entries are dropped once no
// goroutine holds or waits on them.
type keyedLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{entries: make(map[string]*lockEntry)}
}

// acquire blocks until key is free or ctx is done.
func (k *keyedLock) acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{sem: semaphore.NewWeighted(1)}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.drop(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.drop(key, e)
		})
	}, nil
}

func (k *keyedLock) drop(key string, e *lockEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

func (k *keyedLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
