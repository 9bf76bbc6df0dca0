// Package session holds the signed-in customer's credential.
//
// A Manager is created once per process and handed to the API client as its
// TokenSource. A session begins when a one-time code is verified, is
// persisted so later invocations stay signed in, and ends on logout or as
// soon as its expiry passes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/shrimpzone/internal/api"
)

// ErrNoSession is returned when no one is signed in.
var ErrNoSession = errors.New("no active session")

// ErrExpired is returned when the stored session has passed its expiry.
var ErrExpired = errors.New("session expired")

// Session is an authenticated customer.
type Session struct {
	Token     string
	User      api.User
	CreatedAt time.Time
	ExpiresAt time.Time // zero means no known expiry
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists the current session.
type Store interface {
	SaveSession(ctx context.Context, s Session) error
	// LoadSession returns (nil, nil) when nothing is stored.
	LoadSession(ctx context.Context) (*Session, error)
	DeleteSession(ctx context.Context) error
}

// Manager owns the session lifecycle.
//
// Thread-safety: Manager is safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	store   Store
	now     func() time.Time
	ttl     time.Duration
	current *Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists sessions in s.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithClock overrides the wall clock (for testing).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithTTL sets the lifetime of sessions whose token carries no expiry.
// Zero keeps them until logout.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// NewManager creates a manager with no active session.
func NewManager(opts ...Option) *Manager {
	m := &Manager{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads a persisted session. An expired one is deleted instead.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	s, err := m.store.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Expired(m.now()) {
		slog.Debug("discarding expired session", "user", s.User.Email, "expires_at", s.ExpiresAt)
		return m.clearLocked(ctx)
	}
	m.current = s
	return nil
}

// Begin starts a session for a freshly verified token.
func (m *Manager) Begin(ctx context.Context, token string, user api.User) (*Session, error) {
	if token == "" {
		return nil, errors.New("begin session: empty token")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := &Session{Token: token, User: user, CreatedAt: now}
	if exp, ok := TokenExpiry(token); ok {
		s.ExpiresAt = exp
	} else if m.ttl > 0 {
		s.ExpiresAt = now.Add(m.ttl)
	}

	if m.store != nil {
		if err := m.store.SaveSession(ctx, *s); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}
	m.current = s
	slog.Info("session started", "user", user.Email, "expires_at", s.ExpiresAt)

	out := *s
	return &out, nil
}

// Current returns the active session.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, ErrNoSession
	}
	if m.current.Expired(m.now()) {
		if err := m.clearLocked(ctx); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	out := *m.current
	return &out, nil
}

// Token implements api.TokenSource.
func (m *Manager) Token(ctx context.Context) (string, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// End signs out. Ending without a session is not an error.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		slog.Info("session ended", "user", m.current.User.Email)
	}
	return m.clearLocked(ctx)
}

func (m *Manager) clearLocked(ctx context.Context) error {
	m.current = nil
	if m.store == nil {
		return nil
	}
	if err := m.store.DeleteSession(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// TokenExpiry reads the "exp" claim of a JWT without verifying its
// signature. The client never holds the signing key; the server remains the
// authority and a forged exp only affects when this client stops sending it.
func TokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
