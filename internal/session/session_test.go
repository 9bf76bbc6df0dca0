package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/testutil"
)

type memoryStore struct {
	saved   *Session
	deletes int
	failErr error
}

func (s *memoryStore) SaveSession(_ context.Context, sess Session) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.saved = &sess
	return nil
}

func (s *memoryStore) LoadSession(context.Context) (*Session, error) {
	return s.saved, nil
}

func (s *memoryStore) DeleteSession(context.Context) error {
	s.saved = nil
	s.deletes++
	return nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return s
}

var alice = api.User{ID: "user-1", Email: "a@b.com", Role: "customer"}

func TestNoSessionByDefault(t *testing.T) {
	m := NewManager()

	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestBeginPersistsAndServesToken(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	store := &memoryStore{}
	m := NewManager(WithStore(store), WithClock(clock.Now))

	s, err := m.Begin(context.Background(), "opaque-token", alice)
	require.NoError(t, err)

	assert.Equal(t, "opaque-token", s.Token)
	assert.True(t, s.ExpiresAt.IsZero(), "opaque tokens without TTL never expire")
	require.NotNil(t, store.saved)
	assert.Equal(t, alice, store.saved.User)

	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)
}

func TestBeginRejectsEmptyToken(t *testing.T) {
	m := NewManager()
	_, err := m.Begin(context.Background(), "", alice)
	require.Error(t, err)
}

func TestBeginSaveFailureKeepsNoSession(t *testing.T) {
	store := &memoryStore{failErr: errors.New("disk full")}
	m := NewManager(WithStore(store))

	_, err := m.Begin(context.Background(), "t", alice)
	require.Error(t, err)

	_, err = m.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestJWTExpiryEndsSession(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	store := &memoryStore{}
	m := NewManager(WithStore(store), WithClock(clock.Now))
	exp := clock.Now().Add(time.Hour).Truncate(time.Second)

	s, err := m.Begin(context.Background(), signedToken(t, exp), alice)
	require.NoError(t, err)
	assert.True(t, s.ExpiresAt.Equal(exp))

	clock.Advance(59 * time.Minute)
	_, err = m.Token(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = m.Token(context.Background())
	assert.ErrorIs(t, err, ErrExpired)
	assert.Nil(t, store.saved, "expired session is removed from the store")

	_, err = m.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestTTLAppliesToOpaqueTokens(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	m := NewManager(WithClock(clock.Now), WithTTL(30*time.Minute))

	s, err := m.Begin(context.Background(), "opaque", alice)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(30*time.Minute), s.ExpiresAt)
}

func TestRestore(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	store := &memoryStore{saved: &Session{Token: "kept", User: alice, ExpiresAt: clock.Now().Add(time.Minute)}}
	m := NewManager(WithStore(store), WithClock(clock.Now))

	require.NoError(t, m.Restore(context.Background()))
	token, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kept", token)
}

func TestRestoreDropsExpired(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	store := &memoryStore{saved: &Session{Token: "old", User: alice, ExpiresAt: clock.Now().Add(-time.Minute)}}
	m := NewManager(WithStore(store), WithClock(clock.Now))

	require.NoError(t, m.Restore(context.Background()))

	assert.Nil(t, store.saved)
	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestEnd(t *testing.T) {
	store := &memoryStore{}
	m := NewManager(WithStore(store))
	_, err := m.Begin(context.Background(), "t", alice)
	require.NoError(t, err)

	require.NoError(t, m.End(context.Background()))
	require.NoError(t, m.End(context.Background()), "ending twice is fine")

	assert.Nil(t, store.saved)
	_, err = m.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}
