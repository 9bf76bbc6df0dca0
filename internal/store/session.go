package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/shrimpzone/internal/session"
)

// SaveSession replaces the stored session.
func (s *Store) SaveSession(ctx context.Context, sess session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, user_id, email, role, created_at, expires_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			user_id = excluded.user_id,
			email = excluded.email,
			role = excluded.role,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
	`,
		sess.Token,
		sess.User.ID,
		sess.User.Email,
		sess.User.Role,
		formatTime(sess.CreatedAt),
		nullTime(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the stored session, or (nil, nil) when there is none.
func (s *Store) LoadSession(ctx context.Context) (*session.Session, error) {
	var (
		sess      session.Session
		createdAt string
		expiresAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, email, role, created_at, expires_at
		FROM sessions
		WHERE id = 1
	`).Scan(&sess.Token, &sess.User.ID, &sess.User.Email, &sess.User.Role, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if sess.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.ExpiresAt, err = parseNullTime(expiresAt); err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes the stored session. Deleting when none is stored is
// not an error.
func (s *Store) DeleteSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = 1`); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ session.Store = (*Store)(nil)
