package store

import (
	"context"
	"fmt"

	"github.com/roach88/shrimpzone/internal/cart"
)

// RecordMutation appends a settled mutation to the journal.
// Uses ON CONFLICT(id) DO NOTHING so recording twice is harmless.
func (s *Store) RecordMutation(ctx context.Context, m cart.Mutation) error {
	if !m.State.Settled() {
		return fmt.Errorf("record mutation %s: state %s is not settled", m.ID, m.State)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mutations
		(id, seq, kind, product_id, quantity, state, failure, started_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		m.ID,
		m.Seq,
		m.Kind.String(),
		m.ProductID,
		m.Quantity,
		m.State.String(),
		m.Failure,
		formatTime(m.StartedAt),
		formatTime(m.SettledAt),
	)
	if err != nil {
		return fmt.Errorf("record mutation %s: %w", m.ID, err)
	}
	return nil
}

// HistoryFilter narrows ReadMutations.
type HistoryFilter struct {
	// ProductID limits results to one product when set.
	ProductID string

	// Limit keeps only the most recent N entries when positive.
	Limit int
}

// ReadMutations returns journaled mutations oldest first.
// Returns an empty slice (not nil) when the journal is empty.
func (s *Store) ReadMutations(ctx context.Context, f HistoryFilter) ([]cart.Mutation, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	// Most recent N, then re-ordered oldest first.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, kind, product_id, quantity, state, failure, started_at, settled_at
		FROM (
			SELECT * FROM mutations
			WHERE (? = '' OR product_id = ?)
			ORDER BY position DESC
			LIMIT ?
		)
		ORDER BY position ASC
	`, f.ProductID, f.ProductID, limit)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	mutations := []cart.Mutation{}
	for rows.Next() {
		var (
			m                    cart.Mutation
			kind, state          string
			startedAt, settledAt string
		)
		if err := rows.Scan(&m.ID, &m.Seq, &kind, &m.ProductID, &m.Quantity, &state, &m.Failure, &startedAt, &settledAt); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		if m.Kind, err = cart.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("scan mutation %s: %w", m.ID, err)
		}
		if m.State, err = cart.ParseState(state); err != nil {
			return nil, fmt.Errorf("scan mutation %s: %w", m.ID, err)
		}
		if m.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("scan mutation %s: %w", m.ID, err)
		}
		if m.SettledAt, err = parseTime(settledAt); err != nil {
			return nil, fmt.Errorf("scan mutation %s: %w", m.ID, err)
		}
		mutations = append(mutations, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations: %w", err)
	}
	return mutations, nil
}

var _ cart.Journal = (*Store)(nil)
