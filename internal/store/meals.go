package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/shrimpzone/internal/api"
	"github.com/roach88/shrimpzone/internal/money"
)

// PutMeals upserts meals in one transaction, stamping them with fetchedAt.
func (s *Store) PutMeals(ctx context.Context, meals []api.Meal, fetchedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put meals: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO meals (id, name, description, price, category, images, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			price = excluded.price,
			category = excluded.category,
			images = excluded.images,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return fmt.Errorf("put meals: prepare: %w", err)
	}
	defer stmt.Close()

	at := formatTime(fetchedAt)
	for _, m := range meals {
		if m.ID == "" {
			return errors.New("put meals: meal without id")
		}
		images, err := marshalStrings(m.Images)
		if err != nil {
			return fmt.Errorf("put meals: %s: %w", m.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, m.ID, m.Name, m.Description, m.Price.String(), m.Category, images, at); err != nil {
			return fmt.Errorf("put meals: %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put meals: commit: %w", err)
	}
	return nil
}

// Meal returns one cached meal. ok is false when the meal was never cached.
func (s *Store) Meal(ctx context.Context, id string) (meal api.Meal, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, category, images
		FROM meals
		WHERE id = ?
	`, id)
	meal, err = scanMeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return api.Meal{}, false, nil
	}
	if err != nil {
		return api.Meal{}, false, fmt.Errorf("read meal %s: %w", id, err)
	}
	return meal, true, nil
}

// Meals returns every cached meal ordered by category then name.
// Returns an empty slice (not nil) when nothing is cached.
func (s *Store) Meals(ctx context.Context) ([]api.Meal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, price, category, images
		FROM meals
		ORDER BY category COLLATE BINARY ASC, name COLLATE BINARY ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query meals: %w", err)
	}
	defer rows.Close()

	meals := []api.Meal{}
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meal: %w", err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meals: %w", err)
	}
	return meals, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMeal(row scanner) (api.Meal, error) {
	var (
		m      api.Meal
		price  string
		images string
	)
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &price, &m.Category, &images); err != nil {
		return api.Meal{}, err
	}
	var err error
	if m.Price, err = money.Parse(price); err != nil {
		return api.Meal{}, err
	}
	if m.Images, err = unmarshalStrings(images); err != nil {
		return api.Meal{}, err
	}
	return m, nil
}
