package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Discipline is an entry in the disciplines catalog.
type Discipline struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Enabled  bool   `json:"enabled"`
}

// IsDisciplineKnown checks if a discipline is in the catalog and enabled.
func (db *DB) IsDisciplineKnown(ctx context.Context, name string) (bool, error) {
	var enabled bool
	err := db.Pool.QueryRow(ctx,
		`SELECT enabled FROM disciplines WHERE name = $1`,
		name).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("checking discipline catalog: %w", err)
	}
	return enabled, nil
}

// GetDisciplines returns the whole catalog.
func (db *DB) GetDisciplines(ctx context.Context) ([]Discipline, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT name, category, enabled FROM disciplines ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("querying disciplines: %w", err)
	}
	defer rows.Close()

	var result []Discipline
	for rows.Next() {
		var d Discipline
		if err := rows.Scan(&d.Name, &d.Category, &d.Enabled); err != nil {
			return nil, fmt.Errorf("scanning discipline: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
