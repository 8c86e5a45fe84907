package db

import (
	"context"
	"encoding/json"
	"fmt"
)

// Settings returns the opaque settings blob for a provider or category id.
// An unknown category yields an empty map, not an error.
func (d *DB) Settings(ctx context.Context, category string) (map[string]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var raw string

	err := d.db.QueryRowContext(ctx, `
		select value from settings where category = $1
	`, category).Scan(&raw)
	if err != nil {
		if ErrCode(parseErr(err)) == ErrCodeNoRows {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	values := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return values, nil
}

// SetSettings replaces the settings blob for a category.
func (d *DB) SetSettings(ctx context.Context, category string, values map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, `
		insert into settings (category, value)
		values ($1, $2)
		on conflict (category) do update set value = excluded.value
	`, category, string(raw)); err != nil {
		return fmt.Errorf("failed to set settings: %w", err)
	}

	return nil
}
