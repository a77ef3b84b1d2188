package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// GetNames retrieves the cached autocomplete names of an account in alphabetical order.
func (d *Datasource) GetNames(ctx context.Context, userID int64) ([]string, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT name FROM attendance.names WHERE user_id = $1 ORDER BY name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ReplaceNames deletes the cached names of an account and inserts the new set
// under a single commit.
func (d *Datasource) ReplaceNames(ctx context.Context, userID int64, names []string) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance.names WHERE user_id = $1`, userID); err != nil {
			return err
		}
		if len(names) == 0 {
			return nil
		}

		placeholders := make([]string, 0, len(names))
		args := make([]interface{}, 0, len(names)+1)
		args = append(args, userID)
		for i, name := range names {
			placeholders = append(placeholders, fmt.Sprintf("($1, $%d)", i+2))
			args = append(args, name)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO attendance.names (user_id, name) VALUES `+strings.Join(placeholders, ", "),
			args...,
		)
		return err
	})
}
