// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package metadb

import (
	"context"
	"database/sql"
	"errors"
)

// ReadConfig returns the value for key, or *ErrNotFound if unset.
func (d *DB) ReadConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := d.sql.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", NewErrNotFound("config " + key)
		}
		return "", err
	}
	return value, nil
}

// WriteConfig upserts key=value within tx.
func (d *DB) WriteConfig(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}
