// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package metadb

import (
	"context"
	"database/sql"
	"errors"
)

// ReadBranchTip returns the branch's tip commit hash, or *ErrNotFound if
// the branch does not exist.
func (d *DB) ReadBranchTip(ctx context.Context, name string) (string, error) {
	return readTip(ctx, d.sql, "branches", name)
}

// WriteBranchTip upserts the branch's tip within tx.
func (d *DB) WriteBranchTip(ctx context.Context, tx *sql.Tx, name, tip string) error {
	return upsertTip(ctx, tx, "branches", name, tip)
}

// ReadRemoteBranchTip returns the last tip known to have been
// synchronised with an external peer for name, or *ErrNotFound.
func (d *DB) ReadRemoteBranchTip(ctx context.Context, name string) (string, error) {
	return readTip(ctx, d.sql, "remote_branches", name)
}

// WriteRemoteBranchTip upserts the remote-branch tip within tx.
func (d *DB) WriteRemoteBranchTip(ctx context.Context, tx *sql.Tx, name, tip string) error {
	return upsertTip(ctx, tx, "remote_branches", name, tip)
}

// ReadAllBranches enumerates all local branch names.
func (d *DB) ReadAllBranches(ctx context.Context) ([]string, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT name FROM branches ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteBranchWithCommits removes the branch row and all commit rows whose
// branch equals name, within tx.
func (d *DB) DeleteBranchWithCommits(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM commits WHERE branch = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM branches WHERE name = ?`, name); err != nil {
		return err
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readTip(ctx context.Context, q queryRower, table, name string) (string, error) {
	var tip string
	err := q.QueryRowContext(ctx, "SELECT tip FROM "+table+" WHERE name = ?", name).Scan(&tip)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", NewErrNotFound(table + " " + name)
		}
		return "", err
	}
	return tip, nil
}

func upsertTip(ctx context.Context, tx *sql.Tx, table, name, tip string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO "+table+" (name, tip) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET tip = excluded.tip",
		name, tip)
	return err
}
