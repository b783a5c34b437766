// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package metadb

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Config keys, per spec.md §3.
const (
	ConfigCurrentBranchName   = "CURRENT_BRANCH_NAME"
	ConfigCurrentLatestCommit = "CURRENT_LATEST_COMMIT"
	ConfigProjectID           = "PROJECT_ID"
	ConfigUserName            = "USER_NAME"
)

// DB is the Metadata store: commits, branch tips, remote-branch tips and
// config, held in a sqlite database opened through database/sql so the
// whole engine stays transactional and cgo-free.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if absent) the sqlite file at path and ensures its
// schema exists.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("blend: open metadata store: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // sqlite: one writer at a time, matches the single-writer model
	d := &DB{sql: sqlDB}
	if err := d.CreateSchema(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("blend: create schema: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

// Database exposes the underlying *sql.DB for callers (e.g. tests) that
// need a raw handle.
func (d *DB) Database() *sql.DB {
	return d.sql
}

// ExecuteInTransaction wraps f's metadata mutations in one atomic
// transaction: f's returned error rolls the transaction back, nil commits
// it. Block-store writes performed inside f are not part of this
// transaction and are not rolled back on failure (spec.md §4.4/§5).
func (d *DB) ExecuteInTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("blend: begin transaction: %w", err)
	}
	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("blend: commit transaction: %w", err)
	}
	return nil
}
