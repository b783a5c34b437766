// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package metadb

const schemaSQL = `
CREATE TABLE IF NOT EXISTS commits (
	hash             TEXT PRIMARY KEY,
	prev_commit_hash TEXT NOT NULL,
	project_id       TEXT NOT NULL,
	branch           TEXT NOT NULL,
	message          TEXT NOT NULL,
	author           TEXT NOT NULL,
	date             INTEGER NOT NULL,
	header           BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_commits_branch ON commits(branch);
CREATE INDEX IF NOT EXISTS idx_commits_prev ON commits(prev_commit_hash);

CREATE TABLE IF NOT EXISTS branches (
	name TEXT PRIMARY KEY,
	tip  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS remote_branches (
	name TEXT PRIMARY KEY,
	tip  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// CreateSchema creates all tables and indexes if they do not already
// exist. Safe to call on every open.
func (d *DB) CreateSchema() error {
	_, err := d.sql.Exec(schemaSQL)
	return err
}
