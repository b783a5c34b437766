// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package metadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CommitRow is the raw commits-table projection; the repo package attaches
// a Manifest fetched from the Block store to turn this into an
// object.Commit.
type CommitRow struct {
	Hash           string
	PrevCommitHash string
	ProjectID      string
	Branch         string
	Message        string
	Author         string
	Date           int64
	Header         []byte
}

// WriteCommit inserts a new commit row, failing with *ErrConflict if the
// hash already exists.
func (d *DB) WriteCommit(ctx context.Context, tx *sql.Tx, c *CommitRow) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO commits (hash, prev_commit_hash, project_id, branch, message, author, date, header)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Hash, c.PrevCommitHash, c.ProjectID, c.Branch, c.Message, c.Author, c.Date, c.Header)
	if err != nil {
		if isUniqueViolation(err) {
			return &ErrConflict{Hash: c.Hash}
		}
		return err
	}
	return nil
}

// ReadCommit returns the raw commit row, or *ErrNotFound if absent. It
// does not attach the manifest; see repo.ReadCommit for the composed
// operation spec.md §4.4 describes.
func (d *DB) ReadCommit(ctx context.Context, hash string) (*CommitRow, error) {
	return readCommit(ctx, d.sql, hash)
}

// ReadCommitTx is ReadCommit run against tx, for callers that must see
// rows written earlier in the same still-open transaction (Import's
// conflict check).
func (d *DB) ReadCommitTx(ctx context.Context, tx *sql.Tx, hash string) (*CommitRow, error) {
	return readCommit(ctx, tx, hash)
}

func readCommit(ctx context.Context, q queryRower, hash string) (*CommitRow, error) {
	row := q.QueryRowContext(ctx,
		`SELECT hash, prev_commit_hash, project_id, branch, message, author, date, header
		 FROM commits WHERE hash = ?`, hash)
	c := &CommitRow{}
	if err := row.Scan(&c.Hash, &c.PrevCommitHash, &c.ProjectID, &c.Branch, &c.Message, &c.Author, &c.Date, &c.Header); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewErrNotFound(fmt.Sprintf("commit %s", hash))
		}
		return nil, err
	}
	return c, nil
}

type rowQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ReadAncestors walks parent links from hash back to (but not including)
// the initial sentinel, ordered newest-first by date, including hash
// itself.
func (d *DB) ReadAncestors(ctx context.Context, hash string) ([]*CommitRow, error) {
	return readAncestors(ctx, d.sql, hash)
}

func readAncestors(ctx context.Context, q rowQueryer, hash string) ([]*CommitRow, error) {
	rows, err := q.QueryContext(ctx, `
		WITH RECURSIVE anc(hash, prev_commit_hash, project_id, branch, message, author, date, header) AS (
			SELECT hash, prev_commit_hash, project_id, branch, message, author, date, header
			FROM commits WHERE hash = ?
			UNION
			SELECT c.hash, c.prev_commit_hash, c.project_id, c.branch, c.message, c.author, c.date, c.header
			FROM commits c JOIN anc a ON a.prev_commit_hash = c.hash
		)
		SELECT hash, prev_commit_hash, project_id, branch, message, author, date, header
		FROM anc ORDER BY date DESC`, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCommitRows(rows)
}

// ReadDescendants returns all commits reachable forward from hash via any
// child, ordered oldest-first by date, including hash itself. The
// recursive step dedupes via UNION so a corrupted parent-pointer cycle
// cannot loop forever.
func (d *DB) ReadDescendants(ctx context.Context, hash string) ([]*CommitRow, error) {
	return readDescendants(ctx, d.sql, hash)
}

// ReadDescendantsTx is ReadDescendants run against tx instead of the
// shared connection, for callers (Import's branch-tip reconciliation)
// that must see rows written earlier in the same still-open transaction.
func (d *DB) ReadDescendantsTx(ctx context.Context, tx *sql.Tx, hash string) ([]*CommitRow, error) {
	return readDescendants(ctx, tx, hash)
}

func readDescendants(ctx context.Context, q rowQueryer, hash string) ([]*CommitRow, error) {
	rows, err := q.QueryContext(ctx, `
		WITH RECURSIVE desc_(hash, prev_commit_hash, project_id, branch, message, author, date, header) AS (
			SELECT hash, prev_commit_hash, project_id, branch, message, author, date, header
			FROM commits WHERE hash = ?
			UNION
			SELECT c.hash, c.prev_commit_hash, c.project_id, c.branch, c.message, c.author, c.date, c.header
			FROM commits c JOIN desc_ d ON c.prev_commit_hash = d.hash
		)
		SELECT hash, prev_commit_hash, project_id, branch, message, author, date, header
		FROM desc_ ORDER BY date ASC`, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCommitRows(rows)
}

func scanCommitRows(rows *sql.Rows) ([]*CommitRow, error) {
	var out []*CommitRow
	for rows.Next() {
		c := &CommitRow{}
		if err := rows.Scan(&c.Hash, &c.PrevCommitHash, &c.ProjectID, &c.Branch, &c.Message, &c.Author, &c.Date, &c.Header); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces SQLite's constraint violations as plain
	// errors carrying the engine's message text; there is no typed
	// sentinel, so match on the message the way database/sql users of
	// this driver conventionally do.
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
