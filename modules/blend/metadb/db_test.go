package metadb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commits.sqlite")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeCommit(t *testing.T, db *DB, row *CommitRow) {
	t.Helper()
	require.NoError(t, db.ExecuteInTransaction(context.Background(), func(tx *sql.Tx) error {
		return db.WriteCommit(context.Background(), tx, row)
	}))
}

func TestWriteCommitConflict(t *testing.T) {
	db := openTestDB(t)
	row := &CommitRow{Hash: "h1", PrevCommitHash: "initial", ProjectID: "p", Branch: "main", Message: "m", Author: "a", Date: 1, Header: []byte("hdr")}
	writeCommit(t, db, row)

	err := db.ExecuteInTransaction(context.Background(), func(tx *sql.Tx) error {
		return db.WriteCommit(context.Background(), tx, row)
	})
	require.Error(t, err)
	require.True(t, IsErrConflict(err))
}

func TestReadCommitNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.ReadCommit(context.Background(), "nope")
	require.Error(t, err)
	require.True(t, IsErrNotFound(err))
}

func TestBranchTipUpsert(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		return db.WriteBranchTip(ctx, tx, "main", "h1")
	}))
	tip, err := db.ReadBranchTip(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, "h1", tip)

	require.NoError(t, db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		return db.WriteBranchTip(ctx, tx, "main", "h2")
	}))
	tip, err = db.ReadBranchTip(ctx, "main")
	require.NoError(t, err)
	require.Equal(t, "h2", tip)
}

func TestAncestorsNewestFirstIncludesSelf(t *testing.T) {
	db := openTestDB(t)
	writeCommit(t, db, &CommitRow{Hash: "h1", PrevCommitHash: "initial", Branch: "main", ProjectID: "p", Message: "m1", Author: "a", Date: 1, Header: []byte{}})
	writeCommit(t, db, &CommitRow{Hash: "h2", PrevCommitHash: "h1", Branch: "main", ProjectID: "p", Message: "m2", Author: "a", Date: 2, Header: []byte{}})
	writeCommit(t, db, &CommitRow{Hash: "h3", PrevCommitHash: "h2", Branch: "main", ProjectID: "p", Message: "m3", Author: "a", Date: 3, Header: []byte{}})

	anc, err := db.ReadAncestors(context.Background(), "h3")
	require.NoError(t, err)
	require.Len(t, anc, 3)
	require.Equal(t, []string{"h3", "h2", "h1"}, []string{anc[0].Hash, anc[1].Hash, anc[2].Hash})
}

func TestDescendantsOldestFirstIncludesSelfAndBranches(t *testing.T) {
	db := openTestDB(t)
	writeCommit(t, db, &CommitRow{Hash: "1", PrevCommitHash: "initial", Branch: "main", ProjectID: "p", Message: "", Author: "a", Date: 1, Header: []byte{}})
	writeCommit(t, db, &CommitRow{Hash: "2", PrevCommitHash: "1", Branch: "main", ProjectID: "p", Message: "", Author: "a", Date: 2, Header: []byte{}})
	writeCommit(t, db, &CommitRow{Hash: "3", PrevCommitHash: "2", Branch: "main", ProjectID: "p", Message: "", Author: "a", Date: 3, Header: []byte{}})
	writeCommit(t, db, &CommitRow{Hash: "4", PrevCommitHash: "3", Branch: "main", ProjectID: "p", Message: "", Author: "a", Date: 4, Header: []byte{}})
	writeCommit(t, db, &CommitRow{Hash: "a", PrevCommitHash: "1", Branch: "ab", ProjectID: "p", Message: "", Author: "a", Date: 5, Header: []byte{}})
	writeCommit(t, db, &CommitRow{Hash: "b", PrevCommitHash: "a", Branch: "ab", ProjectID: "p", Message: "", Author: "a", Date: 6, Header: []byte{}})
	writeCommit(t, db, &CommitRow{Hash: "x", PrevCommitHash: "3", Branch: "xs", ProjectID: "p", Message: "", Author: "a", Date: 7, Header: []byte{}})

	desc, err := db.ReadDescendants(context.Background(), "3")
	require.NoError(t, err)
	got := make(map[string]bool)
	for _, c := range desc {
		got[c.Hash] = true
	}
	require.Equal(t, map[string]bool{"3": true, "4": true, "x": true}, got)
	require.False(t, got["1"])
	require.False(t, got["2"])
	require.False(t, got["a"])
	require.False(t, got["b"])
}

func TestDeleteBranchWithCommits(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	writeCommit(t, db, &CommitRow{Hash: "1", PrevCommitHash: "initial", Branch: "main", ProjectID: "p", Message: "", Author: "a", Date: 1, Header: []byte{}})
	writeCommit(t, db, &CommitRow{Hash: "2", PrevCommitHash: "1", Branch: "dev", ProjectID: "p", Message: "", Author: "a", Date: 2, Header: []byte{}})
	require.NoError(t, db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		return db.WriteBranchTip(ctx, tx, "dev", "2")
	}))

	require.NoError(t, db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		return db.DeleteBranchWithCommits(ctx, tx, "dev")
	}))

	_, err := db.ReadBranchTip(ctx, "dev")
	require.Error(t, err)
	_, err = db.ReadCommit(ctx, "2")
	require.Error(t, err)
	require.True(t, IsErrNotFound(err))
}

func TestConfigRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		return db.WriteConfig(ctx, tx, ConfigCurrentBranchName, "main")
	}))
	v, err := db.ReadConfig(ctx, ConfigCurrentBranchName)
	require.NoError(t, err)
	require.Equal(t, "main", v)
}

func TestExecuteInTransactionRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	err := db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		if err := db.WriteBranchTip(ctx, tx, "main", "h1"); err != nil {
			return err
		}
		return errFake
	})
	require.Error(t, err)
	_, err = db.ReadBranchTip(ctx, "main")
	require.Error(t, err)
	require.True(t, IsErrNotFound(err))
}

var errFake = &ErrConsistency{Reason: "injected test failure"}
