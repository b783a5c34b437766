// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"bytes"
	"context"
	"database/sql"
	"sort"

	"github.com/blendvc/blendvc/modules/blend/exchange"
	"github.com/blendvc/blendvc/modules/blend/metadb"
	"github.com/blendvc/blendvc/modules/blend/object"
	"github.com/blendvc/blendvc/modules/plumbing"
)

// Export computes the descendant closure of from and returns it, plus
// every block referenced by any commit in that closure, as an Exchange
// packet (spec.md §4.8).
func (r *Repository) Export(from plumbing.Hash) (exchange.Exchange, error) {
	ctx := context.Background()
	rows, err := r.db.ReadDescendants(ctx, from.String())
	if err != nil {
		return exchange.Exchange{}, classifyStoreError(err)
	}

	commits := make([]object.Commit, len(rows))
	blockSet := make(map[plumbing.Hash]struct{})
	for i, row := range rows {
		hash, err := plumbing.NewHashEx(row.Hash)
		if err != nil {
			return exchange.Exchange{}, newConsistency("commit row hash %q is not a valid hash", row.Hash)
		}
		manifestStr, err := r.store.GetManifest(hash)
		if err != nil {
			return exchange.Exchange{}, newConsistency("commit %s has no manifest: %v", row.Hash, err)
		}
		manifest, err := object.ParseManifest(manifestStr)
		if err != nil {
			return exchange.Exchange{}, classifyStoreError(err)
		}
		commits[i] = object.Commit{
			Hash:           hash,
			PrevCommitHash: row.PrevCommitHash,
			ProjectID:      row.ProjectID,
			Branch:         row.Branch,
			Message:        row.Message,
			Author:         row.Author,
			Date:           row.Date,
			Header:         row.Header,
			Manifest:       manifest,
		}
		for _, h := range manifest {
			blockSet[h] = struct{}{}
		}
	}

	blocks := make([]object.Block, 0, len(blockSet))
	bar := newCountBar(r.opts.Progress, "Exporting", len(blockSet))
	for h := range blockSet {
		compressed, err := r.store.GetBlock(h)
		if err != nil {
			return exchange.Exchange{}, classifyStoreError(err)
		}
		blocks = append(blocks, object.Block{Hash: h, Data: compressed})
		incr(bar)
	}
	// Go's map iteration order is random; sort blocks by hash so Export's
	// output is deterministic for a given repository state.
	sort.Slice(blocks, func(i, j int) bool {
		return bytes.Compare(blocks[i].Hash[:], blocks[j].Hash[:]) < 0
	})

	return exchange.Exchange{Commits: commits, Blocks: blocks}, nil
}

// Import merges packet's commits, blocks and branch tips into this
// repository (spec.md §4.8). Commit hashes already known to this
// repository are no-ops when the content matches, and surface Conflict
// when it differs; a packet whose commits are entirely new always
// succeeds.
func (r *Repository) Import(packet exchange.Exchange) error {
	ctx := context.Background()
	bar := newCountBar(r.opts.Progress, "Importing", len(packet.Blocks))
	for _, b := range packet.Blocks {
		if err := r.store.PutBlock(b.Hash, b.Data); err != nil {
			return classifyStoreError(err)
		}
		incr(bar)
	}
	for _, c := range packet.Commits {
		if err := r.store.PutManifest(c.Hash, c.Manifest.String()); err != nil {
			return classifyStoreError(err)
		}
	}

	branchesTouched := make(map[string]struct{})
	err := r.db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		for _, c := range packet.Commits {
			branchesTouched[c.Branch] = struct{}{}
			if err := importCommit(ctx, r.db, tx, c); err != nil {
				return err
			}
		}
		for branch := range branchesTouched {
			if err := reconcileBranchTip(ctx, r.db, tx, branch, packet.Commits); err != nil {
				return err
			}
		}
		return nil
	})
	return classifyStoreError(err)
}

// importCommit inserts c, tolerating an identical re-import as a no-op
// and surfacing Conflict only when a pre-existing row's content differs
// (spec.md §9 "Conflicting imports").
func importCommit(ctx context.Context, db *metadb.DB, tx *sql.Tx, c object.Commit) error {
	row := &metadb.CommitRow{
		Hash:           c.Hash.String(),
		PrevCommitHash: c.PrevCommitHash,
		ProjectID:      c.ProjectID,
		Branch:         c.Branch,
		Message:        c.Message,
		Author:         c.Author,
		Date:           c.Date,
		Header:         c.Header,
	}
	err := db.WriteCommit(ctx, tx, row)
	if err == nil {
		return nil
	}
	if !metadb.IsErrConflict(err) {
		return err
	}
	existing, readErr := db.ReadCommitTx(ctx, tx, row.Hash)
	if readErr != nil {
		return readErr
	}
	if commitRowsEqual(existing, row) {
		return nil
	}
	return &Conflict{Hash: row.Hash}
}

func commitRowsEqual(a, b *metadb.CommitRow) bool {
	return a.Hash == b.Hash &&
		a.PrevCommitHash == b.PrevCommitHash &&
		a.ProjectID == b.ProjectID &&
		a.Branch == b.Branch &&
		a.Message == b.Message &&
		a.Author == b.Author &&
		a.Date == b.Date &&
		bytes.Equal(a.Header, b.Header)
}

// reconcileBranchTip recomputes branch's tip as the last commit (by date)
// in the descendant closure of any imported commit on that branch,
// within the store as it stands mid-transaction (spec.md §4.8 step 4).
func reconcileBranchTip(ctx context.Context, db *metadb.DB, tx *sql.Tx, branch string, imported []object.Commit) error {
	var anchor string
	for _, c := range imported {
		if c.Branch == branch {
			anchor = c.Hash.String()
			break
		}
	}
	if anchor == "" {
		return nil
	}
	descendants, err := db.ReadDescendantsTx(ctx, tx, anchor)
	if err != nil {
		return err
	}
	tip := anchor
	var latest int64 = -1
	for _, d := range descendants {
		if d.Branch == branch && d.Date > latest {
			latest = d.Date
			tip = d.Hash
		}
	}
	return db.WriteBranchTip(ctx, tx, branch, tip)
}
