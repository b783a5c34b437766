// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"bytes"
	"context"
	"database/sql"

	"golang.org/x/sync/errgroup"

	"github.com/blendvc/blendvc/modules/blend/container"
	"github.com/blendvc/blendvc/modules/blend/metadb"
	"github.com/blendvc/blendvc/modules/blend/object"
	"github.com/blendvc/blendvc/modules/plumbing"
)

// Restore runs the Restore pipeline (spec.md §4.6): fetches the commit
// for hash, reads and decompresses its referenced blocks in parallel,
// assembles header ∥ blocks ∥ sentinel directly (bypassing the codec's
// print grammar), and writes the result to path transactionally. It then
// moves the current-commit pointer, leaving branch tips untouched.
func (r *Repository) Restore(path string, hash plumbing.Hash) (*object.Commit, error) {
	ctx := context.Background()
	commit, err := r.ReadCommit(hash)
	if err != nil {
		return nil, err
	}

	payloads, err := r.fetchAndDecompress(commit.Manifest)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(commit.Header)
	for _, p := range payloads {
		buf.Write(p)
	}
	buf.Write(container.Sentinel())

	if err := container.WriteFileTransactional(path, buf.Bytes()); err != nil {
		return nil, err
	}

	err = r.db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.db.WriteConfig(ctx, tx, metadb.ConfigCurrentBranchName, commit.Branch); err != nil {
			return err
		}
		return r.db.WriteConfig(ctx, tx, metadb.ConfigCurrentLatestCommit, commit.Hash.String())
	})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return commit, nil
}

// fetchAndDecompress reads every block in manifest from the Block store
// and decompresses it, preserving manifest order, in parallel — mirrors
// the commit pipeline's parallel region (spec.md §5).
func (r *Repository) fetchAndDecompress(manifest object.Manifest) ([][]byte, error) {
	payloads := make([][]byte, len(manifest))
	bar := newCountBar(r.opts.Progress, "Restoring", len(manifest))
	g := new(errgroup.Group)
	for i, h := range manifest {
		i, h := i, h
		g.Go(func() error {
			compressed, err := r.store.GetBlock(h)
			if err != nil {
				return classifyStoreError(err)
			}
			raw, err := gzipDecompress(compressed)
			if err != nil {
				return err
			}
			payloads[i] = raw
			incr(bar)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

// ReadCommit fetches the raw commit row for hash and attaches its
// manifest from the Block store, failing with Consistency if the row
// exists but the manifest does not (spec.md §4.4).
func (r *Repository) ReadCommit(hash plumbing.Hash) (*object.Commit, error) {
	row, err := r.db.ReadCommit(context.Background(), hash.String())
	if err != nil {
		return nil, classifyStoreError(err)
	}
	manifestStr, err := r.store.GetManifest(hash)
	if err != nil {
		return nil, newConsistency("commit %s has no manifest: %v", hash, err)
	}
	manifest, err := object.ParseManifest(manifestStr)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return &object.Commit{
		Hash:           hash,
		PrevCommitHash: row.PrevCommitHash,
		ProjectID:      row.ProjectID,
		Branch:         row.Branch,
		Message:        row.Message,
		Author:         row.Author,
		Date:           row.Date,
		Header:         row.Header,
		Manifest:       manifest,
	}, nil
}

// CurrentCommit returns the commit CURRENT_LATEST_COMMIT points at, the
// read-only counterpart to Restore's pointer move. Detached from any
// branch tip after a Restore, per spec.md §9.
func (r *Repository) CurrentCommit() (*object.Commit, error) {
	hex, err := r.db.ReadConfig(context.Background(), metadb.ConfigCurrentLatestCommit)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	hash, err := plumbing.NewHashEx(hex)
	if err != nil {
		return nil, newConsistency("CURRENT_LATEST_COMMIT %q is not a valid hash", hex)
	}
	return r.ReadCommit(hash)
}
