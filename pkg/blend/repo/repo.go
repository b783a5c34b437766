// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package repo wires the container codec, the Block store, the Metadata
// store and the exchange codec into the whole-operation surface spec.md
// §4.5-§4.10 describes: Commit, Restore, branch management, Export,
// Import and Sync.
package repo

import (
	"context"
	"database/sql"
	"os"

	"github.com/blendvc/blendvc/modules/blend/backend"
	"github.com/blendvc/blendvc/modules/blend/metadb"
	"github.com/blendvc/blendvc/modules/plumbing"
)

// Repository is a single on-disk repository: its Block store and
// Metadata store, opened together.
type Repository struct {
	store *backend.Store
	db    *metadb.DB
	opts  Options
}

// Open opens an already-initialised repository at opts.Dir. Use Init to
// create a new one.
func Open(opts Options) (*Repository, error) {
	return openRepository(opts)
}

func openRepository(opts Options) (*Repository, error) {
	var storeOpts []backend.Option
	if !opts.DisableCache {
		cache, err := backend.NewCache()
		if err != nil {
			return nil, newFundamental("open block cache", err)
		}
		storeOpts = append(storeOpts, backend.WithCache(cache))
	}
	store, err := backend.Open(opts.blockStorePath(), storeOpts...)
	if err != nil {
		return nil, newFundamental("open block store", err)
	}
	db, err := metadb.Open(opts.metadataPath())
	if err != nil {
		_ = store.Close()
		return nil, newFundamental("open metadata store", err)
	}
	return &Repository{store: store, db: db, opts: opts}, nil
}

// Close releases the repository's store handles.
func (r *Repository) Close() error {
	dbErr := r.db.Close()
	storeErr := r.store.Close()
	if dbErr != nil {
		return dbErr
	}
	return storeErr
}

// Init creates a brand-new repository rooted at opts.Dir: it creates the
// directory and both store files, takes the initial snapshot of
// initialFile as the root commit on main, and seeds main's local and
// remote tips plus the CURRENT_BRANCH_NAME and PROJECT_ID config entries
// (spec.md §4.10).
func Init(opts Options, projectID, initialFile string) (*Repository, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, newFundamental("create repository directory", err)
	}
	r, err := openRepository(opts)
	if err != nil {
		return nil, err
	}

	commit, novel, err := r.prepareCommit(initialFile, "initial snapshot", plumbing.InitialSentinel, plumbing.MainBranch, projectID, "Anon")
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	if err := r.writeNovelBlocks(commit.Hash, commit.Manifest, novel); err != nil {
		_ = r.Close()
		return nil, err
	}

	ctx := context.Background()
	err = r.db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.writeCommitRow(ctx, tx, commit); err != nil {
			return err
		}
		tip := commit.Hash.String()
		if err := r.db.WriteBranchTip(ctx, tx, plumbing.MainBranch, tip); err != nil {
			return err
		}
		if err := r.db.WriteRemoteBranchTip(ctx, tx, plumbing.MainBranch, tip); err != nil {
			return err
		}
		if err := r.db.WriteConfig(ctx, tx, metadb.ConfigCurrentBranchName, plumbing.MainBranch); err != nil {
			return err
		}
		return r.db.WriteConfig(ctx, tx, metadb.ConfigProjectID, projectID)
	})
	if err != nil {
		_ = r.Close()
		return nil, classifyStoreError(err)
	}
	return r, nil
}
