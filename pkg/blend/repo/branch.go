// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"database/sql"

	"github.com/blendvc/blendvc/modules/blend/metadb"
	"github.com/blendvc/blendvc/modules/blend/object"
	"github.com/blendvc/blendvc/modules/plumbing"
)

// CurrentBranch returns the name of the branch CURRENT_BRANCH_NAME
// points at.
func (r *Repository) CurrentBranch() (string, error) {
	name, err := r.db.ReadConfig(context.Background(), metadb.ConfigCurrentBranchName)
	if err != nil {
		return "", classifyStoreError(err)
	}
	return name, nil
}

// ListBranches enumerates all local branch names (spec.md §4.7).
func (r *Repository) ListBranches() ([]string, error) {
	names, err := r.db.ReadAllBranches(context.Background())
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return names, nil
}

// NewBranch creates branch name at main's current tip and switches the
// current branch to it. Allowed only while the current branch is main
// (spec.md §4.7).
func (r *Repository) NewBranch(name string) error {
	if !plumbing.ValidateBranchName(name) {
		return newRecoverable("invalid branch name %q", name)
	}
	ctx := context.Background()
	current, err := r.CurrentBranch()
	if err != nil {
		return err
	}
	if current != plumbing.MainBranch {
		return newRecoverable("new branches may only be created while on %s, current branch is %s", plumbing.MainBranch, current)
	}
	tip, err := r.db.ReadBranchTip(ctx, plumbing.MainBranch)
	if err != nil {
		return classifyStoreError(err)
	}
	return classifyStoreError(r.db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.db.WriteBranchTip(ctx, tx, name, tip); err != nil {
			return err
		}
		if err := r.db.WriteRemoteBranchTip(ctx, tx, name, tip); err != nil {
			return err
		}
		return r.db.WriteConfig(ctx, tx, metadb.ConfigCurrentBranchName, name)
	}))
}

// DeleteBranch removes branch name and all its commits in one
// transaction. Refuses to delete main or the current branch, and
// refuses a name with no tip (spec.md §4.7/§7).
func (r *Repository) DeleteBranch(name string) error {
	if name == plumbing.MainBranch {
		return newRecoverable("cannot delete %s", plumbing.MainBranch)
	}
	ctx := context.Background()
	current, err := r.CurrentBranch()
	if err != nil {
		return err
	}
	if name == current {
		return newRecoverable("cannot delete the current branch %s", name)
	}
	if _, err := r.db.ReadBranchTip(ctx, name); err != nil {
		return newRecoverable("branch %s does not exist", name)
	}
	return classifyStoreError(r.db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		return r.db.DeleteBranchWithCommits(ctx, tx, name)
	}))
}

// Switch sets the current branch to name and restores its tip into
// path. Fails without changing state if name has no tip.
func (r *Repository) Switch(path, name string) (*object.Commit, error) {
	ctx := context.Background()
	tip, err := r.db.ReadBranchTip(ctx, name)
	if err != nil {
		return nil, newRecoverable("branch %s has no tip: %v", name, err)
	}
	hash, err := plumbing.NewHashEx(tip)
	if err != nil {
		return nil, newConsistency("branch %s tip %q is not a valid hash", name, tip)
	}
	commit, err := r.Restore(path, hash)
	if err != nil {
		return nil, err
	}
	// Restore names the tip commit's branch as current; a branch with no
	// commits of its own shares its tip with main, so set name explicitly.
	if err := r.db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		return r.db.WriteConfig(ctx, tx, metadb.ConfigCurrentBranchName, name)
	}); err != nil {
		return nil, classifyStoreError(err)
	}
	return commit, nil
}

// LogCheckpoints lists the commits reachable backward from branch's tip,
// newest first — the "checkpoints" of spec.md §8 scenario 1.
func (r *Repository) LogCheckpoints(branch string) ([]*object.ShortCommit, error) {
	ctx := context.Background()
	tip, err := r.db.ReadBranchTip(ctx, branch)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	rows, err := r.db.ReadAncestors(ctx, tip)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	out := make([]*object.ShortCommit, len(rows))
	for i, row := range rows {
		hash, err := plumbing.NewHashEx(row.Hash)
		if err != nil {
			return nil, newConsistency("commit row hash %q is not a valid hash", row.Hash)
		}
		out[i] = &object.ShortCommit{
			Hash:           hash,
			PrevCommitHash: row.PrevCommitHash,
			Branch:         row.Branch,
			Message:        row.Message,
			Author:         row.Author,
			Date:           row.Date,
		}
	}
	return out, nil
}
