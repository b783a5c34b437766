// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package metadb implements the Metadata store (spec.md §4.4): commits,
// branch tips, remote-branch tips and single-valued config entries, held
// in a transactional relational store.
package metadb

import "fmt"

// ErrConflict is returned by WriteCommit when the hash already exists.
type ErrConflict struct {
	Hash string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("blend: commit %s already exists", e.Hash)
}

func IsErrConflict(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrConflict)
	return ok
}

// ErrConsistency signals an invariant violation: a commit row whose
// manifest is absent from the Block store, or a branch tip pointing at a
// commit that does not exist.
type ErrConsistency struct {
	Reason string
}

func (e *ErrConsistency) Error() string {
	return fmt.Sprintf("blend: consistency violation: %s", e.Reason)
}

func NewErrConsistency(format string, a ...any) error {
	return &ErrConsistency{Reason: fmt.Sprintf(format, a...)}
}

func IsErrConsistency(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrConsistency)
	return ok
}

// ErrNotFound is returned by lookups with no matching row: an unknown
// commit, branch, or config key. The repo package turns this into its own
// Recoverable error classification where the operation calls for one.
type ErrNotFound struct {
	What string
}

func (e *ErrNotFound) Error() string { return fmt.Sprintf("blend: %s not found", e.What) }

func NewErrNotFound(what string) error {
	return &ErrNotFound{What: what}
}

func IsErrNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrNotFound)
	return ok
}
