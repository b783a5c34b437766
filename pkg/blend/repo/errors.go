// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/blendvc/blendvc/modules/blend/backend"
	"github.com/blendvc/blendvc/modules/blend/container"
	"github.com/blendvc/blendvc/modules/blend/metadb"
	"github.com/blendvc/blendvc/modules/blend/object"
)

// Fundamental reports that a store could not be opened or its schema
// could not be created; the caller should abort the process.
type Fundamental struct {
	Op  string
	Err error
}

func (e *Fundamental) Error() string { return fmt.Sprintf("blend: fundamental: %s: %v", e.Op, e.Err) }
func (e *Fundamental) Unwrap() error { return e.Err }

func newFundamental(op string, err error) error {
	return &Fundamental{Op: op, Err: err}
}

// Consistency reports that an invariant has been violated: a referenced
// block is missing, a commit has no manifest, or a branch tip references
// a missing commit. The operation aborts leaving the repository untouched.
type Consistency struct {
	Reason string
}

func (e *Consistency) Error() string { return fmt.Sprintf("blend: consistency: %s", e.Reason) }

func newConsistency(format string, args ...any) error {
	return &Consistency{Reason: fmt.Sprintf(format, args...)}
}

// Recoverable reports that the request cannot succeed given the current
// state (unknown commit, deleting main, switching to a tipless branch,
// branching off a non-main branch) — the repository is left unchanged.
type Recoverable struct {
	Reason string
}

func (e *Recoverable) Error() string { return fmt.Sprintf("blend: recoverable: %s", e.Reason) }

func newRecoverable(format string, args ...any) error {
	return &Recoverable{Reason: fmt.Sprintf(format, args...)}
}

// Conflict reports that a commit hash already exists with (possibly)
// different content; surfaced by Commit-row insertion and by Import.
type Conflict struct {
	Hash string
}

func (e *Conflict) Error() string { return fmt.Sprintf("blend: conflict: commit %s already exists", e.Hash) }

// IsFundamental, IsConsistency, IsRecoverable and IsConflict let callers
// (the CLI, the HTTP layer) branch on the spec.md §7 error classes
// without inspecting error strings.
func IsFundamental(err error) bool {
	var e *Fundamental
	return errors.As(err, &e)
}

func IsConsistency(err error) bool {
	var e *Consistency
	return errors.As(err, &e)
}

func IsRecoverable(err error) bool {
	var e *Recoverable
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *Conflict
	return errors.As(err, &e)
}

// IsParseIO reports whether err originates from the container codec or
// plain file I/O — spec.md §7's fourth class. These errors are returned
// as-is by the pipelines (container.ErrParse/ErrPrint already carry the
// right shape) rather than re-wrapped.
func IsParseIO(err error) bool {
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	return container.IsErrParse(err) || container.IsErrPrint(err) ||
		errors.As(err, &pathErr) || errors.As(err, &linkErr)
}

// classifyStoreError maps the lower-layer typed errors (backend.ErrMissing,
// metadb.ErrConflict/ErrConsistency/ErrNotFound, object.ErrBadManifest)
// onto the four-way classification the core's entry points return.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	if backend.IsErrMissing(err) {
		return newConsistency("block store: %v", err)
	}
	if metadb.IsErrConflict(err) {
		var e *metadb.ErrConflict
		errors.As(err, &e)
		return &Conflict{Hash: e.Hash}
	}
	if metadb.IsErrConsistency(err) {
		return newConsistency("metadata store: %v", err)
	}
	if metadb.IsErrNotFound(err) {
		return newRecoverable("metadata store: %v", err)
	}
	if object.IsErrBadManifest(err) {
		return newConsistency("manifest: %v", err)
	}
	return err
}
