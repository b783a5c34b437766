// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"path/filepath"
	"time"

	"github.com/vbauerster/mpb/v8"
)

// Options configures where a Repository's stores live on disk and the
// ambient hooks (clock, progress) a caller may inject. cmd/blend is the
// only caller that populates this from a blend.toml file; the core
// packages always take an already-resolved Options value and never read
// configuration themselves.
type Options struct {
	// Dir is the repository root directory, holding commits.sqlite and
	// blobs.bolt (spec.md §6's on-disk layout).
	Dir string

	// DisableCache turns off the Block store's ristretto read-through
	// cache (on by default).
	DisableCache bool

	// Now supplies the wall clock the commit pipeline stamps onto new
	// commit rows. Defaults to time.Now so production callers need not
	// set it; tests inject a fixed func to freeze commit dates.
	Now func() time.Time

	// Progress, if non-nil, receives a bar for long-running commit,
	// restore, export and import operations. Nil disables progress
	// reporting entirely; it is never required for correctness.
	Progress *mpb.Progress
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) metadataPath() string {
	return filepath.Join(o.Dir, "commits.sqlite")
}

func (o Options) blockStorePath() string {
	return filepath.Join(o.Dir, "blobs.bolt")
}
