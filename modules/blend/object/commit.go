// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import "github.com/blendvc/blendvc/modules/plumbing"

// Commit is one immutable snapshot record. Hash is the fingerprint of the
// Manifest's printed string, computed by the caller; Commit itself carries
// no behaviour, just the data model of spec.md §3.
type Commit struct {
	Hash           plumbing.Hash
	PrevCommitHash string // a hex Hash, or the literal plumbing.InitialSentinel
	ProjectID      string
	Branch         string
	Message        string
	Author         string
	Date           int64 // seconds since epoch
	Header         []byte
	Manifest       Manifest // attached out-of-band from the Block store
}

// ShortCommit is the trimmed projection read_ancestors returns: enough to
// walk and display history without re-fetching each commit's manifest.
type ShortCommit struct {
	Hash           plumbing.Hash
	PrevCommitHash string
	Branch         string
	Message        string
	Author         string
	Date           int64
}

// Block is one immutable content-addressed unit: its fingerprint and its
// compressed payload, as stored in the Block store.
type Block struct {
	Hash plumbing.Hash
	Data []byte // gzip-compressed
}
