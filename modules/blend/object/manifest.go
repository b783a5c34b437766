// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package object holds the write-once value types of the data model:
// blocks, manifests and commits, plus the manifest's hash-list codec.
package object

import (
	"strings"

	"github.com/blendvc/blendvc/modules/plumbing"
)

// Manifest is the ordered sequence of block fingerprints making up one
// commit's snapshot, in the document's original block order.
type Manifest []plumbing.Hash

// String prints the manifest as the comma-delimited hex form the Block
// store persists it under.
func (m Manifest) String() string {
	parts := make([]string, len(m))
	for i, h := range m {
		parts[i] = h.String()
	}
	return strings.Join(parts, ",")
}

// ParseManifest parses the comma-delimited hex form. An empty list or any
// non-hex token is rejected.
func ParseManifest(s string) (Manifest, error) {
	if len(s) == 0 {
		return nil, NewErrBadManifest("empty manifest")
	}
	tokens := strings.Split(s, ",")
	m := make(Manifest, 0, len(tokens))
	for _, tok := range tokens {
		if len(tok) == 0 || !plumbing.ValidateHashHex(tok) {
			return nil, NewErrBadManifest("invalid hash token %q", tok)
		}
		m = append(m, plumbing.NewHash(tok))
	}
	return m, nil
}

// Set returns the manifest's block hashes as a set, for diffing against a
// parent manifest.
func (m Manifest) Set() map[plumbing.Hash]struct{} {
	set := make(map[plumbing.Hash]struct{}, len(m))
	for _, h := range m {
		set[h] = struct{}{}
	}
	return set
}

// Diff returns the hashes present in m but absent from parent, preserving
// m's order.
func (m Manifest) Diff(parent Manifest) []plumbing.Hash {
	parentSet := parent.Set()
	var novel []plumbing.Hash
	for _, h := range m {
		if _, ok := parentSet[h]; !ok {
			novel = append(novel, h)
		}
	}
	return novel
}
