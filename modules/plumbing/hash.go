// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package plumbing holds low-level value types shared across the core:
// the content-address fingerprint and branch reference names.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

const (
	HashDigestSize = 32
	HashHexSize    = HashDigestSize * 2
)

// Hash is a BLAKE3 content fingerprint, used for both block and commit
// identity. The spec permits any fixed-length hex fingerprint as long as
// the same function is used everywhere; BLAKE3 is what the rest of the
// pack reaches for.
type Hash [HashDigestSize]byte

// ZeroHash is the Hash zero value.
var ZeroHash Hash

// InitialSentinel is the reserved parent-hash value marking the root of
// history.
const InitialSentinel = "initial"

func NewHash(s string) Hash {
	b, _ := hex.DecodeString(s)
	var h Hash
	copy(h[:], b)
	return h
}

func NewHashEx(s string) (Hash, error) {
	if !ValidateHashHex(s) {
		return ZeroHash, fmt.Errorf("blend: %q is not a valid hash", s)
	}
	return NewHash(s), nil
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	copy(h[:], b)
	return nil
}

func ValidateHashHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// HashesSort sorts a slice of Hashes in increasing order.
func HashesSort(a []Hash) {
	sort.Sort(HashSlice(a))
}

type HashSlice []Hash

func (p HashSlice) Len() int           { return len(p) }
func (p HashSlice) Less(i, j int) bool { return bytes.Compare(p[i][:], p[j][:]) < 0 }
func (p HashSlice) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }

// Hasher wraps a running BLAKE3 hash and yields a Hash.
type Hasher struct {
	h *blake3.Hasher
}

func NewHasher() Hasher {
	return Hasher{h: blake3.New()}
}

func (h Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

func (h Hasher) Sum() (hash Hash) {
	copy(hash[:], h.h.Sum(nil))
	return
}

// SumBytes fingerprints a single byte slice in one call.
func SumBytes(b []byte) Hash {
	h := NewHasher()
	_, _ = h.Write(b)
	return h.Sum()
}
