// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"

	"github.com/vbauerster/mpb/v8"
	"golang.org/x/sync/errgroup"

	"github.com/blendvc/blendvc/modules/blend/container"
	"github.com/blendvc/blendvc/modules/blend/metadb"
	"github.com/blendvc/blendvc/modules/blend/object"
	"github.com/blendvc/blendvc/modules/plumbing"
)

// Commit runs the Snapshot pipeline (spec.md §4.5) against path on the
// current branch: parse, fingerprint and compress each block, diff
// against the parent commit's manifest, persist only the novel blocks,
// then record the new commit and advance the current branch's tip, all
// inside one metadata transaction.
func (r *Repository) Commit(path, message string) (*object.Commit, error) {
	ctx := context.Background()
	branch, err := r.db.ReadConfig(ctx, metadb.ConfigCurrentBranchName)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	projectID, err := r.db.ReadConfig(ctx, metadb.ConfigProjectID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	author, err := r.db.ReadConfig(ctx, metadb.ConfigUserName)
	if err != nil {
		author = "Anon"
	}
	prevHash, err := r.db.ReadBranchTip(ctx, branch)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	commit, novel, err := r.prepareCommit(path, message, prevHash, branch, projectID, author)
	if err != nil {
		return nil, err
	}
	if err := r.writeNovelBlocks(commit.Hash, commit.Manifest, novel); err != nil {
		return nil, err
	}
	err = r.db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.writeCommitRow(ctx, tx, commit); err != nil {
			return err
		}
		return r.db.WriteBranchTip(ctx, tx, branch, commit.Hash.String())
	})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return commit, nil
}

// blockResult is one block's parallel encode+hash+compress outcome,
// collected into an indexed slice so block order survives the parallel
// region (spec.md §5).
type blockResult struct {
	hash       plumbing.Hash
	compressed []byte
}

func gzipCompress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(zr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeHashCompress re-encodes each parsed block to bytes (single-block
// print), fingerprints those bytes, and gzip-compresses them, in
// parallel — no block depends on another, so this is embarrassingly
// parallel CPU work with no shared mutable state.
func encodeHashCompress(header container.Header, blocks []container.Block, bar *mpb.Bar) ([]blockResult, error) {
	results := make([]blockResult, len(blocks))
	g := new(errgroup.Group)
	for i, b := range blocks {
		i, b := i, b
		g.Go(func() error {
			encoded, err := container.EncodeBlock(header, b)
			if err != nil {
				return err
			}
			compressed, err := gzipCompress(encoded)
			if err != nil {
				return err
			}
			results[i] = blockResult{hash: plumbing.SumBytes(encoded), compressed: compressed}
			incr(bar)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// prepareCommit performs every step of the Snapshot pipeline that does
// not touch the Metadata store: it reads and parses path, computes the
// new manifest and commit hash, and returns the blocks that must be
// persisted before the commit row is written (the manifest's novel
// blocks relative to prevHash's manifest).
func (r *Repository) prepareCommit(path, message, prevHash, branch, projectID, author string) (*object.Commit, []blockResult, error) {
	raw, err := container.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	header, blocks, err := container.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, err
	}

	bar := newCountBar(r.opts.Progress, "Committing", len(blocks))
	results, err := encodeHashCompress(header, blocks, bar)
	if err != nil {
		return nil, nil, err
	}
	manifest := make(object.Manifest, len(results))
	for i, res := range results {
		manifest[i] = res.hash
	}

	var parentManifest object.Manifest
	if prevHash != plumbing.InitialSentinel {
		parentManifestStr, err := r.store.GetManifest(plumbing.NewHash(prevHash))
		if err != nil {
			return nil, nil, classifyStoreError(err)
		}
		parentManifest, err = object.ParseManifest(parentManifestStr)
		if err != nil {
			return nil, nil, classifyStoreError(err)
		}
	}
	novelHashes := manifest.Diff(parentManifest)
	novelSet := make(map[plumbing.Hash]struct{}, len(novelHashes))
	for _, h := range novelHashes {
		novelSet[h] = struct{}{}
	}
	var novel []blockResult
	for _, res := range results {
		if _, ok := novelSet[res.hash]; ok {
			novel = append(novel, res)
		}
	}

	headerBytes, err := container.HeaderBytes(header)
	if err != nil {
		return nil, nil, err
	}
	commitHash := plumbing.SumBytes([]byte(manifest.String()))
	commit := &object.Commit{
		Hash:           commitHash,
		PrevCommitHash: prevHash,
		ProjectID:      projectID,
		Branch:         branch,
		Message:        message,
		Author:         author,
		Date:           r.opts.now().Unix(),
		Header:         headerBytes,
		Manifest:       manifest,
	}
	return commit, novel, nil
}

// writeNovelBlocks persists the manifest's novel blocks and the
// manifest string itself to the Block store. This happens outside the
// metadata transaction (the Block store has no transactional tie to the
// Metadata store, per spec.md §5); it must complete before the commit
// row is written so the invariant "every manifest hash has a block"
// holds the instant the commit becomes visible.
func (r *Repository) writeNovelBlocks(commitHash plumbing.Hash, manifest object.Manifest, novel []blockResult) error {
	for _, res := range novel {
		if err := r.store.PutBlock(res.hash, res.compressed); err != nil {
			return classifyStoreError(err)
		}
	}
	if err := r.store.PutManifest(commitHash, manifest.String()); err != nil {
		return classifyStoreError(err)
	}
	return nil
}

func (r *Repository) writeCommitRow(ctx context.Context, tx *sql.Tx, c *object.Commit) error {
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
	if err := r.db.WriteCommit(ctx, tx, row); err != nil {
		return classifyStoreError(err)
	}
	return nil
}
