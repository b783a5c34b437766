// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"context"
	"database/sql"

	blendexchange "github.com/blendvc/blendvc/modules/blend/exchange"
	"github.com/blendvc/blendvc/modules/blend/metadb"
	"github.com/blendvc/blendvc/modules/plumbing"
)

// Requester submits a Sync packet to a peer and returns its Exchange
// reply. pkg/blend/transport/http implements this over POST /v1/sync;
// tests can supply an in-process stub to exercise Sync without a server.
type Requester func(blendexchange.Sync) (blendexchange.Exchange, error)

// Sync performs one round of spec.md §4.9's bidirectional synchronisation:
// it builds a Sync packet carrying every local tip and the descendant
// closure of every known remote tip, submits it via request, imports the
// peer's Exchange reply, and refreshes remote_branches to mirror the
// peer's now-known state.
func (r *Repository) Sync(request Requester) error {
	ctx := context.Background()

	localTips, err := r.localTipHashes(ctx)
	if err != nil {
		return err
	}
	outgoing, err := r.exchangeFromRemoteTips(ctx)
	if err != nil {
		return err
	}

	reply, err := request(blendexchange.Sync{LocalTips: localTips, Exchange: outgoing})
	if err != nil {
		return err
	}

	if err := r.Import(reply); err != nil {
		return err
	}
	return r.refreshRemoteTips(ctx)
}

// HandleSync is the server side of spec.md §4.9: it imports the client's
// packet, then replies with the descendant closure of every local tip
// the client reported, so the client can learn anything it is missing.
func (r *Repository) HandleSync(req blendexchange.Sync) (blendexchange.Exchange, error) {
	if err := r.Import(req.Exchange); err != nil {
		return blendexchange.Exchange{}, err
	}
	var parts []blendexchange.Exchange
	for _, tip := range req.LocalTips {
		e, err := r.Export(tip)
		if err != nil {
			return blendexchange.Exchange{}, err
		}
		parts = append(parts, e)
	}
	return mergeExchanges(parts), nil
}

func (r *Repository) localTipHashes(ctx context.Context) ([]plumbing.Hash, error) {
	names, err := r.db.ReadAllBranches(ctx)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	tips := make([]plumbing.Hash, 0, len(names))
	for _, name := range names {
		tipHex, err := r.db.ReadBranchTip(ctx, name)
		if err != nil {
			return nil, classifyStoreError(err)
		}
		hash, err := plumbing.NewHashEx(tipHex)
		if err != nil {
			return nil, newConsistency("branch %s tip %q is not a valid hash", name, tipHex)
		}
		tips = append(tips, hash)
	}
	return tips, nil
}

// exchangeFromRemoteTips is the descendant closure of every remote tip
// the client knows: what the client believes the server already has,
// inverted into everything forward of that shared frontier.
func (r *Repository) exchangeFromRemoteTips(ctx context.Context) (blendexchange.Exchange, error) {
	names, err := r.db.ReadAllBranches(ctx)
	if err != nil {
		return blendexchange.Exchange{}, classifyStoreError(err)
	}
	var parts []blendexchange.Exchange
	for _, name := range names {
		tipHex, err := r.db.ReadRemoteBranchTip(ctx, name)
		if metadb.IsErrNotFound(err) {
			continue // no remote tip known yet for this branch: nothing to export forward of it
		}
		if err != nil {
			return blendexchange.Exchange{}, classifyStoreError(err)
		}
		hash, err := plumbing.NewHashEx(tipHex)
		if err != nil {
			return blendexchange.Exchange{}, newConsistency("remote branch %s tip %q is not a valid hash", name, tipHex)
		}
		e, err := r.Export(hash)
		if err != nil {
			return blendexchange.Exchange{}, err
		}
		parts = append(parts, e)
	}
	return mergeExchanges(parts), nil
}

// refreshRemoteTips sets each tracked branch's remote tip to that
// branch's current local tip, reflecting that a Sync round trip has just
// reconciled both sides up to (at least) that point.
func (r *Repository) refreshRemoteTips(ctx context.Context) error {
	names, err := r.db.ReadAllBranches(ctx)
	if err != nil {
		return classifyStoreError(err)
	}
	// Tips are read before the transaction opens: the metadata store has a
	// single connection, which the open transaction would hold.
	tips := make(map[string]string, len(names))
	for _, name := range names {
		tip, err := r.db.ReadBranchTip(ctx, name)
		if err != nil {
			return classifyStoreError(err)
		}
		tips[name] = tip
	}
	return classifyStoreError(r.db.ExecuteInTransaction(ctx, func(tx *sql.Tx) error {
		for _, name := range names {
			if err := r.db.WriteRemoteBranchTip(ctx, tx, name, tips[name]); err != nil {
				return err
			}
		}
		return nil
	}))
}

// mergeExchanges unions several Exchange packets' commits and blocks,
// deduplicating by hash.
func mergeExchanges(parts []blendexchange.Exchange) blendexchange.Exchange {
	var merged blendexchange.Exchange
	seenCommits := make(map[plumbing.Hash]struct{})
	seenBlocks := make(map[plumbing.Hash]struct{})
	for _, e := range parts {
		for _, c := range e.Commits {
			if _, ok := seenCommits[c.Hash]; ok {
				continue
			}
			seenCommits[c.Hash] = struct{}{}
			merged.Commits = append(merged.Commits, c)
		}
		for _, b := range e.Blocks {
			if _, ok := seenBlocks[b.Hash]; ok {
				continue
			}
			seenBlocks[b.Hash] = struct{}{}
			merged.Blocks = append(merged.Blocks, b)
		}
	}
	return merged
}
