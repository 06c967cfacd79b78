package dedup

import (
	"sort"

	"github.com/openshelf/shelf-sync-node/store"
)

// CompactResult partitions a set of entries into survivors and duplicates to
// delete.
type CompactResult struct {
	ToKeep   []store.Entry
	ToDelete []store.Entry
}

// CompactDuplicates resolves the two duplicate classes left behind by
// publish races:
//
//  1. The same txid appearing twice (local provisional replacement racing
//     the remote observation): the confirmed copy wins; if both or neither
//     are confirmed, the later-created copy wins.
//  2. A pending entry sharing a content hash with a confirmed entry: the
//     confirmed one wins and the pending duplicate is deleted.
//
// The function is deterministic, order-independent, and idempotent:
// compacting an already-compacted set deletes nothing.
func CompactDuplicates(entries []store.Entry) CompactResult {
	// Work over a sorted copy so input ordering never affects the outcome.
	sorted := make([]store.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LocalID < sorted[j].LocalID
	})

	deleted := make(map[string]bool)
	result := CompactResult{}

	// Class 1: duplicate txids.
	byTxID := make(map[string][]store.Entry)
	for _, e := range sorted {
		if e.TxID != "" {
			byTxID[e.TxID] = append(byTxID[e.TxID], e)
		}
	}
	for _, group := range byTxID {
		if len(group) < 2 {
			continue
		}
		winner := pickTxIDWinner(group)
		for _, e := range group {
			if e.LocalID != winner.LocalID {
				deleted[e.LocalID] = true
				result.ToDelete = append(result.ToDelete, e)
			}
		}
	}

	// Class 2: a pending entry shadowed by a confirmed entry with the same
	// content hash. Tombstoned entries never participate.
	confirmedHashes := make(map[string]bool)
	for _, e := range sorted {
		if deleted[e.LocalID] {
			continue
		}
		if e.Status == store.StatusConfirmed && e.ContentHash != "" {
			confirmedHashes[e.ContentHash] = true
		}
	}
	for _, e := range sorted {
		if deleted[e.LocalID] {
			continue
		}
		if e.Status == store.StatusPending && confirmedHashes[e.ContentHash] {
			deleted[e.LocalID] = true
			result.ToDelete = append(result.ToDelete, e)
		}
	}

	for _, e := range sorted {
		if !deleted[e.LocalID] {
			result.ToKeep = append(result.ToKeep, e)
		}
	}
	return result
}

// pickTxIDWinner selects the surviving copy among entries sharing one txid:
// confirmed beats unconfirmed, later creation beats earlier, and the local
// id breaks exact ties so the choice stays deterministic.
func pickTxIDWinner(group []store.Entry) store.Entry {
	winner := group[0]
	for _, e := range group[1:] {
		if better(e, winner) {
			winner = e
		}
	}
	return winner
}

func better(a, b store.Entry) bool {
	aConfirmed := a.Status == store.StatusConfirmed
	bConfirmed := b.Status == store.StatusConfirmed
	if aConfirmed != bConfirmed {
		return aConfirmed
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.LocalID > b.LocalID
}
