// Package reconcile merges a batch of remote ledger records, plus tombstone
// records, into the local entry set. ApplyRemote is a pure fold over its
// inputs: neither batch size nor arrival order affects the merged state.
package reconcile

import (
	"time"

	"github.com/openshelf/shelf-sync-node/dedup"
	"github.com/openshelf/shelf-sync-node/store"
)

// RemoteEntry is one decrypted ledger record observed in a query.
type RemoteEntry struct {
	TxID     string
	PrevTxID string
	Fields   map[string]any // decrypted semantic payload
	Raw      []byte         // encrypted payload bytes as fetched, stored verbatim
	Settled  bool           // seen on the canonical layer, not just the fast index
}

// Replacement swaps a local record for its published successor when the
// remote side won an edit race.
type Replacement struct {
	OldLocalID string
	NewEntry   store.Entry
}

// Plan is the set of store mutations a reconciliation pass produced.
// Tombstones dominate everything; supersession dominates plain addition.
type Plan struct {
	ToAdd       []store.Entry
	ToUpdate    []store.Entry
	ToTombstone []string // txids to mark tombstoned
	ToReplace   []Replacement
}

// ApplyRemote computes the merge of remote state into local state.
//
//  1. Remote entries whose txid — or whose declared predecessor — is in the
//     tombstone set are skipped entirely: a tombstoned lineage never
//     re-materializes.
//  2. A remote entry matching a local txid only updates status bookkeeping;
//     local fields are authoritative once confirmed.
//  3. A remote entry whose prevTxid matches a local entry's txid is an edit
//     race: the local record is replaced, not duplicated.
//  4. Anything else is genuinely new; its content hash is recomputed from
//     the semantic fields, never trusted from remote input.
//  5. Local entries whose txid is tombstoned remotely and that are not
//     already tombstoned are emitted for tombstoning.
func ApplyRemote(remote []RemoteEntry, tombstoneRefs []string, local []store.Entry) (Plan, error) {
	tombRefs := make(map[string]bool, len(tombstoneRefs))
	for _, ref := range tombstoneRefs {
		if ref != "" {
			tombRefs[ref] = true
		}
	}

	localByTxID := make(map[string]store.Entry, len(local))
	for _, e := range local {
		if e.TxID != "" {
			localByTxID[e.TxID] = e
		}
	}

	var plan Plan

	for _, r := range remote {
		if r.TxID == "" || tombRefs[r.TxID] {
			continue
		}
		if r.PrevTxID != "" && tombRefs[r.PrevTxID] {
			// Successor of a tombstoned record: the lineage is dead.
			continue
		}

		if existing, ok := localByTxID[r.TxID]; ok {
			if existing.Status == store.StatusTombstoned {
				continue
			}
			updated := existing
			changed := false
			if updated.Status != store.StatusConfirmed {
				updated.Status = store.StatusConfirmed
				changed = true
			}
			if !updated.SeenRemote {
				updated.SeenRemote = true
				changed = true
			}
			if r.Settled && !updated.Settled {
				updated.Settled = true
				changed = true
			}
			if changed {
				plan.ToUpdate = append(plan.ToUpdate, updated)
			}
			continue
		}

		hash, err := dedup.ContentHash(r.Fields)
		if err != nil {
			return Plan{}, err
		}
		entry := store.Entry{
			LocalID:     r.TxID,
			TxID:        r.TxID,
			ContentHash: hash,
			Status:      store.StatusConfirmed,
			SeenRemote:  true,
			Settled:     r.Settled,
			PrevTxID:    r.PrevTxID,
			Payload:     r.Raw,
		}

		if r.PrevTxID != "" {
			if prior, ok := localByTxID[r.PrevTxID]; ok && prior.Status != store.StatusTombstoned {
				plan.ToReplace = append(plan.ToReplace, Replacement{
					OldLocalID: prior.LocalID,
					NewEntry:   entry,
				})
				continue
			}
		}
		plan.ToAdd = append(plan.ToAdd, entry)
	}

	for _, e := range local {
		if e.TxID != "" && tombRefs[e.TxID] && e.Status != store.StatusTombstoned {
			plan.ToTombstone = append(plan.ToTombstone, e.TxID)
		}
	}

	return plan, nil
}

// Apply executes a plan against the content store. Tombstones are applied
// first so a replacement or addition can never outrun a deletion observed in
// the same batch.
func Apply(cs *store.ContentStore, plan Plan, now time.Time) error {
	for _, txid := range plan.ToTombstone {
		if err := cs.MarkTombstoned(txid, now); err != nil {
			return err
		}
	}
	for _, rep := range plan.ToReplace {
		if err := cs.DeleteByLocalID(rep.OldLocalID); err != nil {
			return err
		}
		entry := rep.NewEntry
		if err := cs.Put(&entry); err != nil {
			return err
		}
	}
	for _, e := range plan.ToUpdate {
		entry := e
		if err := cs.Put(&entry); err != nil {
			return err
		}
	}
	for _, e := range plan.ToAdd {
		entry := e
		if err := cs.Put(&entry); err != nil {
			return err
		}
	}
	return nil
}
