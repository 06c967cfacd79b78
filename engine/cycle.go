package engine

import (
	"context"
	"errors"

	"github.com/openshelf/shelf-sync-node/constant"
	"github.com/openshelf/shelf-sync-node/keys"
	"github.com/openshelf/shelf-sync-node/ledger"
	"github.com/openshelf/shelf-sync-node/metrics"
	"github.com/openshelf/shelf-sync-node/reconcile"
	"github.com/openshelf/shelf-sync-node/store"
	"github.com/openshelf/shelf-sync-node/uploader"
)

// runCycle is one reconciliation cycle: drain the op queue, pull remote
// state, merge it into the store, compact duplicates, prune old tombstones,
// probe finality, and run the (throttled) balance check.
func (e *Engine) runCycle(ctx context.Context, forceBalanceCheck bool) error {
	err := e.cycle(ctx, forceBalanceCheck)

	e.mu.Lock()
	e.lastCycleAt = e.clock.Now()
	if err != nil {
		e.lastCycleErr = err.Error()
	} else {
		e.lastCycleErr = ""
	}
	e.mu.Unlock()

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.SyncCyclesTotal.WithLabelValues(outcome).Inc()
	metrics.LastCycleUnix.Set(float64(e.clock.Now().Unix()))

	if depth, derr := e.store.CountOps(); derr == nil {
		metrics.QueueDepth.Set(float64(depth))
	}

	e.observer.OnStatusChange(e.Status())
	return err
}

func (e *Engine) cycle(ctx context.Context, forceBalanceCheck bool) error {
	e.drainQueue(ctx)

	refs, err := e.ledger.Query(ctx, []ledger.Tag{
		{Name: constant.TagAppName, Value: constant.AppName},
		{Name: constant.TagCredentialLookup, Value: e.creds.LookupKey},
	})
	if err != nil {
		return err
	}

	local, err := e.store.GetAll()
	if err != nil {
		return err
	}
	localByTxID := make(map[string]store.Entry, len(local))
	for _, l := range local {
		if l.TxID != "" {
			localByTxID[l.TxID] = l
		}
	}

	remotes, tombRefs := e.decodeRemote(ctx, refs, localByTxID)

	plan, err := reconcile.ApplyRemote(remotes, tombRefs, local)
	if err != nil {
		return err
	}
	if err := reconcile.Apply(e.store, plan, e.clock.Now()); err != nil {
		return err
	}

	metrics.ReconcileOpsTotal.WithLabelValues("add").Add(float64(len(plan.ToAdd)))
	metrics.ReconcileOpsTotal.WithLabelValues("update").Add(float64(len(plan.ToUpdate)))
	metrics.ReconcileOpsTotal.WithLabelValues("tombstone").Add(float64(len(plan.ToTombstone)))
	metrics.ReconcileOpsTotal.WithLabelValues("replace").Add(float64(len(plan.ToReplace)))

	for _, txid := range plan.ToTombstone {
		e.prober.Forget(txid)
	}
	for _, added := range plan.ToAdd {
		e.observer.OnEntrySynced(added)
	}
	for _, rep := range plan.ToReplace {
		e.observer.OnEntrySynced(rep.NewEntry)
	}

	if _, err := e.dedup.Compact(); err != nil {
		return err
	}

	pruned, err := e.store.RemoveTombstonesOlderThan(e.clock.Now().Add(-e.cfg.TombstoneRetention()))
	if err != nil {
		return err
	}
	if pruned > 0 {
		metrics.TombstonesPrunedTotal.Add(float64(pruned))
		e.logger.Info().Int64("pruned", pruned).Msg("old tombstones pruned")
	}

	e.probeFinality(ctx)
	e.checkBalance(ctx, forceBalanceCheck)
	return nil
}

// drainQueue retries queued mutations. Failures leave the op queued; only a
// successful publish removes it.
func (e *Engine) drainQueue(ctx context.Context) {
	ops, err := e.store.ListOps()
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to list queued ops")
		return
	}

	for _, op := range ops {
		if err := e.retryOp(ctx, op); err != nil {
			e.logger.Warn().
				Err(err).
				Str("op_id", op.OpID).
				Str("type", op.Type).
				Msg("queued op still deferred")
		}
	}
}

func (e *Engine) retryOp(ctx context.Context, op store.PendingOp) error {
	switch op.Type {
	case store.OpCreate, store.OpEdit:
		tags := e.baseTags()
		if op.PriorTxID != "" {
			tags = append(tags, ledger.Tag{Name: constant.TagPrev, Value: op.PriorTxID})
		}

		res, err := e.uploader.Upload(ctx, op.Payload, tags)
		e.recordUpload(res)
		if res.Status != uploader.StatusDone {
			return err
		}

		entry, gerr := e.store.Get(op.LocalID)
		if gerr != nil {
			return gerr
		}
		if entry != nil && entry.Status != store.StatusTombstoned {
			// The placeholder identity gives way to the ledger txid.
			if err := e.store.DeleteByLocalID(entry.LocalID); err != nil {
				return err
			}
			entry.LocalID = res.TxID
			entry.TxID = res.TxID
			entry.PrevTxID = op.PriorTxID
			if err := e.store.Put(entry); err != nil {
				return err
			}
		}
		return e.store.RemoveOp(op.OpID)

	case store.OpDelete:
		if op.PriorTxID == "" {
			// The target never published; the local tombstone already holds.
			return e.store.RemoveOp(op.OpID)
		}
		res, err := e.publishTombstone(ctx, op.PriorTxID)
		e.recordUpload(res)
		if res.Status != uploader.StatusDone {
			return err
		}
		return e.store.RemoveOp(op.OpID)

	default:
		e.logger.Error().Str("type", op.Type).Msg("unknown queued op type, dropping")
		return e.store.RemoveOp(op.OpID)
	}
}

// decodeRemote turns query results into reconciliation input. Tombstone
// records contribute only their Ref. Payloads are fetched and decrypted only
// for txids not already held locally; a record that fails authentication is
// skipped (fatal for that record only, never substituted).
func (e *Engine) decodeRemote(ctx context.Context, refs []ledger.TxRef, localByTxID map[string]store.Entry) ([]reconcile.RemoteEntry, []string) {
	var remotes []reconcile.RemoteEntry
	var tombRefs []string

	for _, ref := range refs {
		if ref.TagValue(constant.TagOp) == constant.OpTombstone {
			if target := ref.TagValue(constant.TagRef); target != "" {
				tombRefs = append(tombRefs, target)
			}
			continue
		}

		remote := reconcile.RemoteEntry{
			TxID:     ref.ID,
			PrevTxID: ref.TagValue(constant.TagPrev),
			Settled:  ref.Settled,
		}

		if _, known := localByTxID[ref.ID]; !known {
			data, err := e.ledger.FetchData(ctx, ref.ID)
			if err != nil {
				e.logger.Warn().Err(err).Str("txid", ref.ID).Msg("payload fetch failed, skipping record")
				continue
			}
			fields, err := keys.Decrypt(e.creds.EncryptionKey, data)
			if err != nil {
				if errors.Is(err, keys.ErrAuthentication) {
					e.logger.Error().Str("txid", ref.ID).Msg("record failed authentication, skipping")
				} else {
					e.logger.Error().Err(err).Str("txid", ref.ID).Msg("record decode failed, skipping")
				}
				continue
			}
			remote.Fields = fields
			remote.Raw = data
		}

		remotes = append(remotes, remote)
	}
	return remotes, tombRefs
}

// probeFinality checks fast-layer-only entries against the canonical layer,
// paced by the per-entry doubling backoff.
func (e *Engine) probeFinality(ctx context.Context) {
	entries, err := e.store.GetAllActive()
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to load entries for finality probe")
		return
	}

	for _, entry := range entries {
		if entry.TxID == "" || entry.Settled || entry.Status != store.StatusConfirmed {
			continue
		}
		if !e.prober.Due(entry.TxID) {
			continue
		}

		settled, err := e.ledger.IsSettled(ctx, entry.TxID)
		if err != nil {
			e.logger.Debug().Err(err).Str("txid", entry.TxID).Msg("finality probe failed")
			e.prober.Observe(entry.TxID, false)
			continue
		}
		e.prober.Observe(entry.TxID, settled)

		if settled {
			update := entry
			update.Settled = true
			if err := e.store.Put(&update); err != nil {
				e.logger.Error().Err(err).Str("txid", entry.TxID).Msg("failed to persist settlement")
			}
		}
	}
}

// checkBalance runs the throttled balance query and, on the first funded
// observation, triggers account persistence through the single-flight guard.
func (e *Engine) checkBalance(ctx context.Context, force bool) {
	confirmed := e.accountConfirmed()
	if !e.gate.ShouldCheck(confirmed, force) {
		return
	}

	balance, err := e.wallet.Balance(ctx)
	if err != nil {
		e.logger.Debug().Err(err).Msg("balance check failed")
		return
	}
	if confirmed || balance.Sign() <= 0 {
		return
	}
	if err := e.persistAccount(balance.String()); err != nil {
		e.logger.Error().Err(err).Msg("account auto-persistence failed")
	}
}
