package engine

import (
	"context"

	"github.com/openshelf/shelf-sync-node/constant"
	syncerrors "github.com/openshelf/shelf-sync-node/errors"
	"github.com/openshelf/shelf-sync-node/dedup"
	"github.com/openshelf/shelf-sync-node/keys"
	"github.com/openshelf/shelf-sync-node/ledger"
	"github.com/openshelf/shelf-sync-node/metrics"
	"github.com/openshelf/shelf-sync-node/store"
	"github.com/openshelf/shelf-sync-node/uploader"
)

// baseTags returns the tags every published record carries.
func (e *Engine) baseTags() []ledger.Tag {
	return []ledger.Tag{
		{Name: constant.TagAppName, Value: constant.AppName},
		{Name: constant.TagSchema, Value: constant.SchemaEntry},
		{Name: constant.TagVersion, Value: constant.SchemaVersion},
		{Name: constant.TagVisibility, Value: constant.VisibilityPrivate},
		{Name: constant.TagEncryption, Value: constant.EncryptionAESGCM},
		{Name: constant.TagKeyID, Value: e.creds.LookupKey[:16]},
		{Name: constant.TagCredentialLookup, Value: e.creds.LookupKey},
	}
}

// CreateEntry encrypts and publishes a new record. An existing live entry
// with the same content hash suppresses the submission and is returned
// instead. When the ledger cannot accept the write now (offline, funding
// pending), the entry is stored under a local placeholder id and the
// mutation is queued.
func (e *Engine) CreateEntry(ctx context.Context, fields map[string]any) (*store.Entry, error) {
	dup, err := e.dedup.DetectDuplicate(fields)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		e.logger.Debug().Str("local_id", dup.LocalID).Msg("duplicate submission suppressed")
		return dup, nil
	}

	hash, err := dedup.ContentHash(fields)
	if err != nil {
		return nil, err
	}
	payload, err := keys.Encrypt(e.creds.EncryptionKey, fields)
	if err != nil {
		return nil, syncerrors.NewCryptoError("failed to encrypt entry", err)
	}

	entry := &store.Entry{
		ContentHash: hash,
		Status:      store.StatusPending,
		Payload:     payload,
	}

	res, err := e.uploader.Upload(ctx, payload, e.baseTags())
	e.recordUpload(res)
	if res.Status == uploader.StatusDone {
		entry.LocalID = res.TxID
		entry.TxID = res.TxID
	} else {
		entry.LocalID = newLocalID()
		if qerr := e.store.EnqueueOp(&store.PendingOp{
			OpID:    newLocalID(),
			Type:    store.OpCreate,
			LocalID: entry.LocalID,
			Payload: payload,
		}); qerr != nil {
			return nil, qerr
		}
		if err != nil {
			e.logger.Warn().Err(err).Msg("create deferred to queue")
		}
	}

	if err := e.store.Put(entry); err != nil {
		return nil, err
	}
	e.sched.MarkDirty()
	return entry, nil
}

// EditEntry encrypts and publishes a successor for an existing record,
// linked through the prior txid. Edits of never-published entries just
// replace the queued payload.
func (e *Engine) EditEntry(ctx context.Context, localID string, fields map[string]any) (*store.Entry, error) {
	prior, err := e.store.Get(localID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, syncerrors.NewValidationError("no such entry")
	}
	if prior.Status == store.StatusTombstoned {
		return nil, syncerrors.NewValidationError("cannot edit a deleted entry")
	}

	hash, err := dedup.ContentHash(fields)
	if err != nil {
		return nil, err
	}
	payload, err := keys.Encrypt(e.creds.EncryptionKey, fields)
	if err != nil {
		return nil, syncerrors.NewCryptoError("failed to encrypt entry", err)
	}

	tags := e.baseTags()
	if prior.TxID != "" {
		tags = append(tags, ledger.Tag{Name: constant.TagPrev, Value: prior.TxID})
	}

	res, err := e.uploader.Upload(ctx, payload, tags)
	e.recordUpload(res)

	if res.Status == uploader.StatusDone {
		// Published successor supersedes the prior record locally.
		successor := &store.Entry{
			LocalID:     res.TxID,
			TxID:        res.TxID,
			ContentHash: hash,
			Status:      store.StatusPending,
			PrevTxID:    prior.TxID,
			Payload:     payload,
		}
		if err := e.store.DeleteByLocalID(prior.LocalID); err != nil {
			return nil, err
		}
		if err := e.store.Put(successor); err != nil {
			return nil, err
		}
		e.sched.MarkDirty()
		return successor, nil
	}

	// Deferred: update the local record in place and queue the edit.
	prior.ContentHash = hash
	prior.Payload = payload
	if err := e.store.Put(prior); err != nil {
		return nil, err
	}
	if qerr := e.store.EnqueueOp(&store.PendingOp{
		OpID:      newLocalID(),
		Type:      store.OpEdit,
		LocalID:   prior.LocalID,
		PriorTxID: prior.TxID,
		Payload:   payload,
	}); qerr != nil {
		return nil, qerr
	}
	if err != nil {
		e.logger.Warn().Err(err).Msg("edit deferred to queue")
	}
	e.sched.MarkDirty()
	return prior, nil
}

// DeleteEntry publishes a tombstone referencing the entry's txid and marks
// the local record tombstoned. Tombstoning is applied locally regardless of
// publish outcome — a failed publish defers the tombstone record, never the
// local deletion.
func (e *Engine) DeleteEntry(ctx context.Context, localID string) error {
	prior, err := e.store.Get(localID)
	if err != nil {
		return err
	}
	if prior == nil {
		return syncerrors.NewValidationError("no such entry")
	}
	if prior.Status == store.StatusTombstoned {
		return nil
	}

	now := e.clock.Now()

	if prior.TxID == "" {
		// Never published: nothing to tombstone remotely. Drop any queued
		// publish and tombstone locally.
		if err := e.store.RemoveOpsForTarget(prior.LocalID); err != nil {
			return err
		}
		prior.Status = store.StatusTombstoned
		prior.TombstonedAt = &now
		if err := e.store.Put(prior); err != nil {
			return err
		}
		e.sched.MarkDirty()
		return nil
	}

	res, err := e.publishTombstone(ctx, prior.TxID)
	e.recordUpload(res)
	if res.Status != uploader.StatusDone {
		if qerr := e.store.EnqueueOp(&store.PendingOp{
			OpID:      newLocalID(),
			Type:      store.OpDelete,
			LocalID:   prior.LocalID,
			PriorTxID: prior.TxID,
		}); qerr != nil {
			return qerr
		}
		if err != nil {
			e.logger.Warn().Err(err).Msg("tombstone deferred to queue")
		}
	}

	if err := e.store.MarkTombstoned(prior.TxID, now); err != nil {
		return err
	}
	e.prober.Forget(prior.TxID)
	e.sched.MarkDirty()
	return nil
}

// publishTombstone publishes an Op=tombstone record with a Ref tag pointing
// at the txid being deleted.
func (e *Engine) publishTombstone(ctx context.Context, refTxID string) (uploader.Result, error) {
	marker, err := keys.Encrypt(e.creds.EncryptionKey, map[string]any{
		"op":  constant.OpTombstone,
		"ref": refTxID,
	})
	if err != nil {
		return uploader.Result{Status: uploader.StatusFailed},
			syncerrors.NewCryptoError("failed to encrypt tombstone marker", err)
	}

	tags := append(e.baseTags(),
		ledger.Tag{Name: constant.TagOp, Value: constant.OpTombstone},
		ledger.Tag{Name: constant.TagRef, Value: refTxID},
	)
	return e.uploader.Upload(ctx, marker, tags)
}

func (e *Engine) recordUpload(res uploader.Result) {
	metrics.UploadsTotal.WithLabelValues(string(res.Status)).Inc()
	if res.Decision != nil {
		metrics.FundingDecisionsTotal.WithLabelValues(string(res.Decision.Action)).Inc()
		metrics.PaymentRequiredTotal.Inc()
		e.observer.OnFundingDecision(*res.Decision)
	}
}
