package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ContentStore provides database operations for entries and the queued
// mutation log. It holds a bare gorm client so it can be layered over either
// a file-backed or in-memory database.
type ContentStore struct {
	client *gorm.DB
}

// NewContentStore creates a new content store over the given gorm client.
func NewContentStore(client *gorm.DB) *ContentStore {
	return &ContentStore{client: client}
}

// Put inserts or updates an entry keyed by its LocalID.
func (cs *ContentStore) Put(entry *Entry) error {
	if cs.client == nil {
		return fmt.Errorf("database is nil")
	}
	if entry.LocalID == "" {
		return fmt.Errorf("entry local id is empty")
	}

	var existing Entry
	err := cs.client.Where("local_id = ?", entry.LocalID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		if err := cs.client.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query entry: %w", err)
	}

	entry.ID = existing.ID
	entry.CreatedAt = existing.CreatedAt
	if err := cs.client.Save(entry).Error; err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	return nil
}

// Get returns the entry with the given local id, or nil if absent.
func (cs *ContentStore) Get(localID string) (*Entry, error) {
	if cs.client == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var entry Entry
	err := cs.client.Where("local_id = ?", localID).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}
	return &entry, nil
}

// GetAll returns every entry, including tombstoned ones.
func (cs *ContentStore) GetAll() ([]Entry, error) {
	if cs.client == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var entries []Entry
	if err := cs.client.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	return entries, nil
}

// GetAllActive returns every non-tombstoned entry ordered by creation time.
func (cs *ContentStore) GetAllActive() ([]Entry, error) {
	if cs.client == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var entries []Entry
	if err := cs.client.
		Where("status <> ?", StatusTombstoned).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to query active entries: %w", err)
	}
	return entries, nil
}

// FindByTxID returns the entry with the given ledger txid, or nil if absent.
func (cs *ContentStore) FindByTxID(txid string) (*Entry, error) {
	if cs.client == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if txid == "" {
		return nil, nil
	}

	var entry Entry
	err := cs.client.Where("tx_id = ?", txid).First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry by txid: %w", err)
	}
	return &entry, nil
}

// FindByContentHash returns a live entry sharing the given content hash, or
// nil if none exists. Tombstoned entries never match.
func (cs *ContentStore) FindByContentHash(hash string) (*Entry, error) {
	if cs.client == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if hash == "" {
		return nil, nil
	}

	var entry Entry
	err := cs.client.
		Where("content_hash = ? AND status <> ?", hash, StatusTombstoned).
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry by content hash: %w", err)
	}
	return &entry, nil
}

// DeleteByLocalID hard-deletes an entry record. Only duplicate compaction
// uses this; user deletion goes through MarkTombstoned.
func (cs *ContentStore) DeleteByLocalID(localID string) error {
	if cs.client == nil {
		return fmt.Errorf("database is nil")
	}
	if err := cs.client.Unscoped().
		Where("local_id = ?", localID).
		Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// MarkTombstoned marks the entry carrying the given txid as tombstoned at
// the given time. Already-tombstoned entries keep their original timestamp.
func (cs *ContentStore) MarkTombstoned(txid string, at time.Time) error {
	if cs.client == nil {
		return fmt.Errorf("database is nil")
	}

	res := cs.client.Model(&Entry{}).
		Where("tx_id = ? AND status <> ?", txid, StatusTombstoned).
		Updates(map[string]any{
			"status":        StatusTombstoned,
			"tombstoned_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to tombstone entry: %w", res.Error)
	}
	return nil
}

// RemoveTombstonesOlderThan prunes tombstoned entries whose tombstone
// timestamp is before the cutoff. Returns the number of rows removed.
func (cs *ContentStore) RemoveTombstonesOlderThan(cutoff time.Time) (int64, error) {
	if cs.client == nil {
		return 0, fmt.Errorf("database is nil")
	}

	res := cs.client.Unscoped().
		Where("status = ? AND tombstoned_at < ?", StatusTombstoned, cutoff).
		Delete(&Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune tombstones: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// EnqueueOp stores a queued mutation. A later op for the same target
// supersedes any earlier one still in the queue.
func (cs *ContentStore) EnqueueOp(op *PendingOp) error {
	if cs.client == nil {
		return fmt.Errorf("database is nil")
	}
	if op.OpID == "" {
		return fmt.Errorf("op id is empty")
	}

	return cs.client.Transaction(func(tx *gorm.DB) error {
		if op.LocalID != "" {
			if err := tx.Unscoped().
				Where("local_id = ?", op.LocalID).
				Delete(&PendingOp{}).Error; err != nil {
				return fmt.Errorf("failed to supersede queued op: %w", err)
			}
		}
		if err := tx.Create(op).Error; err != nil {
			return fmt.Errorf("failed to enqueue op: %w", err)
		}
		return nil
	})
}

// ListOps returns queued mutations in enqueue order.
func (cs *ContentStore) ListOps() ([]PendingOp, error) {
	if cs.client == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var ops []PendingOp
	if err := cs.client.Order("created_at ASC").Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("failed to query queued ops: %w", err)
	}
	return ops, nil
}

// RemoveOpsForTarget drops every queued mutation for a local entry, used
// when the target is tombstoned before its publish ever succeeded.
func (cs *ContentStore) RemoveOpsForTarget(localID string) error {
	if cs.client == nil {
		return fmt.Errorf("database is nil")
	}
	if err := cs.client.Unscoped().
		Where("local_id = ?", localID).
		Delete(&PendingOp{}).Error; err != nil {
		return fmt.Errorf("failed to remove queued ops for target: %w", err)
	}
	return nil
}

// RemoveOp deletes a queued mutation after a successful publish.
func (cs *ContentStore) RemoveOp(opID string) error {
	if cs.client == nil {
		return fmt.Errorf("database is nil")
	}
	if err := cs.client.Unscoped().
		Where("op_id = ?", opID).
		Delete(&PendingOp{}).Error; err != nil {
		return fmt.Errorf("failed to remove queued op: %w", err)
	}
	return nil
}

// CountOps returns the queue depth.
func (cs *ContentStore) CountOps() (int64, error) {
	if cs.client == nil {
		return 0, fmt.Errorf("database is nil")
	}
	var n int64
	if err := cs.client.Model(&PendingOp{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count queued ops: %w", err)
	}
	return n, nil
}
