package dedup

import (
	"github.com/openshelf/shelf-sync-node/store"
)

// Engine suppresses double submission of the same logical record and drives
// duplicate compaction against the content store.
type Engine struct {
	store *store.ContentStore
}

// NewEngine creates a dedup engine over the given content store.
func NewEngine(cs *store.ContentStore) *Engine {
	return &Engine{store: cs}
}

// DetectDuplicate computes the candidate payload's content hash and returns
// any existing live entry sharing it, or nil when the payload is new.
func (e *Engine) DetectDuplicate(payload map[string]any) (*store.Entry, error) {
	hash, err := ContentHash(payload)
	if err != nil {
		return nil, err
	}
	return e.store.FindByContentHash(hash)
}

// Compact runs duplicate compaction over all stored entries and deletes the
// losers. Returns the number of entries removed.
func (e *Engine) Compact() (int, error) {
	entries, err := e.store.GetAll()
	if err != nil {
		return 0, err
	}

	result := CompactDuplicates(entries)
	for _, dup := range result.ToDelete {
		if err := e.store.DeleteByLocalID(dup.LocalID); err != nil {
			return 0, err
		}
	}
	return len(result.ToDelete), nil
}
