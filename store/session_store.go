package store

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/openshelf/shelf-sync-node/constant"
)

// SessionStore persists namespaced session records: the account record,
// symmetric key hex, session-encrypted seed, credential metadata, the
// pending mapping awaiting upload, and funding snapshots. ClearSession
// removes all of them in one transaction.
type SessionStore struct {
	client *gorm.DB
}

// NewSessionStore creates a session store over the given gorm client.
func NewSessionStore(client *gorm.DB) *SessionStore {
	return &SessionStore{client: client}
}

// Set writes a value under a namespaced session key.
func (ss *SessionStore) Set(key string, value []byte) error {
	if ss.client == nil {
		return fmt.Errorf("database is nil")
	}
	if key == "" {
		return fmt.Errorf("session key is empty")
	}

	var existing SessionItem
	err := ss.client.Where("key = ?", key).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		item := SessionItem{Key: key, Value: value}
		if err := ss.client.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to create session item: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to query session item: %w", err)
	}

	existing.Value = value
	if err := ss.client.Save(&existing).Error; err != nil {
		return fmt.Errorf("failed to update session item: %w", err)
	}
	return nil
}

// Get returns the value under key, or nil if absent.
func (ss *SessionStore) Get(key string) ([]byte, error) {
	if ss.client == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var item SessionItem
	err := ss.client.Where("key = ?", key).First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session item: %w", err)
	}
	return item.Value, nil
}

// Delete removes the value under key. Missing keys are not an error.
func (ss *SessionStore) Delete(key string) error {
	if ss.client == nil {
		return fmt.Errorf("database is nil")
	}
	if err := ss.client.Unscoped().
		Where("key = ?", key).
		Delete(&SessionItem{}).Error; err != nil {
		return fmt.Errorf("failed to delete session item: %w", err)
	}
	return nil
}

// ClearSession removes every namespaced session key atomically, together
// with the funding history and block tables that belong to the session.
func (ss *SessionStore) ClearSession() error {
	if ss.client == nil {
		return fmt.Errorf("database is nil")
	}

	return ss.client.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().
			Where("key IN ?", constant.SessionKeys).
			Delete(&SessionItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear session items: %w", err)
		}
		if err := tx.Unscoped().Where("1 = 1").Delete(&LastFund{}).Error; err != nil {
			return fmt.Errorf("failed to clear funding history: %w", err)
		}
		if err := tx.Unscoped().Where("1 = 1").Delete(&FundBlock{}).Error; err != nil {
			return fmt.Errorf("failed to clear fund blocks: %w", err)
		}
		return nil
	})
}
