// Package store contains the GORM-backed SQLite models and store types used
// by the sync engine.
//
// Database structure (database file: shelf_data.db):
//
//	<NodeDir>/databases/shelf_data.db
//	├── entries        user records and their lineage/tombstone state
//	├── pending_ops    queued mutations awaiting publish
//	├── last_funds     funding history (one row per on-chain payment)
//	├── fund_blocks    active funding blocks after hard failures
//	└── session_items  namespaced session records
package store

import (
	"time"

	"gorm.io/gorm"
)

// Entry status values. A tombstoned entry is never resurrected; it is only
// pruned once older than the retention window.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusTombstoned = "tombstoned"
)

// PendingOp types.
const (
	OpCreate = "create"
	OpEdit   = "edit"
	OpDelete = "delete"
)

// Entry is one user record (e.g. one book). LocalID is the ledger transaction
// id once published, otherwise a locally generated placeholder. The payload
// is stored encrypted end to end; plaintext semantic fields are never
// persisted separately from the record that indexes them.
type Entry struct {
	gorm.Model
	LocalID     string `gorm:"uniqueIndex;not null"` // local identity
	TxID        string `gorm:"index"`                // ledger txid once confirmed, "" until then
	ContentHash string `gorm:"index"`                // derived from semantic fields only
	Status      string `gorm:"index"`                // "pending", "confirmed", "tombstoned"
	SeenRemote  bool   // observed in a ledger query
	Settled     bool   // observed on the canonical settlement layer, not just the fast index
	PrevTxID    string // prior txid when this entry supersedes an earlier version
	TombstonedAt *time.Time
	Payload     []byte // encrypted semantic payload
}

// Live reports whether the entry participates in dedup and reconciliation.
func (e *Entry) Live() bool {
	return e.Status != StatusTombstoned
}

// PendingOp is a queued mutation that could not be published (offline,
// funding pending). Removed on successful publish, or superseded by a later
// queued op for the same target.
type PendingOp struct {
	gorm.Model
	OpID      string `gorm:"uniqueIndex;not null"`
	Type      string `gorm:"index"` // "create", "edit", "delete"
	LocalID   string `gorm:"index"` // target entry
	PriorTxID string // txid being superseded or deleted
	Payload   []byte // encrypted payload for create/edit
}

// LastFund records one successful on-chain funding payment. The funding
// policy reads the most recent row for a (node, token, address) identity.
type LastFund struct {
	gorm.Model
	Node      string `gorm:"index"`
	Token     string `gorm:"index"`
	Address   string `gorm:"index"`
	AmountWei string // decimal big.Int in base units
	TxHash    string
	FundedAt  time.Time
}

// FundBlock records a hard funding failure (confirmed insufficient funds)
// that must not be retried until the block expires.
type FundBlock struct {
	gorm.Model
	Address string `gorm:"index"`
	Reason  string
	Until   time.Time
}

// SessionItem is one namespaced session record (account, symmetric key,
// encrypted seed, credential metadata, pending mapping, funding snapshot).
type SessionItem struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Value []byte
}
