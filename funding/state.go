package funding

import (
	"fmt"
	"math/big"
	"time"

	"gorm.io/gorm"

	"github.com/openshelf/shelf-sync-node/store"
)

// StateStore persists funding history and fund blocks. Only the policy's
// caller writes here, after an on-chain payment or a hard balance failure;
// the policy itself stays pure.
type StateStore struct {
	client *gorm.DB
}

// NewStateStore creates a funding state store over the given gorm client.
func NewStateStore(client *gorm.DB) *StateStore {
	return &StateStore{client: client}
}

// RecordFund stores a successful funding payment.
func (ss *StateStore) RecordFund(fund LastFund) error {
	if ss.client == nil {
		return fmt.Errorf("database is nil")
	}
	if fund.AmountWei == nil {
		return fmt.Errorf("fund amount is nil")
	}

	row := store.LastFund{
		Node:      fund.Node,
		Token:     fund.Token,
		Address:   fund.Address,
		AmountWei: fund.AmountWei.String(),
		TxHash:    fund.TxHash,
		FundedAt:  fund.At,
	}
	if err := ss.client.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record funding payment: %w", err)
	}
	return nil
}

// LatestFund returns the most recent funding payment for the identity, or
// nil when none exists.
func (ss *StateStore) LatestFund(id Identity) (*LastFund, error) {
	if ss.client == nil {
		return nil, fmt.Errorf("database is nil")
	}

	var row store.LastFund
	err := ss.client.
		Where("node = ? AND token = ? AND address = ?", id.Node, id.Token, id.Address).
		Order("funded_at DESC").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query funding history: %w", err)
	}

	amount, ok := new(big.Int).SetString(row.AmountWei, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt funding amount %q", row.AmountWei)
	}
	return &LastFund{
		Identity:  Identity{Node: row.Node, Token: row.Token, Address: row.Address},
		AmountWei: amount,
		TxHash:    row.TxHash,
		At:        row.FundedAt,
	}, nil
}

// RecordBlock stores a fund block lasting for the given duration.
func (ss *StateStore) RecordBlock(address, reason string, until time.Time) error {
	if ss.client == nil {
		return fmt.Errorf("database is nil")
	}

	row := store.FundBlock{Address: address, Reason: reason, Until: until}
	if err := ss.client.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record fund block: %w", err)
	}
	return nil
}

// ActiveBlock returns an unexpired fund block for the address, or nil.
// Expired blocks are pruned as a side effect.
func (ss *StateStore) ActiveBlock(address string, now time.Time) (*FundBlock, error) {
	if ss.client == nil {
		return nil, fmt.Errorf("database is nil")
	}

	if err := ss.client.Unscoped().
		Where("address = ? AND until <= ?", address, now).
		Delete(&store.FundBlock{}).Error; err != nil {
		return nil, fmt.Errorf("failed to prune expired fund blocks: %w", err)
	}

	var row store.FundBlock
	err := ss.client.
		Where("address = ? AND until > ?", address, now).
		Order("until DESC").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fund blocks: %w", err)
	}
	return &FundBlock{Address: row.Address, Reason: row.Reason, Until: row.Until}, nil
}
