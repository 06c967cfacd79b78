package funding_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/shelf-sync-node/db"
	"github.com/openshelf/shelf-sync-node/funding"
)

func newStateStore(t *testing.T) *funding.StateStore {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return funding.NewStateStore(database.Client())
}

func TestStateStoreFunds(t *testing.T) {
	id := funding.Identity{Node: "https://node.example", Token: "ethereum", Address: "0xabc"}
	now := time.Now().UTC().Truncate(time.Second)

	t.Run("no history returns nil", func(t *testing.T) {
		ss := newStateStore(t)
		last, err := ss.LatestFund(id)
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	t.Run("latest fund wins by funded_at", func(t *testing.T) {
		ss := newStateStore(t)

		require.NoError(t, ss.RecordFund(funding.LastFund{
			Identity: id, AmountWei: big.NewInt(100), TxHash: "0x1", At: now.Add(-time.Hour),
		}))
		require.NoError(t, ss.RecordFund(funding.LastFund{
			Identity: id, AmountWei: big.NewInt(200), TxHash: "0x2", At: now,
		}))

		last, err := ss.LatestFund(id)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, "0x2", last.TxHash)
		assert.Equal(t, big.NewInt(200), last.AmountWei)
	})

	t.Run("history is scoped to the full identity", func(t *testing.T) {
		ss := newStateStore(t)
		require.NoError(t, ss.RecordFund(funding.LastFund{
			Identity: id, AmountWei: big.NewInt(100), At: now,
		}))

		other := id
		other.Token = "matic"
		last, err := ss.LatestFund(other)
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	t.Run("nil amount rejected", func(t *testing.T) {
		ss := newStateStore(t)
		assert.Error(t, ss.RecordFund(funding.LastFund{Identity: id}))
	})
}

func TestStateStoreBlocks(t *testing.T) {
	now := time.Now().UTC()

	t.Run("active block is returned", func(t *testing.T) {
		ss := newStateStore(t)
		require.NoError(t, ss.RecordBlock("0xabc", funding.ReasonInsufficientBalance, now.Add(time.Hour)))

		block, err := ss.ActiveBlock("0xabc", now)
		require.NoError(t, err)
		require.NotNil(t, block)
		assert.Equal(t, funding.ReasonInsufficientBalance, block.Reason)
	})

	t.Run("expired block is pruned and not returned", func(t *testing.T) {
		ss := newStateStore(t)
		require.NoError(t, ss.RecordBlock("0xabc", funding.ReasonInsufficientBalance, now.Add(-time.Minute)))

		block, err := ss.ActiveBlock("0xabc", now)
		require.NoError(t, err)
		assert.Nil(t, block)
	})

	t.Run("blocks are per address", func(t *testing.T) {
		ss := newStateStore(t)
		require.NoError(t, ss.RecordBlock("0xother", funding.ReasonInsufficientBalance, now.Add(time.Hour)))

		block, err := ss.ActiveBlock("0xabc", now)
		require.NoError(t, err)
		assert.Nil(t, block)
	})
}
