package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/shelf-sync-node/dedup"
	"github.com/openshelf/shelf-sync-node/store"
)

func remote(txid, prev string, fields map[string]any) RemoteEntry {
	return RemoteEntry{TxID: txid, PrevTxID: prev, Fields: fields, Raw: []byte("ct-" + txid)}
}

func TestApplyRemote(t *testing.T) {
	t.Run("new remote entry is added with recomputed hash", func(t *testing.T) {
		fields := map[string]any{"title": "Dune", "contentHash": "lying-remote-hash"}
		plan, err := ApplyRemote([]RemoteEntry{remote("tx1", "", fields)}, nil, nil)
		require.NoError(t, err)

		require.Len(t, plan.ToAdd, 1)
		added := plan.ToAdd[0]
		assert.Equal(t, "tx1", added.LocalID)
		assert.Equal(t, "tx1", added.TxID)
		assert.Equal(t, store.StatusConfirmed, added.Status)
		assert.True(t, added.SeenRemote)
		assert.Equal(t, []byte("ct-tx1"), added.Payload)

		want, err := dedup.ContentHash(fields)
		require.NoError(t, err)
		assert.Equal(t, want, added.ContentHash)
		assert.NotEqual(t, "lying-remote-hash", added.ContentHash)
	})

	t.Run("tombstoned record never re-materializes", func(t *testing.T) {
		plan, err := ApplyRemote(
			[]RemoteEntry{remote("A", "", map[string]any{"title": "x"})},
			[]string{"A"},
			nil,
		)
		require.NoError(t, err)
		assert.Empty(t, plan.ToAdd)
		assert.Empty(t, plan.ToReplace)
	})

	t.Run("successor of a tombstoned record is skipped", func(t *testing.T) {
		plan, err := ApplyRemote(
			[]RemoteEntry{remote("B", "A", map[string]any{"title": "x v2"})},
			[]string{"A"},
			nil,
		)
		require.NoError(t, err)
		assert.Empty(t, plan.ToAdd)
		assert.Empty(t, plan.ToReplace)
	})

	t.Run("local entry with tombstoned txid is marked for tombstoning", func(t *testing.T) {
		local := []store.Entry{{LocalID: "A", TxID: "A", Status: store.StatusConfirmed}}
		plan, err := ApplyRemote(nil, []string{"A"}, local)
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, plan.ToTombstone)
	})

	t.Run("already tombstoned local entry is not re-tombstoned", func(t *testing.T) {
		local := []store.Entry{{LocalID: "A", TxID: "A", Status: store.StatusTombstoned}}
		plan, err := ApplyRemote(nil, []string{"A"}, local)
		require.NoError(t, err)
		assert.Empty(t, plan.ToTombstone)
	})

	t.Run("known txid updates status bookkeeping only", func(t *testing.T) {
		local := []store.Entry{{
			LocalID: "local-1", TxID: "tx1", Status: store.StatusPending,
			ContentHash: "local-hash",
		}}
		r := remote("tx1", "", map[string]any{"title": "remote says otherwise"})
		r.Settled = true

		plan, err := ApplyRemote([]RemoteEntry{r}, nil, local)
		require.NoError(t, err)

		assert.Empty(t, plan.ToAdd)
		require.Len(t, plan.ToUpdate, 1)
		updated := plan.ToUpdate[0]
		assert.Equal(t, store.StatusConfirmed, updated.Status)
		assert.True(t, updated.SeenRemote)
		assert.True(t, updated.Settled)
		assert.Equal(t, "local-hash", updated.ContentHash)
	})

	t.Run("known txid with nothing to change emits no update", func(t *testing.T) {
		local := []store.Entry{{
			LocalID: "tx1", TxID: "tx1", Status: store.StatusConfirmed,
			SeenRemote: true, Settled: true,
		}}
		r := remote("tx1", "", map[string]any{"title": "x"})
		r.Settled = true

		plan, err := ApplyRemote([]RemoteEntry{r}, nil, local)
		require.NoError(t, err)
		assert.Empty(t, plan.ToUpdate)
	})

	t.Run("edit race replaces rather than duplicates", func(t *testing.T) {
		local := []store.Entry{{LocalID: "local-1", TxID: "tx1", Status: store.StatusConfirmed}}
		plan, err := ApplyRemote(
			[]RemoteEntry{remote("tx2", "tx1", map[string]any{"title": "x v2"})},
			nil, local,
		)
		require.NoError(t, err)

		assert.Empty(t, plan.ToAdd)
		require.Len(t, plan.ToReplace, 1)
		assert.Equal(t, "local-1", plan.ToReplace[0].OldLocalID)
		assert.Equal(t, "tx2", plan.ToReplace[0].NewEntry.TxID)
		assert.Equal(t, "tx1", plan.ToReplace[0].NewEntry.PrevTxID)
	})

	t.Run("successor with unknown predecessor is a plain add", func(t *testing.T) {
		plan, err := ApplyRemote(
			[]RemoteEntry{remote("tx2", "tx-never-seen", map[string]any{"title": "x"})},
			nil, nil,
		)
		require.NoError(t, err)
		assert.Len(t, plan.ToAdd, 1)
		assert.Empty(t, plan.ToReplace)
	})

	t.Run("order independent", func(t *testing.T) {
		local := []store.Entry{{LocalID: "local-1", TxID: "tx1", Status: store.StatusConfirmed}}
		a := remote("tx2", "tx1", map[string]any{"title": "v2"})
		b := remote("tx3", "", map[string]any{"title": "other"})

		p1, err := ApplyRemote([]RemoteEntry{a, b}, []string{"dead"}, local)
		require.NoError(t, err)
		p2, err := ApplyRemote([]RemoteEntry{b, a}, []string{"dead"}, local)
		require.NoError(t, err)

		assert.Len(t, p1.ToAdd, 1)
		assert.Len(t, p1.ToReplace, 1)
		assert.Equal(t, len(p1.ToAdd), len(p2.ToAdd))
		assert.Equal(t, p1.ToReplace, p2.ToReplace)
	})
}
