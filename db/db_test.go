package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/shelf-sync-node/db"
	"github.com/openshelf/shelf-sync-node/store"
)

func TestOpenInMemoryDB(t *testing.T) {
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	defer database.Close()

	// Schema is migrated: all model tables accept writes.
	require.NoError(t, database.Client().Create(&store.Entry{LocalID: "a"}).Error)
	require.NoError(t, database.Client().Create(&store.PendingOp{OpID: "op-1"}).Error)
	require.NoError(t, database.Client().Create(&store.SessionItem{Key: "k"}).Error)
}

func TestOpenFileDB(t *testing.T) {
	t.Run("creates the directory and persists across reopen", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "databases")

		database, err := db.OpenFileDB(dir, "test.db", true)
		require.NoError(t, err)
		require.NoError(t, database.Client().Create(&store.Entry{LocalID: "a"}).Error)
		require.NoError(t, database.Close())

		reopened, err := db.OpenFileDB(dir, "test.db", false)
		require.NoError(t, err)
		defer reopened.Close()

		var count int64
		require.NoError(t, reopened.Client().Model(&store.Entry{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unique local id enforced", func(t *testing.T) {
		database, err := db.OpenInMemoryDB(true)
		require.NoError(t, err)
		defer database.Close()

		require.NoError(t, database.Client().Create(&store.Entry{LocalID: "a"}).Error)
		assert.Error(t, database.Client().Create(&store.Entry{LocalID: "a"}).Error)
	})
}
