package config

import (
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/shelf-sync-node/constant"
)

func TestLoad(t *testing.T) {
	t.Run("first run creates the config from defaults", func(t *testing.T) {
		home := t.TempDir()

		cfg, err := Load(home)
		require.NoError(t, err)
		assert.Equal(t, 15, cfg.ActiveIntervalSeconds)
		assert.NotEmpty(t, cfg.BundlerURL)

		_, err = os.Stat(filepath.Join(home, constant.ConfigSubdir, constant.ConfigFileName))
		assert.NoError(t, err)
	})

	t.Run("partial config is filled from defaults", func(t *testing.T) {
		home := t.TempDir()
		dir := filepath.Join(home, constant.ConfigSubdir)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, constant.ConfigFileName),
			[]byte(`{"query_server_port": 9999}`), 0o600))

		cfg, err := Load(home)
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.QueryServerPort)
		assert.NotZero(t, cfg.IdleIntervalSeconds)
		assert.NotZero(t, cfg.PBKDF2Iterations)
		assert.NotEmpty(t, cfg.GasReserveWei)
	})

	t.Run("malformed config is an error", func(t *testing.T) {
		home := t.TempDir()
		dir := filepath.Join(home, constant.ConfigSubdir)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, constant.ConfigFileName), []byte(`not json`), 0o600))

		_, err := Load(home)
		require.Error(t, err)
	})

	t.Run("non-integer gas reserve rejected", func(t *testing.T) {
		home := t.TempDir()
		dir := filepath.Join(home, constant.ConfigSubdir)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, constant.ConfigFileName),
			[]byte(`{"gas_reserve_wei": "0.5 eth"}`), 0o600))

		_, err := Load(home)
		require.Error(t, err)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()

	cfg, err := Load(home)
	require.NoError(t, err)

	cfg.QueryServerPort = 4242
	require.NoError(t, Save(cfg, home))

	reloaded, err := Load(home)
	require.NoError(t, err)
	assert.Equal(t, 4242, reloaded.QueryServerPort)
}

func TestEmbeddedDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal(defaultConfigJSON, &cfg))
	require.NoError(t, validateConfig(&cfg))

	// Policy constants that the rest of the engine depends on being sane.
	assert.Greater(t, cfg.CoolingIntervalSeconds, cfg.ActiveIntervalSeconds)
	assert.Greater(t, cfg.IdleIntervalSeconds, cfg.CoolingIntervalSeconds)
	assert.Greater(t, cfg.CoolingWindowSeconds, cfg.ActivityWindowSeconds)
	assert.GreaterOrEqual(t, cfg.FundingBufferBps, int64(0))
	assert.NotNil(t, cfg.GasReserve())
	assert.Equal(t, 1, cfg.GasReserve().Cmp(big.NewInt(0)))
	assert.GreaterOrEqual(t, cfg.PBKDF2Iterations, 100000)
}

func TestDurationAccessors(t *testing.T) {
	cfg := &Config{
		ActiveIntervalSeconds:  15,
		TombstoneRetentionDays: 30,
	}
	assert.Equal(t, 15*time.Second, cfg.ActiveInterval())
	assert.Equal(t, 30*24*time.Hour, cfg.TombstoneRetention())
}
