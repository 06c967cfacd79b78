// Package config loads and validates the daemon configuration from
// <NodeDir>/config/shelfsync_config.json, falling back to embedded defaults.
package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/openshelf/shelf-sync-node/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	if cfg.LogLevel < -1 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between -1 and 5")
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	var defaults Config
	if err := json.Unmarshal(defaultConfigJSON, &defaults); err != nil {
		return fmt.Errorf("invalid embedded defaults: %w", err)
	}

	// Fill zero values from defaults.
	if cfg.BundlerURL == "" {
		cfg.BundlerURL = defaults.BundlerURL
	}
	if cfg.FastIndexURL == "" {
		cfg.FastIndexURL = defaults.FastIndexURL
	}
	if cfg.CanonicalURL == "" {
		cfg.CanonicalURL = defaults.CanonicalURL
	}
	if len(cfg.Gateways) == 0 {
		cfg.Gateways = defaults.Gateways
	}
	if cfg.Token == "" {
		cfg.Token = defaults.Token
	}
	if cfg.EVMRPCURL == "" {
		cfg.EVMRPCURL = defaults.EVMRPCURL
	}
	if cfg.EVMChainID == 0 {
		cfg.EVMChainID = defaults.EVMChainID
	}
	if cfg.QueryServerPort == 0 {
		cfg.QueryServerPort = defaults.QueryServerPort
	}
	if cfg.ActiveIntervalSeconds == 0 {
		cfg.ActiveIntervalSeconds = defaults.ActiveIntervalSeconds
	}
	if cfg.CoolingIntervalSeconds == 0 {
		cfg.CoolingIntervalSeconds = defaults.CoolingIntervalSeconds
	}
	if cfg.IdleIntervalSeconds == 0 {
		cfg.IdleIntervalSeconds = defaults.IdleIntervalSeconds
	}
	if cfg.ActivityWindowSeconds == 0 {
		cfg.ActivityWindowSeconds = defaults.ActivityWindowSeconds
	}
	if cfg.CoolingWindowSeconds == 0 {
		cfg.CoolingWindowSeconds = defaults.CoolingWindowSeconds
	}
	if cfg.BalanceCheckCooldownSeconds == 0 {
		cfg.BalanceCheckCooldownSeconds = defaults.BalanceCheckCooldownSeconds
	}
	if cfg.FundingCooldownSeconds == 0 {
		cfg.FundingCooldownSeconds = defaults.FundingCooldownSeconds
	}
	if cfg.FundingMinRetrySeconds == 0 {
		cfg.FundingMinRetrySeconds = defaults.FundingMinRetrySeconds
	}
	if cfg.FundingBufferBps == 0 {
		cfg.FundingBufferBps = defaults.FundingBufferBps
	}
	if cfg.GasReserveWei == "" {
		cfg.GasReserveWei = defaults.GasReserveWei
	}
	if cfg.FundBlockDurationSeconds == 0 {
		cfg.FundBlockDurationSeconds = defaults.FundBlockDurationSeconds
	}
	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = defaults.PollIntervalSeconds
	}
	if cfg.PollTimeoutSeconds == 0 {
		cfg.PollTimeoutSeconds = defaults.PollTimeoutSeconds
	}
	if cfg.PostFundPollTimeoutSeconds == 0 {
		cfg.PostFundPollTimeoutSeconds = defaults.PostFundPollTimeoutSeconds
	}
	if cfg.ProbeInitialBackoffSeconds == 0 {
		cfg.ProbeInitialBackoffSeconds = defaults.ProbeInitialBackoffSeconds
	}
	if cfg.ProbeMaxBackoffSeconds == 0 {
		cfg.ProbeMaxBackoffSeconds = defaults.ProbeMaxBackoffSeconds
	}
	if cfg.PBKDF2Iterations == 0 {
		cfg.PBKDF2Iterations = defaults.PBKDF2Iterations
	}
	if cfg.TombstoneRetentionDays == 0 {
		cfg.TombstoneRetentionDays = defaults.TombstoneRetentionDays
	}

	if cfg.FundingBufferBps < 0 {
		return fmt.Errorf("funding buffer bps must be non-negative")
	}
	if _, ok := new(big.Int).SetString(cfg.GasReserveWei, 10); !ok {
		return fmt.Errorf("gas reserve must be a base-10 integer wei amount")
	}
	return nil
}

// GasReserve parses the configured gas reserve as integer wei. validateConfig
// guarantees the string parses; a nil return means Load was bypassed.
func (c *Config) GasReserve() *big.Int {
	reserve, ok := new(big.Int).SetString(c.GasReserveWei, 10)
	if !ok {
		return nil
	}
	return reserve
}

// Load reads the config file under basePath, creating it from embedded
// defaults on first run.
func Load(basePath string) (*Config, error) {
	path := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		var cfg Config
		if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse embedded defaults: %w", err)
		}
		if err := Save(&cfg, basePath); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Save writes the given config to <basePath>/config/shelfsync_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(configDir, constant.ConfigFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
