package config

import "time"

// Config holds all runtime configuration for the sync daemon. Every policy
// constant from the scheduler, funding, and upload components lives here so
// funding behavior stays auditable; none of them are caller-supplied.
type Config struct {
	// Logging
	LogLevel   int    `json:"log_level"`   // zerolog level: -1..5
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // sample chatty logs

	// Ledger endpoints
	BundlerURL      string   `json:"bundler_url"`       // token-specific write endpoint
	FastIndexURL    string   `json:"fast_index_url"`    // fast-indexing query endpoint
	CanonicalURL    string   `json:"canonical_url"`     // canonical settlement query endpoint
	Gateways        []string `json:"gateways"`          // content gateways, first success wins
	Token           string   `json:"token"`             // payment token symbol (e.g. "ethereum")
	FundWalletAddr  string   `json:"fund_wallet_addr"`  // ledger-operated deposit address
	EVMRPCURL       string   `json:"evm_rpc_url"`       // wallet RPC endpoint
	EVMChainID      int64    `json:"evm_chain_id"`      //
	QueryServerPort int      `json:"query_server_port"` // status API port

	// Scheduler intervals
	ActiveIntervalSeconds  int `json:"active_interval_seconds"`
	CoolingIntervalSeconds int `json:"cooling_interval_seconds"`
	IdleIntervalSeconds    int `json:"idle_interval_seconds"`
	ActivityWindowSeconds  int `json:"activity_window_seconds"`
	CoolingWindowSeconds   int `json:"cooling_window_seconds"`

	// Balance-check throttle
	BalanceCheckCooldownSeconds int `json:"balance_check_cooldown_seconds"`

	// Funding policy
	FundingCooldownSeconds  int    `json:"funding_cooldown_seconds"`
	FundingMinRetrySeconds  int    `json:"funding_min_retry_seconds"`
	FundingBufferBps        int64  `json:"funding_buffer_bps"`
	GasReserveWei           string `json:"gas_reserve_wei"`
	FundBlockDurationSeconds int   `json:"fund_block_duration_seconds"`

	// Upload coordinator
	PollIntervalSeconds        int `json:"poll_interval_seconds"`
	PollTimeoutSeconds         int `json:"poll_timeout_seconds"`
	PostFundPollTimeoutSeconds int `json:"post_fund_poll_timeout_seconds"`
	ProbeInitialBackoffSeconds int `json:"probe_initial_backoff_seconds"`
	ProbeMaxBackoffSeconds     int `json:"probe_max_backoff_seconds"`

	// Key derivation. Iteration count is a deployment parameter and is
	// deliberately outside the derivation's hash domain.
	PBKDF2Iterations int `json:"pbkdf2_iterations"`

	// Retention
	TombstoneRetentionDays int `json:"tombstone_retention_days"`
}

// Duration accessors keep call sites free of second/Duration conversions.

func (c *Config) ActiveInterval() time.Duration {
	return time.Duration(c.ActiveIntervalSeconds) * time.Second
}

func (c *Config) CoolingInterval() time.Duration {
	return time.Duration(c.CoolingIntervalSeconds) * time.Second
}

func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalSeconds) * time.Second
}

func (c *Config) ActivityWindow() time.Duration {
	return time.Duration(c.ActivityWindowSeconds) * time.Second
}

func (c *Config) CoolingWindow() time.Duration {
	return time.Duration(c.CoolingWindowSeconds) * time.Second
}

func (c *Config) BalanceCheckCooldown() time.Duration {
	return time.Duration(c.BalanceCheckCooldownSeconds) * time.Second
}

func (c *Config) FundingCooldown() time.Duration {
	return time.Duration(c.FundingCooldownSeconds) * time.Second
}

func (c *Config) FundingMinRetry() time.Duration {
	return time.Duration(c.FundingMinRetrySeconds) * time.Second
}

func (c *Config) FundBlockDuration() time.Duration {
	return time.Duration(c.FundBlockDurationSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}

func (c *Config) PostFundPollTimeout() time.Duration {
	return time.Duration(c.PostFundPollTimeoutSeconds) * time.Second
}

func (c *Config) ProbeInitialBackoff() time.Duration {
	return time.Duration(c.ProbeInitialBackoffSeconds) * time.Second
}

func (c *Config) ProbeMaxBackoff() time.Duration {
	return time.Duration(c.ProbeMaxBackoffSeconds) * time.Second
}

func (c *Config) TombstoneRetention() time.Duration {
	return time.Duration(c.TombstoneRetentionDays) * 24 * time.Hour
}
