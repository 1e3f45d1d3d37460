// Package config defines the top-level configuration for the cross-ledger
// arbitrage engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CROSSARB_* environment variables.
type Config struct {
	Solana      SolanaConfig      `toml:"solana"`
	EVM         EVMConfig         `toml:"evm"`
	Oracle      OracleConfig      `toml:"oracle"`
	Analyzer    AnalyzerConfig    `toml:"analyzer"`
	Simulator   SimulatorConfig   `toml:"simulator"`
	Executor    ExecutorConfig    `toml:"executor"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// WalletConfig holds one venue's signing key material: either an inline key
// (hex for EVM, base58 for Solana) or an encrypted key file plus password.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// SolanaConfig holds the bonding-curve venue's endpoints, accounts and wallet.
type SolanaConfig struct {
	RPCURL           string       `toml:"rpc_url"`
	WSURL            string       `toml:"ws_url"`
	Program          string       `toml:"program"`
	Curve            string       `toml:"curve"`
	BaseMint         string       `toml:"base_mint"`
	BaseTokenAccount string       `toml:"base_token_account"`
	BaseDecimals     int          `toml:"base_decimals"`
	QuoteDecimals    int          `toml:"quote_decimals"`
	FeeBps           int64        `toml:"fee_bps"`
	ConfirmAttempts  int          `toml:"confirm_attempts"`
	ConfirmInterval  duration     `toml:"confirm_interval"`
	Wallet           WalletConfig `toml:"wallet"`
}

// EVMConfig holds the constant-product venue's endpoints, contracts and
// wallet.
type EVMConfig struct {
	RPCURL          string       `toml:"rpc_url"`
	WSURL           string       `toml:"ws_url"`
	Pair            string       `toml:"pair"`
	Router          string       `toml:"router"`
	BaseToken       string       `toml:"base_token"`
	QuoteToken      string       `toml:"quote_token"`
	BaseIsToken0    bool         `toml:"base_is_token0"`
	BaseDecimals    int          `toml:"base_decimals"`
	QuoteDecimals   int          `toml:"quote_decimals"`
	FeeBps          int64        `toml:"fee_bps"`
	GasLimit        uint64       `toml:"gas_limit"`
	ConfirmAttempts int          `toml:"confirm_attempts"`
	ConfirmInterval duration     `toml:"confirm_interval"`
	Wallet          WalletConfig `toml:"wallet"`
}

// OracleConfig holds the USD reference price source parameters.
type OracleConfig struct {
	URL        string   `toml:"url"`
	AssetID    string   `toml:"asset_id"`
	TTL        duration `toml:"ttl"`
	StaleBound duration `toml:"stale_bound"`
}

// AnalyzerConfig holds the equilibrium search parameters.
type AnalyzerConfig struct {
	TolerancePct   float64 `toml:"tolerance_pct"`
	MaxIterations  int     `toml:"max_iterations"`
	MaxReserveBps  int64   `toml:"max_reserve_bps"`
	NotionalCapUSD float64 `toml:"notional_cap_usd"`
	MinProfitUSD   float64 `toml:"min_profit_usd"`
	MinProfitPct   float64 `toml:"min_profit_pct"`
}

// SimulatorConfig holds the pre-trade validation parameters.
type SimulatorConfig struct {
	MinNetUSD         float64  `toml:"min_net_usd"`
	MinNetPct         float64  `toml:"min_net_pct"`
	SlippageBps       int64    `toml:"slippage_bps"`
	FreshnessBound    duration `toml:"freshness_bound"`
	SolanaOverheadSOL float64  `toml:"solana_overhead_sol"`
	EVMOverheadUSD    float64  `toml:"evm_overhead_usd"`
}

// ExecutorConfig holds the two-leg execution parameters.
type ExecutorConfig struct {
	LegDeadline duration `toml:"leg_deadline"`
	DryRun      bool     `toml:"dry_run"`
}

// CoordinatorConfig holds the event-trigger parameters.
type CoordinatorConfig struct {
	DeviationPct float64  `toml:"deviation_pct"`
	Cooldown     duration `toml:"cooldown"`
	EventBuffer  int      `toml:"event_buffer"`
	DedupTTL     duration `toml:"dedup_ttl"`
}

// RedisConfig holds Redis connection parameters. When disabled the engine
// falls back to in-process dedup and skips the shared price cache.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	PriceTTL   duration `toml:"price_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters for the outcome
// store. When disabled, outcomes are only logged.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for outcome
// archival.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	Retention       duration `toml:"retention"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey protects the API endpoints; empty disables authentication.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Solana: SolanaConfig{
			RPCURL:          "https://api.mainnet-beta.solana.com",
			WSURL:           "wss://api.mainnet-beta.solana.com",
			BaseDecimals:    6,
			QuoteDecimals:   9,
			FeeBps:          100,
			ConfirmAttempts: 30,
			ConfirmInterval: duration{2 * time.Second},
		},
		EVM: EVMConfig{
			BaseDecimals:    18,
			QuoteDecimals:   18,
			FeeBps:          30,
			GasLimit:        300_000,
			ConfirmAttempts: 40,
			ConfirmInterval: duration{3 * time.Second},
		},
		Oracle: OracleConfig{
			URL:        "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd",
			AssetID:    "solana",
			TTL:        duration{30 * time.Second},
			StaleBound: duration{10 * time.Minute},
		},
		Analyzer: AnalyzerConfig{
			TolerancePct:   0.001,
			MaxIterations:  96,
			MaxReserveBps:  8_000,
			NotionalCapUSD: 1_000,
			MinProfitUSD:   1,
			MinProfitPct:   1,
		},
		Simulator: SimulatorConfig{
			MinNetUSD:         1,
			MinNetPct:         0.5,
			SlippageBps:       100,
			FreshnessBound:    duration{5 * time.Second},
			SolanaOverheadSOL: 0.001,
			EVMOverheadUSD:    2,
		},
		Executor: ExecutorConfig{
			LegDeadline: duration{60 * time.Second},
			DryRun:      false,
		},
		Coordinator: CoordinatorConfig{
			DeviationPct: 0.5,
			Cooldown:     duration{3 * time.Second},
			EventBuffer:  256,
			DedupTTL:     duration{time.Minute},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			PriceTTL:   duration{15 * time.Minute},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "crossarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "crossarb-data",
			UseSSL:          false,
			ForcePathStyle:  true,
			Retention:       duration{30 * 24 * time.Hour},
			ArchiveInterval: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"executed", "partial", "failed", "error"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// NeedsWallets reports whether the configured mode signs real transactions.
// Monitor mode estimates and simulates but never submits, so it runs without
// key material; trading modes cannot.
func (c *Config) NeedsWallets() bool {
	mode := strings.ToLower(c.Mode)
	return (mode == "trade" || mode == "full") && !c.Executor.DryRun
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Solana venue
	if c.Solana.RPCURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}
	if c.Solana.WSURL == "" {
		errs = append(errs, "solana: ws_url must not be empty")
	}
	if c.Solana.Program == "" {
		errs = append(errs, "solana: program must not be empty")
	}
	if c.Solana.Curve == "" {
		errs = append(errs, "solana: curve must not be empty")
	}
	if c.Solana.BaseDecimals <= 0 || c.Solana.BaseDecimals > 18 {
		errs = append(errs, fmt.Sprintf("solana: base_decimals must be 1-18, got %d", c.Solana.BaseDecimals))
	}
	if c.Solana.QuoteDecimals <= 0 || c.Solana.QuoteDecimals > 18 {
		errs = append(errs, fmt.Sprintf("solana: quote_decimals must be 1-18, got %d", c.Solana.QuoteDecimals))
	}
	if c.Solana.FeeBps < 0 || c.Solana.FeeBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("solana: fee_bps must be 0-9999, got %d", c.Solana.FeeBps))
	}

	// EVM venue
	if c.EVM.RPCURL == "" {
		errs = append(errs, "evm: rpc_url must not be empty")
	}
	if c.EVM.WSURL == "" {
		errs = append(errs, "evm: ws_url must not be empty")
	}
	if c.EVM.Pair == "" {
		errs = append(errs, "evm: pair must not be empty")
	}
	if c.EVM.Router == "" {
		errs = append(errs, "evm: router must not be empty")
	}
	if c.EVM.BaseDecimals <= 0 || c.EVM.BaseDecimals > 18 {
		errs = append(errs, fmt.Sprintf("evm: base_decimals must be 1-18, got %d", c.EVM.BaseDecimals))
	}
	if c.EVM.QuoteDecimals <= 0 || c.EVM.QuoteDecimals > 18 {
		errs = append(errs, fmt.Sprintf("evm: quote_decimals must be 1-18, got %d", c.EVM.QuoteDecimals))
	}
	if c.EVM.FeeBps < 0 || c.EVM.FeeBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("evm: fee_bps must be 0-9999, got %d", c.EVM.FeeBps))
	}

	// Wallets are only required when the mode actually submits transactions.
	if c.NeedsWallets() {
		errs = append(errs, validateWallet("solana", c.Solana.Wallet)...)
		errs = append(errs, validateWallet("evm", c.EVM.Wallet)...)
	}

	// Oracle
	if c.Oracle.URL == "" {
		errs = append(errs, "oracle: url must not be empty")
	}

	// Analyzer
	if c.Analyzer.TolerancePct <= 0 {
		errs = append(errs, "analyzer: tolerance_pct must be > 0")
	}
	if c.Analyzer.MaxIterations < 1 {
		errs = append(errs, "analyzer: max_iterations must be >= 1")
	}
	if c.Analyzer.MaxReserveBps <= 0 || c.Analyzer.MaxReserveBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("analyzer: max_reserve_bps must be 1-9999, got %d", c.Analyzer.MaxReserveBps))
	}
	if c.Analyzer.NotionalCapUSD <= 0 {
		errs = append(errs, "analyzer: notional_cap_usd must be > 0")
	}

	// Simulator
	if c.Simulator.SlippageBps < 0 || c.Simulator.SlippageBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("simulator: slippage_bps must be 0-9999, got %d", c.Simulator.SlippageBps))
	}
	if c.Simulator.FreshnessBound.Duration <= 0 {
		errs = append(errs, "simulator: freshness_bound must be > 0")
	}

	// Coordinator
	if c.Coordinator.DeviationPct <= 0 {
		errs = append(errs, "coordinator: deviation_pct must be > 0")
	}
	if c.Coordinator.Cooldown.Duration < 0 {
		errs = append(errs, "coordinator: cooldown must not be negative")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: archival requires postgres to be enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateWallet(venue string, w WalletConfig) []string {
	var errs []string
	if w.PrivateKey == "" && w.EncryptedKeyPath == "" {
		errs = append(errs, venue+": wallet.private_key or wallet.encrypted_key_path must be set for trading modes")
	}
	if w.EncryptedKeyPath != "" && w.KeyPassword == "" {
		errs = append(errs, venue+": wallet.key_password is required when wallet.encrypted_key_path is set")
	}
	return errs
}
