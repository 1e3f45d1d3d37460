package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CROSSARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CROSSARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "CROSSARB_SOLANA_RPC_URL")
	setStr(&cfg.Solana.WSURL, "CROSSARB_SOLANA_WS_URL")
	setStr(&cfg.Solana.Program, "CROSSARB_SOLANA_PROGRAM")
	setStr(&cfg.Solana.Curve, "CROSSARB_SOLANA_CURVE")
	setStr(&cfg.Solana.BaseMint, "CROSSARB_SOLANA_BASE_MINT")
	setStr(&cfg.Solana.BaseTokenAccount, "CROSSARB_SOLANA_BASE_TOKEN_ACCOUNT")
	setInt(&cfg.Solana.BaseDecimals, "CROSSARB_SOLANA_BASE_DECIMALS")
	setInt(&cfg.Solana.QuoteDecimals, "CROSSARB_SOLANA_QUOTE_DECIMALS")
	setInt64(&cfg.Solana.FeeBps, "CROSSARB_SOLANA_FEE_BPS")
	setStr(&cfg.Solana.Wallet.PrivateKey, "CROSSARB_SOLANA_PRIVATE_KEY")
	setStr(&cfg.Solana.Wallet.EncryptedKeyPath, "CROSSARB_SOLANA_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Solana.Wallet.KeyPassword, "CROSSARB_SOLANA_KEY_PASSWORD")

	// ── EVM ──
	setStr(&cfg.EVM.RPCURL, "CROSSARB_EVM_RPC_URL")
	setStr(&cfg.EVM.WSURL, "CROSSARB_EVM_WS_URL")
	setStr(&cfg.EVM.Pair, "CROSSARB_EVM_PAIR")
	setStr(&cfg.EVM.Router, "CROSSARB_EVM_ROUTER")
	setStr(&cfg.EVM.BaseToken, "CROSSARB_EVM_BASE_TOKEN")
	setStr(&cfg.EVM.QuoteToken, "CROSSARB_EVM_QUOTE_TOKEN")
	setBool(&cfg.EVM.BaseIsToken0, "CROSSARB_EVM_BASE_IS_TOKEN0")
	setInt(&cfg.EVM.BaseDecimals, "CROSSARB_EVM_BASE_DECIMALS")
	setInt(&cfg.EVM.QuoteDecimals, "CROSSARB_EVM_QUOTE_DECIMALS")
	setInt64(&cfg.EVM.FeeBps, "CROSSARB_EVM_FEE_BPS")
	setStr(&cfg.EVM.Wallet.PrivateKey, "CROSSARB_EVM_PRIVATE_KEY")
	setStr(&cfg.EVM.Wallet.EncryptedKeyPath, "CROSSARB_EVM_ENCRYPTED_KEY_PATH")
	setStr(&cfg.EVM.Wallet.KeyPassword, "CROSSARB_EVM_KEY_PASSWORD")

	// ── Oracle ──
	setStr(&cfg.Oracle.URL, "CROSSARB_ORACLE_URL")
	setStr(&cfg.Oracle.AssetID, "CROSSARB_ORACLE_ASSET_ID")
	setDuration(&cfg.Oracle.TTL, "CROSSARB_ORACLE_TTL")
	setDuration(&cfg.Oracle.StaleBound, "CROSSARB_ORACLE_STALE_BOUND")

	// ── Analyzer ──
	setFloat64(&cfg.Analyzer.TolerancePct, "CROSSARB_ANALYZER_TOLERANCE_PCT")
	setInt(&cfg.Analyzer.MaxIterations, "CROSSARB_ANALYZER_MAX_ITERATIONS")
	setInt64(&cfg.Analyzer.MaxReserveBps, "CROSSARB_ANALYZER_MAX_RESERVE_BPS")
	setFloat64(&cfg.Analyzer.NotionalCapUSD, "CROSSARB_ANALYZER_NOTIONAL_CAP_USD")
	setFloat64(&cfg.Analyzer.MinProfitUSD, "CROSSARB_ANALYZER_MIN_PROFIT_USD")
	setFloat64(&cfg.Analyzer.MinProfitPct, "CROSSARB_ANALYZER_MIN_PROFIT_PCT")

	// ── Simulator ──
	setFloat64(&cfg.Simulator.MinNetUSD, "CROSSARB_SIMULATOR_MIN_NET_USD")
	setFloat64(&cfg.Simulator.MinNetPct, "CROSSARB_SIMULATOR_MIN_NET_PCT")
	setInt64(&cfg.Simulator.SlippageBps, "CROSSARB_SIMULATOR_SLIPPAGE_BPS")
	setDuration(&cfg.Simulator.FreshnessBound, "CROSSARB_SIMULATOR_FRESHNESS_BOUND")
	setFloat64(&cfg.Simulator.SolanaOverheadSOL, "CROSSARB_SIMULATOR_SOLANA_OVERHEAD_SOL")
	setFloat64(&cfg.Simulator.EVMOverheadUSD, "CROSSARB_SIMULATOR_EVM_OVERHEAD_USD")

	// ── Executor ──
	setDuration(&cfg.Executor.LegDeadline, "CROSSARB_EXECUTOR_LEG_DEADLINE")
	setBool(&cfg.Executor.DryRun, "CROSSARB_EXECUTOR_DRY_RUN")

	// ── Coordinator ──
	setFloat64(&cfg.Coordinator.DeviationPct, "CROSSARB_COORDINATOR_DEVIATION_PCT")
	setDuration(&cfg.Coordinator.Cooldown, "CROSSARB_COORDINATOR_COOLDOWN")
	setInt(&cfg.Coordinator.EventBuffer, "CROSSARB_COORDINATOR_EVENT_BUFFER")
	setDuration(&cfg.Coordinator.DedupTTL, "CROSSARB_COORDINATOR_DEDUP_TTL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "CROSSARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "CROSSARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CROSSARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CROSSARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CROSSARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CROSSARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CROSSARB_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "CROSSARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "CROSSARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CROSSARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CROSSARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CROSSARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CROSSARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CROSSARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CROSSARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CROSSARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CROSSARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CROSSARB_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CROSSARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CROSSARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CROSSARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "CROSSARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CROSSARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CROSSARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CROSSARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CROSSARB_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.Retention, "CROSSARB_S3_RETENTION")
	setDuration(&cfg.S3.ArchiveInterval, "CROSSARB_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CROSSARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CROSSARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CROSSARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CROSSARB_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CROSSARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CROSSARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CROSSARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CROSSARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CROSSARB_MODE")
	setStr(&cfg.LogLevel, "CROSSARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
