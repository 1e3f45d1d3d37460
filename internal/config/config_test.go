package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// minimal venue settings on top of Defaults() so Validate passes.
func validConfig() Config {
	cfg := Defaults()
	cfg.Solana.Program = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	cfg.Solana.Curve = "CurveAccount1111111111111111111111111111111"
	cfg.EVM.RPCURL = "https://rpc.example.org"
	cfg.EVM.WSURL = "wss://rpc.example.org"
	cfg.EVM.Pair = "0x0000000000000000000000000000000000000001"
	cfg.EVM.Router = "0x0000000000000000000000000000000000000002"
	return cfg
}

func TestDefaultsValidateInMonitorMode(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestTradeModeRequiresWallets(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("trade mode without wallets must fail validation")
	}
	if !strings.Contains(err.Error(), "wallet.private_key") {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Solana.Wallet.PrivateKey = "base58key"
	cfg.EVM.Wallet.PrivateKey = "0xabc"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate with wallets: %v", err)
	}
}

func TestDryRunTradeModeSkipsWalletCheck(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.Executor.DryRun = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Analyzer.NotionalCapUSD = 0
	cfg.Coordinator.DeviationPct = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("want validation error")
	}
	for _, want := range []string{"unknown mode", "unknown log_level", "notional_cap_usd", "deviation_pct"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error missing %q: %v", want, err)
		}
	}
}

func TestArchivalRequiresPostgres(t *testing.T) {
	cfg := validConfig()
	cfg.S3.Enabled = true
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "requires postgres") {
		t.Fatalf("want postgres requirement error, got %v", err)
	}
	cfg.Postgres.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadAppliesFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "trade"
log_level = "debug"

[solana]
curve = "CurveAccount1111111111111111111111111111111"
fee_bps = 95

[coordinator]
deviation_pct = 1.25
cooldown = "10s"

[executor]
leg_deadline = "45s"
dry_run = true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CROSSARB_SOLANA_FEE_BPS", "110")
	t.Setenv("CROSSARB_EVM_RPC_URL", "https://env.example.org")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "trade" || cfg.LogLevel != "debug" {
		t.Fatalf("top-level got mode=%s log_level=%s", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Solana.Curve != "CurveAccount1111111111111111111111111111111" {
		t.Fatalf("curve got=%s", cfg.Solana.Curve)
	}
	// Env wins over the file.
	if cfg.Solana.FeeBps != 110 {
		t.Fatalf("fee_bps got=%d want=110", cfg.Solana.FeeBps)
	}
	if cfg.EVM.RPCURL != "https://env.example.org" {
		t.Fatalf("evm rpc_url got=%s", cfg.EVM.RPCURL)
	}
	if cfg.Coordinator.DeviationPct != 1.25 {
		t.Fatalf("deviation_pct got=%v", cfg.Coordinator.DeviationPct)
	}
	if cfg.Coordinator.Cooldown.Duration != 10*time.Second {
		t.Fatalf("cooldown got=%v", cfg.Coordinator.Cooldown.Duration)
	}
	if cfg.Executor.LegDeadline.Duration != 45*time.Second || !cfg.Executor.DryRun {
		t.Fatalf("executor got=%+v", cfg.Executor)
	}
	// Untouched sections keep their defaults.
	if cfg.Analyzer.MaxIterations != 96 {
		t.Fatalf("analyzer defaults lost: %+v", cfg.Analyzer)
	}
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Solana.Wallet.PrivateKey = "base58secret"
	cfg.EVM.Wallet.KeyPassword = "hunter2"
	cfg.Postgres.Password = "pgpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Notify.TelegramToken = "tok"

	red := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"solana private key": red.Solana.Wallet.PrivateKey,
		"evm key password":   red.EVM.Wallet.KeyPassword,
		"postgres password":  red.Postgres.Password,
		"redis password":     red.Redis.Password,
		"s3 secret key":      red.S3.SecretKey,
		"telegram token":     red.Notify.TelegramToken,
	} {
		if got != "***" {
			t.Fatalf("%s not redacted: %q", name, got)
		}
	}
	// Empty secrets stay empty.
	if red.S3.AccessKey != "" {
		t.Fatalf("empty access key got=%q", red.S3.AccessKey)
	}
	// The original is untouched.
	if cfg.Postgres.Password != "pgpass" {
		t.Fatal("redaction mutated the original")
	}
}
