package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadParsesVaultSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `ListenAddress = "127.0.0.1:9000"
DataDir = "./data"
DatabaseBackend = "bolt"
NetworkName = "testnet"
LogFile = "vault.log"
Env = "prod"
GenesisHeight = 50
EpochLength = 10
BlockIntervalSeconds = 2
PerEpochAllocation = "1000"
OwnerAccount = "treasury"
VaultAccount = "vault-escrow"
RequestsPerMinute = 120
Burst = 5
MaxCapMultiplier = 3

[Pauses]
Vault = true

[Telemetry]
Endpoint = "collector:4318"
Insecure = true

[Auth]
Enabled = true
HMACSecret = "secret"
Issuer = "vault-admin"
Audience = "vaultd"
ClockSkewSeconds = 30
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" || cfg.NetworkName != "testnet" || cfg.Env != "prod" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.GenesisHeight != 50 || cfg.EpochLength != 10 || cfg.BlockIntervalSeconds != 2 {
		t.Fatalf("unexpected epoch settings: %+v", cfg)
	}
	allocation, err := cfg.Allocation()
	if err != nil {
		t.Fatalf("allocation: %v", err)
	}
	if allocation.Int64() != 1000 {
		t.Fatalf("expected allocation 1000, got %s", allocation)
	}
	if cfg.OwnerAccount != "treasury" || cfg.VaultAccount != "vault-escrow" {
		t.Fatalf("unexpected accounts: %s/%s", cfg.OwnerAccount, cfg.VaultAccount)
	}
	if cfg.DatabaseBackend != "bolt" {
		t.Fatalf("unexpected backend %q", cfg.DatabaseBackend)
	}
	if cfg.Telemetry.Endpoint != "collector:4318" || !cfg.Telemetry.Insecure {
		t.Fatalf("unexpected telemetry: %+v", cfg.Telemetry)
	}
	if cfg.MaxCapMultiplier != 3 {
		t.Fatalf("unexpected max cap multiplier %d", cfg.MaxCapMultiplier)
	}
	if !cfg.Auth.Enabled || cfg.Auth.HMACSecret != "secret" || cfg.Auth.Issuer != "vault-admin" || cfg.Auth.Audience != "vaultd" || cfg.Auth.ClockSkewSeconds != 30 {
		t.Fatalf("unexpected auth: %+v", cfg.Auth)
	}
	if modules := cfg.Pauses.PausedModules(); len(modules) != 1 || modules[0] != "vault" {
		t.Fatalf("unexpected paused modules: %v", modules)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.EpochLength != DefaultEpochLength || cfg.PerEpochAllocation != DefaultPerEpochAllocation {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config to be written: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if *reloaded != *cfg {
		t.Fatalf("reloaded config differs: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadExistingDoesNotCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	if _, err := LoadExisting(path); err == nil {
		t.Fatalf("expected missing config to fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("config file was created: %v", err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`NetworkName = "minimal"`+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ListenAddress != DefaultListenAddress || cfg.VaultAccount != DefaultVaultAccount || cfg.Burst != DefaultBurst || cfg.DatabaseBackend != DefaultDatabaseBackend {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`AllocationPerEpoch = "5"`+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "AllocationPerEpoch") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero epoch length", func(c *Config) { c.EpochLength = 0 }, "EpochLength"},
		{"zero interval", func(c *Config) { c.BlockIntervalSeconds = 0 }, "BlockIntervalSeconds"},
		{"zero allocation", func(c *Config) { c.PerEpochAllocation = "0" }, "positive"},
		{"malformed allocation", func(c *Config) { c.PerEpochAllocation = "1e18" }, "invalid"},
		{"oversized allocation", func(c *Config) { c.PerEpochAllocation = "1" + strings.Repeat("0", 80) }, "256 bits"},
		{"shared account", func(c *Config) { c.VaultAccount = c.OwnerAccount }, "must differ"},
		{"unknown backend", func(c *Config) { c.DatabaseBackend = "rocksdb" }, "DatabaseBackend"},
		{"negative burst", func(c *Config) { c.Burst = -1 }, "negative"},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }, "HMACSecret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
