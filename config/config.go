package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultListenAddress      = ":8090"
	DefaultDataDir            = "./vault-data"
	DefaultDatabaseBackend    = "leveldb"
	DefaultNetworkName        = "vault-local"
	DefaultEnv                = "dev"
	DefaultEpochLength        = 100
	DefaultBlockInterval      = 5
	DefaultPerEpochAllocation = "1000000000000000000"
	DefaultOwnerAccount       = "owner"
	DefaultVaultAccount       = "vault"
	DefaultRequestsPerMinute  = 600
	DefaultBurst              = 50
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	// DatabaseBackend selects the storage engine: "leveldb" or "bolt".
	DatabaseBackend      string `toml:"DatabaseBackend"`
	NetworkName          string `toml:"NetworkName"`
	LogFile              string `toml:"LogFile"`
	Env                  string `toml:"Env"`
	GenesisHeight        uint64 `toml:"GenesisHeight"`
	EpochLength          uint64 `toml:"EpochLength"`
	BlockIntervalSeconds uint64 `toml:"BlockIntervalSeconds"`
	// PerEpochAllocation is a base-10 token amount in the smallest unit.
	PerEpochAllocation string `toml:"PerEpochAllocation"`
	OwnerAccount       string `toml:"OwnerAccount"`
	VaultAccount       string `toml:"VaultAccount"`
	RequestsPerMinute  int    `toml:"RequestsPerMinute"`
	Burst              int    `toml:"Burst"`
	// MaxCapMultiplier bounds delegated stake to this multiple of a
	// validator's own stake. Zero disables the cap.
	MaxCapMultiplier uint64    `toml:"MaxCapMultiplier"`
	Pauses           Pauses    `toml:"Pauses"`
	Telemetry        Telemetry `toml:"Telemetry"`
	Auth             Auth      `toml:"Auth"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadExisting is Load for tools that must not create a config: a missing
// path is an error.
func LoadExisting(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return Load(path)
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = DefaultDataDir
	}
	if strings.TrimSpace(c.DatabaseBackend) == "" {
		c.DatabaseBackend = DefaultDatabaseBackend
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = DefaultNetworkName
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = DefaultEnv
	}
	if c.EpochLength == 0 {
		c.EpochLength = DefaultEpochLength
	}
	if c.BlockIntervalSeconds == 0 {
		c.BlockIntervalSeconds = DefaultBlockInterval
	}
	if strings.TrimSpace(c.PerEpochAllocation) == "" {
		c.PerEpochAllocation = DefaultPerEpochAllocation
	}
	if strings.TrimSpace(c.OwnerAccount) == "" {
		c.OwnerAccount = DefaultOwnerAccount
	}
	if strings.TrimSpace(c.VaultAccount) == "" {
		c.VaultAccount = DefaultVaultAccount
	}
	if c.RequestsPerMinute == 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.Burst == 0 {
		c.Burst = DefaultBurst
	}
}

// Default returns the configuration written by Load when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
