package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// Validate checks the values the vault daemon cannot start without.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	switch strings.ToLower(strings.TrimSpace(c.DatabaseBackend)) {
	case "leveldb", "bolt":
	default:
		return fmt.Errorf("config: unknown DatabaseBackend %q", c.DatabaseBackend)
	}
	if c.EpochLength == 0 {
		return fmt.Errorf("config: EpochLength must be positive")
	}
	if c.BlockIntervalSeconds == 0 {
		return fmt.Errorf("config: BlockIntervalSeconds must be positive")
	}
	if _, err := c.Allocation(); err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(c.OwnerAccount), strings.TrimSpace(c.VaultAccount)) {
		return fmt.Errorf("config: OwnerAccount and VaultAccount must differ")
	}
	if c.RequestsPerMinute < 0 || c.Burst < 0 {
		return fmt.Errorf("config: rate limits must not be negative")
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("config: Auth.HMACSecret is required when Auth is enabled")
	}
	return nil
}

// Allocation parses PerEpochAllocation into a positive 256-bit amount.
func (c *Config) Allocation() (*big.Int, error) {
	return parseUintAmount(c.PerEpochAllocation)
}

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("config: PerEpochAllocation is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid PerEpochAllocation %q", raw)
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("config: PerEpochAllocation must be positive")
	}
	if _, overflow := uint256.FromBig(value); overflow {
		return nil, fmt.Errorf("config: PerEpochAllocation exceeds 256 bits")
	}
	return value, nil
}
