package epoch

import "fmt"

// Config describes how block heights map onto reward epochs.
type Config struct {
	// GenesisHeight is the first block height of epoch zero.
	GenesisHeight uint64

	// Length is the number of blocks that make up a single epoch. The value
	// must be greater than zero.
	Length uint64
}

// DefaultConfig returns one epoch per block starting at height zero.
func DefaultConfig() Config {
	return Config{
		GenesisHeight: 0,
		Length:        1,
	}
}

// Validate ensures the configuration is self-consistent.
func (c Config) Validate() error {
	if c.Length == 0 {
		return fmt.Errorf("epoch length must be greater than zero")
	}
	return nil
}
