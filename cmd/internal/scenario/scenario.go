package scenario

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	OpDeposit          = "deposit"
	OpWithdraw         = "withdraw"
	OpSetAllocation    = "setAllocation"
	OpAddValidator     = "addValidator"
	OpEnable           = "enableValidator"
	OpDisable          = "disableValidator"
	OpStake            = "stake"
	OpUnstake          = "unstake"
	OpMine             = "mine"
	OpAdvance          = "advance"
	OpRedeem           = "redeem"
	OpPreview          = "preview"
	OpBalances         = "balances"
	OpCommission       = "setCommission"
	OpMaxCap           = "setMaxCap"
	OpRedeemCommission = "redeemCommission"
)

// Scenario is a scripted sequence of vault operations replayed against an
// in-memory store.
type Scenario struct {
	Name          string            `yaml:"name"`
	Allocation    string            `yaml:"allocation"`
	GenesisHeight uint64            `yaml:"genesisHeight"`
	EpochLength   uint64            `yaml:"epochLength"`
	Owner         string            `yaml:"owner"`
	Accounts      map[string]string `yaml:"accounts"`
	Steps         []Step            `yaml:"steps"`
}

// Step is one operation. Only the fields relevant to Op are read.
type Step struct {
	Op          string `yaml:"op"`
	Amount      string `yaml:"amount"`
	Validator   string `yaml:"validator"`
	Participant string `yaml:"participant"`
	Blocks      uint64 `yaml:"blocks"`
	Epochs      uint64 `yaml:"epochs"`
	// To is the epoch an advance step targets. Zero means the clock epoch.
	To         uint64  `yaml:"to"`
	Operator   string  `yaml:"operator"`
	Commission uint64  `yaml:"commission"`
	Multiplier uint64  `yaml:"multiplier"`
	Expect     *Expect `yaml:"expect"`
}

// Expect asserts on the outcome of a step. Empty fields are not checked.
type Expect struct {
	Error       string `yaml:"error"`
	Paid        string `yaml:"paid"`
	Allocatable string `yaml:"allocatable"`
	Committed   string `yaml:"committed"`
	Carry       string `yaml:"carry"`
	TotalShares string `yaml:"totalShares"`
	VaultHolds  string `yaml:"vaultHolds"`
}

var validOps = map[string]struct{}{
	OpDeposit: {}, OpWithdraw: {}, OpSetAllocation: {}, OpAddValidator: {},
	OpEnable: {}, OpDisable: {}, OpStake: {}, OpUnstake: {}, OpMine: {},
	OpAdvance: {}, OpRedeem: {}, OpPreview: {}, OpBalances: {},
	OpCommission: {}, OpMaxCap: {}, OpRedeemCommission: {},
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML scenario and applies defaults.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.EpochLength == 0 {
		sc.EpochLength = 1
	}
	if strings.TrimSpace(sc.Owner) == "" {
		sc.Owner = "owner"
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks amounts and operation names before anything runs.
func (sc *Scenario) Validate() error {
	if sc == nil {
		return errors.New("scenario: nil scenario")
	}
	if _, err := parseAmount("allocation", sc.Allocation); err != nil {
		return err
	}
	for account, raw := range sc.Accounts {
		if _, err := parseAmount("accounts."+account, raw); err != nil {
			return err
		}
	}
	for i, step := range sc.Steps {
		if _, ok := validOps[step.Op]; !ok {
			return fmt.Errorf("scenario: step %d: unknown op %q", i, step.Op)
		}
		switch step.Op {
		case OpDeposit, OpWithdraw, OpSetAllocation, OpStake, OpUnstake:
			if _, err := parseAmount(fmt.Sprintf("steps[%d].amount", i), step.Amount); err != nil {
				return err
			}
		}
		switch step.Op {
		case OpAddValidator, OpEnable, OpDisable, OpStake, OpUnstake, OpRedeem, OpPreview, OpCommission, OpRedeemCommission:
			if strings.TrimSpace(step.Validator) == "" {
				return fmt.Errorf("scenario: step %d: %s requires a validator", i, step.Op)
			}
		}
		switch step.Op {
		case OpStake, OpUnstake, OpRedeem, OpPreview:
			if strings.TrimSpace(step.Participant) == "" {
				return fmt.Errorf("scenario: step %d: %s requires a participant", i, step.Op)
			}
		}
	}
	return nil
}

func parseAmount(field, raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || value.Sign() <= 0 {
		return nil, fmt.Errorf("scenario: %s must be a positive integer, got %q", field, raw)
	}
	return value, nil
}
