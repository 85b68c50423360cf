package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"

	"github.com/google/uuid"

	"rewardvault/core/epoch"
	"rewardvault/core/events"
	"rewardvault/core/state"
	"rewardvault/core/types"
	"rewardvault/native/bank"
	nativecommon "rewardvault/native/common"
	"rewardvault/native/validators"
	"rewardvault/native/vault"
	"rewardvault/storage"
)

const vaultAccount = "vault"

var expectedErrors = map[string]error{
	"invalid_amount":     vault.ErrInvalidAmount,
	"insufficient_pool":  vault.ErrInsufficientPool,
	"underflow":          vault.ErrUnderflow,
	"nothing_to_redeem":  vault.ErrNothingToRedeem,
	"transfer_failed":    vault.ErrTransferFailed,
	"unknown_validator":  vault.ErrUnknownValidator,
	"unknown_position":   vault.ErrUnknownPosition,
	"validator_exists":   vault.ErrValidatorExists,
	"delegation_cap":     vault.ErrDelegationCap,
	"invalid_commission": vault.ErrInvalidCommission,
	"future_epoch":       vault.ErrFutureEpoch,
	"paused":             nativecommon.ErrModulePaused,
}

// Result is the outcome of one scenario run.
type Result struct {
	RunID    string              `json:"runId"`
	Scenario string              `json:"scenario"`
	Steps    []StepResult        `json:"steps"`
	Final    vault.Balances      `json:"final"`
	Accounts map[string]*big.Int `json:"accounts"`
	Events   []*types.Event      `json:"events"`
}

// StepResult records what a single step produced.
type StepResult struct {
	Index   int            `json:"index"`
	Op      string         `json:"op"`
	Epoch   uint64         `json:"epoch"`
	Receipt *vault.Receipt `json:"receipt,omitempty"`
	Pending *big.Int       `json:"pending,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type runner struct {
	sc     *Scenario
	engine *vault.Engine
	ledger *bank.Ledger
	height *epoch.ManualHeight
	clock  *epoch.Clock
}

// Run replays sc on a fresh in-memory store. It stops at the first step whose
// outcome does not match its expectation.
func Run(ctx context.Context, sc *Scenario, logger *slog.Logger) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	logger = logger.With(slog.String("runId", runID), slog.String("scenario", sc.Name))

	db := storage.NewMemDB()
	defer db.Close()
	manager := state.NewManager(db)
	ledger := bank.NewLedger(db, vaultAccount)
	for _, account := range sortedAccounts(sc.Accounts) {
		amount, _ := parseAmount(account, sc.Accounts[account])
		if err := ledger.Mint(account, amount); err != nil {
			return nil, fmt.Errorf("fund %s: %w", account, err)
		}
	}

	height := epoch.NewManualHeight(sc.GenesisHeight)
	clock, err := epoch.NewClock(epoch.Config{GenesisHeight: sc.GenesisHeight, Length: sc.EpochLength}, height)
	if err != nil {
		return nil, err
	}
	recorder := &events.Recorder{}
	engine := vault.NewEngine(manager, ledger, validators.NewRegistry(manager), clock)
	engine.SetOwner(sc.Owner)
	engine.SetEmitter(recorder)
	engine.SetLogger(logger)
	allocation, _ := parseAmount("allocation", sc.Allocation)
	if _, err := engine.Initialize(allocation); err != nil {
		return nil, fmt.Errorf("initialise vault: %w", err)
	}

	r := &runner{sc: sc, engine: engine, ledger: ledger, height: height, clock: clock}
	result := &Result{RunID: runID, Scenario: sc.Name}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, opErr := r.apply(step)
		res.Index = i
		res.Op = step.Op
		res.Epoch = clock.CurrentEpoch()
		if opErr != nil {
			res.Error = opErr.Error()
		}
		result.Steps = append(result.Steps, res)
		if err := r.check(step.Expect, res, opErr); err != nil {
			logger.Warn("scenario step failed", slog.Int("step", i), slog.String("op", step.Op), slog.Any("error", err))
			return result, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	final, err := engine.Balances()
	if err != nil {
		return nil, err
	}
	result.Final = final
	result.Events = recorder.Events()
	result.Accounts = make(map[string]*big.Int)
	accounts := append(sortedAccounts(sc.Accounts), vaultAccount, sc.Owner)
	for _, account := range accounts {
		balance, err := ledger.Balance(account)
		if err != nil {
			return nil, err
		}
		result.Accounts[account] = balance
	}
	logger.Info("scenario completed", slog.Int("steps", len(sc.Steps)), slog.Uint64("epoch", final.Epoch))
	return result, nil
}

func (r *runner) apply(step Step) (StepResult, error) {
	var res StepResult
	amount, _ := parseAmount("amount", step.Amount)
	var (
		receipt *vault.Receipt
		err     error
	)
	switch step.Op {
	case OpDeposit:
		receipt, err = r.engine.Deposit(amount)
	case OpWithdraw:
		receipt, err = r.engine.Withdraw(amount)
	case OpSetAllocation:
		receipt, err = r.engine.SetEpochAllocation(amount)
	case OpAddValidator:
		receipt, err = r.engine.AddValidator(step.Validator, step.Operator, step.Commission)
	case OpCommission:
		receipt, err = r.engine.SetCommissionRate(step.Validator, step.Commission)
	case OpMaxCap:
		receipt, err = r.engine.SetMaxCapMultiplier(step.Multiplier)
	case OpRedeemCommission:
		receipt, err = r.engine.RedeemCommission(step.Validator)
	case OpEnable:
		receipt, err = r.engine.EnableValidator(step.Validator)
	case OpDisable:
		receipt, err = r.engine.DisableValidator(step.Validator)
	case OpStake:
		receipt, err = r.engine.AddShares(step.Validator, step.Participant, amount)
	case OpUnstake:
		receipt, err = r.engine.RemoveShares(step.Validator, step.Participant, amount)
	case OpMine:
		r.height.Mine(step.Blocks + step.Epochs*r.sc.EpochLength)
	case OpAdvance:
		target := r.clock.CurrentEpoch()
		if step.To > 0 {
			target = step.To
		}
		receipt, err = r.engine.Advance(target)
	case OpRedeem:
		receipt, err = r.engine.Redeem(step.Validator, step.Participant)
	case OpPreview:
		_, res.Pending, err = r.engine.Preview(step.Validator, step.Participant)
	case OpBalances:
		var balances vault.Balances
		if balances, err = r.engine.Balances(); err == nil {
			receipt = &vault.Receipt{Operation: OpBalances, Epoch: balances.Epoch, Balances: balances}
		}
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}
	res.Receipt = receipt
	return res, err
}

func (r *runner) check(expect *Expect, res StepResult, opErr error) error {
	if expect == nil || strings.TrimSpace(expect.Error) == "" {
		if opErr != nil {
			return opErr
		}
	} else {
		sentinel, ok := expectedErrors[strings.TrimSpace(expect.Error)]
		if !ok {
			return fmt.Errorf("unknown expected error %q", expect.Error)
		}
		if !errors.Is(opErr, sentinel) {
			return fmt.Errorf("expected error %s, got %v", expect.Error, opErr)
		}
	}
	if expect == nil {
		return nil
	}

	if expect.Paid != "" {
		paid := res.Pending
		if res.Receipt != nil && res.Receipt.Paid != nil {
			paid = res.Receipt.Paid
		}
		if err := compare("paid", paid, expect.Paid); err != nil {
			return err
		}
	}
	if expect.Allocatable == "" && expect.Committed == "" && expect.Carry == "" && expect.TotalShares == "" && expect.VaultHolds == "" {
		return nil
	}

	balances, err := r.engine.Balances()
	if err != nil {
		return err
	}
	checks := []struct {
		field string
		got   *big.Int
		want  string
	}{
		{"allocatable", balances.Allocatable, expect.Allocatable},
		{"committed", balances.Committed, expect.Committed},
		{"carry", balances.CarryRemainder, expect.Carry},
		{"totalShares", balances.TotalShares, expect.TotalShares},
	}
	for _, c := range checks {
		if c.want == "" {
			continue
		}
		if err := compare(c.field, c.got, c.want); err != nil {
			return err
		}
	}
	if expect.VaultHolds != "" {
		held, err := r.ledger.Balance(vaultAccount)
		if err != nil {
			return err
		}
		if err := compare("vaultHolds", held, expect.VaultHolds); err != nil {
			return err
		}
	}
	return nil
}

func compare(field string, got *big.Int, want string) error {
	expected, ok := new(big.Int).SetString(strings.TrimSpace(want), 10)
	if !ok {
		return fmt.Errorf("invalid expected %s %q", field, want)
	}
	if got == nil {
		got = big.NewInt(0)
	}
	if got.Cmp(expected) != 0 {
		return fmt.Errorf("%s: expected %s, got %s", field, expected, got)
	}
	return nil
}

func sortedAccounts(accounts map[string]string) []string {
	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
