package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"rewardvault/core/events"
	nativecommon "rewardvault/native/common"
	"rewardvault/observability/metrics"
)

// ModuleName is the pause key guarding vault mutations.
const ModuleName = "vault"

const (
	OpInitialize     = "initialize"
	OpDeposit        = "deposit"
	OpWithdraw       = "withdraw"
	OpSetAllocation  = "setAllocation"
	OpAddValidator   = "addValidator"
	OpEnable         = "enableValidator"
	OpDisable        = "disableValidator"
	OpAddShares      = "addShares"
	OpRemoveShares   = "removeShares"
	OpAdvance        = "advance"
	OpRedeem         = "redeem"
	OpSetCommission  = "setCommission"
	OpSetMaxCap      = "setMaxCapMultiplier"
	OpCommission     = "redeemCommission"
	defaultOwnerName = "owner"
)

type engineState interface {
	// Load* return nil without error when the record has never been written.
	LoadPool() (*RewardPool, error)
	LoadLedger() (*ShareLedger, error)
	LoadRate() (*RateSnapshot, error)
	LoadPosition(key PositionKey) (*Position, error)
	// Commit writes every non-nil record of the changeset atomically.
	Commit(cs *Changeset) error
}

// TokenLedger moves the reward and stake token between accounts and the vault.
type TokenLedger interface {
	TransferIn(from string, amount *big.Int) error
	TransferOut(to string, amount *big.Int) error
}

// ValidatorRegistry reports and records which validators participate in the
// share totals.
type ValidatorRegistry interface {
	IsActive(id string) (bool, error)
	SetActive(id string, active bool) error
}

// EpochSource reports the current epoch. Values must never decrease.
type EpochSource interface {
	CurrentEpoch() uint64
}

// Engine applies reward pool, share ledger, exchange rate and redemption
// transitions. Operations are serialised and all-or-nothing.
type Engine struct {
	mu       sync.Mutex
	state    engineState
	tokens   TokenLedger
	registry ValidatorRegistry
	clock    EpochSource
	owner    string
	pauses   nativecommon.PauseView
	emitter  events.Emitter
	metrics  *metrics.VaultMetrics
	logger   *slog.Logger
}

// NewEngine wires the engine to its persistence and external collaborators.
func NewEngine(state engineState, tokens TokenLedger, registry ValidatorRegistry, clock EpochSource) *Engine {
	return &Engine{
		state:    state,
		tokens:   tokens,
		registry: registry,
		clock:    clock,
		owner:    defaultOwnerName,
		emitter:  events.NoopEmitter{},
		logger:   slog.Default(),
	}
}

// SetOwner configures the account funding deposits and receiving withdrawals.
func (e *Engine) SetOwner(owner string) {
	if e == nil {
		return
	}
	if trimmed := strings.TrimSpace(owner); trimmed != "" {
		e.owner = trimmed
	}
}

// Owner returns the configured owner account.
func (e *Engine) Owner() string {
	if e == nil {
		return ""
	}
	return e.owner
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures where events are published after each commit.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

func (e *Engine) SetMetrics(m *metrics.VaultMetrics) {
	if e == nil {
		return
	}
	e.metrics = m
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// txn holds private copies of the records an operation may change.
type txn struct {
	epoch     uint64
	pool      *RewardPool
	ledger    *ShareLedger
	rate      *RateSnapshot
	positions map[PositionKey]*Position
	advance   Advance
	events    []events.Event
	undo      []func()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.tokens == nil || e.registry == nil || e.clock == nil {
		return ErrNilState
	}
	return nil
}

func (e *Engine) begin() (*txn, error) {
	pool, err := e.state.LoadPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, ErrNotInitialized
	}
	ledger, err := e.state.LoadLedger()
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = NewShareLedger()
	}
	rate, err := e.state.LoadRate()
	if err != nil {
		return nil, err
	}
	if rate == nil {
		return nil, ErrNotInitialized
	}
	return &txn{
		epoch:     e.clock.CurrentEpoch(),
		pool:      pool.Clone(),
		ledger:    ledger.Clone(),
		rate:      rate.Clone(),
		positions: make(map[PositionKey]*Position),
	}, nil
}

// catchUp advances the rate to the transaction epoch before anything reads it.
func (e *Engine) catchUp(tx *txn, epoch uint64) {
	adv := advanceRate(tx.rate, tx.pool, tx.ledger, epoch)
	if !adv.Changed() {
		return
	}
	tx.advance = adv
	if adv.Deferred > 0 {
		e.logger.Debug("vault accrual deferred, no shares outstanding",
			slog.Uint64("from", adv.From), slog.Uint64("to", adv.To))
	}
	tx.events = append(tx.events, events.VaultRateAdvanced{
		From:          adv.From,
		To:            adv.To,
		Distributed:   adv.Distributed,
		RatePerShare:  copyBig(tx.rate.AccumulatedRewardPerShare),
		DeferredSpan:  adv.Deferred,
		ReturnedCarry: adv.Returned,
	})
}

func (e *Engine) position(tx *txn, key PositionKey, create bool) (*Position, error) {
	if pos, ok := tx.positions[key]; ok {
		return pos, nil
	}
	pos, err := e.state.LoadPosition(key)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		if !create {
			return nil, nil
		}
		v, err := tx.ledger.validator(key.Validator)
		if err != nil {
			return nil, err
		}
		pos = NewPosition(key, v.positionRate(key.Participant, tx.rate.AccumulatedRewardPerShare))
	} else {
		pos = pos.Clone()
	}
	tx.positions[key] = pos
	return pos, nil
}

// syncValidator applies a registry status change the ledger has not seen yet.
func (e *Engine) syncValidator(tx *txn, id string) (*ValidatorShares, error) {
	v, err := tx.ledger.validator(id)
	if err != nil {
		return nil, err
	}
	active, err := e.registry.IsActive(v.ID)
	if err != nil {
		return nil, fmt.Errorf("vault: registry lookup %q: %w", v.ID, err)
	}
	if active != v.Active {
		if _, err := tx.ledger.setActive(v.ID, active, tx.rate.AccumulatedRewardPerShare); err != nil {
			return nil, err
		}
		tx.events = append(tx.events, e.statusEvent(tx, v))
	}
	return v, nil
}

func (e *Engine) statusEvent(tx *txn, v *ValidatorShares) events.Event {
	return events.VaultValidatorStatus{
		Epoch:       tx.epoch,
		Validator:   v.ID,
		Active:      v.Active,
		Shares:      copyBig(v.Shares),
		TotalShares: copyBig(tx.ledger.TotalShares),
	}
}

func (e *Engine) transferIn(tx *txn, from string, amount *big.Int) error {
	if err := e.tokens.TransferIn(from, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	tx.undo = append(tx.undo, func() {
		if err := e.tokens.TransferOut(from, amount); err != nil {
			e.logger.Error("vault transfer rollback failed", slog.String("account", from), slog.Any("error", err))
		}
	})
	return nil
}

func (e *Engine) transferOut(tx *txn, to string, amount *big.Int) error {
	if err := e.tokens.TransferOut(to, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	tx.undo = append(tx.undo, func() {
		if err := e.tokens.TransferIn(to, amount); err != nil {
			e.logger.Error("vault transfer rollback failed", slog.String("account", to), slog.Any("error", err))
		}
	})
	return nil
}

func (tx *txn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (e *Engine) commit(tx *txn) error {
	cs := &Changeset{Pool: tx.pool, Ledger: tx.ledger, Rate: tx.rate}
	for _, pos := range tx.positions {
		cs.Positions = append(cs.Positions, pos)
	}
	if err := e.state.Commit(cs); err != nil {
		tx.rollback()
		return err
	}
	for _, evt := range tx.events {
		e.emitter.Emit(evt)
	}
	return nil
}

func (e *Engine) finish(op string, tx *txn, err error) {
	if err != nil {
		if tx != nil {
			tx.rollback()
		}
		e.metrics.ObserveOperation(op, errorLabel(err))
		return
	}
	e.metrics.ObserveOperation(op, "")
	e.metrics.ObserveBalances(balanceMetrics(e.balancesOf(tx)))
	if tx.advance.Deferred > 0 {
		e.metrics.AddDeferredEpochs(tx.advance.Deferred)
	}
}

func (e *Engine) receipt(op string, tx *txn, amount, paid *big.Int, pos *Position) *Receipt {
	r := &Receipt{Operation: op, Epoch: tx.epoch, Balances: e.balancesOf(tx)}
	if amount != nil {
		r.Amount = copyBig(amount)
	}
	if paid != nil {
		r.Paid = copyBig(paid)
	}
	if pos != nil {
		r.Position = pos.Clone()
	}
	return r
}

func (e *Engine) balancesOf(tx *txn) Balances {
	b := Balances{
		Epoch:          tx.epoch,
		TotalDeposited: copyBig(tx.pool.TotalDeposited),
		TotalWithdrawn: copyBig(tx.pool.TotalWithdrawn),
		TotalRedeemed:  copyBig(tx.pool.TotalRedeemed),
		Allocation:     copyBig(tx.pool.PerEpochAllocation),
		Allocatable:    copyBig(tx.pool.Allocatable),
		Committed:      copyBig(tx.pool.Committed),
		CarryRemainder: copyBig(tx.pool.CarryRemainder),
		TotalShares:    copyBig(tx.ledger.TotalShares),
		TotalPrincipal: copyBig(tx.ledger.TotalPrincipal),
		RatePerShare:   copyBig(tx.rate.AccumulatedRewardPerShare),
		LastUpdate:     tx.rate.LastUpdateEpoch,
		DeferredEpochs: tx.rate.DeferredEpochs,
	}
	funded := tx.pool.fundedEpochs()
	if funded > ^uint64(0)-tx.rate.LastUpdateEpoch {
		b.EndEpoch = ^uint64(0)
	} else {
		b.EndEpoch = tx.rate.LastUpdateEpoch + funded
	}
	return b
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInsufficientPool):
		return "insufficient_pool"
	case errors.Is(err, ErrUnderflow):
		return "underflow"
	case errors.Is(err, ErrNothingToRedeem):
		return "nothing_to_redeem"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrDelegationCap):
		return "delegation_cap"
	case errors.Is(err, ErrInvalidCommission):
		return "invalid_commission"
	case errors.Is(err, ErrFutureEpoch):
		return "future_epoch"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	default:
		return "internal"
	}
}

// Initialize creates the pool, ledger and rate at the current epoch. It fails
// if the vault already exists.
func (e *Engine) Initialize(allocation *big.Int) (*Receipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !validAmount(allocation) {
		return nil, ErrInvalidAmount
	}
	existing, err := e.state.LoadPool()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyInitialized
	}
	tx := &txn{
		epoch:     e.clock.CurrentEpoch(),
		pool:      NewRewardPool(allocation),
		ledger:    NewShareLedger(),
		positions: make(map[PositionKey]*Position),
	}
	tx.rate = NewRateSnapshot(tx.epoch)
	if err := e.commit(tx); err != nil {
		return nil, err
	}
	e.finish(OpInitialize, tx, nil)
	e.logger.Info("vault initialised", slog.String("allocation", allocation.String()), slog.Uint64("epoch", tx.epoch))
	return e.receipt(OpInitialize, tx, allocation, nil, nil), nil
}

// Deposit moves reward tokens from the owner into the pool. Fragments below
// one allocation unit wait in the carry until later funds complete them.
func (e *Engine) Deposit(amount *big.Int) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpDeposit, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	if err = tx.pool.deposit(amount); err != nil {
		return nil, err
	}
	if err = e.transferIn(tx, e.owner, amount); err != nil {
		return nil, err
	}
	tx.events = append(tx.events, events.VaultDeposited{
		Epoch:       tx.epoch,
		From:        e.owner,
		Amount:      copyBig(amount),
		Allocatable: copyBig(tx.pool.Allocatable),
		Carry:       copyBig(tx.pool.CarryRemainder),
	})
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpDeposit, tx, amount, nil, nil), nil
}

// Withdraw returns uncommitted reward tokens to the owner. Committed rewards
// and staked principal are never reachable.
func (e *Engine) Withdraw(amount *big.Int) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpWithdraw, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	if err = tx.pool.withdraw(amount); err != nil {
		return nil, err
	}
	if err = e.transferOut(tx, e.owner, amount); err != nil {
		return nil, err
	}
	tx.events = append(tx.events, events.VaultWithdrawn{
		Epoch:       tx.epoch,
		To:          e.owner,
		Amount:      copyBig(amount),
		Allocatable: copyBig(tx.pool.Allocatable),
		Carry:       copyBig(tx.pool.CarryRemainder),
	})
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpWithdraw, tx, amount, nil, nil), nil
}

// SetEpochAllocation changes the reward released per epoch from the current
// epoch onwards.
func (e *Engine) SetEpochAllocation(amount *big.Int) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpSetAllocation, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	previous := copyBig(tx.pool.PerEpochAllocation)
	if err = tx.pool.setAllocation(amount); err != nil {
		return nil, err
	}
	tx.events = append(tx.events, events.VaultAllocationChanged{Epoch: tx.epoch, Previous: previous, Current: copyBig(amount)})
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpSetAllocation, tx, amount, nil, nil), nil
}

// AddValidator registers an active validator with no shares. The operator
// collects commissionRate basis points of the rewards earned by delegated
// shares; an empty operator defaults to the validator id.
func (e *Engine) AddValidator(id, operator string, commissionRate uint64) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpAddValidator, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	v, err := tx.ledger.addValidator(id, operator, commissionRate, true, tx.rate.AccumulatedRewardPerShare)
	if err != nil {
		return nil, err
	}
	if err = e.setRegistry(tx, v.ID, true); err != nil {
		return nil, err
	}
	tx.events = append(tx.events, e.statusEvent(tx, v), e.configEvent(tx, v))
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpAddValidator, tx, nil, nil, nil), nil
}

// DisableValidator removes a validator's shares from the totals. Accrual is
// finalised up to the current epoch first, so the moment the totals drop is
// a hard checkpoint even when they reach zero.
func (e *Engine) DisableValidator(id string) (*Receipt, error) {
	return e.toggleValidator(OpDisable, id, false)
}

// EnableValidator returns a disabled validator's shares to the totals. The
// disabled span is not credited to its participants.
func (e *Engine) EnableValidator(id string) (*Receipt, error) {
	return e.toggleValidator(OpEnable, id, true)
}

func (e *Engine) toggleValidator(op, id string, active bool) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(op, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	v, err := tx.ledger.validator(id)
	if err != nil {
		return nil, err
	}
	changed, err := tx.ledger.setActive(v.ID, active, tx.rate.AccumulatedRewardPerShare)
	if err != nil {
		return nil, err
	}
	if err = e.setRegistry(tx, v.ID, active); err != nil {
		return nil, err
	}
	if changed {
		tx.events = append(tx.events, e.statusEvent(tx, v))
		e.logger.Info("vault validator status changed",
			slog.String("validator", v.ID),
			slog.Bool("active", active),
			slog.String("totalShares", tx.ledger.TotalShares.String()),
			slog.Uint64("epoch", tx.epoch))
	}
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(op, tx, nil, nil, nil), nil
}

// SetCommissionRate changes the validator's commission for rewards accrued
// from the current epoch onwards.
func (e *Engine) SetCommissionRate(id string, commissionRate uint64) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpSetCommission, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	v, err := e.syncValidator(tx, id)
	if err != nil {
		return nil, err
	}
	if err = v.setCommission(commissionRate, tx.rate.AccumulatedRewardPerShare); err != nil {
		return nil, err
	}
	tx.events = append(tx.events, e.configEvent(tx, v))
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpSetCommission, tx, nil, nil, nil), nil
}

// SetMaxCapMultiplier bounds every validator's delegated shares to multiplier
// times its own stake. Zero removes the cap. Existing delegations above a new
// cap are kept; only later stakes are refused.
func (e *Engine) SetMaxCapMultiplier(multiplier uint64) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpSetMaxCap, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	previous := tx.ledger.MaxCapMultiplier
	tx.ledger.MaxCapMultiplier = multiplier
	tx.events = append(tx.events, events.VaultCapChanged{Epoch: tx.epoch, Previous: previous, Current: multiplier})
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpSetMaxCap, tx, nil, nil, nil), nil
}

func (e *Engine) configEvent(tx *txn, v *ValidatorShares) events.Event {
	return events.VaultValidatorConfigured{
		Epoch:          tx.epoch,
		Validator:      v.ID,
		Operator:       v.Operator,
		CommissionRate: v.CommissionRate,
	}
}

func (e *Engine) setRegistry(tx *txn, id string, active bool) error {
	previous, err := e.registry.IsActive(id)
	if err != nil {
		return fmt.Errorf("vault: registry lookup %q: %w", id, err)
	}
	if previous == active {
		return nil
	}
	if err := e.registry.SetActive(id, active); err != nil {
		return fmt.Errorf("vault: registry update %q: %w", id, err)
	}
	tx.undo = append(tx.undo, func() {
		if err := e.registry.SetActive(id, previous); err != nil {
			e.logger.Error("vault registry rollback failed", slog.String("validator", id), slog.Any("error", err))
		}
	})
	return nil
}

// AddShares stakes amount of principal from participant behind validator.
// Shares count toward the totals only while the registry reports the
// validator active. Stakes by anyone but the validator itself are delegated
// and subject to the max cap multiplier.
func (e *Engine) AddShares(validator, participant string, amount *big.Int) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpAddShares, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	v, err := e.syncValidator(tx, validator)
	if err != nil {
		return nil, err
	}
	key := PositionKey{Validator: v.ID, Participant: normalizeID(participant)}
	if key.Participant == "" {
		return nil, fmt.Errorf("%w: empty participant", ErrUnknownPosition)
	}
	pos, err := e.position(tx, key, true)
	if err != nil {
		return nil, err
	}
	settle(pos, v.positionRate(key.Participant, tx.rate.AccumulatedRewardPerShare))
	delegated := !v.self(key.Participant)
	if err = tx.ledger.addShares(v.ID, amount, delegated); err != nil {
		return nil, err
	}
	if delegated {
		if err = tx.ledger.checkCap(v); err != nil {
			return nil, err
		}
	}
	pos.Shares = new(big.Int).Add(copyBig(pos.Shares), amount)
	if err = e.transferIn(tx, key.Participant, amount); err != nil {
		return nil, err
	}
	tx.events = append(tx.events, events.VaultShares{
		Added:       true,
		Epoch:       tx.epoch,
		Validator:   v.ID,
		Participant: key.Participant,
		Amount:      copyBig(amount),
		NewShares:   copyBig(pos.Shares),
		TotalShares: copyBig(tx.ledger.TotalShares),
	})
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpAddShares, tx, amount, nil, pos), nil
}

// RemoveShares unstakes amount and returns the principal to the participant.
// Rewards earned so far stay on the position for a later Redeem. An active
// validator cannot reduce its own stake below what its delegations require
// under the max cap multiplier.
func (e *Engine) RemoveShares(validator, participant string, amount *big.Int) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpRemoveShares, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	v, err := e.syncValidator(tx, validator)
	if err != nil {
		return nil, err
	}
	key := PositionKey{Validator: v.ID, Participant: normalizeID(participant)}
	pos, err := e.position(tx, key, false)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, key)
	}
	if amount.Cmp(pos.Shares) > 0 {
		return nil, fmt.Errorf("%w: position %s holds %s shares, removing %s", ErrUnderflow, key, pos.Shares, amount)
	}
	settle(pos, v.positionRate(key.Participant, tx.rate.AccumulatedRewardPerShare))
	delegated := !v.self(key.Participant)
	if err = tx.ledger.removeShares(v.ID, amount, delegated); err != nil {
		return nil, err
	}
	if !delegated && v.Active {
		if err = tx.ledger.checkCap(v); err != nil {
			return nil, err
		}
	}
	pos.Shares = new(big.Int).Sub(pos.Shares, amount)
	if err = e.transferOut(tx, key.Participant, amount); err != nil {
		return nil, err
	}
	tx.events = append(tx.events, events.VaultShares{
		Epoch:       tx.epoch,
		Validator:   v.ID,
		Participant: key.Participant,
		Amount:      copyBig(amount),
		NewShares:   copyBig(pos.Shares),
		TotalShares: copyBig(tx.ledger.TotalShares),
	})
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpRemoveShares, tx, amount, nil, pos), nil
}

// Advance moves the exchange rate to epoch. Repeating an epoch, or passing an
// earlier one, changes nothing. An epoch the clock has not reached yet fails
// with ErrFutureEpoch.
func (e *Engine) Advance(epoch uint64) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpAdvance, tx, err) }()
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	if epoch > tx.epoch {
		return nil, fmt.Errorf("%w: epoch %d, clock at %d", ErrFutureEpoch, epoch, tx.epoch)
	}
	e.catchUp(tx, epoch)
	if tx.advance.Changed() {
		if err = e.commit(tx); err != nil {
			return nil, err
		}
	}
	return e.receipt(OpAdvance, tx, tx.advance.Distributed, nil, nil), nil
}

// Redeem pays the participant every whole token accrued up to the current
// epoch. Sub-token dust stays on the position.
func (e *Engine) Redeem(validator, participant string) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpRedeem, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	v, err := e.syncValidator(tx, validator)
	if err != nil {
		return nil, err
	}
	key := PositionKey{Validator: v.ID, Participant: normalizeID(participant)}
	pos, err := e.position(tx, key, false)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, fmt.Errorf("%w: no position %s", ErrNothingToRedeem, key)
	}
	paid, err := redeemPosition(pos, v.positionRate(key.Participant, tx.rate.AccumulatedRewardPerShare))
	if err != nil {
		return nil, err
	}
	if err = tx.pool.pay(paid); err != nil {
		return nil, err
	}
	if err = e.transferOut(tx, key.Participant, paid); err != nil {
		return nil, err
	}
	tx.events = append(tx.events, events.VaultRedeemed{
		Epoch:       tx.epoch,
		Validator:   v.ID,
		Participant: key.Participant,
		Paid:        copyBig(paid),
		Dust:        copyBig(pos.Dust),
	})
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpRedeem, tx, nil, paid, pos), nil
}

// RedeemCommission pays the validator's operator every whole token of
// commission accrued up to the current epoch.
func (e *Engine) RedeemCommission(validator string) (receipt *Receipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var tx *txn
	defer func() { e.finish(OpCommission, tx, err) }()
	if err = nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if tx, err = e.begin(); err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	v, err := e.syncValidator(tx, validator)
	if err != nil {
		return nil, err
	}
	paid, err := v.takeCommission(tx.rate.AccumulatedRewardPerShare)
	if err != nil {
		return nil, err
	}
	if err = tx.pool.pay(paid); err != nil {
		return nil, err
	}
	if err = e.transferOut(tx, v.Operator, paid); err != nil {
		return nil, err
	}
	tx.events = append(tx.events, events.VaultCommissionRedeemed{
		Epoch:     tx.epoch,
		Validator: v.ID,
		Operator:  v.Operator,
		Paid:      copyBig(paid),
	})
	if err = e.commit(tx); err != nil {
		return nil, err
	}
	return e.receipt(OpCommission, tx, nil, paid, nil), nil
}

// Preview reports what Redeem would pay now without changing state.
func (e *Engine) Preview(validator, participant string) (*Position, *big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.begin()
	if err != nil {
		return nil, nil, err
	}
	e.catchUp(tx, tx.epoch)
	v, err := tx.ledger.validator(validator)
	if err != nil {
		return nil, nil, err
	}
	active, err := e.registry.IsActive(v.ID)
	if err != nil {
		return nil, nil, err
	}
	if active != v.Active {
		if _, err := tx.ledger.setActive(v.ID, active, tx.rate.AccumulatedRewardPerShare); err != nil {
			return nil, nil, err
		}
	}
	key := PositionKey{Validator: v.ID, Participant: normalizeID(participant)}
	pos, err := e.position(tx, key, false)
	if err != nil {
		return nil, nil, err
	}
	if pos == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPosition, key)
	}
	return pos.Clone(), pending(pos, v.positionRate(key.Participant, tx.rate.AccumulatedRewardPerShare)), nil
}

// Balances reports the state as of the current epoch without committing the
// implied rate advance.
func (e *Engine) Balances() (Balances, error) {
	if err := e.ready(); err != nil {
		return Balances{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.begin()
	if err != nil {
		return Balances{}, err
	}
	e.catchUp(tx, tx.epoch)
	return e.balancesOf(tx), nil
}

// Validator returns a copy of the ledger entry for id with its commission
// accrued up to the current epoch.
func (e *Engine) Validator(id string) (*ValidatorShares, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.begin()
	if err != nil {
		return nil, err
	}
	e.catchUp(tx, tx.epoch)
	v, err := tx.ledger.validator(id)
	if err != nil {
		return nil, err
	}
	v.accrue(tx.rate.AccumulatedRewardPerShare)
	return v.Clone(), nil
}
