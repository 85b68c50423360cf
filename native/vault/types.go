package vault

import (
	"math/big"
	"sort"
)

// RewardPool captures the reward token accounting. All values are denominated
// in the smallest token unit.
type RewardPool struct {
	// TotalDeposited is the lifetime sum of reward deposits.
	TotalDeposited *big.Int
	// TotalWithdrawn is the lifetime sum of owner withdrawals.
	TotalWithdrawn *big.Int
	// TotalRedeemed is the lifetime sum of rewards paid to participants.
	TotalRedeemed *big.Int
	// PerEpochAllocation is the reward released for every elapsed epoch while
	// shares exist.
	PerEpochAllocation *big.Int
	// Allocatable is the uncommitted balance expressed in whole allocation
	// units. It is always a multiple of PerEpochAllocation.
	Allocatable *big.Int
	// Committed holds rewards drawn for elapsed epochs that have not yet been
	// paid out.
	Committed *big.Int
	// CarryRemainder keeps fragments smaller than one allocation unit until a
	// later deposit or withdrawal completes them.
	CarryRemainder *big.Int
}

// NewRewardPool returns an empty pool releasing allocation tokens per epoch.
func NewRewardPool(allocation *big.Int) *RewardPool {
	return &RewardPool{
		TotalDeposited:     big.NewInt(0),
		TotalWithdrawn:     big.NewInt(0),
		TotalRedeemed:      big.NewInt(0),
		PerEpochAllocation: copyBig(allocation),
		Allocatable:        big.NewInt(0),
		Committed:          big.NewInt(0),
		CarryRemainder:     big.NewInt(0),
	}
}

// Clone returns a deep copy of the pool.
func (p *RewardPool) Clone() *RewardPool {
	if p == nil {
		return nil
	}
	return &RewardPool{
		TotalDeposited:     copyBig(p.TotalDeposited),
		TotalWithdrawn:     copyBig(p.TotalWithdrawn),
		TotalRedeemed:      copyBig(p.TotalRedeemed),
		PerEpochAllocation: copyBig(p.PerEpochAllocation),
		Allocatable:        copyBig(p.Allocatable),
		Committed:          copyBig(p.Committed),
		CarryRemainder:     copyBig(p.CarryRemainder),
	}
}

// ValidatorShares tracks one validator's share balance and its position on
// the exchange rate.
type ValidatorShares struct {
	ID     string
	Shares *big.Int
	// Active mirrors the registry status. Only active validators contribute
	// to ShareLedger.TotalShares.
	Active bool
	// Offset is subtracted from the global rate while the validator is active
	// so that periods spent disabled are never credited.
	Offset *big.Int
	// Frozen is the validator's effective rate at the moment it was disabled.
	Frozen *big.Int
	// Operator receives the commission charged on delegated shares.
	Operator string
	// CommissionRate is the operator's cut of delegator rewards in basis points.
	CommissionRate uint64
	// Delegated is the part of Shares held by participants other than the
	// validator itself.
	Delegated *big.Int
	// Checkpoint is the validator rate at the last commission accrual.
	Checkpoint *big.Int
	// DelegatorRate accumulates the rate credited to delegators after
	// commission.
	DelegatorRate *big.Int
	// Commission holds the operator's unpaid cut in token * RateScale units.
	Commission *big.Int
}

// Clone returns a deep copy of the validator entry.
func (v *ValidatorShares) Clone() *ValidatorShares {
	if v == nil {
		return nil
	}
	return &ValidatorShares{
		ID:             v.ID,
		Shares:         copyBig(v.Shares),
		Active:         v.Active,
		Offset:         copyBig(v.Offset),
		Frozen:         copyBig(v.Frozen),
		Operator:       v.Operator,
		CommissionRate: v.CommissionRate,
		Delegated:      copyBig(v.Delegated),
		Checkpoint:     copyBig(v.Checkpoint),
		DelegatorRate:  copyBig(v.DelegatorRate),
		Commission:     copyBig(v.Commission),
	}
}

// Rate returns the validator's effective accumulated reward per share.
func (v *ValidatorShares) Rate(global *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	if !v.Active {
		return copyBig(v.Frozen)
	}
	rate := new(big.Int).Sub(copyBig(global), copyBig(v.Offset))
	if rate.Sign() < 0 {
		return big.NewInt(0)
	}
	return rate
}

// ShareLedger tracks the outstanding shares across validators.
type ShareLedger struct {
	// TotalShares is the sum of shares held by active validators and is the
	// divisor used by the exchange rate.
	TotalShares *big.Int
	// TotalPrincipal is the sum of all staked principal regardless of
	// validator status.
	TotalPrincipal *big.Int
	// MaxCapMultiplier bounds a validator's delegated shares to this multiple
	// of its own stake. Zero disables the cap.
	MaxCapMultiplier uint64
	Validators       map[string]*ValidatorShares
}

// NewShareLedger returns an empty ledger.
func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		TotalShares:    big.NewInt(0),
		TotalPrincipal: big.NewInt(0),
		Validators:     make(map[string]*ValidatorShares),
	}
}

// Clone returns a deep copy of the ledger.
func (l *ShareLedger) Clone() *ShareLedger {
	if l == nil {
		return nil
	}
	out := &ShareLedger{
		TotalShares:      copyBig(l.TotalShares),
		TotalPrincipal:   copyBig(l.TotalPrincipal),
		MaxCapMultiplier: l.MaxCapMultiplier,
		Validators:       make(map[string]*ValidatorShares, len(l.Validators)),
	}
	for id, v := range l.Validators {
		out.Validators[id] = v.Clone()
	}
	return out
}

// ValidatorIDs returns the registered validator identifiers in sorted order.
func (l *ShareLedger) ValidatorIDs() []string {
	if l == nil {
		return nil
	}
	ids := make([]string, 0, len(l.Validators))
	for id := range l.Validators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RateSnapshot is the accumulated reward per share together with the epoch it
// reflects.
type RateSnapshot struct {
	// AccumulatedRewardPerShare is scaled by RateScale and never decreases.
	AccumulatedRewardPerShare *big.Int
	LastUpdateEpoch           uint64
	// Residual collects the division remainders (token * RateScale units)
	// not yet returned to the pool carry.
	Residual *big.Int
	// DeferredEpochs counts elapsed epochs skipped because no shares existed.
	DeferredEpochs uint64
}

// NewRateSnapshot returns a zero rate anchored at epoch.
func NewRateSnapshot(epoch uint64) *RateSnapshot {
	return &RateSnapshot{
		AccumulatedRewardPerShare: big.NewInt(0),
		LastUpdateEpoch:           epoch,
		Residual:                  big.NewInt(0),
	}
}

// Clone returns a deep copy of the snapshot.
func (r *RateSnapshot) Clone() *RateSnapshot {
	if r == nil {
		return nil
	}
	return &RateSnapshot{
		AccumulatedRewardPerShare: copyBig(r.AccumulatedRewardPerShare),
		LastUpdateEpoch:           r.LastUpdateEpoch,
		Residual:                  copyBig(r.Residual),
		DeferredEpochs:            r.DeferredEpochs,
	}
}

// PositionKey identifies a participant's stake behind one validator.
type PositionKey struct {
	Validator   string
	Participant string
}

func (k PositionKey) String() string { return k.Validator + "/" + k.Participant }

// Position is a participant's stake and reward checkpoint.
type Position struct {
	Validator   string
	Participant string
	// Shares equals the staked principal.
	Shares *big.Int
	// RewardDebt is the validator rate observed at the last checkpoint.
	RewardDebt *big.Int
	// Accrued holds whole tokens settled but not yet paid.
	Accrued *big.Int
	// Dust holds the sub-token remainder in token * RateScale units.
	Dust *big.Int
}

// NewPosition returns an empty position checkpointed at rate.
func NewPosition(key PositionKey, rate *big.Int) *Position {
	return &Position{
		Validator:   key.Validator,
		Participant: key.Participant,
		Shares:      big.NewInt(0),
		RewardDebt:  copyBig(rate),
		Accrued:     big.NewInt(0),
		Dust:        big.NewInt(0),
	}
}

// Key returns the position identifier.
func (p *Position) Key() PositionKey {
	return PositionKey{Validator: p.Validator, Participant: p.Participant}
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	return &Position{
		Validator:   p.Validator,
		Participant: p.Participant,
		Shares:      copyBig(p.Shares),
		RewardDebt:  copyBig(p.RewardDebt),
		Accrued:     copyBig(p.Accrued),
		Dust:        copyBig(p.Dust),
	}
}

// Changeset is the set of records an operation writes. Nil fields are left
// untouched by Commit.
type Changeset struct {
	Pool      *RewardPool
	Ledger    *ShareLedger
	Rate      *RateSnapshot
	Positions []*Position
}

// Balances summarises the engine state after an operation.
type Balances struct {
	Epoch          uint64   `json:"epoch"`
	TotalDeposited *big.Int `json:"totalDeposited"`
	TotalWithdrawn *big.Int `json:"totalWithdrawn"`
	TotalRedeemed  *big.Int `json:"totalRedeemed"`
	Allocation     *big.Int `json:"perEpochAllocation"`
	Allocatable    *big.Int `json:"allocatable"`
	Committed      *big.Int `json:"committed"`
	CarryRemainder *big.Int `json:"carryRemainder"`
	TotalShares    *big.Int `json:"totalShares"`
	TotalPrincipal *big.Int `json:"totalPrincipal"`
	RatePerShare   *big.Int `json:"accumulatedRewardPerShare"`
	LastUpdate     uint64   `json:"lastUpdateEpoch"`
	DeferredEpochs uint64   `json:"deferredEpochs"`
	// EndEpoch is the epoch at which the allocatable balance runs out if
	// shares stay non-zero.
	EndEpoch uint64 `json:"endEpoch"`
}

// Receipt is returned by every successful operation.
type Receipt struct {
	Operation string    `json:"operation"`
	Epoch     uint64    `json:"epoch"`
	Amount    *big.Int  `json:"amount,omitempty"`
	Paid      *big.Int  `json:"paid,omitempty"`
	Position  *Position `json:"position,omitempty"`
	Balances  Balances  `json:"balances"`
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
