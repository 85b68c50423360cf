package state

import (
	"fmt"
	"math/big"
	"sort"

	"rewardvault/native/vault"
)

var (
	vaultPoolKey       = []byte("vault/pool")
	vaultLedgerKey     = []byte("vault/ledger")
	vaultRateKey       = []byte("vault/rate")
	vaultPositionsRoot = []byte("vault/position/")
)

// vaultPositionKey length-prefixes the validator so identifiers containing
// the separator cannot collide.
func vaultPositionKey(key vault.PositionKey) []byte {
	return []byte(fmt.Sprintf("%s%d:%s/%s", vaultPositionsRoot, len(key.Validator), key.Validator, key.Participant))
}

type storedPool struct {
	TotalDeposited     *big.Int
	TotalWithdrawn     *big.Int
	TotalRedeemed      *big.Int
	PerEpochAllocation *big.Int
	Allocatable        *big.Int
	Committed          *big.Int
	CarryRemainder     *big.Int
}

func newStoredPool(p *vault.RewardPool) *storedPool {
	c := p.Clone()
	return &storedPool{
		TotalDeposited:     c.TotalDeposited,
		TotalWithdrawn:     c.TotalWithdrawn,
		TotalRedeemed:      c.TotalRedeemed,
		PerEpochAllocation: c.PerEpochAllocation,
		Allocatable:        c.Allocatable,
		Committed:          c.Committed,
		CarryRemainder:     c.CarryRemainder,
	}
}

func (s *storedPool) toPool() *vault.RewardPool {
	return (&vault.RewardPool{
		TotalDeposited:     s.TotalDeposited,
		TotalWithdrawn:     s.TotalWithdrawn,
		TotalRedeemed:      s.TotalRedeemed,
		PerEpochAllocation: s.PerEpochAllocation,
		Allocatable:        s.Allocatable,
		Committed:          s.Committed,
		CarryRemainder:     s.CarryRemainder,
	}).Clone()
}

type storedValidator struct {
	ID             string
	Shares         *big.Int
	Active         bool
	Offset         *big.Int
	Frozen         *big.Int
	Operator       string
	CommissionRate uint64
	Delegated      *big.Int
	Checkpoint     *big.Int
	DelegatorRate  *big.Int
	Commission     *big.Int
}

type storedLedger struct {
	TotalShares      *big.Int
	TotalPrincipal   *big.Int
	MaxCapMultiplier uint64
	Validators       []storedValidator
}

func newStoredLedger(l *vault.ShareLedger) *storedLedger {
	c := l.Clone()
	stored := &storedLedger{
		TotalShares:      c.TotalShares,
		TotalPrincipal:   c.TotalPrincipal,
		MaxCapMultiplier: c.MaxCapMultiplier,
		Validators:       make([]storedValidator, 0, len(c.Validators)),
	}
	ids := make([]string, 0, len(c.Validators))
	for id := range c.Validators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v := c.Validators[id]
		stored.Validators = append(stored.Validators, storedValidator{
			ID:             v.ID,
			Shares:         v.Shares,
			Active:         v.Active,
			Offset:         v.Offset,
			Frozen:         v.Frozen,
			Operator:       v.Operator,
			CommissionRate: v.CommissionRate,
			Delegated:      v.Delegated,
			Checkpoint:     v.Checkpoint,
			DelegatorRate:  v.DelegatorRate,
			Commission:     v.Commission,
		})
	}
	return stored
}

func (s *storedLedger) toLedger() *vault.ShareLedger {
	ledger := &vault.ShareLedger{
		TotalShares:      s.TotalShares,
		TotalPrincipal:   s.TotalPrincipal,
		MaxCapMultiplier: s.MaxCapMultiplier,
		Validators:       make(map[string]*vault.ValidatorShares, len(s.Validators)),
	}
	for _, v := range s.Validators {
		ledger.Validators[v.ID] = &vault.ValidatorShares{
			ID:             v.ID,
			Shares:         v.Shares,
			Active:         v.Active,
			Offset:         v.Offset,
			Frozen:         v.Frozen,
			Operator:       v.Operator,
			CommissionRate: v.CommissionRate,
			Delegated:      v.Delegated,
			Checkpoint:     v.Checkpoint,
			DelegatorRate:  v.DelegatorRate,
			Commission:     v.Commission,
		}
	}
	return ledger.Clone()
}

type storedRate struct {
	AccumulatedRewardPerShare *big.Int
	LastUpdateEpoch           uint64
	Residual                  *big.Int
	DeferredEpochs            uint64
}

func newStoredRate(r *vault.RateSnapshot) *storedRate {
	c := r.Clone()
	return &storedRate{
		AccumulatedRewardPerShare: c.AccumulatedRewardPerShare,
		LastUpdateEpoch:           c.LastUpdateEpoch,
		Residual:                  c.Residual,
		DeferredEpochs:            c.DeferredEpochs,
	}
}

func (s *storedRate) toRate() *vault.RateSnapshot {
	return (&vault.RateSnapshot{
		AccumulatedRewardPerShare: s.AccumulatedRewardPerShare,
		LastUpdateEpoch:           s.LastUpdateEpoch,
		Residual:                  s.Residual,
		DeferredEpochs:            s.DeferredEpochs,
	}).Clone()
}

type storedPosition struct {
	Validator   string
	Participant string
	Shares      *big.Int
	RewardDebt  *big.Int
	Accrued     *big.Int
	Dust        *big.Int
}

func newStoredPosition(p *vault.Position) *storedPosition {
	c := p.Clone()
	return &storedPosition{
		Validator:   c.Validator,
		Participant: c.Participant,
		Shares:      c.Shares,
		RewardDebt:  c.RewardDebt,
		Accrued:     c.Accrued,
		Dust:        c.Dust,
	}
}

func (s *storedPosition) toPosition() *vault.Position {
	return (&vault.Position{
		Validator:   s.Validator,
		Participant: s.Participant,
		Shares:      s.Shares,
		RewardDebt:  s.RewardDebt,
		Accrued:     s.Accrued,
		Dust:        s.Dust,
	}).Clone()
}
