package vault

import (
	"fmt"
	"math/big"
)

// Available returns the reward balance not yet committed to stakers.
func (p *RewardPool) Available() *big.Int {
	return new(big.Int).Add(copyBig(p.Allocatable), copyBig(p.CarryRemainder))
}

// Outstanding returns deposits minus withdrawals and redemptions, the balance
// the pool must still hold.
func (p *RewardPool) Outstanding() *big.Int {
	out := copyBig(p.TotalDeposited)
	out.Sub(out, copyBig(p.TotalWithdrawn))
	return out.Sub(out, copyBig(p.TotalRedeemed))
}

// Conserved reports whether every token is accounted for as allocatable,
// committed or carry.
func (p *RewardPool) Conserved() bool {
	held := p.Available()
	held.Add(held, copyBig(p.Committed))
	return held.Cmp(p.Outstanding()) == 0
}

// rebalance moves whole allocation units from the carry into Allocatable and
// any sub-unit fragment of Allocatable back into the carry.
func (p *RewardPool) rebalance() {
	whole, fragment := splitUnits(p.Available(), p.PerEpochAllocation)
	p.Allocatable = whole
	p.CarryRemainder = fragment
}

func (p *RewardPool) deposit(amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	total, err := addChecked(p.TotalDeposited, amount)
	if err != nil {
		return err
	}
	p.TotalDeposited = total
	p.CarryRemainder = new(big.Int).Add(copyBig(p.CarryRemainder), amount)
	p.rebalance()
	return nil
}

// withdraw takes reward tokens out of the uncommitted balance. The carry is
// drained first so whole allocation units are only broken when necessary.
func (p *RewardPool) withdraw(amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if amount.Cmp(p.Available()) > 0 {
		return fmt.Errorf("%w: requested %s, available %s", ErrInsufficientPool, amount, p.Available())
	}
	fromCarry := minBig(copyBig(p.CarryRemainder), amount)
	p.CarryRemainder = new(big.Int).Sub(copyBig(p.CarryRemainder), fromCarry)
	rest := new(big.Int).Sub(amount, fromCarry)
	p.Allocatable = new(big.Int).Sub(copyBig(p.Allocatable), rest)
	p.TotalWithdrawn = new(big.Int).Add(copyBig(p.TotalWithdrawn), amount)
	p.rebalance()
	return nil
}

// draw commits up to epochs allocation units and returns the number of
// epochs funded together with the committed amount.
func (p *RewardPool) draw(epochs uint64) (uint64, *big.Int) {
	alloc := copyBig(p.PerEpochAllocation)
	if epochs == 0 || alloc.Sign() <= 0 {
		return 0, big.NewInt(0)
	}
	units := new(big.Int).Quo(copyBig(p.Allocatable), alloc)
	funded := new(big.Int).SetUint64(epochs)
	if units.Cmp(funded) < 0 {
		funded = units
	}
	amount := new(big.Int).Mul(funded, alloc)
	p.Allocatable = new(big.Int).Sub(copyBig(p.Allocatable), amount)
	p.Committed = new(big.Int).Add(copyBig(p.Committed), amount)
	return funded.Uint64(), amount
}

// release returns undistributable committed tokens to the carry.
func (p *RewardPool) release(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	p.Committed = new(big.Int).Sub(copyBig(p.Committed), amount)
	p.CarryRemainder = new(big.Int).Add(copyBig(p.CarryRemainder), amount)
	p.rebalance()
}

// pay settles a redemption out of the committed balance.
func (p *RewardPool) pay(amount *big.Int) error {
	if amount.Cmp(copyBig(p.Committed)) > 0 {
		return fmt.Errorf("%w: payout %s exceeds committed %s", ErrInsufficientPool, amount, p.Committed)
	}
	p.Committed = new(big.Int).Sub(copyBig(p.Committed), amount)
	p.TotalRedeemed = new(big.Int).Add(copyBig(p.TotalRedeemed), amount)
	return nil
}

func (p *RewardPool) setAllocation(amount *big.Int) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	p.PerEpochAllocation = copyBig(amount)
	p.rebalance()
	return nil
}

// fundedEpochs is the number of epochs the allocatable balance can still pay for.
func (p *RewardPool) fundedEpochs() uint64 {
	alloc := copyBig(p.PerEpochAllocation)
	if alloc.Sign() <= 0 {
		return 0
	}
	units := new(big.Int).Quo(copyBig(p.Allocatable), alloc)
	if !units.IsUint64() {
		return ^uint64(0)
	}
	return units.Uint64()
}
