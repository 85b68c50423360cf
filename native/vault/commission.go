package vault

import (
	"fmt"
	"math/big"
)

// BasisPoints is the denominator of ValidatorShares.CommissionRate.
const BasisPoints uint64 = 10_000

// accrue moves the validator checkpoint to its current rate, splitting the
// reward earned by delegated shares since the last checkpoint into the
// operator commission and the delegator rate. It must run before Delegated or
// CommissionRate change.
func (v *ValidatorShares) accrue(global *big.Int) {
	rate := v.Rate(global)
	delta := new(big.Int).Sub(rate, copyBig(v.Checkpoint))
	v.Checkpoint = rate
	if delta.Sign() <= 0 {
		return
	}
	net := new(big.Int).Mul(delta, new(big.Int).SetUint64(BasisPoints-v.CommissionRate))
	net.Quo(net, new(big.Int).SetUint64(BasisPoints))
	v.DelegatorRate = new(big.Int).Add(copyBig(v.DelegatorRate), net)

	cut := new(big.Int).Sub(delta, net)
	if cut.Sign() > 0 && copyBig(v.Delegated).Sign() > 0 {
		cut.Mul(cut, v.Delegated)
		v.Commission = new(big.Int).Add(copyBig(v.Commission), cut)
	}
}

// positionRate returns the rate a participant's position settles against.
// The validator's own stake earns the gross rate; delegators earn the rate
// net of commission.
func (v *ValidatorShares) positionRate(participant string, global *big.Int) *big.Int {
	v.accrue(global)
	if v.self(participant) {
		return v.Rate(global)
	}
	return copyBig(v.DelegatorRate)
}

func (v *ValidatorShares) self(participant string) bool {
	return normalizeID(participant) == v.ID
}

// setCommission changes the commission rate for rewards accrued from now on.
func (v *ValidatorShares) setCommission(rate uint64, global *big.Int) error {
	if rate >= BasisPoints {
		return fmt.Errorf("%w: %d", ErrInvalidCommission, rate)
	}
	v.accrue(global)
	v.CommissionRate = rate
	return nil
}

// takeCommission returns the whole tokens of accrued commission and keeps the
// fraction for later.
func (v *ValidatorShares) takeCommission(global *big.Int) (*big.Int, error) {
	v.accrue(global)
	whole, fraction := new(big.Int), new(big.Int)
	whole.QuoRem(copyBig(v.Commission), RateScale, fraction)
	if whole.Sign() == 0 {
		return nil, ErrNothingToRedeem
	}
	v.Commission = fraction
	return whole, nil
}

// PendingCommission returns the whole tokens of commission accrued as of the
// last checkpoint.
func (v *ValidatorShares) PendingCommission() *big.Int {
	if v == nil || v.Commission == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(v.Commission, RateScale)
}

// checkCap enforces MaxCapMultiplier against one validator.
func (l *ShareLedger) checkCap(v *ValidatorShares) error {
	if l.MaxCapMultiplier == 0 {
		return nil
	}
	delegated := copyBig(v.Delegated)
	own := new(big.Int).Sub(copyBig(v.Shares), delegated)
	limit := new(big.Int).Mul(own, new(big.Int).SetUint64(l.MaxCapMultiplier))
	if delegated.Cmp(limit) > 0 {
		return fmt.Errorf("%w: validator %q delegated %s, cap %s", ErrDelegationCap, v.ID, delegated, limit)
	}
	return nil
}
