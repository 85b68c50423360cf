package vault

import "math/big"

// redeemPosition settles pos at validatorRate and returns the whole tokens to
// pay. The sub-token remainder stays in pos.Dust for a later payout.
// ErrNothingToRedeem is returned whenever the whole-token payout is zero,
// including a position that holds only dust; a repeated redeem in the same
// epoch therefore always fails the same way.
func redeemPosition(pos *Position, validatorRate *big.Int) (*big.Int, error) {
	settle(pos, validatorRate)
	paid := copyBig(pos.Accrued)
	if paid.Sign() == 0 {
		return nil, ErrNothingToRedeem
	}
	pos.Accrued = big.NewInt(0)
	return paid, nil
}

// pending returns what redeemPosition would pay without mutating pos.
func pending(pos *Position, validatorRate *big.Int) *big.Int {
	preview := pos.Clone()
	settle(preview, validatorRate)
	return preview.Accrued
}
