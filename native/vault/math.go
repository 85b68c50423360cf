package vault

import (
	"math/big"

	"github.com/holiman/uint256"
)

// RateScale is the fixed-point scale of AccumulatedRewardPerShare, RewardDebt,
// Dust and the rate Residual: a stored value v represents v / 10^27.
var RateScale = mustBigInt("1000000000000000000000000000")

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// quoRemDown returns floor(a*b/d) and the remainder (a*b) mod d. All inputs
// are non-negative and d must be positive.
func quoRemDown(a, b, d *big.Int) (*big.Int, *big.Int) {
	product := new(big.Int).Mul(a, b)
	quo, rem := new(big.Int), new(big.Int)
	quo.QuoRem(product, d, rem)
	return quo, rem
}

// splitUnits divides value into whole multiples of unit and the fragment.
func splitUnits(value, unit *big.Int) (*big.Int, *big.Int) {
	if unit == nil || unit.Sign() <= 0 {
		return big.NewInt(0), copyBig(value)
	}
	quo, rem := new(big.Int), new(big.Int)
	quo.QuoRem(value, unit, rem)
	return quo.Mul(quo, unit), rem
}

// validAmount accepts strictly positive values representable in 256 bits.
func validAmount(amount *big.Int) bool {
	if amount == nil || amount.Sign() <= 0 {
		return false
	}
	_, overflow := uint256.FromBig(amount)
	return !overflow
}

// addChecked returns a+b, failing with ErrInvalidAmount when the sum leaves
// the 256-bit range.
func addChecked(a, b *big.Int) (*big.Int, error) {
	x, overflow := uint256.FromBig(copyBig(a))
	if overflow {
		return nil, ErrInvalidAmount
	}
	y, overflow := uint256.FromBig(copyBig(b))
	if overflow {
		return nil, ErrInvalidAmount
	}
	sum, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, ErrInvalidAmount
	}
	return sum.ToBig(), nil
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return copyBig(a)
	}
	return copyBig(b)
}
