package vault

import "math/big"

// Advance is the outcome of moving the exchange rate to a later epoch.
type Advance struct {
	From uint64
	To   uint64
	// Funded is the number of elapsed epochs paid for out of the pool.
	Funded uint64
	// Deferred is the number of elapsed epochs skipped because no shares
	// existed. Their allocation stays in the pool.
	Deferred uint64
	// Distributed is the amount moved from Allocatable to Committed.
	Distributed *big.Int
	// Returned is the rounding surplus handed back to the pool carry.
	Returned *big.Int
}

// Changed reports whether the advance touched any state.
func (a Advance) Changed() bool { return a.To > a.From }

// advanceRate applies every whole epoch elapsed since rate.LastUpdateEpoch.
// Calling it again with the same or an earlier epoch is a no-op.
func advanceRate(rate *RateSnapshot, pool *RewardPool, ledger *ShareLedger, epoch uint64) Advance {
	result := Advance{
		From:        rate.LastUpdateEpoch,
		To:          rate.LastUpdateEpoch,
		Distributed: big.NewInt(0),
		Returned:    big.NewInt(0),
	}
	if epoch <= rate.LastUpdateEpoch {
		return result
	}
	elapsed := epoch - rate.LastUpdateEpoch
	result.To = epoch
	rate.LastUpdateEpoch = epoch

	total := copyBig(ledger.TotalShares)
	if total.Sign() == 0 {
		// No divisor: leave the allocation in the pool for a later epoch.
		rate.DeferredEpochs += elapsed
		result.Deferred = elapsed
		return result
	}

	funded, reward := pool.draw(elapsed)
	result.Funded = funded
	result.Distributed = reward
	if reward.Sign() == 0 {
		return result
	}

	increment, remainder := quoRemDown(reward, RateScale, total)
	rate.AccumulatedRewardPerShare = new(big.Int).Add(copyBig(rate.AccumulatedRewardPerShare), increment)

	residual := new(big.Int).Add(copyBig(rate.Residual), remainder)
	whole, fraction := new(big.Int), new(big.Int)
	whole.QuoRem(residual, RateScale, fraction)
	rate.Residual = fraction
	if whole.Sign() > 0 {
		pool.release(whole)
		result.Returned = whole
	}
	return result
}

// settle credits a position with everything earned since its last checkpoint
// at validatorRate. Whole tokens land in Accrued and the fraction in Dust.
func settle(pos *Position, validatorRate *big.Int) {
	delta := new(big.Int).Sub(copyBig(validatorRate), copyBig(pos.RewardDebt))
	if delta.Sign() > 0 && pos.Shares.Sign() > 0 {
		owed := new(big.Int).Mul(copyBig(pos.Shares), delta)
		owed.Add(owed, copyBig(pos.Dust))
		whole, fraction := new(big.Int), new(big.Int)
		whole.QuoRem(owed, RateScale, fraction)
		pos.Accrued = new(big.Int).Add(copyBig(pos.Accrued), whole)
		pos.Dust = fraction
	}
	pos.RewardDebt = copyBig(validatorRate)
}
