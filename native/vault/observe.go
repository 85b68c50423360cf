package vault

import (
	"math/big"

	"rewardvault/observability/metrics"
)

func balanceMetrics(b Balances) metrics.BalanceSample {
	return metrics.BalanceSample{
		Epoch:          b.Epoch,
		Allocatable:    toFloat(b.Allocatable),
		Committed:      toFloat(b.Committed),
		Carry:          toFloat(b.CarryRemainder),
		TotalShares:    toFloat(b.TotalShares),
		TotalPrincipal: toFloat(b.TotalPrincipal),
		RatePerShare:   toFloat(new(big.Rat).SetFrac(copyBig(b.RatePerShare), RateScale)),
	}
}

// toFloat converts an integer or rational gauge value; precision loss is
// acceptable for metrics only.
func toFloat(v interface{}) float64 {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return 0
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case *big.Rat:
		if x == nil {
			return 0
		}
		f, _ := x.Float64()
		return f
	default:
		return 0
	}
}
