package vault

import (
	"errors"
	"math/big"
	"testing"
)

func TestEngineCommissionSplit(t *testing.T) {
	h := newHarness(t, 100)
	h.fund("v1", 100)
	h.fund("alice", 100)
	h.must(h.engine.Deposit(big.NewInt(1000)))
	h.must(h.engine.AddValidator("v1", "op1", 1000))
	h.must(h.engine.AddShares("v1", "v1", big.NewInt(100)))
	h.must(h.engine.AddShares("v1", "alice", big.NewInt(100)))

	h.clock.mine(2)
	self := h.must(h.engine.Redeem("v1", "v1"))
	expectBig(t, "validator keeps the gross rate", self.Paid, 100)
	alice := h.must(h.engine.Redeem("v1", "alice"))
	expectBig(t, "delegator net of commission", alice.Paid, 90)

	v, err := h.engine.Validator("v1")
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	if v.Operator != "op1" || v.CommissionRate != 1000 {
		t.Fatalf("unexpected validator config %s/%d", v.Operator, v.CommissionRate)
	}
	expectBig(t, "delegated", v.Delegated, 100)
	expectBig(t, "accrued commission", new(big.Int).Quo(v.Commission, RateScale), 10)

	receipt := h.must(h.engine.RedeemCommission("v1"))
	expectBig(t, "commission paid", receipt.Paid, 10)
	expectBig(t, "operator balance", h.tokens.balance("op1"), 10)
	expectBig(t, "nothing left committed", receipt.Balances.Committed, 0)
	if _, err := h.engine.RedeemCommission("v1"); !errors.Is(err, ErrNothingToRedeem) {
		t.Fatalf("expected ErrNothingToRedeem, got %v", err)
	}
}

func TestEngineCommissionRateChange(t *testing.T) {
	h := newHarness(t, 100)
	h.fund("alice", 100)
	h.must(h.engine.Deposit(big.NewInt(1000)))
	h.must(h.engine.AddValidator("v1", "", 1000))
	h.must(h.engine.AddShares("v1", "alice", big.NewInt(100)))

	h.clock.mine(2)
	h.must(h.engine.SetCommissionRate("v1", 5000))
	h.clock.mine(2)

	alice := h.must(h.engine.Redeem("v1", "alice"))
	expectBig(t, "delegator", alice.Paid, 280)
	receipt := h.must(h.engine.RedeemCommission("v1"))
	expectBig(t, "commission", receipt.Paid, 120)
	expectBig(t, "operator defaults to validator id", h.tokens.balance("v1"), 120)

	if _, err := h.engine.SetCommissionRate("v1", BasisPoints); !errors.Is(err, ErrInvalidCommission) {
		t.Fatalf("expected ErrInvalidCommission, got %v", err)
	}
	if _, err := h.engine.AddValidator("v2", "op2", BasisPoints); !errors.Is(err, ErrInvalidCommission) {
		t.Fatalf("expected ErrInvalidCommission, got %v", err)
	}
	if _, err := h.engine.SetCommissionRate("v9", 0); !errors.Is(err, ErrUnknownValidator) {
		t.Fatalf("expected ErrUnknownValidator, got %v", err)
	}
}

func TestEngineMaxCapMultiplier(t *testing.T) {
	h := newHarness(t, 100)
	h.fund("v1", 100)
	h.fund("alice", 300)
	h.fund("bob", 10)
	h.must(h.engine.AddValidator("v1", "", 0))
	h.must(h.engine.SetMaxCapMultiplier(2))

	if _, err := h.engine.AddShares("v1", "alice", big.NewInt(1)); !errors.Is(err, ErrDelegationCap) {
		t.Fatalf("expected ErrDelegationCap without self stake, got %v", err)
	}
	expectBig(t, "alice refunded", h.tokens.balance("alice"), 300)

	h.must(h.engine.AddShares("v1", "v1", big.NewInt(100)))
	h.must(h.engine.AddShares("v1", "alice", big.NewInt(200)))
	if _, err := h.engine.AddShares("v1", "bob", big.NewInt(1)); !errors.Is(err, ErrDelegationCap) {
		t.Fatalf("expected ErrDelegationCap, got %v", err)
	}
	expectBig(t, "bob untouched", h.tokens.balance("bob"), 10)

	if _, err := h.engine.RemoveShares("v1", "v1", big.NewInt(1)); !errors.Is(err, ErrDelegationCap) {
		t.Fatalf("expected ErrDelegationCap on self unstake, got %v", err)
	}
	h.must(h.engine.RemoveShares("v1", "alice", big.NewInt(100)))
	h.must(h.engine.RemoveShares("v1", "v1", big.NewInt(50)))

	h.must(h.engine.DisableValidator("v1"))
	h.must(h.engine.RemoveShares("v1", "v1", big.NewInt(50)))

	h.must(h.engine.SetMaxCapMultiplier(0))
	h.must(h.engine.EnableValidator("v1"))
	h.must(h.engine.AddShares("v1", "bob", big.NewInt(10)))

	v, err := h.engine.Validator("v1")
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	expectBig(t, "delegated", v.Delegated, 110)
	expectBig(t, "shares", v.Shares, 110)
}

func TestAccrueWithoutDelegationChargesNothing(t *testing.T) {
	ledger := NewShareLedger()
	v, err := ledger.addValidator("v1", "op", 2500, true, big.NewInt(0))
	if err != nil {
		t.Fatalf("add validator: %v", err)
	}
	if err := ledger.addShares("v1", big.NewInt(10), false); err != nil {
		t.Fatalf("add shares: %v", err)
	}
	v.accrue(RateScale)
	expectBig(t, "commission", v.Commission, 0)
	expectBig(t, "delegator rate", new(big.Int).Quo(new(big.Int).Mul(v.DelegatorRate, big.NewInt(4)), RateScale), 3)
	expectBig(t, "checkpoint", new(big.Int).Quo(v.Checkpoint, RateScale), 1)
	if err := ledger.checkCap(v); err != nil {
		t.Fatalf("uncapped ledger refused: %v", err)
	}
}
