package vault

import (
	"errors"
	"math/big"
	"testing"
)

func fundedPool(allocation, deposit int64) *RewardPool {
	pool := NewRewardPool(big.NewInt(allocation))
	if deposit > 0 {
		if err := pool.deposit(big.NewInt(deposit)); err != nil {
			panic(err)
		}
	}
	return pool
}

func TestPoolDepositKeepsFragmentInCarry(t *testing.T) {
	pool := fundedPool(100, 1050)
	expectBig(t, "allocatable", pool.Allocatable, 1000)
	expectBig(t, "carry", pool.CarryRemainder, 50)
	if !pool.Conserved() {
		t.Fatalf("pool not conserved after deposit")
	}

	if err := pool.deposit(big.NewInt(50)); err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	expectBig(t, "allocatable after completing unit", pool.Allocatable, 1100)
	expectBig(t, "carry after completing unit", pool.CarryRemainder, 0)
}

func TestPoolDepositRejectsInvalidAmounts(t *testing.T) {
	pool := fundedPool(100, 0)
	tooLarge := new(big.Int).Lsh(big.NewInt(1), 256)
	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5), tooLarge} {
		if err := pool.deposit(amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("deposit(%v): expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	expectBig(t, "deposited", pool.TotalDeposited, 0)
}

func TestPoolDepositRejectsOverflow(t *testing.T) {
	pool := fundedPool(1, 0)
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := pool.deposit(max); err != nil {
		t.Fatalf("deposit max: %v", err)
	}
	if err := pool.deposit(big.NewInt(1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected overflow to be rejected, got %v", err)
	}
}

func TestPoolWithdrawDrainsCarryFirst(t *testing.T) {
	pool := fundedPool(100, 1050)
	if err := pool.withdraw(big.NewInt(30)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	expectBig(t, "allocatable untouched", pool.Allocatable, 1000)
	expectBig(t, "carry", pool.CarryRemainder, 20)

	if err := pool.withdraw(big.NewInt(45)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	// 20 from carry, 25 from allocatable: 975 splits into 900 + 75.
	expectBig(t, "allocatable", pool.Allocatable, 900)
	expectBig(t, "carry", pool.CarryRemainder, 75)
	expectBig(t, "withdrawn", pool.TotalWithdrawn, 75)
	if !pool.Conserved() {
		t.Fatalf("pool not conserved after withdrawals")
	}
}

func TestPoolWithdrawInsufficient(t *testing.T) {
	pool := fundedPool(100, 1000)
	pool.draw(4)
	err := pool.withdraw(big.NewInt(601))
	if !errors.Is(err, ErrInsufficientPool) {
		t.Fatalf("expected ErrInsufficientPool, got %v", err)
	}
	expectBig(t, "committed stays reserved", pool.Committed, 400)
	if err := pool.withdraw(big.NewInt(600)); err != nil {
		t.Fatalf("withdraw exact available: %v", err)
	}
	expectBig(t, "available", pool.Available(), 0)
}

func TestPoolDrawLimitedByAllocatable(t *testing.T) {
	pool := fundedPool(100, 350)
	funded, amount := pool.draw(10)
	if funded != 3 {
		t.Fatalf("expected 3 funded epochs, got %d", funded)
	}
	expectBig(t, "drawn", amount, 300)
	expectBig(t, "committed", pool.Committed, 300)
	expectBig(t, "carry", pool.CarryRemainder, 50)

	funded, amount = pool.draw(1)
	if funded != 0 || amount.Sign() != 0 {
		t.Fatalf("expected nothing drawn from empty allocatable, got %d/%s", funded, amount)
	}
}

func TestPoolPayFromCommitted(t *testing.T) {
	pool := fundedPool(100, 300)
	pool.draw(2)
	if err := pool.pay(big.NewInt(150)); err != nil {
		t.Fatalf("pay: %v", err)
	}
	expectBig(t, "committed", pool.Committed, 50)
	expectBig(t, "redeemed", pool.TotalRedeemed, 150)
	if err := pool.pay(big.NewInt(51)); !errors.Is(err, ErrInsufficientPool) {
		t.Fatalf("expected ErrInsufficientPool, got %v", err)
	}
	if !pool.Conserved() {
		t.Fatalf("pool not conserved after payouts")
	}
}

func TestPoolSetAllocationResplits(t *testing.T) {
	pool := fundedPool(100, 1050)
	if err := pool.setAllocation(big.NewInt(300)); err != nil {
		t.Fatalf("setAllocation: %v", err)
	}
	expectBig(t, "allocatable", pool.Allocatable, 900)
	expectBig(t, "carry", pool.CarryRemainder, 150)
	if got := pool.fundedEpochs(); got != 3 {
		t.Fatalf("expected 3 funded epochs, got %d", got)
	}
	if err := pool.setAllocation(big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
