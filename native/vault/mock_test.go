package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

type mockEngineState struct {
	pool      *RewardPool
	ledger    *ShareLedger
	rate      *RateSnapshot
	positions map[PositionKey]*Position
	commitErr error
	commits   int
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{positions: make(map[PositionKey]*Position)}
}

func (m *mockEngineState) LoadPool() (*RewardPool, error)    { return m.pool.Clone(), nil }
func (m *mockEngineState) LoadLedger() (*ShareLedger, error) { return m.ledger.Clone(), nil }
func (m *mockEngineState) LoadRate() (*RateSnapshot, error)  { return m.rate.Clone(), nil }
func (m *mockEngineState) LoadPosition(key PositionKey) (*Position, error) {
	return m.positions[key].Clone(), nil
}

func (m *mockEngineState) Commit(cs *Changeset) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.commits++
	if cs.Pool != nil {
		m.pool = cs.Pool.Clone()
	}
	if cs.Ledger != nil {
		m.ledger = cs.Ledger.Clone()
	}
	if cs.Rate != nil {
		m.rate = cs.Rate.Clone()
	}
	for _, pos := range cs.Positions {
		m.positions[pos.Key()] = pos.Clone()
	}
	return nil
}

type mockTokens struct {
	balances map[string]*big.Int
	failIn   bool
	failOut  bool
}

const vaultAccount = "vault"

func newMockTokens() *mockTokens {
	return &mockTokens{balances: make(map[string]*big.Int)}
}

func (m *mockTokens) balance(account string) *big.Int {
	if b, ok := m.balances[account]; ok {
		return b
	}
	return big.NewInt(0)
}

func (m *mockTokens) move(from, to string, amount *big.Int) error {
	if m.balance(from).Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance for %s", from)
	}
	m.balances[from] = new(big.Int).Sub(m.balance(from), amount)
	m.balances[to] = new(big.Int).Add(m.balance(to), amount)
	return nil
}

func (m *mockTokens) TransferIn(from string, amount *big.Int) error {
	if m.failIn {
		return errors.New("allowance exceeded")
	}
	return m.move(from, vaultAccount, amount)
}

func (m *mockTokens) TransferOut(to string, amount *big.Int) error {
	if m.failOut {
		return errors.New("transfer rejected")
	}
	return m.move(vaultAccount, to, amount)
}

type mockRegistry struct {
	active map[string]bool
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{active: make(map[string]bool)}
}

func (m *mockRegistry) IsActive(id string) (bool, error) { return m.active[id], nil }

func (m *mockRegistry) SetActive(id string, active bool) error {
	m.active[id] = active
	return nil
}

type manualEpoch struct {
	epoch uint64
}

func (m *manualEpoch) CurrentEpoch() uint64 { return m.epoch }

func (m *manualEpoch) mine(n uint64) { m.epoch += n }

type harness struct {
	t        *testing.T
	engine   *Engine
	state    *mockEngineState
	tokens   *mockTokens
	registry *mockRegistry
	clock    *manualEpoch
}

func newHarness(t *testing.T, allocation int64) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		state:    newMockEngineState(),
		tokens:   newMockTokens(),
		registry: newMockRegistry(),
		clock:    &manualEpoch{},
	}
	h.engine = NewEngine(h.state, h.tokens, h.registry, h.clock)
	h.engine.SetOwner("owner")
	if _, err := h.engine.Initialize(big.NewInt(allocation)); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	h.tokens.balances["owner"] = big.NewInt(1_000_000_000)
	return h
}

func (h *harness) fund(account string, amount int64) {
	h.tokens.balances[account] = new(big.Int).Add(h.tokens.balance(account), big.NewInt(amount))
}

// checkInvariants verifies conservation and that the vault holds exactly
// principal plus outstanding rewards.
func (h *harness) checkInvariants() {
	h.t.Helper()
	pool, ledger := h.state.pool, h.state.ledger
	if !pool.Conserved() {
		h.t.Fatalf("pool not conserved: deposited=%s withdrawn=%s redeemed=%s allocatable=%s committed=%s carry=%s",
			pool.TotalDeposited, pool.TotalWithdrawn, pool.TotalRedeemed, pool.Allocatable, pool.Committed, pool.CarryRemainder)
	}
	if !ledger.Consistent() {
		h.t.Fatalf("ledger inconsistent: total=%s principal=%s", ledger.TotalShares, ledger.TotalPrincipal)
	}
	if new(big.Int).Mod(pool.Allocatable, pool.PerEpochAllocation).Sign() != 0 {
		h.t.Fatalf("allocatable %s not a multiple of %s", pool.Allocatable, pool.PerEpochAllocation)
	}
	expected := new(big.Int).Add(pool.Outstanding(), ledger.TotalPrincipal)
	if got := h.tokens.balance(vaultAccount); got.Cmp(expected) != 0 {
		h.t.Fatalf("vault balance %s, expected principal+outstanding %s", got, expected)
	}
}

func (h *harness) must(r *Receipt, err error) *Receipt {
	h.t.Helper()
	if err != nil {
		h.t.Fatalf("unexpected error: %v", err)
	}
	h.checkInvariants()
	return r
}

func expectBig(t *testing.T, label string, got *big.Int, want int64) {
	t.Helper()
	if got == nil || got.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("%s: expected %d, got %v", label, want, got)
	}
}
