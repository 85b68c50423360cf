package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardvault/config"
	"rewardvault/core/epoch"
	"rewardvault/core/state"
	"rewardvault/native/bank"
	"rewardvault/native/validators"
	"rewardvault/native/vault"
	"rewardvault/storage"
)

func newTestEngine(t *testing.T) (*state.Manager, *vault.Engine) {
	t.Helper()
	db := storage.NewMemDB()
	manager := state.NewManager(db)
	clock, err := epoch.NewClock(epoch.Config{Length: 1}, epoch.NewManualHeight(0))
	require.NoError(t, err)
	engine := vault.NewEngine(manager, bank.NewLedger(db, "vault"), validators.NewRegistry(manager), clock)
	return manager, engine
}

func TestEnsureInitialisedAppliesConfigOnce(t *testing.T) {
	manager, engine := newTestEngine(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	cfg := config.Default()
	cfg.PerEpochAllocation = "100"
	cfg.MaxCapMultiplier = 2
	require.NoError(t, ensureInitialised(cfg, manager, engine, logger))

	pool, err := manager.LoadPool()
	require.NoError(t, err)
	require.Equal(t, int64(100), pool.PerEpochAllocation.Int64())
	ledger, err := manager.LoadLedger()
	require.NoError(t, err)
	require.Equal(t, uint64(2), ledger.MaxCapMultiplier)
	require.Empty(t, logs.String())

	require.NoError(t, ensureInitialised(cfg, manager, engine, logger))
	require.Empty(t, logs.String())

	cfg.PerEpochAllocation = "250"
	cfg.MaxCapMultiplier = 5
	require.NoError(t, ensureInitialised(cfg, manager, engine, logger))
	require.Contains(t, logs.String(), "PerEpochAllocation ignored")
	require.Contains(t, logs.String(), "MaxCapMultiplier ignored")

	pool, err = manager.LoadPool()
	require.NoError(t, err)
	require.Equal(t, int64(100), pool.PerEpochAllocation.Int64())
}
